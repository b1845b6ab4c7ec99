package verify

import (
	"context"
	"time"

	"gate-tg-bot/internal/audit"
	"gate-tg-bot/internal/challenge"
)

// Actions is the set of platform side effects the engine drives.
// Every call blocks until the platform has answered.
type Actions interface {
	RestrictSending(ctx context.Context, chatID, userID int64) error
	RestoreDefaultPermissions(ctx context.Context, chatID, userID int64) error
	SendChallenge(ctx context.Context, chatID, subjectID int64, text string, options []int) (challenge.PromptHandle, error)
	EditMessage(ctx context.Context, prompt challenge.PromptHandle, text string) error
	CreateSingleUseInvitation(ctx context.Context, chatID int64, expiry time.Time) (string, error)
	SendDirectMessage(ctx context.Context, userID int64, text string) error
	BanFromChat(ctx context.Context, chatID, userID int64) error
	// AcknowledgeEvent answers an inbound event; a non-empty notice is shown
	// only to the user who triggered it.
	AcknowledgeEvent(ctx context.Context, eventID, notice string) error
}

// Recorder receives terminal verdicts.
type Recorder interface {
	Record(ctx context.Context, v audit.Verdict) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Member identifies a chat user.
type Member struct {
	ID    int64
	Name  string
	IsBot bool
}

// JoinEvent is a member entering ChatID.
type JoinEvent struct {
	ChatID int64
	Member Member
}

// DepartureEvent is a member leaving or being removed from ChatID.
type DepartureEvent struct {
	ChatID int64
	UserID int64
}

// AnswerEvent is a click on one of a prompt's answer buttons.
type AnswerEvent struct {
	EventID   string
	Prompt    challenge.PromptHandle
	ClickerID int64
	SubjectID int64
	Value     int
}
