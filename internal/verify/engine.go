package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gate-tg-bot/internal/audit"
	"gate-tg-bot/internal/challenge"
	apperrors "gate-tg-bot/internal/errors"
)

// Config holds the engine's chat routing and outcome policy.
type Config struct {
	SourceChatID  int64
	TargetChatID  int64
	InviteTTL     time.Duration
	SweepInterval time.Duration
	// BanOnSuccess bans verified members from the source chat. When false
	// their default permissions are restored instead.
	BanOnSuccess bool
}

// Engine runs the per-member verification state machine.
//
// A member moves from restricted to exactly one of verified, rejected,
// expired or withdrawn. The store's atomic take is the only way into a
// terminal transition, so concurrent events for the same member cannot both
// act on it. Events for different members never share a lock beyond the
// store's short critical sections.
type Engine struct {
	cfg      Config
	store    *challenge.Store
	gen      *challenge.Generator
	actions  Actions
	recorder Recorder
	clock    Clock
	logger   *slog.Logger
}

// NewEngine creates a verification engine. recorder may be nil; a nil clock
// uses the system clock.
func NewEngine(
	cfg Config,
	store *challenge.Store,
	gen *challenge.Generator,
	actions Actions,
	recorder Recorder,
	clock Clock,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		gen:      gen,
		actions:  actions,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Pending returns the number of members awaiting an answer
func (e *Engine) Pending() int {
	return e.store.Len()
}

// HandleJoin restricts a newly joined member and issues a challenge.
func (e *Engine) HandleJoin(ctx context.Context, ev JoinEvent) {
	if ev.ChatID != e.cfg.SourceChatID {
		e.logger.Debug("ignoring join outside source chat", "chat_id", ev.ChatID, "user_id", ev.Member.ID)
		return
	}
	if ev.Member.IsBot {
		e.logger.Debug("ignoring bot join", "user_id", ev.Member.ID)
		return
	}

	subject := ev.Member.ID

	if err := e.actions.RestrictSending(ctx, ev.ChatID, subject); err != nil {
		e.logger.Error("failed to restrict member", "error", err, "chat_id", ev.ChatID, "user_id", subject)
	}

	c := e.gen.New(subject, ev.Member.Name, ev.ChatID, e.clock.Now())

	prompt, err := e.actions.SendChallenge(ctx, ev.ChatID, subject, promptText(c), c.Options)
	if err != nil {
		// The challenge is still stored so the sweep resolves the restriction.
		e.logger.Error("failed to send challenge prompt", "error", err, "challenge_id", c.ID, "user_id", subject)
	} else {
		c.Prompt = prompt
	}

	if prev, replaced := e.store.Put(subject, c); replaced {
		e.logger.Info("challenge superseded", "user_id", subject, "old_challenge_id", prev.ID, "challenge_id", c.ID)
		e.edit(ctx, prev, supersededText(prev))
	}

	e.logger.Info("challenge issued",
		"challenge_id", c.ID,
		"user_id", subject,
		"chat_id", ev.ChatID,
		"deadline", c.Deadline,
	)
}

// HandleAnswer resolves a button click. The event is always acknowledged,
// whatever happens to the challenge.
func (e *Engine) HandleAnswer(ctx context.Context, ev AnswerEvent) {
	notice := e.resolveAnswer(ctx, ev)
	if err := e.actions.AcknowledgeEvent(ctx, ev.EventID, notice); err != nil {
		e.logger.Warn("failed to acknowledge answer", "error", err, "event_id", ev.EventID)
	}
}

func (e *Engine) resolveAnswer(ctx context.Context, ev AnswerEvent) string {
	if ev.ClickerID != ev.SubjectID {
		e.logger.Info("answer from non-subject ignored", "clicker_id", ev.ClickerID, "user_id", ev.SubjectID)
		return apperrors.ErrNotYourChallenge.UserMsg
	}

	c, ok := e.store.TakeIfMatches(ev.SubjectID, ev.Prompt)
	if !ok {
		e.logger.Debug("answer for inactive challenge", "user_id", ev.SubjectID, "message_id", ev.Prompt.MessageID)
		return apperrors.ErrChallengeInactive.UserMsg
	}
	e.mustMatch(ev.SubjectID, c)

	now := e.clock.Now()
	switch {
	case c.Expired(now):
		// Answered after the deadline but before the sweep got to it.
		e.expire(ctx, c)
		return apperrors.ErrChallengeInactive.UserMsg
	case c.IsCorrect(ev.Value):
		e.admit(ctx, c)
		return ""
	default:
		e.reject(ctx, c)
		return apperrors.ErrWrongAnswer.UserMsg
	}
}

// HandleDeparture bans a member who leaves while a challenge is outstanding.
// Departures of anyone else are ignored.
func (e *Engine) HandleDeparture(ctx context.Context, ev DepartureEvent) {
	if ev.ChatID != e.cfg.SourceChatID {
		return
	}

	c, ok := e.store.TakeIfMatches(ev.UserID, challenge.PromptHandle{})
	if !ok {
		e.logger.Debug("departure without pending challenge", "user_id", ev.UserID)
		return
	}
	e.mustMatch(ev.UserID, c)

	e.ban(ctx, c)
	e.edit(ctx, c, withdrawnText(c))
	e.record(ctx, c, audit.OutcomeWithdrawn)
}

// Sweep expires every challenge whose deadline has passed and returns how
// many were expired. Expiries run concurrently.
func (e *Engine) Sweep(ctx context.Context) int {
	expired := e.store.Sweep(e.clock.Now())
	if len(expired) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	for _, c := range expired {
		wg.Add(1)
		go func(c challenge.Challenge) {
			defer wg.Done()
			e.expire(ctx, c)
		}(c)
	}
	wg.Wait()

	return len(expired)
}

// RunSweeper sweeps on every tick of the configured interval until ctx is
// cancelled. A sweep already under way runs to completion.
func (e *Engine) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := e.Sweep(context.WithoutCancel(ctx)); n > 0 {
				e.logger.Debug("sweep expired challenges", "count", n)
			}
		}
	}
}

func (e *Engine) admit(ctx context.Context, c challenge.Challenge) {
	e.edit(ctx, c, successText(c))

	expiry := e.clock.Now().Add(e.cfg.InviteTTL)
	link, err := e.actions.CreateSingleUseInvitation(ctx, e.cfg.TargetChatID, expiry)
	if err != nil {
		e.logger.Error("failed to create invitation", "error", err, "challenge_id", c.ID, "user_id", c.Subject)
	} else if err := e.actions.SendDirectMessage(ctx, c.Subject, inviteText(link, e.cfg.InviteTTL)); err != nil {
		e.logger.Warn("failed to deliver invitation", "error", err, "challenge_id", c.ID, "user_id", c.Subject)
	}

	if e.cfg.BanOnSuccess {
		e.ban(ctx, c)
	} else if err := e.actions.RestoreDefaultPermissions(ctx, c.OriginChat, c.Subject); err != nil {
		e.logger.Error("failed to restore permissions", "error", err, "chat_id", c.OriginChat, "user_id", c.Subject)
	}

	e.record(ctx, c, audit.OutcomeVerified)
}

func (e *Engine) reject(ctx context.Context, c challenge.Challenge) {
	e.ban(ctx, c)
	e.edit(ctx, c, failureText(c))
	e.record(ctx, c, audit.OutcomeRejected)
}

func (e *Engine) expire(ctx context.Context, c challenge.Challenge) {
	e.ban(ctx, c)
	e.edit(ctx, c, timeoutText(c))
	e.record(ctx, c, audit.OutcomeExpired)
}

func (e *Engine) ban(ctx context.Context, c challenge.Challenge) {
	if err := e.actions.BanFromChat(ctx, c.OriginChat, c.Subject); err != nil {
		e.logger.Error("failed to ban member", "error", err, "chat_id", c.OriginChat, "user_id", c.Subject)
	}
}

func (e *Engine) edit(ctx context.Context, c challenge.Challenge, text string) {
	if c.Prompt.IsZero() {
		return
	}
	if err := e.actions.EditMessage(ctx, c.Prompt, text); err != nil {
		e.logger.Warn("failed to edit prompt", "error", err, "challenge_id", c.ID, "message_id", c.Prompt.MessageID)
	}
}

func (e *Engine) record(ctx context.Context, c challenge.Challenge, outcome audit.Outcome) {
	now := e.clock.Now()
	e.logger.Info("challenge resolved",
		"challenge_id", c.ID,
		"user_id", c.Subject,
		"outcome", outcome,
		"elapsed", now.Sub(c.IssuedAt),
	)

	if e.recorder == nil {
		return
	}
	err := e.recorder.Record(ctx, audit.Verdict{
		ChallengeID: c.ID,
		Subject:     c.Subject,
		SubjectName: c.SubjectName,
		ChatID:      c.OriginChat,
		Outcome:     outcome,
		IssuedAt:    c.IssuedAt,
		ResolvedAt:  now,
	})
	if err != nil {
		e.logger.Error("failed to record verdict", "error", err, "challenge_id", c.ID)
	}
}

func (e *Engine) mustMatch(subject int64, c challenge.Challenge) {
	if c.Subject == subject {
		return
	}
	err := fmt.Errorf("%w: key %d, challenge %s belongs to %d",
		apperrors.ErrStoreInvariant, subject, c.ID, c.Subject)
	e.logger.Error("challenge store invariant violated", "error", err)
	panic(err)
}
