package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gate-tg-bot/internal/challenge"
)

// apiClient is the subset of *tgbotapi.BotAPI the bot calls.
type apiClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Platform performs verification side effects through the Bot API.
type Platform struct {
	api    apiClient
	logger *slog.Logger
}

// NewPlatform creates a platform backed by api
func NewPlatform(api apiClient, logger *slog.Logger) *Platform {
	return &Platform{
		api:    api,
		logger: logger,
	}
}

func (p *Platform) RestrictSending(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions:      &tgbotapi.ChatPermissions{},
	}
	if _, err := p.api.Request(cfg); err != nil {
		return fmt.Errorf("restrict member: %w", err)
	}
	return nil
}

func (p *Platform) RestoreDefaultPermissions(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       true,
			CanSendMediaMessages:  true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanInviteUsers:        true,
		},
	}
	if _, err := p.api.Request(cfg); err != nil {
		return fmt.Errorf("restore permissions: %w", err)
	}
	return nil
}

func (p *Platform) SendChallenge(ctx context.Context, chatID, subjectID int64, text string, options []int) (challenge.PromptHandle, error) {
	if err := ctx.Err(); err != nil {
		return challenge.PromptHandle{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = answerKeyboard(subjectID, options)

	sent, err := p.api.Send(msg)
	if err != nil {
		return challenge.PromptHandle{}, fmt.Errorf("send challenge: %w", err)
	}
	return challenge.PromptHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditMessage replaces the prompt text. The answer keyboard is dropped with it.
func (p *Platform) EditMessage(ctx context.Context, prompt challenge.PromptHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.api.Request(tgbotapi.NewEditMessageText(prompt.ChatID, prompt.MessageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (p *Platform) CreateSingleUseInvitation(ctx context.Context, chatID int64, expiry time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		Name:        "verified member",
		ExpireDate:  int(expiry.Unix()),
		MemberLimit: 1,
	}
	resp, err := p.api.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("decode invite link: empty link")
	}

	p.logger.Debug("invite link created", "chat_id", chatID, "expires_at", expiry)
	return link.InviteLink, nil
}

func (p *Platform) SendDirectMessage(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("send direct message: %w", err)
	}
	return nil
}

func (p *Platform) BanFromChat(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	if _, err := p.api.Request(cfg); err != nil {
		return fmt.Errorf("ban member: %w", err)
	}
	return nil
}

// AcknowledgeEvent answers a callback query. Notices pop up as an alert
// visible only to the clicker. It is sent even after ctx is done.
func (p *Platform) AcknowledgeEvent(_ context.Context, eventID, notice string) error {
	if eventID == "" {
		return nil
	}
	cb := tgbotapi.NewCallback(eventID, notice)
	cb.ShowAlert = notice != ""
	if _, err := p.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
