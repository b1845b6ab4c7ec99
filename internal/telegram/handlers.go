package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gate-tg-bot/internal/audit"
	"gate-tg-bot/internal/challenge"
	apperrors "gate-tg-bot/internal/errors"
	"gate-tg-bot/internal/verify"
)

// Gate is the verification engine as seen by the transport.
type Gate interface {
	HandleJoin(ctx context.Context, ev verify.JoinEvent)
	HandleDeparture(ctx context.Context, ev verify.DepartureEvent)
	HandleAnswer(ctx context.Context, ev verify.AnswerEvent)
	Pending() int
}

// Handler processes Telegram updates
type Handler struct {
	bot    apiClient
	gate   Gate
	access *Access
	ledger audit.Store
	logger *slog.Logger
}

// NewHandler creates a new update handler. ledger may be nil.
func NewHandler(
	bot apiClient,
	gate Gate,
	access *Access,
	ledger audit.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		bot:    bot,
		gate:   gate,
		access: access,
		ledger: ledger,
		logger: logger,
	}
}

// HandleUpdate processes a single update
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.ChatMember != nil:
		h.handleMembership(ctx, update.ChatMember)

	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(ctx, update.Message)
	}
}

type transition int

const (
	transitionNone transition = iota
	transitionJoin
	transitionLeave
)

// isPresent reports whether a member status counts as being in the chat.
func isPresent(m tgbotapi.ChatMember) bool {
	switch m.Status {
	case "creator", "administrator", "member":
		return true
	case "restricted":
		return m.IsMember
	default:
		return false
	}
}

// classifyTransition tells joins and departures apart from every other
// status change (promotions, restrictions, permission edits).
func classifyTransition(prev, next tgbotapi.ChatMember) transition {
	was, is := isPresent(prev), isPresent(next)
	switch {
	case !was && is && (next.Status == "member" || next.Status == "restricted"):
		return transitionJoin
	case was && !is:
		return transitionLeave
	default:
		return transitionNone
	}
}

func (h *Handler) handleMembership(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	user := upd.NewChatMember.User
	if user == nil {
		return
	}

	switch classifyTransition(upd.OldChatMember, upd.NewChatMember) {
	case transitionJoin:
		h.gate.HandleJoin(ctx, verify.JoinEvent{
			ChatID: upd.Chat.ID,
			Member: verify.Member{
				ID:    user.ID,
				Name:  displayName(user),
				IsBot: user.IsBot,
			},
		})

	case transitionLeave:
		h.gate.HandleDeparture(ctx, verify.DepartureEvent{
			ChatID: upd.Chat.ID,
			UserID: user.ID,
		})

	default:
		h.logger.Debug("ignoring membership change",
			"chat_id", upd.Chat.ID,
			"user_id", user.ID,
			"old_status", upd.OldChatMember.Status,
			"new_status", upd.NewChatMember.Status,
		)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	subjectID, value, err := parseAnswerCallback(cq.Data)
	if err != nil || cq.From == nil {
		h.logger.Debug("ignoring callback", "error", err, "data", cq.Data)
		h.answerCallback(cq.ID)
		return
	}

	ev := verify.AnswerEvent{
		EventID:   cq.ID,
		ClickerID: cq.From.ID,
		SubjectID: subjectID,
		Value:     value,
	}
	if cq.Message != nil && cq.Message.Chat != nil {
		ev.Prompt = challenge.PromptHandle{ChatID: cq.Message.Chat.ID, MessageID: cq.Message.MessageID}
	}

	h.gate.HandleAnswer(ctx, ev)
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	// Commands in the monitored groups are ignored.
	if msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}

	switch msg.Command() {
	case "start", "help":
		h.sendText(msg.Chat.ID,
			"I guard a community's entrance.\n\n"+
				"New members get a short arithmetic question. "+
				"Answer it in time and I will send you a private invitation.")

	case "status":
		if !h.access.CheckCommand(msg) {
			h.sendText(msg.Chat.ID, apperrors.ErrUnauthorized.UserMsg)
			return
		}
		h.handleStatus(ctx, msg)

	default:
		h.sendText(msg.Chat.ID, "Unknown command. Use /help for available commands.")
	}
}

func (h *Handler) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	var b strings.Builder
	fmt.Fprintf(&b, "Pending challenges: %d", h.gate.Pending())

	if h.ledger != nil {
		counts, err := h.ledger.Counts(ctx)
		if err != nil {
			h.logger.Error("failed to count verdicts", "error", err)
		} else {
			fmt.Fprintf(&b, "\nVerified: %d\nRejected: %d\nExpired: %d\nWithdrawn: %d",
				counts[audit.OutcomeVerified],
				counts[audit.OutcomeRejected],
				counts[audit.OutcomeExpired],
				counts[audit.OutcomeWithdrawn],
			)
		}

		recent, err := h.ledger.Recent(ctx, 5)
		if err != nil {
			h.logger.Error("failed to list verdicts", "error", err)
		} else if len(recent) > 0 {
			b.WriteString("\n\nRecent:")
			for _, v := range recent {
				fmt.Fprintf(&b, "\n%s %s %d", v.ResolvedAt.UTC().Format(time.DateTime), v.Outcome, v.Subject)
			}
		}
	}

	h.sendText(msg.Chat.ID, b.String())
}

func (h *Handler) answerCallback(id string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		h.logger.Warn("failed to answer callback", "error", err)
	}
}

func (h *Handler) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("failed to send message", "error", err, "chat_id", chatID)
	}
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.UserName != "" {
		return "@" + u.UserName
	}
	return name
}
