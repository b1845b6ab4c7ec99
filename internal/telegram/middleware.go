package telegram

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Access decides who may use operator commands
type Access struct {
	admins map[int64]struct{}
	logger *slog.Logger
}

// NewAccess creates an access list from a slice of admin user IDs
func NewAccess(adminIDs []int64, logger *slog.Logger) *Access {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Access{
		admins: admins,
		logger: logger,
	}
}

// IsAdmin checks if a user is a configured admin
func (a *Access) IsAdmin(userID int64) bool {
	_, ok := a.admins[userID]
	return ok
}

// CheckCommand reports whether msg may run an operator command.
// Only admins in a private chat qualify.
func (a *Access) CheckCommand(msg *tgbotapi.Message) bool {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return false
	}
	if !a.IsAdmin(msg.From.ID) {
		a.logger.Warn("unauthorized command attempt",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
			"command", msg.Command(),
		)
		return false
	}
	return true
}
