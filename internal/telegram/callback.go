package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const answerPrefix = "captcha"

// answerCallbackData encodes a button as captcha:<subject>:<value>.
func answerCallbackData(subjectID int64, value int) string {
	return fmt.Sprintf("%s:%d:%d", answerPrefix, subjectID, value)
}

// parseAnswerCallback decodes data produced by answerCallbackData.
func parseAnswerCallback(data string) (subjectID int64, value int, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != answerPrefix {
		return 0, 0, fmt.Errorf("not an answer callback: %q", data)
	}

	subjectID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse subject: %w", err)
	}
	value, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("parse value: %w", err)
	}
	return subjectID, value, nil
}

// answerKeyboard lays the options out on a single row.
func answerKeyboard(subjectID int64, options []int) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(o), answerCallbackData(subjectID, o)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
