package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	helpText := "📚 *daycal Help*\n\n" +
		"*Events:*\n" +
		"• /event <title> <YYYY-MM-DD> [HH:MM] [minutes] [lead] - Add event\n" +
		"• /events - Show upcoming events\n" +
		"• /day [YYYY-MM-DD] - Show a day's timeline\n" +
		"• /delevent <id> - Delete an event\n\n" +
		"*Reminders:*\n" +
		"• /reminders - Show armed reminders\n\n" +
		"_Without a time the event lasts all day. Minutes default to 60, lead to your settings._"

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithField("chat_id", message.Chat.ID).Info("Sent help message")

	return nil
}
