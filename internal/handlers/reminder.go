package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/service"
	"github.com/Kerhoff/daycal/internal/telegram"
)

// RemindersHandler handles the /reminders command
type RemindersHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewRemindersHandler(svc *service.Service, logger *logrus.Logger) *RemindersHandler {
	return &RemindersHandler{svc: svc, logger: logger}
}

func (h *RemindersHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	reminders, err := h.svc.Reminders(context.Background())
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"count":   len(reminders),
	}).Info("Listed reminders")

	return send(bot, message.Chat.ID, formatReminders(reminders, h.svc.Location()))
}

func formatReminders(reminders []*models.ScheduledReminder, loc *time.Location) string {
	if len(reminders) == 0 {
		return "⏰ No reminders armed."
	}

	var sb strings.Builder
	sb.WriteString("⏰ *Armed reminders:*\n\n")
	for _, r := range reminders {
		fmt.Fprintf(&sb, "• %s\n   🔔 %s", escape(r.Title), r.FireAt.In(loc).Format("Mon, 02 Jan 15:04"))
		if r.LeadMinutes > 0 {
			fmt.Fprintf(&sb, " (%d min before)", r.LeadMinutes)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
