package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/layout"
	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/service"
	"github.com/Kerhoff/daycal/internal/telegram"
)

const (
	defaultEventMinutes = 60
	upcomingLimit       = 20
)

var (
	calDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	calTimeRegex = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

	errEventUsage = errors.New("usage: <title> <YYYY-MM-DD> [HH:MM] [minutes] [lead]")
)

// eventArgs is the parsed form of the /event arguments.
type eventArgs struct {
	Title    string
	Start    time.Time
	Duration time.Duration
	AllDay   bool
	// Lead is nil when the user did not give one.
	Lead *int
}

// parseEventArgs reads the last date in args; everything before it is the
// title. The date may be followed by a time, a duration in minutes and a
// reminder lead in minutes, in that order. Without a time the event covers
// the whole day.
func parseEventArgs(args []string, loc *time.Location) (eventArgs, error) {
	dateIdx := -1
	for i := len(args) - 1; i >= 1; i-- {
		if calDateRegex.MatchString(args[i]) {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return eventArgs{}, errEventUsage
	}

	out := eventArgs{
		Title:    strings.Join(args[:dateIdx], " "),
		Duration: defaultEventMinutes * time.Minute,
	}
	rest := args[dateIdx+1:]

	if len(rest) > 0 && calTimeRegex.MatchString(rest[0]) {
		start, err := time.ParseInLocation("2006-01-02 15:04", args[dateIdx]+" "+rest[0], loc)
		if err != nil {
			return eventArgs{}, fmt.Errorf("invalid date or time: %w", err)
		}
		out.Start = start
		rest = rest[1:]
	} else {
		start, err := time.ParseInLocation("2006-01-02", args[dateIdx], loc)
		if err != nil {
			return eventArgs{}, fmt.Errorf("invalid date: %w", err)
		}
		out.Start = start
		out.AllDay = true
		out.Duration = 0
	}

	if len(rest) > 2 {
		return eventArgs{}, errEventUsage
	}
	if len(rest) > 0 {
		if out.AllDay {
			return eventArgs{}, errEventUsage
		}
		mins, err := strconv.Atoi(rest[0])
		if err != nil || mins <= 0 {
			return eventArgs{}, fmt.Errorf("invalid duration %q", rest[0])
		}
		out.Duration = time.Duration(mins) * time.Minute
	}
	if len(rest) > 1 {
		lead, err := strconv.Atoi(rest[1])
		if err != nil || lead < 0 {
			return eventArgs{}, fmt.Errorf("invalid reminder lead %q", rest[1])
		}
		out.Lead = &lead
	}
	return out, nil
}

// event converts the arguments into a new event. All-day events end at the
// next local midnight.
func (a eventArgs) event(defaultLead int) *models.Event {
	ev := &models.Event{
		Title:                   a.Title,
		StartDate:               a.Start,
		EndDate:                 a.Start.Add(a.Duration),
		IsAllDay:                a.AllDay,
		Recurrence:              models.RecurrenceNone,
		NotificationLeadMinutes: defaultLead,
	}
	if a.AllDay {
		ev.EndDate = a.Start.AddDate(0, 0, 1)
	}
	if a.Lead != nil {
		ev.NotificationLeadMinutes = *a.Lead
	}
	return ev
}

func send(bot telegram.Sender, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

func formatWhen(ev *models.Event, loc *time.Location) string {
	start := ev.StartDate.In(loc)
	if ev.IsAllDay {
		return start.Format("Mon, 02 Jan 2006") + " (all day)"
	}
	return start.Format("Mon, 02 Jan 2006 at 15:04")
}

// ---------------------------------------------------------------------------
// EventAddHandler – /event <title> <date> [time] [minutes] [lead]
// ---------------------------------------------------------------------------

// EventAddHandler handles the /event command to create a calendar event.
type EventAddHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewEventAddHandler creates a new EventAddHandler.
func NewEventAddHandler(svc *service.Service, logger *logrus.Logger) *EventAddHandler {
	return &EventAddHandler{svc: svc, logger: logger}
}

// Handle processes the /event command.
func (h *EventAddHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	parsed, err := parseEventArgs(args, h.svc.Location())
	if err != nil {
		return send(bot, message.Chat.ID,
			"❌ Please provide a title and date.\n\n"+
				"*Usage:*\n"+
				"`/event Meeting 2025-01-15 14:00`\n"+
				"`/event Review 2025-01-15 14:00 30 10`\n"+
				"`/event Birthday party 2025-03-20`")
	}

	m, err := h.svc.CreateEvent(context.Background(), parsed.event(h.svc.DefaultLeadMinutes()))
	if errors.Is(err, service.ErrInvalidEvent) {
		return send(bot, message.Chat.ID, "❌ "+escape(err.Error()))
	}
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	loc := h.svc.Location()
	var sb strings.Builder
	sb.WriteString("✅ *Event created!*\n\n")
	fmt.Fprintf(&sb, "📌 %s\n📆 %s\n🆔 `%s`", escape(m.Event.Title), formatWhen(m.Event, loc), m.Event.ID)
	if m.Reminder != nil {
		fmt.Fprintf(&sb, "\n🔔 Reminder at %s", m.Reminder.FireAt.In(loc).Format("15:04"))
	}
	if m.Warning != "" {
		fmt.Fprintf(&sb, "\n⚠️ %s", escape(m.Warning))
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"event_id": m.Event.ID,
	}).Info("Calendar event created")

	return send(bot, message.Chat.ID, sb.String())
}

// ---------------------------------------------------------------------------
// EventListHandler – /events
// ---------------------------------------------------------------------------

// EventListHandler handles the /events command to list upcoming events.
type EventListHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewEventListHandler creates a new EventListHandler.
func NewEventListHandler(svc *service.Service, logger *logrus.Logger) *EventListHandler {
	return &EventListHandler{svc: svc, logger: logger}
}

// Handle processes the /events command.
func (h *EventListHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	events, err := h.svc.UpcomingEvents(context.Background(), upcomingLimit)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"count":   len(events),
	}).Info("Listed calendar events")

	return send(bot, message.Chat.ID, formatUpcoming(events, h.svc.Location(), time.Now()))
}

func formatUpcoming(events []models.Event, loc *time.Location, now time.Time) string {
	if len(events) == 0 {
		return "📅 *No upcoming events!*\n\nAdd one with `/event <title> <date> [time]`"
	}

	var sb strings.Builder
	sb.WriteString("📅 *Upcoming Events*\n\n")
	for i := range events {
		ev := &events[i]
		status := "📆"
		if ev.IsOngoing(now) {
			status = "▶️"
		}
		if ev.IsRecurring() {
			status = "🔁"
		}
		fmt.Fprintf(&sb, "%d. %s %s\n   %s\n   🆔 `%s`", i+1, status, escape(ev.Title), formatWhen(ev, loc), ev.BaseID())
		if ev.Location != "" {
			fmt.Fprintf(&sb, "\n   📍 %s", escape(ev.Location))
		}
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "_%d upcoming events_", len(events))
	return sb.String()
}

// ---------------------------------------------------------------------------
// EventDeleteHandler – /delevent <id>
// ---------------------------------------------------------------------------

// EventDeleteHandler handles the /delevent command to delete a calendar event.
type EventDeleteHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewEventDeleteHandler creates a new EventDeleteHandler.
func NewEventDeleteHandler(svc *service.Service, logger *logrus.Logger) *EventDeleteHandler {
	return &EventDeleteHandler{svc: svc, logger: logger}
}

// Handle processes the /delevent command.
func (h *EventDeleteHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return send(bot, message.Chat.ID, "❌ Please provide an event ID.\nUsage: `/delevent <id>`")
	}

	m, err := h.svc.DeleteEvent(context.Background(), args[0])
	if errors.Is(err, service.ErrNotFound) {
		return send(bot, message.Chat.ID, fmt.Sprintf("❌ Event `%s` not found.", args[0]))
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	text := "🗑 Event deleted: " + escape(m.Event.Title)
	if m.Warning != "" {
		text += "\n⚠️ " + escape(m.Warning)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"event_id": m.Event.ID,
	}).Info("Calendar event deleted")

	return send(bot, message.Chat.ID, text)
}

// ---------------------------------------------------------------------------
// DayHandler – /day [date]
// ---------------------------------------------------------------------------

// DayHandler handles the /day command. It prints the timeline of one day
// with the column each event was placed in.
type DayHandler struct {
	svc    *service.Service
	logger *logrus.Logger
	now    func() time.Time
}

// NewDayHandler creates a new DayHandler.
func NewDayHandler(svc *service.Service, logger *logrus.Logger) *DayHandler {
	return &DayHandler{svc: svc, logger: logger, now: time.Now}
}

// Handle processes the /day command.
func (h *DayHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	loc := h.svc.Location()
	day := h.now().In(loc)
	if len(args) > 0 {
		parsed, err := time.ParseInLocation("2006-01-02", args[0], loc)
		if err != nil {
			return send(bot, message.Chat.ID, "❌ Invalid date. Usage: `/day 2025-01-15`")
		}
		day = parsed
	}

	blocks, err := h.svc.DayLayout(context.Background(), day)
	if errors.Is(err, service.ErrInvalidInterval) {
		return send(bot, message.Chat.ID, "❌ "+escape(err.Error()))
	}
	if err != nil {
		return fmt.Errorf("day layout: %w", err)
	}

	return send(bot, message.Chat.ID, formatDay(day, blocks))
}

func formatDay(day time.Time, blocks []layout.Block) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 *%s*\n\n", day.Format("Mon, 02 Jan 2006"))
	if len(blocks) == 0 {
		sb.WriteString("_Nothing planned._")
		return sb.String()
	}

	for _, b := range blocks {
		// Events ending at midnight leave an empty piece on the next day.
		if b.Start.Equal(b.End) {
			continue
		}
		span := b.Start.Format("15:04") + "-" + b.End.Format("15:04")
		allDay := b.Event.IsAllDay || b.Position == layout.PositionMiddle
		if allDay {
			span = "all day"
		}
		fmt.Fprintf(&sb, "`%s` %s", span, escape(b.Event.Title))
		if b.Partial && !allDay {
			fmt.Fprintf(&sb, " _(%s)_", b.Position)
		}
		if b.TotalColumns > 1 {
			fmt.Fprintf(&sb, " ▫️ %d/%d", b.Column+1, b.TotalColumns)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
