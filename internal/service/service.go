package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/layout"
	"github.com/Kerhoff/daycal/internal/metrics"
	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/recurrence"
	"github.com/Kerhoff/daycal/internal/repository"
	"github.com/Kerhoff/daycal/internal/settings"
)

var (
	// ErrNotFound is returned when an event does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidInterval is returned for events that do not end after they
	// start.
	ErrInvalidInterval = errors.New("event must end after it starts")
	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("invalid event")
)

// upcomingWindow bounds how far ahead UpcomingEvents looks.
const upcomingWindow = 30 * 24 * time.Hour

// Scheduler is the part of the reminder scheduler the service drives.
type Scheduler interface {
	Arm(ctx context.Context, ev *models.Event, leadMinutes int, soundProfile string) (*models.ScheduledReminder, error)
	Rearm(ctx context.Context, ev *models.Event, leadMinutes int, soundProfile string) (*models.ScheduledReminder, error)
	Cancel(ctx context.Context, eventID string) error
	List(ctx context.Context) ([]*models.ScheduledReminder, error)
}

// Preferences supplies the user settings used when arming reminders.
type Preferences interface {
	Get() settings.Settings
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the viewing timezone. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithStrictLayout makes DayLayout fail on stored events with an invalid
// interval instead of leaving them out.
func WithStrictLayout(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the central business logic layer. Every event change goes
// through it so reminders stay in step with the stored events.
type Service struct {
	logger    *logrus.Logger
	Events    repository.EventRepository
	reminders Scheduler
	prefs     Preferences
	loc       *time.Location
	strict    bool
	now       func() time.Time
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, events repository.EventRepository, reminders Scheduler, prefs Preferences, opts ...Option) *Service {
	s := &Service{
		logger:    logger,
		Events:    events,
		reminders: reminders,
		prefs:     prefs,
		loc:       time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the viewing timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Settings returns the current user settings.
func (s *Service) Settings() settings.Settings {
	return s.prefs.Get()
}

// DefaultLeadMinutes is the lead time for events created without one.
func (s *Service) DefaultLeadMinutes() int {
	return s.prefs.Get().DefaultLeadMinutes
}

// Mutation is the result of an event change. Warning is set when the event
// was saved but its reminder could not be scheduled.
type Mutation struct {
	Event    *models.Event             `json:"event"`
	Reminder *models.ScheduledReminder `json:"reminder,omitempty"`
	Warning  string                    `json:"warning,omitempty"`
}

func validate(ev *models.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if !ev.ValidInterval() {
		return ErrInvalidInterval
	}
	if ev.Recurrence != "" && !ev.Recurrence.Valid() {
		return fmt.Errorf("%w: unknown recurrence %q", ErrInvalidEvent, ev.Recurrence)
	}
	return nil
}

// GetEvent returns the event with id or ErrNotFound.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.Events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	if ev == nil {
		return nil, ErrNotFound
	}
	return ev, nil
}

// ListEvents returns stored events touching [from, to]. Either bound may be
// nil.
func (s *Service) ListEvents(ctx context.Context, from, to *time.Time, limit int) ([]*models.Event, error) {
	events, err := s.Events.List(ctx, repository.EventFilters{From: from, To: to, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// UpcomingEvents returns up to limit occurrences that have not ended yet,
// looking at most 30 days ahead.
func (s *Service) UpcomingEvents(ctx context.Context, limit int) ([]models.Event, error) {
	from := s.now().In(s.loc)
	to := from.Add(upcomingWindow)

	stored, err := s.ListEvents(ctx, &from, &to, 0)
	if err != nil {
		return nil, err
	}

	var out []models.Event
	for _, ev := range stored {
		out = append(out, recurrence.Occurrences(*ev, from, to)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateEvent stores ev and arms its reminder.
func (s *Service) CreateEvent(ctx context.Context, ev *models.Event) (*Mutation, error) {
	if err := validate(ev); err != nil {
		return nil, err
	}
	if ev.ID == "" {
		ev.ID = newID()
	}
	ev.Normalize()

	created, err := s.Events.Create(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"event_id": created.ID,
		"title":    created.Title,
		"start":    created.StartDate,
	}).Info("Event created")

	m := &Mutation{Event: created}
	s.schedule(ctx, m, false)
	return m, nil
}

// UpdateEvent replaces a stored event and re-arms its reminder, since the
// start time or lead time may have changed.
func (s *Service) UpdateEvent(ctx context.Context, ev *models.Event) (*Mutation, error) {
	if err := validate(ev); err != nil {
		return nil, err
	}

	existing, err := s.GetEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	ev.CreatedAt = existing.CreatedAt
	ev.Normalize()

	updated, err := s.Events.Update(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	s.logger.WithField("event_id", updated.ID).Info("Event updated")

	m := &Mutation{Event: updated}
	s.schedule(ctx, m, true)
	return m, nil
}

// DeleteEvent removes the event and cancels its reminder.
func (s *Service) DeleteEvent(ctx context.Context, id string) (*Mutation, error) {
	existing, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete event: %w", err)
	}

	s.logger.WithField("event_id", id).Info("Event deleted")

	m := &Mutation{Event: existing}
	if err := s.reminders.Cancel(ctx, id); err != nil {
		m.Warning = fmt.Sprintf("reminder not cancelled: %v", err)
		s.logger.WithError(err).WithField("event_id", id).Warn("Failed to cancel reminder")
	}
	return m, nil
}

// schedule arms the reminder for the next occurrence of m.Event that has not
// started. Failures are reported on m and never fail the mutation.
func (s *Service) schedule(ctx context.Context, m *Mutation, replace bool) {
	ev := m.Event
	target, ok := recurrence.Next(*ev, s.now().In(s.loc))
	if !ok {
		if replace {
			if err := s.reminders.Cancel(ctx, ev.ID); err != nil {
				m.Warning = fmt.Sprintf("reminder not cancelled: %v", err)
				s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Failed to cancel reminder")
			}
		}
		return
	}

	sound := s.prefs.Get().SoundProfile
	arm := s.reminders.Arm
	if replace {
		arm = s.reminders.Rearm
	}

	rec, err := arm(ctx, &target, ev.NotificationLeadMinutes, sound)
	if err != nil {
		m.Warning = fmt.Sprintf("reminder not scheduled: %v", err)
		s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Failed to schedule reminder")
		return
	}
	m.Reminder = rec
}

// OnReminderFired arms the following occurrence of a recurring event once
// the reminder for the current one has gone out.
func (s *Service) OnReminderFired(ctx context.Context, fired models.ScheduledReminder) {
	ev, err := s.Events.GetByID(ctx, fired.EventID)
	if err != nil {
		s.logger.WithError(err).WithField("event_id", fired.EventID).Warn("Failed to load fired event")
		return
	}
	if ev == nil || !ev.IsRecurring() {
		return
	}

	after := s.now()
	if fired.EventStart.After(after) {
		after = fired.EventStart
	}
	next, ok := recurrence.Next(*ev, after.In(s.loc))
	if !ok {
		return
	}

	rec, err := s.reminders.Arm(ctx, &next, ev.NotificationLeadMinutes, s.prefs.Get().SoundProfile)
	if err != nil {
		s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Failed to arm next occurrence")
		return
	}
	if rec != nil {
		s.logger.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"fire_at":  rec.FireAt,
		}).Debug("Armed next occurrence")
	}
}

// RestoreReminders arms recurring series that have no persisted reminder,
// typically because their reminder fell due while the process was down and
// was dropped on reload. Each series gets the first occurrence whose fire
// time is still ahead, so a missed reminder is never replayed late. Run it
// after the scheduler has been initialized.
func (s *Service) RestoreReminders(ctx context.Context) (int, error) {
	persisted, err := s.reminders.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list reminders: %w", err)
	}
	armed := make(map[string]bool, len(persisted))
	for _, rec := range persisted {
		armed[rec.EventID] = true
	}

	stored, err := s.ListEvents(ctx, nil, nil, 0)
	if err != nil {
		return 0, err
	}

	now := s.now().In(s.loc)
	sound := s.prefs.Get().SoundProfile

	var result *multierror.Error
	restored := 0
	for _, ev := range stored {
		if !ev.IsRecurring() || armed[ev.ID] {
			continue
		}
		next, ok := nextArmable(*ev, now)
		if !ok {
			continue
		}
		rec, err := s.reminders.Arm(ctx, &next, ev.NotificationLeadMinutes, sound)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		if rec != nil {
			restored++
		}
	}

	s.logger.WithField("restored", restored).Info("Recurring reminders restored")
	return restored, result.ErrorOrNil()
}

// nextArmable returns the first occurrence of ev whose reminder would fire
// at or after now.
func nextArmable(ev models.Event, now time.Time) (models.Event, bool) {
	lead := time.Duration(ev.NotificationLeadMinutes) * time.Minute
	after := now
	for i := 0; i < recurrence.MaxOccurrences; i++ {
		next, ok := recurrence.Next(ev, after)
		if !ok {
			return models.Event{}, false
		}
		if !next.StartDate.Add(-lead).Before(now) {
			return next, true
		}
		after = next.StartDate
	}
	return models.Event{}, false
}

// Reminders returns the armed reminders in persisted order.
func (s *Service) Reminders(ctx context.Context) ([]*models.ScheduledReminder, error) {
	return s.reminders.List(ctx)
}

// DayLayout computes the timeline blocks for the calendar day containing
// day, in the viewing timezone. Recurring events contribute their
// occurrences on that day.
func (s *Service) DayLayout(ctx context.Context, day time.Time) ([]layout.Block, error) {
	day = day.In(s.loc)
	start, end := layout.DayBounds(day)

	stored, err := s.ListEvents(ctx, &start, &end, 0)
	if err != nil {
		return nil, err
	}

	var occurrences []models.Event
	for _, ev := range stored {
		if !ev.ValidInterval() {
			if s.strict {
				return nil, fmt.Errorf("%w: event %s", ErrInvalidInterval, ev.ID)
			}
			s.logger.WithField("event_id", ev.ID).Warn("Skipping event with invalid interval")
			continue
		}
		occurrences = append(occurrences, recurrence.Occurrences(*ev, start, end)...)
	}

	blocks := layout.Plan(occurrences, day)

	widest := 0
	for _, b := range blocks {
		if b.TotalColumns > widest {
			widest = b.TotalColumns
		}
	}
	metrics.LayoutColumns.Observe(float64(widest))

	s.logger.WithFields(logrus.Fields{
		"day":     start.Format("2006-01-02"),
		"events":  len(blocks),
		"columns": widest,
	}).Debug("Day layout computed")

	return blocks, nil
}
