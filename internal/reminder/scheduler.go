// Package reminder arms, persists and fires event reminders.
//
// The Scheduler owns the persisted reminder set and one live timer per armed
// reminder. Timer expiries are queued on a channel and consumed by the
// Dispatcher, which also polls the persisted set on a fixed interval. Both
// paths go through the same Armed to Fired compare-and-swap, so a reminder
// fires at most once.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/daycal/internal/metrics"
	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/repository"
)

var (
	// ErrUnavailable means the reminder could not be persisted. It is never
	// fatal to the event operation that triggered the arm.
	ErrUnavailable = errors.New("reminder storage unavailable")
	// ErrNotRunning is returned by Arm before Init or after Shutdown.
	ErrNotRunning = errors.New("reminder scheduler is not running")
)

const (
	stateArmed int32 = iota
	stateFired
	stateCancelled
)

const fireQueueSize = 64

type entry struct {
	reminder models.ScheduledReminder
	state    *atomic.Int32
	timer    *time.Timer // guarded by Scheduler.mu
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler arms and cancels reminders. It is the only writer of the
// reminder repository.
type Scheduler struct {
	store  repository.ReminderRepository
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	initAt  time.Time

	fires chan *entry
}

// NewScheduler creates a Scheduler. Call Init before arming.
func NewScheduler(store repository.ReminderRepository, logger *logrus.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
		fires:   make(chan *entry, fireQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init restores timers from the persisted set. Records whose fire time is
// already past are deleted without firing, so coming back online does not
// replay a burst of stale alerts. Init may be called again after Shutdown.
func (s *Scheduler) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllLocked()
	s.initAt = s.now()
	s.running = true

	records, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to load reminders: %v", ErrUnavailable, err)
	}

	var result *multierror.Error
	restored, dropped := 0, 0
	for _, rec := range records {
		if rec.FireAt.Before(s.initAt) {
			if err := s.store.Delete(ctx, rec.EventID); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to drop stale reminder %s: %w", rec.EventID, err))
				continue
			}
			metrics.RemindersDropped.Inc()
			dropped++
			s.logger.WithFields(logrus.Fields{
				"event_id": rec.EventID,
				"fire_at":  rec.FireAt,
			}).Debug("Dropped stale reminder")
			continue
		}
		s.startLocked(*rec)
		metrics.RemindersArmed.Inc()
		restored++
	}

	s.logger.WithFields(logrus.Fields{
		"restored": restored,
		"dropped":  dropped,
	}).Info("Reminder scheduler initialized")

	return result.ErrorOrNil()
}

// Shutdown stops every live timer. Persisted records are kept so the next
// Init can restore them.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllLocked()
	s.running = false
	s.logger.Info("Reminder scheduler stopped")
}

// Arm schedules a reminder leadMinutes before ev starts. An event that has
// already started is not armed and Arm returns (nil, nil). When the lead time
// is longer than the time left, the reminder fires right away. Arming an
// event that already has a reminder replaces it.
func (s *Scheduler) Arm(ctx context.Context, ev *models.Event, leadMinutes int, soundProfile string) (*models.ScheduledReminder, error) {
	if leadMinutes < 0 {
		leadMinutes = 0
	}

	now := s.now()
	if !ev.StartDate.After(now) {
		s.logger.WithField("event_id", ev.BaseID()).Debug("Event already started; reminder not armed")
		return nil, nil
	}

	fireAt := ev.StartDate.Add(-time.Duration(leadMinutes) * time.Minute)
	if fireAt.Before(now) {
		fireAt = now
	}

	rec := models.ScheduledReminder{
		EventID:      ev.BaseID(),
		Title:        ev.Title,
		EventStart:   ev.StartDate,
		FireAt:       fireAt,
		LeadMinutes:  leadMinutes,
		SoundProfile: soundProfile,
		Armed:        true,
		CreatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrNotRunning
	}

	if err := s.store.Save(ctx, &rec); err != nil {
		metrics.ArmFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.disarmLocked(rec.EventID)
	s.startLocked(rec)
	metrics.RemindersArmed.Inc()

	s.logger.WithFields(logrus.Fields{
		"event_id": rec.EventID,
		"fire_at":  rec.FireAt,
		"sound":    rec.SoundProfile,
	}).Debug("Reminder armed")

	return &rec, nil
}

// Cancel removes the live timer and the persisted record for eventID.
// Cancelling something that is not armed is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disarmLocked(eventID) {
		metrics.RemindersCancelled.Inc()
		s.logger.WithField("event_id", eventID).Debug("Reminder cancelled")
	}
	if err := s.store.Delete(ctx, eventID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Rearm cancels any reminder for the event and arms a new one.
func (s *Scheduler) Rearm(ctx context.Context, ev *models.Event, leadMinutes int, soundProfile string) (*models.ScheduledReminder, error) {
	if err := s.Cancel(ctx, ev.BaseID()); err != nil {
		return nil, err
	}
	return s.Arm(ctx, ev, leadMinutes, soundProfile)
}

// List returns the persisted reminders in persisted order.
func (s *Scheduler) List(ctx context.Context) ([]*models.ScheduledReminder, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return records, nil
}

// Pending returns the number of live armed reminders.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) startLocked(rec models.ScheduledReminder) {
	e := &entry{reminder: rec, state: atomic.NewInt32(stateArmed)}
	s.entries[rec.EventID] = e
	e.timer = time.AfterFunc(rec.FireAt.Sub(s.now()), func() { s.signal(e) })
	metrics.RemindersPending.Set(float64(len(s.entries)))
}

// disarmLocked drops the live entry for eventID and reports whether it was
// still armed.
func (s *Scheduler) disarmLocked(eventID string) bool {
	e, ok := s.entries[eventID]
	if !ok {
		return false
	}
	delete(s.entries, eventID)
	e.timer.Stop()
	metrics.RemindersPending.Set(float64(len(s.entries)))
	return e.state.CAS(stateArmed, stateCancelled)
}

func (s *Scheduler) stopAllLocked() {
	for id, e := range s.entries {
		e.timer.Stop()
		e.state.CAS(stateArmed, stateCancelled)
		delete(s.entries, id)
	}
	metrics.RemindersPending.Set(0)
}

// signal runs on the timer goroutine. A full queue is not a loss: the next
// poll picks the reminder up from the persisted set.
func (s *Scheduler) signal(e *entry) {
	select {
	case s.fires <- e:
	default:
		s.logger.WithField("event_id", e.reminder.EventID).Warn("Fire queue full; leaving reminder to the poll")
	}
}

// claim moves e from Armed to Fired and removes its record. Only the caller
// that wins the transition gets ok == true.
func (s *Scheduler) claim(ctx context.Context, e *entry) (models.ScheduledReminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !e.state.CAS(stateArmed, stateFired) {
		return models.ScheduledReminder{}, false
	}
	e.timer.Stop()

	id := e.reminder.EventID
	if s.entries[id] == e {
		delete(s.entries, id)
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.WithError(err).WithField("event_id", id).Warn("Failed to remove fired reminder")
		}
	}
	metrics.RemindersFired.Inc()
	metrics.RemindersPending.Set(float64(len(s.entries)))

	return e.reminder, true
}

// due returns the armed entries whose fire time is not after now, in
// persisted order. If the store cannot be read, live entries are used in
// fire time order instead.
func (s *Scheduler) due(ctx context.Context) []*entry {
	records, err := s.store.List(ctx)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entry
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read reminders; polling live timers only")
		for _, e := range s.entries {
			if !e.reminder.FireAt.After(now) && e.state.Load() == stateArmed {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].reminder.FireAt.Before(out[j].reminder.FireAt)
		})
		return out
	}

	for _, rec := range records {
		e, ok := s.entries[rec.EventID]
		if !ok || e.reminder.FireAt.After(now) || e.state.Load() != stateArmed {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Scheduler) lookup(eventID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[eventID]
}
