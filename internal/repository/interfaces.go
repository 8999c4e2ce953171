package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/daycal/internal/models"
)

// EventRepository defines the interface for calendar event operations
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) (*models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filters EventFilters) ([]*models.Event, error)
	Update(ctx context.Context, event *models.Event) (*models.Event, error)
	Delete(ctx context.Context, id string) error
}

// ReminderRepository persists scheduled reminders keyed by event id. List
// returns records in the order they were first saved. Delete of a missing
// record is not an error.
type ReminderRepository interface {
	Save(ctx context.Context, reminder *models.ScheduledReminder) error
	Get(ctx context.Context, eventID string) (*models.ScheduledReminder, error)
	List(ctx context.Context) ([]*models.ScheduledReminder, error)
	Delete(ctx context.Context, eventID string) error
}

// EventFilters selects events whose span touches [From, To]. Recurring
// events are returned whenever they start before To, since one of their
// occurrences may fall in the window.
type EventFilters struct {
	From  *time.Time
	To    *time.Time
	Title string
	Limit int
}
