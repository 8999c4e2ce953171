package models

import "time"

// Recurrence defines how often an event repeats
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is one of the known recurrence values.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

const (
	DefaultColor      = "bg-blue-500"
	DefaultCalendarID = "1"
)

// Event represents a calendar event. For recurring events expanded into
// occurrences, ID identifies the occurrence and SeriesID the stored event.
type Event struct {
	ID                      string     `json:"id" db:"id"`
	SeriesID                string     `json:"series_id,omitempty" db:"-"`
	Title                   string     `json:"title" db:"title"`
	Description             string     `json:"description" db:"description"`
	Location                string     `json:"location" db:"location"`
	StartDate               time.Time  `json:"start_date" db:"start_date"`
	EndDate                 time.Time  `json:"end_date" db:"end_date"`
	IsAllDay                bool       `json:"is_all_day" db:"is_all_day"`
	Recurrence              Recurrence `json:"recurrence" db:"recurrence"`
	NotificationLeadMinutes int        `json:"notification_lead_minutes" db:"notification_lead_minutes"`
	Color                   string     `json:"color" db:"color"`
	CalendarID              string     `json:"calendar_id" db:"calendar_id"`
	CreatedAt               time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at" db:"updated_at"`
}

// ValidInterval reports whether the event ends strictly after it starts.
func (e *Event) ValidInterval() bool {
	return e.EndDate.After(e.StartDate)
}

// Duration returns the length of the event.
func (e *Event) Duration() time.Duration {
	return e.EndDate.Sub(e.StartDate)
}

// IsRecurring returns true if the event repeats
func (e *Event) IsRecurring() bool {
	return e.Recurrence != "" && e.Recurrence != RecurrenceNone
}

// BaseID returns the id of the stored event this value was derived from.
func (e *Event) BaseID() string {
	if e.SeriesID != "" {
		return e.SeriesID
	}
	return e.ID
}

// IsUpcoming returns true if the event hasn't started yet
func (e *Event) IsUpcoming(now time.Time) bool {
	return now.Before(e.StartDate)
}

// IsOngoing returns true if the event is currently happening
func (e *Event) IsOngoing(now time.Time) bool {
	return !now.Before(e.StartDate) && now.Before(e.EndDate)
}

// Normalize fills in defaults for optional presentation fields.
func (e *Event) Normalize() {
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.CalendarID == "" {
		e.CalendarID = DefaultCalendarID
	}
	if !e.Recurrence.Valid() {
		e.Recurrence = RecurrenceNone
	}
	if e.NotificationLeadMinutes < 0 {
		e.NotificationLeadMinutes = 0
	}
}
