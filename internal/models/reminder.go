package models

import (
	"fmt"
	"time"
)

// ScheduledReminder is the persisted record of an armed reminder. There is
// at most one per event (series), keyed by EventID.
type ScheduledReminder struct {
	EventID      string    `json:"event_id" db:"event_id"`
	Title        string    `json:"title" db:"title"`
	EventStart   time.Time `json:"event_start" db:"event_start"`
	FireAt       time.Time `json:"fire_at" db:"fire_at"`
	LeadMinutes  int       `json:"lead_minutes" db:"lead_minutes"`
	SoundProfile string    `json:"sound_profile" db:"sound_profile"`
	Armed        bool      `json:"armed" db:"armed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsDue returns true if the reminder should fire at now
func (r *ScheduledReminder) IsDue(now time.Time) bool {
	if !r.Armed {
		return false
	}
	return !r.FireAt.After(now)
}

// Sound is a resolved sound profile.
type Sound struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// Alert is the user-facing notification emitted when a reminder fires.
type Alert struct {
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	FireAt      time.Time `json:"fire_at"`
	LeadMinutes int       `json:"lead_minutes"`
	Sound       Sound     `json:"sound"`
	// Late is set when the alert went out noticeably after FireAt, e.g. after
	// the host was suspended.
	Late bool `json:"late"`
}

// Message renders the alert as a short human readable line. The remaining
// time is taken from FireAt, which is earlier than the configured lead when
// the reminder was armed late.
func (a Alert) Message() string {
	mins := int(a.StartsAt.Sub(a.FireAt).Round(time.Minute) / time.Minute)
	if mins <= 0 {
		return fmt.Sprintf("%s starts now (%s)", a.Title, a.StartsAt.Format("15:04"))
	}
	return fmt.Sprintf("%s starts in %d minutes (%s)", a.Title, mins, a.StartsAt.Format("15:04"))
}
