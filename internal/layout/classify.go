// Package layout places the events of one day into non-overlapping columns
// for a timeline view. Everything here is a pure function of its inputs.
package layout

import (
	"time"

	"github.com/Kerhoff/daycal/internal/models"
)

// Position tells which part of an event a day shows.
type Position string

const (
	PositionFull   Position = "full"
	PositionStart  Position = "start"
	PositionMiddle Position = "middle"
	PositionEnd    Position = "end"
)

// Interval is an event restricted to one calendar day. Event is a
// back-reference into the caller's slice.
type Interval struct {
	Event    *models.Event
	Start    time.Time
	End      time.Time
	Partial  bool
	Position Position
}

// DayBounds returns midnight of the day containing day and the following
// midnight, both in day's location. The second value is exclusive.
func DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	loc := day.Location()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Classify reports how ev intersects the calendar day containing day. The
// viewing timezone is day's location. An event touching the day only at its
// first instant (ending exactly at midnight) is still present, as a
// zero-width end piece. Events with EndDate <= StartDate are never present.
func Classify(ev *models.Event, day time.Time) (Interval, bool) {
	if ev == nil || !ev.ValidInterval() {
		return Interval{}, false
	}

	loc := day.Location()
	dayStart, dayEnd := DayBounds(day)
	start := ev.StartDate.In(loc)
	end := ev.EndDate.In(loc)

	if !start.Before(dayEnd) || end.Before(dayStart) {
		return Interval{}, false
	}

	// Calendar dates, not duration: 23:30-00:30 spans two days.
	if sameDate(start, end) {
		return Interval{Event: ev, Start: start, End: end, Position: PositionFull}, true
	}

	switch {
	case sameDate(start, dayStart):
		return Interval{Event: ev, Start: start, End: dayEnd, Partial: true, Position: PositionStart}, true
	case sameDate(end, dayStart):
		return Interval{Event: ev, Start: dayStart, End: end, Partial: true, Position: PositionEnd}, true
	default:
		return Interval{Event: ev, Start: dayStart, End: dayEnd, Partial: true, Position: PositionMiddle}, true
	}
}

// Intervals classifies every event against day and drops the ones that are
// not present.
func Intervals(events []models.Event, day time.Time) []Interval {
	out := make([]Interval, 0, len(events))
	for i := range events {
		if iv, ok := Classify(&events[i], day); ok {
			out = append(out, iv)
		}
	}
	return out
}
