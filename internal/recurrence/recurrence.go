// Package recurrence expands repeating events into concrete occurrences.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/Kerhoff/daycal/internal/models"
)

// MaxOccurrences bounds a single expansion so a daily event over a huge
// window cannot blow up a render pass.
const MaxOccurrences = 5000

const occurrenceIDLayout = "20060102T150405Z"

// OccurrenceID returns the id of the occurrence of series starting at start.
func OccurrenceID(seriesID string, start time.Time) string {
	return seriesID + "@" + start.UTC().Format(occurrenceIDLayout)
}

func frequency(r models.Recurrence) (rrule.Frequency, bool) {
	switch r {
	case models.RecurrenceDaily:
		return rrule.DAILY, true
	case models.RecurrenceWeekly:
		return rrule.WEEKLY, true
	case models.RecurrenceMonthly:
		return rrule.MONTHLY, true
	case models.RecurrenceYearly:
		return rrule.YEARLY, true
	}
	return 0, false
}

// rule builds the RRULE for ev anchored in loc, so wall-clock times are kept
// across DST changes in the viewing timezone.
func rule(ev *models.Event, loc *time.Location) (*rrule.RRule, error) {
	freq, ok := frequency(ev.Recurrence)
	if !ok {
		return nil, fmt.Errorf("event %s is not recurring", ev.ID)
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: ev.StartDate.In(loc),
	})
}

// Occurrences returns the instances of ev whose closed interval
// [start, end] intersects [from, to]. A non-recurring event is returned as is
// when it intersects the window. Results are in start order.
func Occurrences(ev models.Event, from, to time.Time) []models.Event {
	if !ev.ValidInterval() || to.Before(from) {
		return nil
	}
	if !ev.IsRecurring() {
		if ev.StartDate.After(to) || ev.EndDate.Before(from) {
			return nil
		}
		return []models.Event{ev}
	}

	r, err := rule(&ev, from.Location())
	if err != nil {
		return nil
	}

	dur := ev.Duration()
	// An occurrence that started before the window may still be running.
	starts := r.Between(from.Add(-dur), to, true)
	if len(starts) > MaxOccurrences {
		starts = starts[:MaxOccurrences]
	}

	out := make([]models.Event, 0, len(starts))
	for _, s := range starts {
		occ := instance(ev, s, dur)
		if occ.EndDate.Before(from) {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// Next returns the first occurrence of ev that starts strictly after after.
func Next(ev models.Event, after time.Time) (models.Event, bool) {
	if !ev.ValidInterval() {
		return models.Event{}, false
	}
	if !ev.IsRecurring() {
		if ev.StartDate.After(after) {
			return ev, true
		}
		return models.Event{}, false
	}

	r, err := rule(&ev, after.Location())
	if err != nil {
		return models.Event{}, false
	}
	s := r.After(after, false)
	if s.IsZero() {
		return models.Event{}, false
	}
	return instance(ev, s, ev.Duration()), true
}

func instance(ev models.Event, start time.Time, dur time.Duration) models.Event {
	occ := ev
	occ.SeriesID = ev.BaseID()
	occ.StartDate = start
	occ.EndDate = start.Add(dur)
	if !start.Equal(ev.StartDate) {
		occ.ID = OccurrenceID(occ.SeriesID, start)
	}
	return occ
}
