// Package ics converts between iCalendar feeds and events.
package ics

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/daycal/internal/models"
)

// Parse reads VEVENTs from r. Date-only values are interpreted in loc.
//
// A VEVENT that cannot be converted is skipped. In that case the valid events
// are returned together with a *multierror.Error listing the skipped ones.
func Parse(r io.Reader, loc *time.Location) ([]models.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var result *multierror.Error
	events := make([]models.Event, 0)
	for i, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("vevent %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}

	return events, result.ErrorOrNil()
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (models.Event, error) {
	ev := models.Event{Recurrence: models.RecurrenceNone}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.ID = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}

	if isDateValue(dtStart) {
		ev.IsAllDay = true
		start, err := parseDate(dtStart.Value, loc)
		if err != nil {
			return ev, err
		}
		ev.StartDate = start
		ev.EndDate = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseDate(dtEnd.Value, loc); err == nil {
				ev.EndDate = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, fmt.Errorf("invalid DTSTART: %w", err)
		}
		end, err := ve.GetEndAt()
		if err != nil {
			return ev, fmt.Errorf("invalid DTEND: %w", err)
		}
		ev.StartDate = start
		ev.EndDate = end
	}

	if !ev.ValidInterval() {
		return ev, fmt.Errorf("event %q ends before it starts", ev.Title)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.Recurrence = recurrenceFromRule(p.Value)
	}

	for _, alarm := range ve.Alarms() {
		trigger := alarm.GetProperty(ical.ComponentPropertyTrigger)
		if trigger == nil {
			continue
		}
		if lead, ok := parseTrigger(trigger.Value); ok {
			ev.NotificationLeadMinutes = lead
			break
		}
	}

	return ev, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	return time.ParseInLocation("20060102", v[:8], loc)
}

// recurrenceFromRule maps the FREQ part of an RRULE. Other rule parts are
// not kept.
func recurrenceFromRule(rule string) models.Recurrence {
	for _, part := range strings.Split(rule, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "FREQ") {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "DAILY":
			return models.RecurrenceDaily
		case "WEEKLY":
			return models.RecurrenceWeekly
		case "MONTHLY":
			return models.RecurrenceMonthly
		case "YEARLY":
			return models.RecurrenceYearly
		}
	}
	return models.RecurrenceNone
}

var durationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseTrigger converts a relative VALARM trigger such as -PT15M into a lead
// time in minutes. Triggers after the start are rejected.
func parseTrigger(v string) (int, bool) {
	m := durationRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(v)))
	if m == nil {
		return 0, false
	}

	var d time.Duration
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, false
		}
		d += time.Duration(n) * unit
	}

	if d != 0 && m[1] != "-" {
		return 0, false
	}
	return int(d / time.Minute), true
}
