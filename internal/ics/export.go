package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Kerhoff/daycal/internal/models"
)

const productID = "-//daycal//daycal calendar//EN"

// Export renders events as a VCALENDAR feed. Events with a lead time carry a
// display VALARM.
func Export(events []*models.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now)
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt)
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt)
		}
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}

		if e.IsAllDay {
			ve.SetAllDayStartAt(e.StartDate)
			ve.SetAllDayEndAt(e.EndDate)
		} else {
			ve.SetStartAt(e.StartDate)
			ve.SetEndAt(e.EndDate)
		}

		if e.IsRecurring() {
			ve.AddRrule("FREQ=" + strings.ToUpper(string(e.Recurrence)))
		}

		if e.NotificationLeadMinutes > 0 {
			alarm := ve.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", e.NotificationLeadMinutes))
		}
	}

	return cal.Serialize()
}
