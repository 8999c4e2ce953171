package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/ics"
	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/repository"
)

func newID() string {
	return uuid.NewString()
}

// ImportResult summarises an import.
type ImportResult struct {
	Imported []*models.Event `json:"imported"`
	Skipped  int             `json:"skipped"`
	Warnings []string        `json:"warnings,omitempty"`
}

func dedupKey(title string, start time.Time) string {
	return title + "|" + strconv.FormatInt(start.UnixMilli(), 10)
}

// ImportEvents stores events that are not already present. An event is a
// duplicate when its id is taken, or when an event with the same title
// starts at the same instant. Invalid events are skipped. Reminders are armed
// for imported events that have not started.
func (s *Service) ImportEvents(ctx context.Context, events []models.Event) (*ImportResult, error) {
	existing, err := s.Events.List(ctx, repository.EventFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing events: %w", err)
	}

	ids := make(map[string]bool, len(existing))
	keys := make(map[string]bool, len(existing))
	for _, ev := range existing {
		ids[ev.ID] = true
		keys[dedupKey(ev.Title, ev.StartDate)] = true
	}

	result := &ImportResult{Imported: []*models.Event{}}
	var problems *multierror.Error

	for i := range events {
		ev := events[i]
		if err := validate(&ev); err != nil {
			result.Skipped++
			problems = multierror.Append(problems, fmt.Errorf("%q: %w", ev.Title, err))
			continue
		}

		key := dedupKey(ev.Title, ev.StartDate)
		if (ev.ID != "" && ids[ev.ID]) || keys[key] {
			result.Skipped++
			continue
		}
		if ev.ID == "" {
			ev.ID = newID()
		}
		ev.Normalize()

		created, err := s.Events.Create(ctx, &ev)
		if err != nil {
			result.Skipped++
			problems = multierror.Append(problems, fmt.Errorf("%q: %w", ev.Title, err))
			continue
		}
		ids[created.ID] = true
		keys[key] = true

		m := &Mutation{Event: created}
		s.schedule(ctx, m, false)
		if m.Warning != "" {
			problems = multierror.Append(problems, fmt.Errorf("%q: %s", created.Title, m.Warning))
		}
		result.Imported = append(result.Imported, created)
	}

	if problems != nil {
		for _, e := range problems.Errors {
			result.Warnings = append(result.Warnings, e.Error())
		}
	}

	s.logger.WithFields(logrus.Fields{
		"imported": len(result.Imported),
		"skipped":  result.Skipped,
	}).Info("Events imported")

	return result, nil
}

// ImportICS parses an iCalendar feed and imports its events. VEVENTs that
// cannot be read are reported as warnings.
func (s *Service) ImportICS(ctx context.Context, r io.Reader) (*ImportResult, error) {
	events, err := ics.Parse(r, s.loc)
	var partial *multierror.Error
	if err != nil && !errors.As(err, &partial) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	result, err := s.ImportEvents(ctx, events)
	if err != nil {
		return nil, err
	}
	if partial != nil {
		result.Skipped += len(partial.Errors)
		for _, e := range partial.Errors {
			result.Warnings = append(result.Warnings, e.Error())
		}
	}
	return result, nil
}

// ExportICS renders every stored event as an iCalendar feed.
func (s *Service) ExportICS(ctx context.Context) (string, error) {
	events, err := s.ListEvents(ctx, nil, nil, 0)
	if err != nil {
		return "", err
	}
	return ics.Export(events, s.now()), nil
}
