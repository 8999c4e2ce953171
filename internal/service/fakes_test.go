package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/repository"
	"github.com/Kerhoff/daycal/internal/settings"
)

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]models.Event
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: make(map[string]models.Event)}
}

func (f *fakeEvents) Create(_ context.Context, ev *models.Event) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[ev.ID]; ok {
		return nil, errors.New("duplicate id")
	}
	f.events[ev.ID] = *ev
	return ev, nil
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (f *fakeEvents) List(_ context.Context, filters repository.EventFilters) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Event
	for _, ev := range f.events {
		ev := ev
		if filters.From != nil && ev.EndDate.Before(*filters.From) && !ev.IsRecurring() {
			continue
		}
		if filters.To != nil && ev.StartDate.After(*filters.To) {
			continue
		}
		if filters.Title != "" && !strings.Contains(ev.Title, filters.Title) {
			continue
		}
		out = append(out, &ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEvents) Update(_ context.Context, ev *models.Event) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[ev.ID]; !ok {
		return nil, nil
	}
	f.events[ev.ID] = *ev
	return ev, nil
}

func (f *fakeEvents) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return errors.New("not found")
	}
	delete(f.events, id)
	return nil
}

// put stores ev without validation.
func (f *fakeEvents) put(ev models.Event) {
	f.mu.Lock()
	f.events[ev.ID] = ev
	f.mu.Unlock()
}

type call struct {
	op    string
	id    string
	start string
	lead  int
	sound string
}

type fakeScheduler struct {
	mu        sync.Mutex
	calls     []call
	err       error
	persisted []*models.ScheduledReminder
}

func (f *fakeScheduler) record(op string, ev *models.Event, lead int, sound string) (*models.ScheduledReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: op, id: ev.BaseID(), start: ev.StartDate.Format("2006-01-02T15:04"), lead: lead, sound: sound})
	if f.err != nil {
		return nil, f.err
	}
	return &models.ScheduledReminder{EventID: ev.BaseID(), EventStart: ev.StartDate, LeadMinutes: lead, SoundProfile: sound, Armed: true}, nil
}

func (f *fakeScheduler) Arm(_ context.Context, ev *models.Event, lead int, sound string) (*models.ScheduledReminder, error) {
	return f.record("arm", ev, lead, sound)
}

func (f *fakeScheduler) Rearm(_ context.Context, ev *models.Event, lead int, sound string) (*models.ScheduledReminder, error) {
	return f.record("rearm", ev, lead, sound)
}

func (f *fakeScheduler) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "cancel", id: id})
	return f.err
}

func (f *fakeScheduler) List(context.Context) ([]*models.ScheduledReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persisted, nil
}

func (f *fakeScheduler) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op+":"+c.id)
	}
	return out
}

func (f *fakeScheduler) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakePrefs struct{ s settings.Settings }

func (f fakePrefs) Get() settings.Settings { return f.s }
