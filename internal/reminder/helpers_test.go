package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Kerhoff/daycal/internal/models"
)

var errStoreDown = errors.New("store down")

type memStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]models.ScheduledReminder
	fail    bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]models.ScheduledReminder)}
}

func (m *memStore) Save(_ context.Context, r *models.ScheduledReminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	if _, ok := m.records[r.EventID]; !ok {
		m.order = append(m.order, r.EventID)
	}
	m.records[r.EventID] = *r
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.ScheduledReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) List(_ context.Context) ([]*models.ScheduledReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	out := make([]*models.ScheduledReminder, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		out = append(out, &r)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	if _, ok := m.records[id]; !ok {
		return nil
	}
	delete(m.records, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) setFail(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	name string
	err  error

	mu     sync.Mutex
	alerts []models.Alert
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(_ context.Context, a models.Alert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *recordingNotifier) last() models.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.alerts[len(n.alerts)-1]
}

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func event(id string, start time.Time) *models.Event {
	return &models.Event{
		ID:        id,
		Title:     "Event " + id,
		StartDate: start,
		EndDate:   start.Add(time.Hour),
	}
}
