package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/pkg/logger"
)

type staticSounds map[string]string

func (s staticSounds) Sound(profile string) models.Sound {
	return models.Sound{Key: profile, URL: s[profile]}
}

func TestZeroLeadFiresAtStartNotBefore(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock(base)
	s := newTestScheduler(t, store, clock)
	notifier := &recordingNotifier{name: "rec"}
	d := NewDispatcher(s, []Notifier{notifier}, logger.Discard())
	ctx := context.Background()

	_, err := s.Arm(ctx, event("a", base.Add(5*time.Minute)), 0, "")
	require.NoError(t, err)

	assert.Zero(t, d.Poll(ctx))
	clock.Advance(5*time.Minute - time.Second)
	assert.Zero(t, d.Poll(ctx))

	clock.Advance(time.Second)
	assert.Equal(t, 1, d.Poll(ctx))
	d.wg.Wait()

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "Event a starts now (09:05)", notifier.last().Message())
	assert.Zero(t, store.len())
}

func TestCancelledReminderNeverFires(t *testing.T) {
	clock := newFakeClock(base)
	s := newTestScheduler(t, newMemStore(), clock)
	notifier := &recordingNotifier{name: "rec"}
	d := NewDispatcher(s, []Notifier{notifier}, logger.Discard())
	ctx := context.Background()

	_, err := s.Arm(ctx, event("a", base.Add(time.Hour)), 10, "")
	require.NoError(t, err)
	e := s.lookup("a")
	require.NoError(t, s.Cancel(ctx, "a"))

	clock.Advance(2 * time.Hour)
	assert.Zero(t, d.Poll(ctx))
	assert.False(t, d.fire(ctx, e))
	d.wg.Wait()
	assert.Zero(t, notifier.count())
}

func TestFiresAtMostOnce(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock(base)
	s := newTestScheduler(t, store, clock)
	notifier := &recordingNotifier{name: "rec"}
	d := NewDispatcher(s, []Notifier{notifier}, logger.Discard())
	ctx := context.Background()

	_, err := s.Arm(ctx, event("a", base.Add(time.Hour)), 10, "")
	require.NoError(t, err)
	e := s.lookup("a")
	clock.Advance(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.fire(ctx, e)
		}()
		go func() {
			defer wg.Done()
			d.Poll(ctx)
		}()
	}
	wg.Wait()
	d.wg.Wait()

	assert.Equal(t, 1, notifier.count())
	assert.Zero(t, store.len())
}

func TestPollUsesPersistedOrder(t *testing.T) {
	clock := newFakeClock(base)
	s := newTestScheduler(t, newMemStore(), clock)
	ctx := context.Background()

	_, err := s.Arm(ctx, event("b", base.Add(2*time.Hour)), 60, "")
	require.NoError(t, err)
	_, err = s.Arm(ctx, event("a", base.Add(time.Hour)), 10, "")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	due := s.due(ctx)
	require.Len(t, due, 2)
	assert.Equal(t, "b", due[0].reminder.EventID)
	assert.Equal(t, "a", due[1].reminder.EventID)
}

func TestDeliveryContinuesPastFailingSink(t *testing.T) {
	clock := newFakeClock(base)
	s := newTestScheduler(t, newMemStore(), clock)
	broken := &recordingNotifier{name: "broken", err: errors.New("offline")}
	good := &recordingNotifier{name: "good"}
	d := NewDispatcher(s, []Notifier{broken, good}, logger.Discard(),
		WithSounds(staticSounds{"bell": "/sounds/bell.mp3"}))
	ctx := context.Background()

	_, err := s.Arm(ctx, event("a", base.Add(time.Hour)), 15, "bell")
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)

	assert.Equal(t, 1, d.Poll(ctx))
	d.wg.Wait()

	require.Equal(t, 1, good.count())
	assert.Equal(t, 1, broken.count())
	alert := good.last()
	assert.Equal(t, "/sounds/bell.mp3", alert.Sound.URL)
	assert.Equal(t, "Event a starts in 15 minutes (10:00)", alert.Message())
	assert.False(t, alert.Late)
}

func TestLateAlert(t *testing.T) {
	clock := newFakeClock(base)
	s := newTestScheduler(t, newMemStore(), clock)
	good := &recordingNotifier{name: "good"}
	d := NewDispatcher(s, []Notifier{good}, logger.Discard(), WithPollInterval(time.Minute))
	ctx := context.Background()

	_, err := s.Arm(ctx, event("a", base.Add(time.Hour)), 10, "")
	require.NoError(t, err)
	clock.Advance(55 * time.Minute)

	d.Poll(ctx)
	d.wg.Wait()
	require.Equal(t, 1, good.count())
	assert.True(t, good.last().Late)
}

func TestAfterFireHook(t *testing.T) {
	clock := newFakeClock(base)
	s := newTestScheduler(t, newMemStore(), clock)
	ctx := context.Background()

	var mu sync.Mutex
	var fired []string
	d := NewDispatcher(s, nil, logger.Discard(), WithAfterFire(func(_ context.Context, r models.ScheduledReminder) {
		mu.Lock()
		fired = append(fired, r.EventID)
		mu.Unlock()
	}))

	_, err := s.Arm(ctx, event("a", base.Add(time.Hour)), 10, "")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	d.Poll(ctx)
	d.wg.Wait()

	assert.Equal(t, []string{"a"}, fired)
}

func TestDispatcherFiresFromTimer(t *testing.T) {
	store := newMemStore()
	s := NewScheduler(store, logger.Discard())
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	defer s.Shutdown()

	notifier := &recordingNotifier{name: "rec"}
	d := NewDispatcher(s, []Notifier{notifier}, logger.Discard(), WithPollInterval(time.Hour))
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	// Lead longer than the time left collapses the fire time to now.
	_, err := s.Arm(ctx, event("a", time.Now().Add(2*time.Minute)), 10, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return store.len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logger.Discard())
	assert.Equal(t, "log", n.Name())
	assert.NoError(t, n.Notify(context.Background(), models.Alert{Title: "x"}))
}
