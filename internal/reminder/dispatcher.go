package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/Kerhoff/daycal/internal/metrics"
	"github.com/Kerhoff/daycal/internal/models"
)

// DefaultPollInterval is how often the persisted set is scanned for due
// reminders.
const DefaultPollInterval = 15 * time.Second

const deliveryTimeout = 30 * time.Second

// Notifier is a delivery sink for alerts.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert models.Alert) error
}

// SoundResolver maps a sound profile key to the sound to play.
type SoundResolver interface {
	Sound(profile string) models.Sound
}

// AfterFireFunc runs once delivery of a fired reminder has finished.
type AfterFireFunc func(ctx context.Context, fired models.ScheduledReminder)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval sets the poll interval.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.interval = d
		}
	}
}

// WithSounds sets the sound resolver used to build alerts.
func WithSounds(r SoundResolver) DispatcherOption {
	return func(disp *Dispatcher) { disp.sounds = r }
}

// WithAfterFire registers a hook called after every fired reminder.
func WithAfterFire(fn AfterFireFunc) DispatcherOption {
	return func(disp *Dispatcher) { disp.afterFire = fn }
}

// Dispatcher turns due reminders into alerts and hands them to notifiers.
type Dispatcher struct {
	sched     *Scheduler
	notifiers []Notifier
	sounds    SoundResolver
	afterFire AfterFireFunc
	logger    *logrus.Logger
	interval  time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
	done   chan struct{}
	wg     conc.WaitGroup
}

// NewDispatcher creates a Dispatcher for sched.
func NewDispatcher(sched *Scheduler, notifiers []Notifier, logger *logrus.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sched:     sched,
		notifiers: notifiers,
		logger:    logger,
		interval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs an immediate poll, then consumes timer expiries and polls on
// the configured interval until Stop is called or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", d.interval), func() { d.Poll(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule reminder poll: %w", err)
	}

	d.cron = c
	d.cancel = cancel
	d.done = make(chan struct{})

	d.Poll(ctx)
	c.Start()
	go d.loop(ctx)

	d.logger.WithFields(logrus.Fields{
		"interval":  d.interval,
		"notifiers": len(d.notifiers),
	}).Info("Reminder dispatcher started")

	return nil
}

// Stop halts polling and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
	d.wg.Wait()
	d.logger.Info("Reminder dispatcher stopped")
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-d.sched.fires:
			d.fire(ctx, e)
		}
	}
}

// Poll fires every armed reminder that is due, in persisted order, and
// returns how many it fired.
func (d *Dispatcher) Poll(ctx context.Context) int {
	fired := 0
	for _, e := range d.sched.due(ctx) {
		if d.fire(ctx, e) {
			fired++
		}
	}
	if fired > 0 {
		d.logger.WithField("count", fired).Debug("Poll fired reminders")
	}
	return fired
}

// fire claims e and starts delivery without waiting for it.
func (d *Dispatcher) fire(ctx context.Context, e *entry) bool {
	rec, ok := d.sched.claim(ctx, e)
	if !ok {
		return false
	}

	alert := d.alert(rec)
	d.logger.WithFields(logrus.Fields{
		"event_id": rec.EventID,
		"title":    rec.Title,
		"late":     alert.Late,
	}).Info("Reminder fired")

	dctx := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		d.deliver(dctx, alert)
		if d.afterFire != nil {
			d.afterFire(dctx, rec)
		}
	})
	return true
}

func (d *Dispatcher) alert(rec models.ScheduledReminder) models.Alert {
	sound := models.Sound{Key: rec.SoundProfile}
	if d.sounds != nil {
		sound = d.sounds.Sound(rec.SoundProfile)
	}
	return models.Alert{
		EventID:     rec.EventID,
		Title:       rec.Title,
		StartsAt:    rec.EventStart,
		FireAt:      rec.FireAt,
		LeadMinutes: rec.LeadMinutes,
		Sound:       sound,
		Late:        d.sched.now().Sub(rec.FireAt) > d.interval,
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert models.Alert) {
	if len(d.notifiers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	p := pool.New().WithContext(ctx)
	for _, n := range d.notifiers {
		n := n
		p.Go(func(ctx context.Context) error {
			if err := n.Notify(ctx, alert); err != nil {
				metrics.DeliveryFailures.WithLabelValues(n.Name()).Inc()
				return fmt.Errorf("%s: %w", n.Name(), err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		d.logger.WithError(err).WithField("event_id", alert.EventID).Error("Failed to deliver reminder")
	}
}

// LogNotifier writes alerts to the log. It is always registered so a fired
// reminder is visible even without other sinks.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, alert models.Alert) error {
	n.logger.WithFields(logrus.Fields{
		"event_id": alert.EventID,
		"sound":    alert.Sound.Key,
	}).Infof("🔔 %s", alert.Message())
	return nil
}
