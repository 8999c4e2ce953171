package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/api"
	"github.com/Kerhoff/daycal/internal/config"
	"github.com/Kerhoff/daycal/internal/handlers"
	"github.com/Kerhoff/daycal/internal/metrics"
	"github.com/Kerhoff/daycal/internal/reminder"
	"github.com/Kerhoff/daycal/internal/repository"
	"github.com/Kerhoff/daycal/internal/repository/postgres"
	pgmigrations "github.com/Kerhoff/daycal/internal/repository/postgres/migrations"
	"github.com/Kerhoff/daycal/internal/repository/sqlite"
	sqlitemigrations "github.com/Kerhoff/daycal/internal/repository/sqlite/migrations"
	"github.com/Kerhoff/daycal/internal/service"
	"github.com/Kerhoff/daycal/internal/settings"
	"github.com/Kerhoff/daycal/internal/telegram"
	"github.com/Kerhoff/daycal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// openStores runs the migrations for the configured driver and returns its
// repositories.
func openStores(db *config.Database) (repository.EventRepository, repository.ReminderRepository, error) {
	switch db.Driver() {
	case config.DriverSQLite:
		if err := db.Migrate(sqlitemigrations.FS); err != nil {
			return nil, nil, err
		}
		return sqlite.NewEventRepository(db.DB), sqlite.NewReminderRepository(db.DB), nil
	default:
		if err := db.Migrate(pgmigrations.FS); err != nil {
			return nil, nil, err
		}
		return postgres.NewEventRepository(db.DB), postgres.NewReminderRepository(db.DB), nil
	}
}

func listen(l *logrus.Logger, name string, srv *http.Server) {
	l.Infof("%s listening on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Errorf("%s error: %v", name, err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFile)
	l.WithFields(logrus.Fields{
		"env":      cfg.AppEnv,
		"driver":   cfg.DatabaseDriver,
		"timezone": cfg.Timezone.String(),
	}).Info("Starting daycal...")

	// Database
	db, err := config.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	eventRepo, reminderRepo, err := openStores(db)
	if err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	prefs, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		l.Fatalf("Failed to load settings: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reminders are restored before anything can mutate events.
	sched := reminder.NewScheduler(reminderRepo, l)
	if err := sched.Init(ctx); err != nil {
		l.Errorf("Some reminders could not be restored: %v", err)
	}

	svc := service.New(l, eventRepo, sched, prefs,
		service.WithLocation(cfg.Timezone),
		service.WithStrictLayout(cfg.IsDevelopment()),
	)

	// Series whose reminder was dropped on reload get their next one.
	if _, err := svc.RestoreReminders(ctx); err != nil {
		l.Errorf("Some recurring reminders could not be restored: %v", err)
	}

	notifiers := []reminder.Notifier{reminder.NewLogNotifier(l)}

	var bot *telegram.Bot
	if cfg.TelegramEnabled() {
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}

		bot.RegisterCommand("start", handlers.NewStartHandler(l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))

		// Calendar handlers
		bot.RegisterCommand("event", handlers.NewEventAddHandler(svc, l))
		bot.RegisterCommand("events", handlers.NewEventListHandler(svc, l))
		bot.RegisterCommand("delevent", handlers.NewEventDeleteHandler(svc, l))
		bot.RegisterCommand("day", handlers.NewDayHandler(svc, l))

		// Reminder handlers
		bot.RegisterCommand("reminders", handlers.NewRemindersHandler(svc, l))

		if cfg.TelegramChatID != 0 {
			notifiers = append(notifiers, bot)
		} else {
			l.Warn("TELEGRAM_CHAT_ID is not set, alerts are not sent to Telegram")
		}
	}

	dispatcher := reminder.NewDispatcher(sched, notifiers, l,
		reminder.WithPollInterval(cfg.ReminderPollInterval),
		reminder.WithSounds(prefs),
		reminder.WithAfterFire(svc.OnReminderFired),
	)
	if err := dispatcher.Start(ctx); err != nil {
		l.Fatalf("Failed to start reminder dispatcher: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// HTTP API
	apiServer := api.NewServer(svc, prefs, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go listen(l, "HTTP server", httpServer)

	// Prometheus metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go listen(l, "Metrics server", metricsServer)

	// Telegram bot polling
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	}

	l.Info("daycal started successfully")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	l.Info("Shutting down HTTP servers...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown: %v", err)
	}

	dispatcher.Stop()
	sched.Shutdown()

	l.Info("daycal stopped")
}
