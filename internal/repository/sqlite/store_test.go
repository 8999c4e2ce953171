package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/daycal/internal/config"
	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/repository"
	"github.com/Kerhoff/daycal/internal/repository/sqlite/migrations"
	"github.com/Kerhoff/daycal/pkg/logger"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := config.NewDatabase(config.DriverSQLite, filepath.Join(t.TempDir(), "daycal.db"), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(migrations.FS))
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openTestDB(t))

	ev := &models.Event{
		ID:                      "standup",
		Title:                   "Standup",
		StartDate:               day.Add(9 * time.Hour),
		EndDate:                 day.Add(9*time.Hour + 15*time.Minute),
		Recurrence:              models.RecurrenceDaily,
		NotificationLeadMinutes: 5,
		Color:                   models.DefaultColor,
		CalendarID:              models.DefaultCalendarID,
	}
	_, err := repo.Create(ctx, ev)
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Event{
		ID:         "offsite",
		Title:      "Offsite",
		StartDate:  day.Add(-48 * time.Hour),
		EndDate:    day.Add(-24 * time.Hour),
		Recurrence: models.RecurrenceNone,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "standup")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Standup", got.Title)
	assert.True(t, got.StartDate.Equal(ev.StartDate))
	assert.Equal(t, models.RecurrenceDaily, got.Recurrence)
	assert.Equal(t, 5, got.NotificationLeadMinutes)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// The recurring event is kept for a later window; the past one is not.
	from, to := day.Add(72*time.Hour), day.Add(96*time.Hour)
	list, err := repo.List(ctx, repository.EventFilters{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "standup", list[0].ID)

	list, err = repo.List(ctx, repository.EventFilters{Title: "off"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "offsite", list[0].ID)

	got.Title = "Daily standup"
	updated, err := repo.Update(ctx, got)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Daily standup", updated.Title)

	updated, err = repo.Update(ctx, &models.Event{ID: "nope", StartDate: day, EndDate: day.Add(time.Hour)})
	require.NoError(t, err)
	assert.Nil(t, updated)

	require.NoError(t, repo.Delete(ctx, "standup"))
	assert.Error(t, repo.Delete(ctx, "standup"))
}

func TestReminderRepositoryKeepsSaveOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewReminderRepository(openTestDB(t))

	save := func(id string, fireAt time.Time) {
		require.NoError(t, repo.Save(ctx, &models.ScheduledReminder{
			EventID:    id,
			Title:      id,
			EventStart: fireAt.Add(10 * time.Minute),
			FireAt:     fireAt,
			Armed:      true,
			CreatedAt:  day,
		}))
	}

	save("b", day.Add(2*time.Hour))
	save("a", day.Add(time.Hour))
	save("b", day.Add(3*time.Hour))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].EventID)
	assert.True(t, list[0].FireAt.Equal(day.Add(3*time.Hour)))
	assert.Equal(t, "a", list[1].EventID)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Armed)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.NoError(t, repo.Delete(ctx, "a"))

	got, err = repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}
