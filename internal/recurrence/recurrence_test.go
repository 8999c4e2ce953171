package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/daycal/internal/models"
)

func at(day, hour, min int) time.Time {
	return time.Date(2025, time.March, day, hour, min, 0, 0, time.UTC)
}

func TestOccurrencesSingleEvent(t *testing.T) {
	ev := models.Event{ID: "a", StartDate: at(10, 9, 0), EndDate: at(10, 10, 0), Recurrence: models.RecurrenceNone}

	got := Occurrences(ev, at(10, 0, 0), at(11, 0, 0))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	assert.Empty(t, Occurrences(ev, at(11, 0, 0), at(12, 0, 0)))
}

func TestOccurrencesDaily(t *testing.T) {
	ev := models.Event{ID: "standup", StartDate: at(3, 9, 0), EndDate: at(3, 9, 15), Recurrence: models.RecurrenceDaily}

	got := Occurrences(ev, at(10, 0, 0), at(11, 0, 0))
	// 10th 09:00 and the closed upper bound excludes nothing else on the 11th before 00:00.
	require.Len(t, got, 1)
	assert.Equal(t, at(10, 9, 0), got[0].StartDate.UTC())
	assert.Equal(t, at(10, 9, 15), got[0].EndDate.UTC())
	assert.Equal(t, "standup", got[0].SeriesID)
	assert.Equal(t, OccurrenceID("standup", at(10, 9, 0)), got[0].ID)
}

func TestOccurrencesFirstKeepsID(t *testing.T) {
	ev := models.Event{ID: "w", StartDate: at(3, 9, 0), EndDate: at(3, 10, 0), Recurrence: models.RecurrenceWeekly}

	got := Occurrences(ev, at(3, 0, 0), at(18, 0, 0))
	require.Len(t, got, 3)
	assert.Equal(t, "w", got[0].ID)
	assert.Equal(t, at(10, 9, 0), got[1].StartDate.UTC())
	assert.Equal(t, at(17, 9, 0), got[2].StartDate.UTC())
}

func TestOccurrencesIncludesRunningInstance(t *testing.T) {
	// Nightly 22:00-02:00; the instance that started the previous evening is
	// still running at the start of the window.
	ev := models.Event{ID: "n", StartDate: at(1, 22, 0), EndDate: at(2, 2, 0), Recurrence: models.RecurrenceDaily}

	got := Occurrences(ev, at(10, 0, 0), at(10, 23, 59))
	require.Len(t, got, 2)
	assert.Equal(t, at(9, 22, 0), got[0].StartDate.UTC())
	assert.Equal(t, at(10, 22, 0), got[1].StartDate.UTC())
}

func TestOccurrencesInvalidInterval(t *testing.T) {
	ev := models.Event{ID: "bad", StartDate: at(10, 9, 0), EndDate: at(10, 9, 0), Recurrence: models.RecurrenceDaily}
	assert.Nil(t, Occurrences(ev, at(1, 0, 0), at(30, 0, 0)))
}

func TestNext(t *testing.T) {
	ev := models.Event{ID: "m", StartDate: at(1, 8, 0), EndDate: at(1, 9, 0), Recurrence: models.RecurrenceMonthly}

	occ, ok := Next(ev, at(1, 8, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC), occ.StartDate.UTC())
	assert.Equal(t, time.Hour, occ.Duration())

	single := models.Event{ID: "s", StartDate: at(5, 8, 0), EndDate: at(5, 9, 0)}
	_, ok = Next(single, at(5, 8, 0))
	assert.False(t, ok)
	occ, ok = Next(single, at(4, 8, 0))
	require.True(t, ok)
	assert.Equal(t, "s", occ.ID)
}
