package layout

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/daycal/internal/models"
)

func byID(as []Assignment) map[string]Assignment {
	out := make(map[string]Assignment, len(as))
	for _, a := range as {
		out[a.Event.ID] = a
	}
	return out
}

func TestLayoutEmpty(t *testing.T) {
	got := Layout(nil, local(2, 0, 0))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLayoutOverlapChain(t *testing.T) {
	events := []models.Event{
		event("A", local(2, 9, 0), local(2, 10, 0)),
		event("B", local(2, 9, 30), local(2, 10, 30)),
		event("C", local(2, 10, 0), local(2, 11, 0)),
	}

	got := byID(Layout(events, local(2, 0, 0)))
	require.Len(t, got, 3)

	assert.NotEqual(t, got["A"].Column, got["B"].Column)
	assert.NotEqual(t, got["B"].Column, got["C"].Column)
	assert.Equal(t, 0, got["C"].Column, "C takes the column A freed at 10:00")
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, 2, got[id].TotalColumns, id)
	}
}

func TestLayoutBackToBack(t *testing.T) {
	events := []models.Event{
		event("first", local(2, 9, 0), local(2, 10, 0)),
		event("second", local(2, 10, 0), local(2, 11, 0)),
	}

	got := byID(Layout(events, local(2, 0, 0)))
	assert.Equal(t, 0, got["first"].Column)
	assert.Equal(t, 0, got["second"].Column)
	assert.Equal(t, 1, got["first"].TotalColumns)
	assert.Equal(t, 1, got["second"].TotalColumns)
}

func TestLayoutColumnsAreStable(t *testing.T) {
	events := []models.Event{
		event("long", local(2, 9, 0), local(2, 12, 0)),
		event("short", local(2, 9, 0), local(2, 10, 0)),
		event("mid", local(2, 9, 30), local(2, 11, 0)),
		event("late", local(2, 10, 0), local(2, 10, 30)),
	}

	got := byID(Layout(events, local(2, 0, 0)))
	assert.Equal(t, 0, got["long"].Column)
	assert.Equal(t, 1, got["short"].Column)
	assert.Equal(t, 2, got["mid"].Column, "no repacking once short has ended")
	assert.Equal(t, 1, got["late"].Column)
	assert.Equal(t, 3, got["late"].TotalColumns)
	assert.Equal(t, 3, got["long"].TotalColumns)
}

func TestLayoutMultiDayPieces(t *testing.T) {
	events := []models.Event{
		event("overnight", local(1, 22, 0), local(2, 2, 0)),
		event("early", local(2, 1, 0), local(2, 3, 0)),
		event("tomorrow", local(3, 9, 0), local(3, 10, 0)),
	}

	got := byID(Layout(events, local(2, 0, 0)))
	require.Len(t, got, 2)
	assert.Equal(t, PositionEnd, got["overnight"].Position)
	assert.True(t, got["overnight"].Partial)
	assert.True(t, got["overnight"].Start.Equal(local(2, 0, 0)))
	assert.Equal(t, PositionFull, got["early"].Position)
	assert.Equal(t, 2, got["early"].TotalColumns)
}

func TestLayoutZeroWidthPiece(t *testing.T) {
	events := []models.Event{
		event("endsAtMidnight", local(1, 22, 0), local(2, 0, 0)),
		event("morning", local(2, 0, 0), local(2, 1, 0)),
		event("noon", local(2, 12, 0), local(2, 13, 0)),
	}

	got := byID(Layout(events, local(2, 0, 0)))
	require.Len(t, got, 3)
	sliver := got["endsAtMidnight"]
	assert.Equal(t, PositionEnd, sliver.Position)
	assert.Equal(t, 1, sliver.Column)
	assert.Equal(t, 2, sliver.TotalColumns)
	assert.Equal(t, 0, got["morning"].Column)
	assert.Equal(t, 1, got["morning"].TotalColumns, "the sliver overlaps nothing")
	assert.Equal(t, 1, got["noon"].TotalColumns, "the sliver does not stay active")
}

func TestLayoutZeroWidthPieceDoesNotWidenNeighbours(t *testing.T) {
	events := []models.Event{
		event("late", local(1, 23, 0), local(2, 0, 0)),
		event("early", local(2, 0, 0), local(2, 1, 0)),
		event("overlap", local(2, 0, 30), local(2, 2, 0)),
	}

	got := byID(Layout(events, local(2, 0, 0)))
	require.Len(t, got, 3)
	assert.Equal(t, 0, got["early"].Column)
	assert.Equal(t, 2, got["early"].TotalColumns)
	assert.Equal(t, 1, got["overlap"].Column)
	assert.Equal(t, 2, got["overlap"].TotalColumns)

	late := got["late"]
	assert.True(t, late.Start.Equal(late.End))
	assert.Equal(t, 1, late.Column)
	assert.Equal(t, 2, late.TotalColumns)

	alone := byID(Layout(events[:2], local(2, 0, 0)))
	assert.Equal(t, 1, alone["early"].TotalColumns)
	assert.Less(t, alone["late"].Column, alone["late"].TotalColumns)
}

func TestLayoutSkipsInvalidEvents(t *testing.T) {
	events := []models.Event{
		event("ok", local(2, 9, 0), local(2, 10, 0)),
		event("bad", local(2, 10, 0), local(2, 9, 0)),
	}

	got := Layout(events, local(2, 0, 0))
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Event.ID)
}

func TestLayoutDoesNotMutateInput(t *testing.T) {
	events := []models.Event{
		event("b", local(2, 9, 30), local(2, 10, 30)),
		event("a", local(2, 9, 0), local(2, 10, 0)),
	}
	before := make([]models.Event, len(events))
	copy(before, events)

	_ = Layout(events, local(2, 0, 0))
	assert.Equal(t, before, events)
}

func randomEvents(r *rand.Rand, n int) []models.Event {
	events := make([]models.Event, 0, n)
	for i := 0; i < n; i++ {
		start := local(2, 0, 0).Add(time.Duration(r.Intn(23*60)) * time.Minute)
		end := start.Add(time.Duration(5+r.Intn(240)) * time.Minute)
		events = append(events, event(fmt.Sprintf("e%02d", i), start, end))
	}
	return events
}

// maxConcurrency counts the most half-open intervals active at one instant.
func maxConcurrency(as []Assignment) int {
	best := 0
	for _, p := range as {
		n := 0
		for _, a := range as {
			if !p.Start.Before(a.Start) && p.Start.Before(a.End) {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}

func TestLayoutProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	day := local(2, 0, 0)

	for round := 0; round < 200; round++ {
		events := randomEvents(r, 1+r.Intn(25))
		got := Layout(events, day)
		require.Len(t, got, len(events))

		limit := maxConcurrency(got)
		for i, a := range got {
			assert.Less(t, a.Column, a.TotalColumns)
			assert.LessOrEqual(t, a.TotalColumns, limit)
			for _, b := range got[i+1:] {
				if a.Start.Before(b.End) && b.Start.Before(a.End) {
					assert.NotEqual(t, a.Column, b.Column, "%s and %s overlap", a.Event.ID, b.Event.ID)
				}
			}
		}

		// Same input, and the same set in another order, give the same plan.
		again := Layout(events, day)
		shuffled := make([]models.Event, len(events))
		copy(shuffled, events)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		reordered := byID(Layout(shuffled, day))
		for i, a := range got {
			assert.Equal(t, a.Event.ID, again[i].Event.ID)
			assert.Equal(t, a.Column, again[i].Column)
			assert.Equal(t, a.TotalColumns, again[i].TotalColumns)
			assert.Equal(t, a.Column, reordered[a.Event.ID].Column)
			assert.Equal(t, a.TotalColumns, reordered[a.Event.ID].TotalColumns)
		}
	}
}
