package layout

import (
	"sort"
	"time"

	"github.com/Kerhoff/daycal/internal/models"
)

// Assignment is the placement of one event on a day.
type Assignment struct {
	Event        *models.Event
	Start        time.Time
	End          time.Time
	Column       int
	TotalColumns int
	Partial      bool
	Position     Position
}

// Endpoint kinds, in the order they are processed at equal timestamps.
// Ends go first so a column freed at 10:00 can be reused by an event starting
// at 10:00. Zero-width pieces end after the instant has been recorded so they
// still get a width and never leak into later segments.
const (
	pointEnd = iota
	pointStart
	pointEmptyEnd
)

type point struct {
	at   time.Time
	kind int
	idx  int
}

// Layout assigns columns to the events present on day with a sweep over the
// interval endpoints. Each new interval takes the lowest column not used by
// an active interval; columns are never reassigned. TotalColumns is the
// widest set of columns seen while the interval was active. The result is
// ordered by start, column and event id, and does not depend on the order of
// events.
func Layout(events []models.Event, day time.Time) []Assignment {
	ivs := Intervals(events, day)
	if len(ivs) == 0 {
		return []Assignment{}
	}

	sort.SliceStable(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.After(b.End)
		}
		return a.Event.ID < b.Event.ID
	})

	points := make([]point, 0, 2*len(ivs))
	for i, iv := range ivs {
		points = append(points, point{at: iv.Start, kind: pointStart, idx: i})
		endKind := pointEnd
		if iv.End.Equal(iv.Start) {
			endKind = pointEmptyEnd
		}
		points = append(points, point{at: iv.End, kind: endKind, idx: i})
	}
	sort.Slice(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.idx < b.idx
	})

	columns := make([]int, len(ivs))
	totals := make([]int, len(ivs))
	active := make([]bool, len(ivs))
	empty := make([]bool, len(ivs))
	for i, iv := range ivs {
		empty[i] = iv.End.Equal(iv.Start)
	}

	// Zero-width pieces overlap nothing, so they never widen other intervals.
	// Their own total still covers their column.
	record := func() {
		peak := 0
		for i, on := range active {
			if on && !empty[i] && columns[i]+1 > peak {
				peak = columns[i] + 1
			}
		}
		for i, on := range active {
			if !on {
				continue
			}
			total := peak
			if empty[i] && columns[i]+1 > total {
				total = columns[i] + 1
			}
			if total > totals[i] {
				totals[i] = total
			}
		}
	}

	for i := 0; i < len(points); {
		at := points[i].at
		recorded := false
		for ; i < len(points) && points[i].at.Equal(at); i++ {
			p := points[i]
			switch p.kind {
			case pointStart:
				columns[p.idx] = freeColumn(columns, active)
				active[p.idx] = true
			case pointEnd:
				active[p.idx] = false
			case pointEmptyEnd:
				if !recorded {
					record()
					recorded = true
				}
				active[p.idx] = false
			}
		}
		if !recorded {
			record()
		}
	}

	out := make([]Assignment, len(ivs))
	for i, iv := range ivs {
		total := totals[i]
		if total < 1 {
			total = 1
		}
		out[i] = Assignment{
			Event:        iv.Event,
			Start:        iv.Start,
			End:          iv.End,
			Column:       columns[i],
			TotalColumns: total,
			Partial:      iv.Partial,
			Position:     iv.Position,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Event.ID < b.Event.ID
	})
	return out
}

// freeColumn returns the lowest column not held by an active interval.
func freeColumn(columns []int, active []bool) int {
	used := make(map[int]bool)
	for i, on := range active {
		if on {
			used[columns[i]] = true
		}
	}
	c := 0
	for used[c] {
		c++
	}
	return c
}

// MaxColumns returns the largest TotalColumns in as, or 0 for an empty day.
func MaxColumns(as []Assignment) int {
	widest := 0
	for _, a := range as {
		if a.TotalColumns > widest {
			widest = a.TotalColumns
		}
	}
	return widest
}
