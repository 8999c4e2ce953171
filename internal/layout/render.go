package layout

import (
	"time"

	"github.com/Kerhoff/daycal/internal/models"
)

// MinBlockHeight keeps very short events tall enough to read.
const MinBlockHeight = 20

// Block is an Assignment converted to timeline coordinates, in minute units:
// one unit per minute from local midnight.
type Block struct {
	Assignment
	Top    int
	Height int
	Left   float64
	Width  float64
}

// Plan lays out events for day and converts the result into blocks.
func Plan(events []models.Event, day time.Time) []Block {
	as := Layout(events, day)
	blocks := make([]Block, 0, len(as))
	for _, a := range as {
		blocks = append(blocks, NewBlock(a, day))
	}
	return blocks
}

// NewBlock positions a single assignment. The day length is measured, not
// assumed, so DST days clamp at 23 or 25 hours.
func NewBlock(a Assignment, day time.Time) Block {
	dayStart, dayEnd := DayBounds(day)
	dayMinutes := int(dayEnd.Sub(dayStart) / time.Minute)

	top := int(a.Start.Sub(dayStart) / time.Minute)
	if top < 0 {
		top = 0
	}
	duration := int(a.End.Sub(a.Start) / time.Minute)
	if duration > dayMinutes-top {
		duration = dayMinutes - top
	}
	height := duration
	if height < MinBlockHeight {
		height = MinBlockHeight
	}

	total := a.TotalColumns
	if total < 1 {
		total = 1
	}
	return Block{
		Assignment: a,
		Top:        top,
		Height:     height,
		Left:       float64(a.Column) / float64(total),
		Width:      1 / float64(total),
	}
}
