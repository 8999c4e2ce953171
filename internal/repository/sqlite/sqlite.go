// Package sqlite stores events and reminders in a local SQLite file.
// Timestamps are kept as UTC unix milliseconds.
package sqlite

import (
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
