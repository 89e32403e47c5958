package storage

import (
	"context"
	"errors"

	"tidbyt.dev/gtfsmerge/model"
)

var ErrClosed = errors.New("feed writer is closed")

// Writes the tables of a merged GTFS feed.
//
// Each table has exactly one writer (the merger owning it), but
// different tables may be written concurrently. Writes block while
// the underlying sink can't accept more rows. Rows are stored in the
// order they were written.
//
// The agency, routes, stops and calendar tables are keyed on their
// ID column: only the first row for a given ID is stored. Rows with
// an empty ID are always stored.
//
// Close() flushes and finalizes all tables. Abort() discards
// whatever can be discarded and never produces a finished feed.
// Exactly one of the two should be called, once.
type FeedWriter interface {
	WriteAgency(ctx context.Context, agency *model.Agency) error
	WriteRoute(ctx context.Context, route *model.Route) error
	WriteTrip(ctx context.Context, trip *model.Trip) error
	WriteStopTime(ctx context.Context, stopTime *model.StopTime) error
	WriteStop(ctx context.Context, stop *model.Stop) error
	WriteTransfer(ctx context.Context, transfer *model.Transfer) error
	WriteCalendar(ctx context.Context, cal *model.Calendar) error
	WriteCalendarDate(ctx context.Context, caldate *model.CalendarDate) error
	Close() error
	Abort() error
}

// Implemented by writers producing files that can be bundled into a
// GTFS zip archive.
type Packager interface {
	Package(path string) error
}

// Tracks IDs already written to a keyed table.
type keySet map[string]bool

// Reports whether a row with this key should be written, and
// remembers the key.
func (k keySet) first(key string) bool {
	if key == "" {
		return true
	}
	if k[key] {
		return false
	}
	k[key] = true
	return true
}
