// Package merger folds the tables of several GTFS feeds into one.
//
// Each merger owns one or two output tables and the ID maps it builds
// while writing them. Mergers are meant to be created once per run and
// fed every input feed in turn, so that IDs minted for one feed stay
// unique across all of them.
package merger

import (
	"context"

	"tidbyt.dev/gtfsmerge/model"
)

type CalendarWriter interface {
	WriteCalendar(ctx context.Context, cal *model.Calendar) error
	WriteCalendarDate(ctx context.Context, caldate *model.CalendarDate) error
}

type RouteWriter interface {
	WriteRoute(ctx context.Context, route *model.Route) error
}

type TripWriter interface {
	WriteTrip(ctx context.Context, trip *model.Trip) error
}

type StopTimeWriter interface {
	WriteStopTime(ctx context.Context, stopTime *model.StopTime) error
}

type StopWriter interface {
	WriteStop(ctx context.Context, stop *model.Stop) error
	WriteTransfer(ctx context.Context, transfer *model.Transfer) error
}

// GenericMerger writes rows that need no remapping as-is.
type GenericMerger[T any] struct {
	write func(ctx context.Context, row *T) error
}

func NewGenericMerger[T any](write func(ctx context.Context, row *T) error) *GenericMerger[T] {
	return &GenericMerger[T]{write: write}
}

func (m *GenericMerger[T]) Merge(ctx context.Context, rows []T) error {
	for i := range rows {
		if err := m.write(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}
