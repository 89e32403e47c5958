package storage

import (
	"context"

	"tidbyt.dev/gtfsmerge/model"
)

// In memory implementation of FeedWriter below. Useful for tests and
// for callers embedding the merger.

type MemoryFeedWriter struct {
	Agencies      []model.Agency
	Routes        []model.Route
	Trips         []model.Trip
	StopTimes     []model.StopTime
	Stops         []model.Stop
	Transfers     []model.Transfer
	Calendars     []model.Calendar
	CalendarDates []model.CalendarDate

	Closed  bool
	Aborted bool

	agencyKeys   keySet
	routeKeys    keySet
	stopKeys     keySet
	calendarKeys keySet
}

func NewMemoryFeedWriter() *MemoryFeedWriter {
	return &MemoryFeedWriter{
		agencyKeys:   keySet{},
		routeKeys:    keySet{},
		stopKeys:     keySet{},
		calendarKeys: keySet{},
	}
}

func (w *MemoryFeedWriter) check(ctx context.Context) error {
	if w.Closed || w.Aborted {
		return ErrClosed
	}
	return ctx.Err()
}

func (w *MemoryFeedWriter) WriteAgency(ctx context.Context, agency *model.Agency) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if w.agencyKeys.first(agency.ID) {
		w.Agencies = append(w.Agencies, *agency)
	}
	return nil
}

func (w *MemoryFeedWriter) WriteRoute(ctx context.Context, route *model.Route) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if w.routeKeys.first(route.ID) {
		w.Routes = append(w.Routes, *route)
	}
	return nil
}

func (w *MemoryFeedWriter) WriteTrip(ctx context.Context, trip *model.Trip) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	w.Trips = append(w.Trips, *trip)
	return nil
}

func (w *MemoryFeedWriter) WriteStopTime(ctx context.Context, stopTime *model.StopTime) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	w.StopTimes = append(w.StopTimes, *stopTime)
	return nil
}

func (w *MemoryFeedWriter) WriteStop(ctx context.Context, stop *model.Stop) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if w.stopKeys.first(stop.ID) {
		w.Stops = append(w.Stops, *stop)
	}
	return nil
}

func (w *MemoryFeedWriter) WriteTransfer(ctx context.Context, transfer *model.Transfer) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	w.Transfers = append(w.Transfers, *transfer)
	return nil
}

func (w *MemoryFeedWriter) WriteCalendar(ctx context.Context, cal *model.Calendar) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if w.calendarKeys.first(cal.ServiceID) {
		w.Calendars = append(w.Calendars, *cal)
	}
	return nil
}

func (w *MemoryFeedWriter) WriteCalendarDate(ctx context.Context, caldate *model.CalendarDate) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	w.CalendarDates = append(w.CalendarDates, *caldate)
	return nil
}

func (w *MemoryFeedWriter) Close() error {
	if w.Closed || w.Aborted {
		return ErrClosed
	}
	w.Closed = true
	return nil
}

func (w *MemoryFeedWriter) Abort() error {
	if w.Closed || w.Aborted {
		return ErrClosed
	}
	w.Aborted = true
	return nil
}
