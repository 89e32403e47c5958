package gtfsmerge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tidbyt.dev/gtfsmerge/merger"
	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/parse"
	"tidbyt.dev/gtfsmerge/storage"
)

type OutputConfig struct {
	Transfers         merger.TransferConfig
	ExcludeRouteTypes []model.RouteType
}

// Output merges any number of feeds into a single FeedWriter.
//
// The mergers live as long as the Output, so IDs, deduplicated
// calendars and stop locations carry over from one feed to the next.
type Output struct {
	writer storage.FeedWriter
	log    *slog.Logger

	calendars *merger.CalendarMerger
	routes    *merger.RouteMerger
	trips     *merger.TripsMerger
	stopTimes *merger.StopTimesMerger
	stops     *merger.StopsAndTransfersMerger
	agencies  *merger.GenericMerger[model.Agency]

	done bool
}

func NewOutput(writer storage.FeedWriter, config OutputConfig, log *slog.Logger) *Output {
	if log == nil {
		log = slog.Default()
	}

	return &Output{
		writer:    writer,
		log:       log,
		calendars: merger.NewCalendarMerger(writer),
		routes:    merger.NewRouteMerger(writer, config.ExcludeRouteTypes),
		trips:     merger.NewTripsMerger(writer),
		stopTimes: merger.NewStopTimesMerger(writer),
		stops:     merger.NewStopsAndTransfersMerger(writer, config.Transfers),
		agencies:  merger.NewGenericMerger(writer.WriteAgency),
	}
}

// Merges one feed into the output. Feeds must be written one at a
// time.
func (o *Output) Write(ctx context.Context, feed *parse.Feed) error {
	if o.done {
		return storage.ErrClosed
	}

	start := time.Now()

	var serviceIDs, routeIDs map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		routeIDs, err = o.routes.Merge(gctx, feed.Routes)
		if err != nil {
			return fmt.Errorf("merging routes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		serviceIDs, err = o.calendars.Merge(gctx, feed.Calendars, feed.CalendarDates)
		if err != nil {
			return fmt.Errorf("merging calendars: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	tripIDs, err := o.trips.Merge(ctx, feed.Trips, serviceIDs, routeIDs)
	if err != nil {
		return fmt.Errorf("merging trips: %w", err)
	}

	usedStops, err := o.stopTimes.Merge(ctx, feed.StopTimes, tripIDs, feed.ParentStops)
	if err != nil {
		return fmt.Errorf("merging stop times: %w", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := o.stops.Merge(gctx, feed.Stops, feed.Transfers)
		if err != nil {
			return fmt.Errorf("merging stops: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := o.agencies.Merge(gctx, feed.Agencies)
		if err != nil {
			return fmt.Errorf("merging agencies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Transfers are synthesized for all stops, used or not.
	o.log.Info(
		"merged feed",
		"routes", len(routeIDs),
		"services", len(serviceIDs),
		"trips", len(tripIDs),
		"used_stops", len(usedStops),
		"duration", time.Since(start),
	)

	return nil
}

// Finalizes the output. No more feeds can be written.
func (o *Output) Close() error {
	if o.done {
		return storage.ErrClosed
	}
	o.done = true

	err := o.writer.Close()
	if err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// Discards the output.
func (o *Output) Abort() error {
	if o.done {
		return storage.ErrClosed
	}
	o.done = true

	err := o.writer.Abort()
	if err != nil {
		return fmt.Errorf("aborting output: %w", err)
	}
	return nil
}
