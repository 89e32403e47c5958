package merger

import (
	"context"
	"fmt"
	"strconv"

	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/sequence"
)

// RouteMerger gives every route a new route_id, dropping routes of
// excluded types.
type RouteMerger struct {
	writer   RouteWriter
	ids      *sequence.Sequence
	excluded map[model.RouteType]bool
}

func NewRouteMerger(writer RouteWriter, excluded []model.RouteType) *RouteMerger {
	m := &RouteMerger{
		writer:   writer,
		ids:      sequence.New(1),
		excluded: map[model.RouteType]bool{},
	}
	for _, t := range excluded {
		m.excluded[t] = true
	}
	return m
}

// Returns a map from the feed's route_ids to output route_ids. Dropped
// routes are absent from it.
func (m *RouteMerger) Merge(ctx context.Context, routes []model.Route) (map[string]string, error) {
	routeIDs := map[string]string{}

	for _, route := range routes {
		if m.excluded[route.Type] {
			continue
		}

		id := strconv.Itoa(m.ids.Next())
		routeIDs[route.ID] = id

		route.ID = id
		err := m.writer.WriteRoute(ctx, &route)
		if err != nil {
			return nil, fmt.Errorf("writing route: %w", err)
		}
	}

	return routeIDs, nil
}
