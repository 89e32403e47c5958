package merger

import (
	"context"
	"fmt"
	"strconv"

	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/sequence"
)

// TripsMerger keeps trips whose route and service both survived, and
// gives them new trip_ids.
type TripsMerger struct {
	writer TripWriter
	ids    *sequence.Sequence
}

func NewTripsMerger(writer TripWriter) *TripsMerger {
	return &TripsMerger{
		writer: writer,
		ids:    sequence.New(1),
	}
}

func (m *TripsMerger) Merge(
	ctx context.Context,
	trips []model.Trip,
	serviceIDs map[string]string,
	routeIDs map[string]string,
) (map[string]string, error) {
	tripIDs := map[string]string{}

	for _, trip := range trips {
		serviceID, found := serviceIDs[trip.ServiceID]
		if !found {
			continue
		}
		routeID, found := routeIDs[trip.RouteID]
		if !found {
			continue
		}

		id := strconv.Itoa(m.ids.Next())
		tripIDs[trip.ID] = id

		trip.ID = id
		trip.ServiceID = serviceID
		trip.RouteID = routeID
		err := m.writer.WriteTrip(ctx, &trip)
		if err != nil {
			return nil, fmt.Errorf("writing trip: %w", err)
		}
	}

	return tripIDs, nil
}
