package parse

import (
	"io"

	"github.com/pkg/errors"

	"tidbyt.dev/gtfsmerge/model"
)

func (l *loader) parseTrips(data io.Reader) error {
	return decode(l, KindTrips, data, func(t *model.Trip) error {
		if t.ID == "" {
			return errors.New("empty trip_id")
		}
		if t.RouteID == "" {
			return errors.Errorf("empty route_id for trip_id '%s'", t.ID)
		}
		if t.ServiceID == "" {
			return errors.Errorf("empty service_id for trip_id '%s'", t.ID)
		}

		l.feed.Trips = append(l.feed.Trips, *t)
		return nil
	})
}
