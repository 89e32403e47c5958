package parse

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/pkg/errors"

	"tidbyt.dev/gtfsmerge/model"
)

type StopCSV struct {
	ID                 string `csv:"stop_id"`
	Code               string `csv:"stop_code"`
	Name               string `csv:"stop_name"`
	Desc               string `csv:"stop_desc"`
	Lat                string `csv:"stop_lat"`
	Lon                string `csv:"stop_lon"`
	ZoneID             string `csv:"zone_id"`
	URL                string `csv:"stop_url"`
	LocationType       string `csv:"location_type"`
	ParentStation      string `csv:"parent_station"`
	Timezone           string `csv:"stop_timezone"`
	WheelchairBoarding string `csv:"wheelchair_boarding"`
}

// Empty coordinates are 0. Anything outside [-limit, limit],
// including NaN and infinities, is an error.
func parseCoordinate(s string, limit float64) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !(v >= -limit && v <= limit) {
		return 0, errors.Errorf("coordinate %s out of range", s)
	}
	return v, nil
}

func (l *loader) parseStops(data io.Reader) error {
	return decode(l, KindStops, data, func(s *StopCSV) error {
		if s.ID == "" {
			return errors.New("empty stop_id")
		}

		lat, err := parseCoordinate(s.Lat, 90)
		if err != nil {
			return errors.Wrapf(err, "parsing stop_lat for stop_id '%s'", s.ID)
		}
		lon, err := parseCoordinate(s.Lon, 180)
		if err != nil {
			return errors.Wrapf(err, "parsing stop_lon for stop_id '%s'", s.ID)
		}

		locationType := 0
		if s.LocationType != "" {
			locationType, err = strconv.Atoi(s.LocationType)
			if err != nil {
				return errors.Wrapf(err, "parsing location_type for stop_id '%s'", s.ID)
			}
		}

		l.feed.Stops = append(l.feed.Stops, model.Stop{
			ID:                 l.prefix(s.ID),
			Code:               s.Code,
			Name:               s.Name,
			Desc:               s.Desc,
			Lat:                lat,
			Lon:                lon,
			ZoneID:             s.ZoneID,
			URL:                s.URL,
			LocationType:       model.LocationType(locationType),
			ParentStation:      l.prefix(s.ParentStation),
			Timezone:           s.Timezone,
			WheelchairBoarding: s.WheelchairBoarding,
		})

		return nil
	})
}

// Maps every child stop to its topmost ancestor. References to
// unknown stops are dropped, turning the stop into a standalone
// one. Cycles are cut where they close.
func resolveParents(stops []model.Stop, log *slog.Logger) map[string]string {
	known := map[string]bool{}
	for _, s := range stops {
		known[s.ID] = true
	}

	direct := map[string]string{}
	for i := range stops {
		s := &stops[i]
		if s.ParentStation == "" {
			continue
		}
		if !known[s.ParentStation] || s.ParentStation == s.ID {
			log.Warn(
				"ignoring parent_station",
				"stop_id", s.ID,
				"parent_station", s.ParentStation,
			)
			s.ParentStation = ""
			continue
		}
		direct[s.ID] = s.ParentStation
	}

	parents := map[string]string{}
	for child, parent := range direct {
		visited := map[string]bool{child: true, parent: true}
		for {
			next, found := direct[parent]
			if !found || visited[next] {
				break
			}
			visited[next] = true
			parent = next
		}
		parents[child] = parent
	}

	return parents
}
