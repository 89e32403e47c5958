package parse

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"tidbyt.dev/gtfsmerge/model"
)

type StopTimeCSV struct {
	TripID            string `csv:"trip_id"`
	ArrivalTime       string `csv:"arrival_time"`
	DepartureTime     string `csv:"departure_time"`
	StopID            string `csv:"stop_id"`
	StopSequence      string `csv:"stop_sequence"`
	Headsign          string `csv:"stop_headsign"`
	PickupType        string `csv:"pickup_type"`
	DropOffType       string `csv:"drop_off_type"`
	ShapeDistTraveled string `csv:"shape_dist_traveled"`
	Timepoint         string `csv:"timepoint"`
}

func (l *loader) parseStopTimes(data io.Reader) error {
	untimed := 0

	err := decode(l, KindStopTimes, data, func(st *StopTimeCSV) error {
		if st.TripID == "" {
			return errors.New("empty trip_id")
		}
		if st.StopID == "" {
			return errors.Errorf("empty stop_id for trip_id '%s'", st.TripID)
		}

		seq, err := strconv.ParseUint(st.StopSequence, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parsing stop_sequence for trip_id '%s'", st.TripID)
		}

		// Only timepoints are required to have times. The rest
		// can't be merged meaningfully.
		if st.ArrivalTime == "" || st.DepartureTime == "" {
			untimed++
			return nil
		}

		l.feed.StopTimes = append(l.feed.StopTimes, model.StopTime{
			TripID:            st.TripID,
			Arrival:           st.ArrivalTime,
			Departure:         st.DepartureTime,
			StopID:            l.prefix(st.StopID),
			StopSequence:      uint32(seq),
			Headsign:          st.Headsign,
			PickupType:        st.PickupType,
			DropOffType:       st.DropOffType,
			ShapeDistTraveled: st.ShapeDistTraveled,
			Timepoint:         st.Timepoint,
		})

		return nil
	})
	if err != nil {
		return err
	}

	if untimed > 0 {
		l.log.Debug("dropped stop_times without times", "count", untimed)
	}

	return nil
}
