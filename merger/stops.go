package merger

import (
	"context"
	"fmt"
	"math"

	"tidbyt.dev/gtfsmerge/model"
)

const (
	DefaultTransferDistance = 1000 // metres
	DefaultWalkingPace      = 0.72 // seconds per metre

	minTransferTime = 60 // seconds
)

type TransferConfig struct {
	// Stops closer than this many metres get a transfer between them.
	// Zero disables synthesized transfers.
	Distance float64

	// Seconds per metre walked, used for the min_transfer_time of
	// synthesized transfers.
	WalkingPace float64

	// Latitude the distance projection is centered on. Zero means the
	// latitude of the first stop with coordinates.
	ReferenceLatitude float64
}

type seenStop struct {
	id       string
	lat, lon float64
	located  bool
}

// StopsAndTransfersMerger writes stops and transfers, and adds
// walking transfers between stops that are close to each other.
//
// Child stops (those with a parent_station) are not written; their
// stop_times are expected to point at the parent instead. Every other
// stop is compared against all stops written before it, including
// those from earlier feeds.
type StopsAndTransfersMerger struct {
	writer StopWriter
	config TransferConfig
	ruler  *FlatEarth

	// Directed pairs with a transfer, from_stop_id -> to_stop_id.
	transfers map[string]map[string]bool

	seen      []seenStop
	seenIndex map[string]int
}

func NewStopsAndTransfersMerger(writer StopWriter, config TransferConfig) *StopsAndTransfersMerger {
	if config.WalkingPace <= 0 {
		config.WalkingPace = DefaultWalkingPace
	}

	m := &StopsAndTransfersMerger{
		writer:    writer,
		config:    config,
		transfers: map[string]map[string]bool{},
		seenIndex: map[string]int{},
	}
	if config.ReferenceLatitude != 0 {
		m.ruler = NewFlatEarth(config.ReferenceLatitude)
	}

	return m
}

// Returns a map from child stop_id to parent_station for the child
// stops encountered.
func (m *StopsAndTransfersMerger) Merge(
	ctx context.Context,
	stops []model.Stop,
	transfers []model.Transfer,
) (map[string]string, error) {
	for _, t := range transfers {
		err := m.writer.WriteTransfer(ctx, &t)
		if err != nil {
			return nil, fmt.Errorf("writing transfer: %w", err)
		}
		m.addTransfer(t.FromStopID, t.ToStopID)
	}

	parents := map[string]string{}

	for _, stop := range stops {
		if stop.ParentStation != "" {
			parents[stop.ID] = stop.ParentStation
			continue
		}

		err := m.writer.WriteStop(ctx, &stop)
		if err != nil {
			return nil, fmt.Errorf("writing stop: %w", err)
		}

		// The output keeps the first row per stop_id, so repeats
		// are measured from where that row put the stop.
		if i, found := m.seenIndex[stop.ID]; found {
			if !m.seen[i].located {
				continue
			}
			stop.Lat, stop.Lon = m.seen[i].lat, m.seen[i].lon
		} else {
			m.remember(&stop)
		}

		if m.config.Distance <= 0 || !stop.Located() {
			continue
		}

		err = m.connect(ctx, &stop)
		if err != nil {
			return nil, err
		}
	}

	return parents, nil
}

// Adds transfers between stop and every close stop seen before it.
func (m *StopsAndTransfersMerger) connect(ctx context.Context, stop *model.Stop) error {
	if m.ruler == nil {
		m.ruler = NewFlatEarth(stop.Lat)
	}

	for _, other := range m.seen {
		if other.id == stop.ID || !other.located {
			continue
		}

		distance := m.ruler.Distance(stop.Lat, stop.Lon, other.lat, other.lon)
		if !(distance < m.config.Distance) {
			continue
		}
		if m.hasTransfer(stop.ID, other.id) && m.hasTransfer(other.id, stop.ID) {
			continue
		}

		duration := int(math.Max(minTransferTime, math.Round(distance*m.config.WalkingPace)))

		for _, t := range []model.Transfer{
			{FromStopID: stop.ID, ToStopID: other.id},
			{FromStopID: other.id, ToStopID: stop.ID},
		} {
			t.TransferType = model.TransferTypeMinTime
			t.MinTransferTime = duration
			err := m.writer.WriteTransfer(ctx, &t)
			if err != nil {
				return fmt.Errorf("writing transfer: %w", err)
			}
			m.addTransfer(t.FromStopID, t.ToStopID)
		}
	}

	return nil
}

func (m *StopsAndTransfersMerger) remember(stop *model.Stop) {
	m.seenIndex[stop.ID] = len(m.seen)
	m.seen = append(m.seen, seenStop{
		id:      stop.ID,
		lat:     stop.Lat,
		lon:     stop.Lon,
		located: stop.Located(),
	})
}

func (m *StopsAndTransfersMerger) addTransfer(from, to string) {
	if m.transfers[from] == nil {
		m.transfers[from] = map[string]bool{}
	}
	m.transfers[from][to] = true
}

func (m *StopsAndTransfersMerger) hasTransfer(from, to string) bool {
	return m.transfers[from][to]
}
