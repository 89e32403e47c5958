package merger

import (
	"context"
	"fmt"

	"tidbyt.dev/gtfsmerge/model"
)

// StopTimesMerger rewrites stop_times onto the merged trips, pointing
// them at parent stations where there are any.
type StopTimesMerger struct {
	writer StopTimeWriter
}

func NewStopTimesMerger(writer StopTimeWriter) *StopTimesMerger {
	return &StopTimesMerger{writer: writer}
}

// Returns the set of stop_ids referenced by the written stop_times.
func (m *StopTimesMerger) Merge(
	ctx context.Context,
	stopTimes []model.StopTime,
	tripIDs map[string]string,
	parentStops map[string]string,
) (map[string]bool, error) {
	used := map[string]bool{}

	for _, st := range stopTimes {
		tripID, found := tripIDs[st.TripID]
		if !found {
			continue
		}

		st.TripID = tripID
		if parent, found := parentStops[st.StopID]; found {
			st.StopID = parent
		}
		used[st.StopID] = true

		err := m.writer.WriteStopTime(ctx, &st)
		if err != nil {
			return nil, fmt.Errorf("writing stop time: %w", err)
		}
	}

	return used, nil
}
