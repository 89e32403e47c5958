package merger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsmerge/merger"
	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/storage"
)

func TestStopTimesMerger(t *testing.T) {
	w := storage.NewMemoryFeedWriter()
	m := merger.NewStopTimesMerger(w)

	used, err := m.Merge(context.Background(), []model.StopTime{
		{TripID: "a", StopID: "platform1", StopSequence: 1, Arrival: "08:00:00", Departure: "08:00:00"},
		{TripID: "a", StopID: "street", StopSequence: 2, Arrival: "08:05:00", Departure: "08:06:00"},
		{TripID: "gone", StopID: "elsewhere", StopSequence: 1, Arrival: "09:00:00", Departure: "09:00:00"},
		{TripID: "b", StopID: "platform2", StopSequence: 1, Arrival: "10:00:00", Departure: "10:00:00"},
	}, map[string]string{
		"a": "1",
		"b": "2",
	}, map[string]string{
		"platform1": "station",
		"platform2": "station",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"station": true, "street": true}, used)
	assert.Equal(t, []model.StopTime{
		{TripID: "1", StopID: "station", StopSequence: 1, Arrival: "08:00:00", Departure: "08:00:00"},
		{TripID: "1", StopID: "street", StopSequence: 2, Arrival: "08:05:00", Departure: "08:06:00"},
		{TripID: "2", StopID: "station", StopSequence: 1, Arrival: "10:00:00", Departure: "10:00:00"},
	}, w.StopTimes)
}

func TestGenericMerger(t *testing.T) {
	w := storage.NewMemoryFeedWriter()
	m := merger.NewGenericMerger(w.WriteAgency)

	agencies := []model.Agency{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	}
	require.NoError(t, m.Merge(context.Background(), agencies))
	assert.Equal(t, agencies, w.Agencies)
}
