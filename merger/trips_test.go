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

func TestTripsMerger(t *testing.T) {
	ctx := context.Background()
	w := storage.NewMemoryFeedWriter()
	m := merger.NewTripsMerger(w)

	serviceIDs := map[string]string{"wk": "7"}
	routeIDs := map[string]string{"r": "3"}

	tripIDs, err := m.Merge(ctx, []model.Trip{
		{ID: "t1", RouteID: "r", ServiceID: "wk", Headsign: "North"},
		{ID: "t2", RouteID: "excluded", ServiceID: "wk"},
		{ID: "t3", RouteID: "r", ServiceID: "expired"},
		{ID: "t4", RouteID: "r", ServiceID: "wk", Headsign: "South"},
	}, serviceIDs, routeIDs)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"t1": "1", "t4": "2"}, tripIDs)
	assert.Equal(t, []model.Trip{
		{ID: "1", RouteID: "3", ServiceID: "7", Headsign: "North"},
		{ID: "2", RouteID: "3", ServiceID: "7", Headsign: "South"},
	}, w.Trips)

	// IDs keep counting in later feeds.
	tripIDs, err = m.Merge(ctx, []model.Trip{
		{ID: "t1", RouteID: "r", ServiceID: "wk"},
	}, serviceIDs, routeIDs)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t1": "3"}, tripIDs)
}
