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

func TestRouteMerger(t *testing.T) {
	ctx := context.Background()
	w := storage.NewMemoryFeedWriter()
	m := merger.NewRouteMerger(w, []model.RouteType{model.RouteTypeFerry, model.RouteTypeCable})

	first, err := m.Merge(ctx, []model.Route{
		{ID: "red", ShortName: "Red", Type: model.RouteTypeSubway},
		{ID: "boat", ShortName: "Boat", Type: model.RouteTypeFerry},
		{ID: "1", ShortName: "1", Type: model.RouteTypeBus},
	})
	require.NoError(t, err)

	second, err := m.Merge(ctx, []model.Route{
		{ID: "red", ShortName: "Red", Type: model.RouteTypeSubway},
		{ID: "car", ShortName: "Car", Type: model.RouteTypeCable},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"red": "1", "1": "2"}, first)
	assert.Equal(t, map[string]string{"red": "3"}, second)

	assert.Equal(t, []model.Route{
		{ID: "1", ShortName: "Red", Type: model.RouteTypeSubway},
		{ID: "2", ShortName: "1", Type: model.RouteTypeBus},
		{ID: "3", ShortName: "Red", Type: model.RouteTypeSubway},
	}, w.Routes)
}

func TestRouteMergerNothingExcluded(t *testing.T) {
	w := storage.NewMemoryFeedWriter()
	m := merger.NewRouteMerger(w, nil)

	routeIDs, err := m.Merge(context.Background(), []model.Route{
		{ID: "a", Type: model.RouteTypeTram},
		{ID: "b", Type: model.RouteTypeFerry},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, routeIDs)
}
