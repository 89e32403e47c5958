package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/testutil"
)

func load(t *testing.T, files map[string][]string, opts Options) *Feed {
	opts.Logger = testutil.DiscardLogger()
	feed, err := Load(testutil.BuildZip(t, files), opts)
	require.NoError(t, err)
	return feed
}

func TestLoadNoFeedFiles(t *testing.T) {
	_, err := Load(testutil.BuildZip(t, map[string][]string{
		"README": {"hello"},
	}), Options{Logger: testutil.DiscardLogger()})
	assert.ErrorIs(t, err, ErrNoFeedFiles)

	_, err = Load([]byte("not a zip"), Options{})
	assert.Error(t, err)
}

func TestLoadSubdirectory(t *testing.T) {
	feed := load(t, map[string][]string{
		"gtfs/routes.txt": {
			"route_id,route_type",
			"r,3",
		},
	}, Options{})

	assert.Equal(t, []model.Route{{ID: "r", Type: model.RouteTypeBus}}, feed.Routes)
}

func TestLoadEmptyFile(t *testing.T) {
	feed := load(t, map[string][]string{
		"stops.txt":  {},
		"routes.txt": {"route_id,route_type"},
	}, Options{})

	assert.Empty(t, feed.Stops)
	assert.Empty(t, feed.Routes)
}

func TestLoadFeed(t *testing.T) {
	feed := load(t, testutil.CompleteFeed(map[string][]string{
		"routes.txt": {
			"route_id,agency_id,route_short_name,route_long_name,route_type,route_color",
			"r1,a,1,One,3,FF0000",
			"r2,a,2,Two,bus,00FF00",
			",a,3,Three,3,",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,trip_headsign,direction_id",
			"r1,wk,t1,North,0",
			"r1,wk,,South,1",
			"r1,,t3,South,1",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,0,0,20240101,20241231",
			"bad,1,1,1,1,1,0,2,20240101,20241231",
			"backwards,1,1,1,1,1,0,0,20241231,20240101",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon,location_type",
			"s1,One,51.5,-0.1,0",
			"s2,Two,north,-0.1,0",
			"s3,Three,,,",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t1,08:00:00,08:00:00,s1,1",
			"t1,,,s3,2",
			"t1,08:10:00,08:10:00,s3,third",
			"t1,08:20:00,08:21:00,s3,4",
		},
	}), Options{})

	assert.Equal(t, []model.Agency{{
		ID:       "a",
		Name:     "FooAgency",
		URL:      "http://example.com",
		Timezone: "UTC",
	}}, feed.Agencies)

	assert.Equal(t, []model.Route{{
		ID:        "r1",
		AgencyID:  "a",
		ShortName: "1",
		LongName:  "One",
		Type:      model.RouteTypeBus,
		Color:     "FF0000",
	}}, feed.Routes)

	assert.Equal(t, []model.Trip{{
		RouteID:     "r1",
		ServiceID:   "wk",
		ID:          "t1",
		Headsign:    "North",
		DirectionID: "0",
	}}, feed.Trips)

	assert.Equal(t, []model.Calendar{{
		ServiceID: "wk",
		Monday:    1,
		Tuesday:   1,
		Wednesday: 1,
		Thursday:  1,
		Friday:    1,
		StartDate: "20240101",
		EndDate:   "20241231",
	}}, feed.Calendars)

	assert.Equal(t, []model.Stop{
		{ID: "s1", Name: "One", Lat: 51.5, Lon: -0.1},
		{ID: "s3", Name: "Three"},
	}, feed.Stops)

	assert.Equal(t, []model.StopTime{
		{TripID: "t1", Arrival: "08:00:00", Departure: "08:00:00", StopID: "s1", StopSequence: 1},
		{TripID: "t1", Arrival: "08:20:00", Departure: "08:21:00", StopID: "s3", StopSequence: 4},
	}, feed.StopTimes)
}

func TestLoadStopPrefix(t *testing.T) {
	feed := load(t, map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon,location_type,parent_station",
			"station,Central,51.5,-0.1,1,",
			"p1,Platform 1,51.5,-0.1,0,station",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,08:00:00,08:00:00,p1,1",
		},
		"transfers.txt": {
			"from_stop_id,to_stop_id,transfer_type,min_transfer_time",
			"p1,station,2,60",
		},
	}, Options{StopPrefix: "x:"})

	assert.Equal(t, "x:station", feed.Stops[0].ID)
	assert.Equal(t, "x:p1", feed.Stops[1].ID)
	assert.Equal(t, "x:station", feed.Stops[1].ParentStation)
	assert.Equal(t, "x:p1", feed.StopTimes[0].StopID)
	assert.Equal(t, []model.Transfer{{
		FromStopID:      "x:p1",
		ToStopID:        "x:station",
		TransferType:    model.TransferTypeMinTime,
		MinTransferTime: 60,
	}}, feed.Transfers)
	assert.Equal(t, map[string]string{"x:p1": "x:station"}, feed.ParentStops)
}

func TestLoadDateFilter(t *testing.T) {
	files := map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"old,1,1,1,1,1,0,0,20230101,20231231",
			"current,1,1,1,1,1,0,0,20240101,20241231",
			"anchor,0,0,0,0,0,0,0,20240101,20241231",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"old,20231225,2",
			"current,20240101,2",
			"anchor,20240704,1",
			"anchor,20230704,1",
			"current,not-a-date,1",
			"current,20240102,3",
		},
	}

	for _, tc := range []struct {
		name      string
		cutoff    string
		calendars []string
		dates     map[string][]string
	}{
		{
			"no_cutoff",
			"",
			[]string{"old", "current"},
			map[string][]string{
				"old":     {"20231225"},
				"current": {"20240101"},
				"anchor":  {"20240704", "20230704"},
			},
		},
		{
			"cutoff",
			"20240101",
			[]string{"current"},
			map[string][]string{
				"current": {"20240101"},
				"anchor":  {"20240704"},
			},
		},
		{
			"cutoff_after_everything",
			"20250101",
			[]string{},
			map[string][]string{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			feed := load(t, files, Options{FilterBefore: tc.cutoff})

			calendars := []string{}
			for _, c := range feed.Calendars {
				calendars = append(calendars, c.ServiceID)
			}
			assert.Equal(t, tc.calendars, calendars)

			dates := map[string][]string{}
			for _, serviceID := range feed.CalendarDates.ServiceIDs() {
				for _, cd := range feed.CalendarDates.Get(serviceID) {
					dates[serviceID] = append(dates[serviceID], cd.Date)
				}
			}
			assert.Equal(t, tc.dates, dates)
		})
	}
}

func TestLoadTransfers(t *testing.T) {
	feed := load(t, map[string][]string{
		"transfers.txt": {
			"from_stop_id,to_stop_id,transfer_type,min_transfer_time",
			"a,b,2,300",
			"b,a,2,300",
			"a,b,2,120",
			"a,b,2,600",
			"a,c,1,",
			",c,1,",
		},
		"links.txt": {
			"from_stop_id,to_stop_id,duration,mode",
			"c,d,240,walk",
			"b,a,90,walk",
			"d,c,ten,walk",
		},
	}, Options{})

	assert.Equal(t, []model.Transfer{
		{FromStopID: "a", ToStopID: "b", TransferType: model.TransferTypeMinTime, MinTransferTime: 120},
		{FromStopID: "b", ToStopID: "a", TransferType: model.TransferTypeMinTime, MinTransferTime: 90},
		{FromStopID: "a", ToStopID: "c", TransferType: model.TransferTypeTimed},
		{FromStopID: "c", ToStopID: "d", TransferType: model.TransferTypeMinTime, MinTransferTime: 240},
	}, feed.Transfers)
}

func TestLoadSloppyCSV(t *testing.T) {
	feed := load(t, map[string][]string{
		"stops.txt": {
			"\ufeffstop_id, stop_name,stop_lat,stop_lon",
			`s1, "Main St, North",51.5,-0.1`,
			`s2,Short row`,
			`s3,"Quote "in" name",51.6,-0.2`,
		},
	}, Options{})

	require.Equal(t, 3, len(feed.Stops))
	assert.Equal(t, model.Stop{ID: "s1", Name: "Main St, North", Lat: 51.5, Lon: -0.1}, feed.Stops[0])
	assert.Equal(t, model.Stop{ID: "s2", Name: "Short row"}, feed.Stops[1])
	assert.Equal(t, "s3", feed.Stops[2].ID)
	assert.Equal(t, 51.6, feed.Stops[2].Lat)
}

func TestResolveParents(t *testing.T) {
	stops := []model.Stop{
		{ID: "station"},
		{ID: "platform", ParentStation: "station"},
		{ID: "boarding", ParentStation: "platform"},
		{ID: "orphan", ParentStation: "nowhere"},
		{ID: "self", ParentStation: "self"},
		{ID: "loop1", ParentStation: "loop2"},
		{ID: "loop2", ParentStation: "loop1"},
	}

	parents := resolveParents(stops, testutil.DiscardLogger())

	assert.Equal(t, map[string]string{
		"platform": "station",
		"boarding": "station",
		"loop1":    "loop2",
		"loop2":    "loop1",
	}, parents)

	// Broken references are dropped from the stops themselves.
	assert.Equal(t, "", stops[3].ParentStation)
	assert.Equal(t, "", stops[4].ParentStation)
	assert.Equal(t, "platform", stops[2].ParentStation)
}

func TestKindFiles(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range kinds {
		name := k.File()
		assert.NotEqual(t, "", name)
		assert.False(t, seen[name], name)
		seen[name] = true
	}
	assert.Equal(t, "", Kind(-1).File())
}

func TestDecodeReportsRowErrors(t *testing.T) {
	l := newLoader(Options{Logger: testutil.DiscardLogger()})

	require.NoError(t, l.parseRoutes(bytes.NewBufferString(
		"route_id,route_type\nr1,3\nr2,\nr3,2\n",
	)))
	assert.Equal(t, []model.Route{
		{ID: "r1", Type: model.RouteTypeBus},
		{ID: "r3", Type: model.RouteTypeRail},
	}, l.feed.Routes)
}

func TestLoadStopCoordinatesOutOfRange(t *testing.T) {
	feed := load(t, map[string][]string{
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"ok,51.5,-0.1",
			"edge,-90,180",
			"unknown,,",
			"huge,51.5,1e300",
			"inf,51.5,Inf",
			"nan,NaN,NaN",
			"lat,90.5,10",
			"lon,10,-180.5",
		},
	}, Options{})

	assert.Equal(t, []model.Stop{
		{ID: "ok", Lat: 51.5, Lon: -0.1},
		{ID: "edge", Lat: -90, Lon: 180},
		{ID: "unknown"},
	}, feed.Stops)
}
