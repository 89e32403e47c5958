package model

import (
	"math"
	"time"
)

// Holds all row types read from and written to GTFS feeds. Field
// order matches the column order of the merged output, and the csv
// tags double as the output headers.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

type ExceptionType int8

const (
	ExceptionTypeAdded   ExceptionType = 1
	ExceptionTypeRemoved ExceptionType = 2
)

type TransferType int

const (
	TransferTypeRecommended TransferType = 0
	TransferTypeTimed       TransferType = 1
	TransferTypeMinTime     TransferType = 2
	TransferTypeNotPossible TransferType = 3
)

type Agency struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
	Lang     string `csv:"agency_lang"`
	Phone    string `csv:"agency_phone"`
	FareURL  string `csv:"agency_fare_url"`
}

type Route struct {
	ID        string    `csv:"route_id"`
	AgencyID  string    `csv:"agency_id"`
	ShortName string    `csv:"route_short_name"`
	LongName  string    `csv:"route_long_name"`
	Type      RouteType `csv:"route_type"`
	TextColor string    `csv:"route_text_color"`
	Color     string    `csv:"route_color"`
	URL       string    `csv:"route_url"`
	Desc      string    `csv:"route_desc"`
}

type Trip struct {
	RouteID              string `csv:"route_id"`
	ServiceID            string `csv:"service_id"`
	ID                   string `csv:"trip_id"`
	Headsign             string `csv:"trip_headsign"`
	ShortName            string `csv:"trip_short_name"`
	DirectionID          string `csv:"direction_id"`
	WheelchairAccessible string `csv:"wheelchair_accessible"`
	BikesAllowed         string `csv:"bikes_allowed"`
}

type StopTime struct {
	TripID            string `csv:"trip_id"`
	Arrival           string `csv:"arrival_time"`
	Departure         string `csv:"departure_time"`
	StopID            string `csv:"stop_id"`
	StopSequence      uint32 `csv:"stop_sequence"`
	Headsign          string `csv:"stop_headsign"`
	PickupType        string `csv:"pickup_type"`
	DropOffType       string `csv:"drop_off_type"`
	ShapeDistTraveled string `csv:"shape_dist_traveled"`
	Timepoint         string `csv:"timepoint"`
}

type Stop struct {
	ID                 string       `csv:"stop_id"`
	Code               string       `csv:"stop_code"`
	Name               string       `csv:"stop_name"`
	Desc               string       `csv:"stop_desc"`
	Lat                float64      `csv:"stop_lat"`
	Lon                float64      `csv:"stop_lon"`
	ZoneID             string       `csv:"zone_id"`
	URL                string       `csv:"stop_url"`
	LocationType       LocationType `csv:"location_type"`
	ParentStation      string       `csv:"parent_station"`
	Timezone           string       `csv:"stop_timezone"`
	WheelchairBoarding string       `csv:"wheelchair_boarding"`
}

// Located reports whether the stop has usable coordinates. Feeds use
// 0,0 for "unknown".
func (s *Stop) Located() bool {
	if s.Lat == 0 || s.Lon == 0 {
		return false
	}
	return math.Abs(s.Lat) <= 90 && math.Abs(s.Lon) <= 180
}

type Calendar struct {
	ServiceID string `csv:"service_id"`
	Monday    int8   `csv:"monday"`
	Tuesday   int8   `csv:"tuesday"`
	Wednesday int8   `csv:"wednesday"`
	Thursday  int8   `csv:"thursday"`
	Friday    int8   `csv:"friday"`
	Saturday  int8   `csv:"saturday"`
	Sunday    int8   `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

func (c *Calendar) day(weekday time.Weekday) *int8 {
	switch weekday {
	case time.Monday:
		return &c.Monday
	case time.Tuesday:
		return &c.Tuesday
	case time.Wednesday:
		return &c.Wednesday
	case time.Thursday:
		return &c.Thursday
	case time.Friday:
		return &c.Friday
	case time.Saturday:
		return &c.Saturday
	default:
		return &c.Sunday
	}
}

// Runs reports whether the weekly pattern includes the weekday.
func (c *Calendar) Runs(weekday time.Weekday) bool {
	return *c.day(weekday) == 1
}

func (c *Calendar) SetRuns(weekday time.Weekday, runs bool) {
	if runs {
		*c.day(weekday) = 1
	} else {
		*c.day(weekday) = 0
	}
}

// RunsAnyDay is false for calendars that only exist to anchor
// calendar_dates exceptions.
func (c *Calendar) RunsAnyDay() bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if c.Runs(d) {
			return true
		}
	}
	return false
}

type CalendarDate struct {
	ServiceID     string        `csv:"service_id"`
	Date          string        `csv:"date"`
	ExceptionType ExceptionType `csv:"exception_type"`
}

type Transfer struct {
	FromStopID      string       `csv:"from_stop_id"`
	ToStopID        string       `csv:"to_stop_id"`
	TransferType    TransferType `csv:"transfer_type"`
	MinTransferTime int          `csv:"min_transfer_time"`
}
