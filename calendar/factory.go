package calendar

import (
	"fmt"
	"sort"
	"time"

	"tidbyt.dev/gtfsmerge/model"
)

// FromDates turns a list of calendar_dates records into a weekly
// calendar plus the fewest exceptions that reproduce the same
// service days.
//
// Every date between the first and last record is bucketed per
// weekday as running (an added record exists for it) or not
// running. A weekday is enabled if it runs on more of its dates than
// not; the minority dates of each weekday become exceptions. Ties
// leave the weekday disabled.
func FromDates(serviceID string, dates []model.CalendarDate) (model.Calendar, []model.CalendarDate, error) {
	if len(dates) == 0 {
		return model.Calendar{}, nil, fmt.Errorf("no dates for service_id '%s'", serviceID)
	}

	sorted := make([]model.CalendarDate, len(dates))
	copy(sorted, dates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	running := map[string]bool{}
	for _, cd := range sorted {
		if cd.ExceptionType == model.ExceptionTypeAdded {
			running[cd.Date] = true
		}
	}

	var daysRunning, daysNotRunning [7][]string

	cal := model.Calendar{
		ServiceID: serviceID,
		StartDate: sorted[0].Date,
		EndDate:   sorted[len(sorted)-1].Date,
	}

	err := EachDate(cal.StartDate, cal.EndDate, func(date string, weekday time.Weekday) {
		if running[date] {
			daysRunning[weekday] = append(daysRunning[weekday], date)
		} else {
			daysNotRunning[weekday] = append(daysNotRunning[weekday], date)
		}
	})
	if err != nil {
		return model.Calendar{}, nil, fmt.Errorf("walking dates for service_id '%s': %w", serviceID, err)
	}

	exceptions := []model.CalendarDate{}
	for weekday := time.Sunday; weekday <= time.Saturday; weekday++ {
		runs := len(daysRunning[weekday]) > len(daysNotRunning[weekday])
		cal.SetRuns(weekday, runs)

		if runs {
			for _, date := range daysNotRunning[weekday] {
				exceptions = append(exceptions, model.CalendarDate{
					ServiceID:     serviceID,
					Date:          date,
					ExceptionType: model.ExceptionTypeRemoved,
				})
			}
		} else {
			for _, date := range daysRunning[weekday] {
				exceptions = append(exceptions, model.CalendarDate{
					ServiceID:     serviceID,
					Date:          date,
					ExceptionType: model.ExceptionTypeAdded,
				})
			}
		}
	}

	sort.SliceStable(exceptions, func(i, j int) bool {
		return exceptions[i].Date < exceptions[j].Date
	})

	return cal, exceptions, nil
}

// ActiveDates expands a calendar and its exceptions into the set of
// dates on which the service runs. Exceptions outside the calendar's
// range are honored too.
func ActiveDates(cal model.Calendar, exceptions []model.CalendarDate) (map[string]bool, error) {
	active := map[string]bool{}

	err := EachDate(cal.StartDate, cal.EndDate, func(date string, weekday time.Weekday) {
		if cal.Runs(weekday) {
			active[date] = true
		}
	})
	if err != nil {
		return nil, err
	}

	for _, cd := range exceptions {
		switch cd.ExceptionType {
		case model.ExceptionTypeAdded:
			active[cd.Date] = true
		case model.ExceptionTypeRemoved:
			delete(active, cd.Date)
		}
	}

	return active, nil
}
