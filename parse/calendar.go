package parse

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"tidbyt.dev/gtfsmerge/calendar"
	"tidbyt.dev/gtfsmerge/model"
)

type CalendarCSV struct {
	ServiceID string `csv:"service_id"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

func parseDay(s string) (int8, error) {
	switch s {
	case "", "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, errors.Errorf("invalid day value '%s'", s)
}

func (l *loader) parseCalendar(data io.Reader) error {
	return decode(l, KindCalendar, data, func(c *CalendarCSV) error {
		if c.ServiceID == "" {
			return errors.New("empty service_id")
		}

		cal := model.Calendar{
			ServiceID: c.ServiceID,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
		}

		for _, day := range []struct {
			name  string
			value string
			field *int8
		}{
			{"monday", c.Monday, &cal.Monday},
			{"tuesday", c.Tuesday, &cal.Tuesday},
			{"wednesday", c.Wednesday, &cal.Wednesday},
			{"thursday", c.Thursday, &cal.Thursday},
			{"friday", c.Friday, &cal.Friday},
			{"saturday", c.Saturday, &cal.Saturday},
			{"sunday", c.Sunday, &cal.Sunday},
		} {
			v, err := parseDay(day.value)
			if err != nil {
				return errors.Wrapf(err, "parsing %s for service_id '%s'", day.name, c.ServiceID)
			}
			*day.field = v
		}

		start, err := calendar.ParseDate(c.StartDate)
		if err != nil {
			return errors.Wrapf(err, "service_id '%s'", c.ServiceID)
		}
		end, err := calendar.ParseDate(c.EndDate)
		if err != nil {
			return errors.Wrapf(err, "service_id '%s'", c.ServiceID)
		}
		if end.Before(start) {
			return errors.Errorf("end_date before start_date for service_id '%s'", c.ServiceID)
		}

		// Calendars without any weekday only anchor calendar
		// dates. Those dates are turned into a calendar of their
		// own when merging.
		if !cal.RunsAnyDay() {
			return nil
		}

		if l.opts.FilterBefore != "" && cal.EndDate < l.opts.FilterBefore {
			return nil
		}

		l.feed.Calendars = append(l.feed.Calendars, cal)
		return nil
	})
}

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType string `csv:"exception_type"`
}

func (l *loader) parseCalendarDates(data io.Reader) error {
	return decode(l, KindCalendarDates, data, func(cd *CalendarDateCSV) error {
		if cd.ServiceID == "" {
			return errors.New("empty service_id")
		}

		_, err := calendar.ParseDate(cd.Date)
		if err != nil {
			return errors.Wrapf(err, "service_id '%s'", cd.ServiceID)
		}

		exceptionType, err := strconv.Atoi(cd.ExceptionType)
		if err != nil {
			return errors.Wrapf(err, "parsing exception_type for service_id '%s'", cd.ServiceID)
		}
		if exceptionType != int(model.ExceptionTypeAdded) && exceptionType != int(model.ExceptionTypeRemoved) {
			return errors.Errorf("invalid exception_type %d for service_id '%s'", exceptionType, cd.ServiceID)
		}

		if l.opts.FilterBefore != "" && cd.Date < l.opts.FilterBefore {
			return nil
		}

		l.feed.CalendarDates.Add(model.CalendarDate{
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: model.ExceptionType(exceptionType),
		})
		return nil
	})
}
