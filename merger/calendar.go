package merger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tidbyt.dev/gtfsmerge/calendar"
	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/sequence"
)

// CalendarMerger collapses services with identical schedules into a
// single service_id.
//
// Two services are identical when their weekly pattern, date range
// and exceptions all match. The first occurrence is written under a
// new service_id; later ones are only mapped to it.
type CalendarMerger struct {
	writer CalendarWriter
	ids    *sequence.Memoized
}

func NewCalendarMerger(writer CalendarWriter) *CalendarMerger {
	return &CalendarMerger{
		writer: writer,
		ids:    sequence.NewMemoized(),
	}
}

// Merge writes the feed's services and returns a map from the feed's
// service_ids to output service_ids.
//
// Services with calendar_dates but no calendar.txt entry get a weekly
// pattern derived from their dates. These are handled after all the
// explicit calendars.
func (m *CalendarMerger) Merge(
	ctx context.Context,
	calendars []model.Calendar,
	dates *calendar.DateIndex,
) (map[string]string, error) {
	serviceIDs := map[string]string{}

	for _, cal := range calendars {
		id, err := m.merge(ctx, cal, dates.Get(cal.ServiceID))
		if err != nil {
			return nil, err
		}
		serviceIDs[cal.ServiceID] = id
	}

	for _, serviceID := range dates.ServiceIDs() {
		if _, found := serviceIDs[serviceID]; found {
			continue
		}

		cal, exceptions, err := calendar.FromDates(serviceID, dates.Get(serviceID))
		if err != nil {
			return nil, fmt.Errorf("building calendar: %w", err)
		}

		id, err := m.merge(ctx, cal, exceptions)
		if err != nil {
			return nil, err
		}
		serviceIDs[serviceID] = id
	}

	return serviceIDs, nil
}

func (m *CalendarMerger) merge(
	ctx context.Context,
	cal model.Calendar,
	exceptions []model.CalendarDate,
) (string, error) {
	hash := calendarHash(cal, exceptions)
	seen := m.ids.HaveSeen(hash)
	id := strconv.Itoa(m.ids.Get(hash))
	if seen {
		return id, nil
	}

	cal.ServiceID = id
	err := m.writer.WriteCalendar(ctx, &cal)
	if err != nil {
		return "", fmt.Errorf("writing calendar: %w", err)
	}

	for _, cd := range exceptions {
		cd.ServiceID = id
		err = m.writer.WriteCalendarDate(ctx, &cd)
		if err != nil {
			return "", fmt.Errorf("writing calendar date: %w", err)
		}
	}

	return id, nil
}

// Everything but the service_id, with exceptions in date order.
func calendarHash(cal model.Calendar, exceptions []model.CalendarDate) string {
	summary := make([]string, 0, len(exceptions))
	for _, cd := range exceptions {
		summary = append(summary, fmt.Sprintf("%s_%d", cd.Date, cd.ExceptionType))
	}
	sort.Strings(summary)

	return fmt.Sprintf(
		"%d%d%d%d%d%d%d_%s_%s_%s",
		cal.Monday,
		cal.Tuesday,
		cal.Wednesday,
		cal.Thursday,
		cal.Friday,
		cal.Saturday,
		cal.Sunday,
		cal.StartDate,
		cal.EndDate,
		strings.Join(summary, ","),
	)
}
