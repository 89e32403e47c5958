package calendar

import (
	"tidbyt.dev/gtfsmerge/model"
)

// DateIndex groups calendar_dates records by service_id, remembering
// the order in which service_ids first appeared.
type DateIndex struct {
	order []string
	dates map[string][]model.CalendarDate
	count int
}

func NewDateIndex() *DateIndex {
	return &DateIndex{dates: map[string][]model.CalendarDate{}}
}

func (d *DateIndex) Add(cd model.CalendarDate) {
	if _, found := d.dates[cd.ServiceID]; !found {
		d.order = append(d.order, cd.ServiceID)
	}
	d.dates[cd.ServiceID] = append(d.dates[cd.ServiceID], cd)
	d.count++
}

// Records for a service_id, in the order they were added. Nil if
// there are none.
func (d *DateIndex) Get(serviceID string) []model.CalendarDate {
	if d == nil {
		return nil
	}
	return d.dates[serviceID]
}

func (d *DateIndex) ServiceIDs() []string {
	if d == nil {
		return nil
	}
	return d.order
}

// Total number of records.
func (d *DateIndex) Len() int {
	if d == nil {
		return 0
	}
	return d.count
}
