package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"tidbyt.dev/gtfsmerge/model"
)

// Shared implementation of the SQLite and Postgres FeedWriters.
//
// The whole merge is written in a single transaction: Close()
// commits it and Abort() rolls it back, so an aborted run never
// leaves half a feed behind. Inserts go through one prepared
// statement per table; a mutex serializes them since a transaction
// is bound to a single connection.

type sqlColumn struct {
	name string
	kind string // "text", "int" or "real"
}

type sqlTable struct {
	name    string
	columns []sqlColumn
}

var (
	agencyTable = sqlTable{"agency", []sqlColumn{
		{"agency_id", "text"},
		{"agency_name", "text"},
		{"agency_url", "text"},
		{"agency_timezone", "text"},
		{"agency_lang", "text"},
		{"agency_phone", "text"},
		{"agency_fare_url", "text"},
	}}
	routesTable = sqlTable{"routes", []sqlColumn{
		{"route_id", "text"},
		{"agency_id", "text"},
		{"route_short_name", "text"},
		{"route_long_name", "text"},
		{"route_type", "int"},
		{"route_text_color", "text"},
		{"route_color", "text"},
		{"route_url", "text"},
		{"route_desc", "text"},
	}}
	tripsTable = sqlTable{"trips", []sqlColumn{
		{"route_id", "text"},
		{"service_id", "text"},
		{"trip_id", "text"},
		{"trip_headsign", "text"},
		{"trip_short_name", "text"},
		{"direction_id", "text"},
		{"wheelchair_accessible", "text"},
		{"bikes_allowed", "text"},
	}}
	stopTimesTable = sqlTable{"stop_times", []sqlColumn{
		{"trip_id", "text"},
		{"arrival_time", "text"},
		{"departure_time", "text"},
		{"stop_id", "text"},
		{"stop_sequence", "int"},
		{"stop_headsign", "text"},
		{"pickup_type", "text"},
		{"drop_off_type", "text"},
		{"shape_dist_traveled", "text"},
		{"timepoint", "text"},
	}}
	stopsTable = sqlTable{"stops", []sqlColumn{
		{"stop_id", "text"},
		{"stop_code", "text"},
		{"stop_name", "text"},
		{"stop_desc", "text"},
		{"stop_lat", "real"},
		{"stop_lon", "real"},
		{"zone_id", "text"},
		{"stop_url", "text"},
		{"location_type", "int"},
		{"parent_station", "text"},
		{"stop_timezone", "text"},
		{"wheelchair_boarding", "text"},
	}}
	transfersTable = sqlTable{"transfers", []sqlColumn{
		{"from_stop_id", "text"},
		{"to_stop_id", "text"},
		{"transfer_type", "int"},
		{"min_transfer_time", "int"},
	}}
	calendarTable = sqlTable{"calendar", []sqlColumn{
		{"service_id", "text"},
		{"monday", "int"},
		{"tuesday", "int"},
		{"wednesday", "int"},
		{"thursday", "int"},
		{"friday", "int"},
		{"saturday", "int"},
		{"sunday", "int"},
		{"start_date", "text"},
		{"end_date", "text"},
	}}
	calendarDatesTable = sqlTable{"calendar_dates", []sqlColumn{
		{"service_id", "text"},
		{"date", "text"},
		{"exception_type", "int"},
	}}

	allTables = []sqlTable{
		agencyTable,
		routesTable,
		tripsTable,
		stopTimesTable,
		stopsTable,
		transfersTable,
		calendarTable,
		calendarDatesTable,
	}
)

// The bits that differ between databases.
type sqlDialect struct {
	quote       func(ident string) string
	placeholder func(i int) string
	types       map[string]string
}

func (d sqlDialect) createTable(t sqlTable) string {
	cols := []string{}
	for _, c := range t.columns {
		cols = append(cols, fmt.Sprintf("    %s %s", d.quote(c.name), d.types[c.kind]))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", d.quote(t.name), strings.Join(cols, ",\n"))
}

func (d sqlDialect) insert(t sqlTable) string {
	cols := []string{}
	params := []string{}
	for i, c := range t.columns {
		cols = append(cols, d.quote(c.name))
		params = append(params, d.placeholder(i+1))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.quote(t.name),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}

type sqlFeedWriter struct {
	db      *sql.DB
	tx      *sql.Tx
	stmts   map[string]*sql.Stmt
	cleanup func() error

	agencyKeys   keySet
	routeKeys    keySet
	stopKeys     keySet
	calendarKeys keySet

	mutex  sync.Mutex
	closed bool
}

// Starts the run's transaction, (re)creates all tables and prepares
// the inserts. dropExisting is run first, inside the transaction.
func newSQLFeedWriter(db *sql.DB, d sqlDialect, dropExisting bool) (*sqlFeedWriter, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	w := &sqlFeedWriter{
		db:           db,
		tx:           tx,
		stmts:        map[string]*sql.Stmt{},
		agencyKeys:   keySet{},
		routeKeys:    keySet{},
		stopKeys:     keySet{},
		calendarKeys: keySet{},
	}

	for _, t := range allTables {
		if dropExisting {
			_, err = tx.Exec("DROP TABLE IF EXISTS " + d.quote(t.name))
			if err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("dropping %s table: %w", t.name, err)
			}
		}

		_, err = tx.Exec(d.createTable(t))
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("creating %s table: %w", t.name, err)
		}

		stmt, err := tx.Prepare(d.insert(t))
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("preparing %s insert: %w", t.name, err)
		}
		w.stmts[t.name] = stmt
	}

	return w, nil
}

func (w *sqlFeedWriter) insert(ctx context.Context, table string, values ...interface{}) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrClosed
	}

	_, err := w.stmts[table].ExecContext(ctx, values...)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

func (w *sqlFeedWriter) WriteAgency(ctx context.Context, a *model.Agency) error {
	if !w.agencyKeys.first(a.ID) {
		return nil
	}
	return w.insert(ctx, agencyTable.name,
		a.ID,
		a.Name,
		a.URL,
		a.Timezone,
		a.Lang,
		a.Phone,
		a.FareURL,
	)
}

func (w *sqlFeedWriter) WriteRoute(ctx context.Context, r *model.Route) error {
	if !w.routeKeys.first(r.ID) {
		return nil
	}
	return w.insert(ctx, routesTable.name,
		r.ID,
		r.AgencyID,
		r.ShortName,
		r.LongName,
		int(r.Type),
		r.TextColor,
		r.Color,
		r.URL,
		r.Desc,
	)
}

func (w *sqlFeedWriter) WriteTrip(ctx context.Context, t *model.Trip) error {
	return w.insert(ctx, tripsTable.name,
		t.RouteID,
		t.ServiceID,
		t.ID,
		t.Headsign,
		t.ShortName,
		t.DirectionID,
		t.WheelchairAccessible,
		t.BikesAllowed,
	)
}

func (w *sqlFeedWriter) WriteStopTime(ctx context.Context, st *model.StopTime) error {
	return w.insert(ctx, stopTimesTable.name,
		st.TripID,
		st.Arrival,
		st.Departure,
		st.StopID,
		int64(st.StopSequence),
		st.Headsign,
		st.PickupType,
		st.DropOffType,
		st.ShapeDistTraveled,
		st.Timepoint,
	)
}

func (w *sqlFeedWriter) WriteStop(ctx context.Context, s *model.Stop) error {
	if !w.stopKeys.first(s.ID) {
		return nil
	}
	return w.insert(ctx, stopsTable.name,
		s.ID,
		s.Code,
		s.Name,
		s.Desc,
		s.Lat,
		s.Lon,
		s.ZoneID,
		s.URL,
		int(s.LocationType),
		s.ParentStation,
		s.Timezone,
		s.WheelchairBoarding,
	)
}

func (w *sqlFeedWriter) WriteTransfer(ctx context.Context, t *model.Transfer) error {
	return w.insert(ctx, transfersTable.name,
		t.FromStopID,
		t.ToStopID,
		int(t.TransferType),
		t.MinTransferTime,
	)
}

func (w *sqlFeedWriter) WriteCalendar(ctx context.Context, c *model.Calendar) error {
	if !w.calendarKeys.first(c.ServiceID) {
		return nil
	}
	return w.insert(ctx, calendarTable.name,
		c.ServiceID,
		c.Monday,
		c.Tuesday,
		c.Wednesday,
		c.Thursday,
		c.Friday,
		c.Saturday,
		c.Sunday,
		c.StartDate,
		c.EndDate,
	)
}

func (w *sqlFeedWriter) WriteCalendarDate(ctx context.Context, cd *model.CalendarDate) error {
	return w.insert(ctx, calendarDatesTable.name,
		cd.ServiceID,
		cd.Date,
		int(cd.ExceptionType),
	)
}

func (w *sqlFeedWriter) markClosed() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	for _, stmt := range w.stmts {
		stmt.Close()
	}
	return nil
}

// Commits everything written.
func (w *sqlFeedWriter) Close() error {
	if err := w.markClosed(); err != nil {
		return err
	}

	err := w.tx.Commit()
	if err != nil {
		w.db.Close()
		return fmt.Errorf("committing: %w", err)
	}

	err = w.db.Close()
	if err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	return nil
}

// Rolls back everything written.
func (w *sqlFeedWriter) Abort() error {
	if err := w.markClosed(); err != nil {
		return err
	}

	err := w.tx.Rollback()
	w.db.Close()
	if err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}

	if w.cleanup != nil {
		return w.cleanup()
	}
	return nil
}
