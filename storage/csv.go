package storage

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"tidbyt.dev/gtfsmerge/model"
)

const DefaultCSVBuffer = 1024

// Writes each table to a .txt file in a directory. Every table is
// encoded by its own goroutine reading from a bounded channel, so a
// slow disk backpressures the merger writing that table without
// holding up the others.
type CSVFeedWriter struct {
	dir    string
	tables []*csvTable

	agency        *csvTable
	routes        *csvTable
	trips         *csvTable
	stopTimes     *csvTable
	stops         *csvTable
	transfers     *csvTable
	calendar      *csvTable
	calendarDates *csvTable

	mutex  sync.RWMutex
	closed bool
}

type csvTable struct {
	file *os.File
	keys keySet

	rows    chan interface{}
	done    chan struct{}
	started bool
	err     error
}

// Creates (or empties) dir and opens one file per table in it.
// buffer is the number of rows each table accepts before Write()
// blocks.
func NewCSVFeedWriter(dir string, buffer int) (*CSVFeedWriter, error) {
	if buffer <= 0 {
		buffer = DefaultCSVBuffer
	}

	err := os.RemoveAll(dir)
	if err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dir, err)
	}
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	w := &CSVFeedWriter{dir: dir}

	for _, t := range []struct {
		name  string
		table **csvTable
		keyed bool
	}{
		{"agency.txt", &w.agency, true},
		{"routes.txt", &w.routes, true},
		{"trips.txt", &w.trips, false},
		{"stop_times.txt", &w.stopTimes, false},
		{"stops.txt", &w.stops, true},
		{"transfers.txt", &w.transfers, false},
		{"calendar.txt", &w.calendar, true},
		{"calendar_dates.txt", &w.calendarDates, false},
	} {
		f, err := os.Create(filepath.Join(dir, t.name))
		if err != nil {
			w.closeFiles()
			return nil, fmt.Errorf("creating %s: %w", t.name, err)
		}

		table := &csvTable{
			file: f,
			rows: make(chan interface{}, buffer),
			done: make(chan struct{}),
		}
		if t.keyed {
			table.keys = keySet{}
		}

		*t.table = table
		w.tables = append(w.tables, table)
	}

	return w, nil
}

func (t *csvTable) encode() {
	defer close(t.done)

	// The header is derived from the first row, so nothing at all
	// is written for tables that never receive one.
	err := gocsv.MarshalChan(t.rows, gocsv.NewSafeCSVWriter(csv.NewWriter(t.file)))
	if err != nil {
		t.err = fmt.Errorf("encoding %s: %w", filepath.Base(t.file.Name()), err)
	}
}

func (t *csvTable) write(ctx context.Context, key string, row interface{}) error {
	if t.keys != nil && !t.keys.first(key) {
		return nil
	}

	if !t.started {
		t.started = true
		go t.encode()
	}

	select {
	case t.rows <- row:
		return nil
	case <-t.done:
		if t.err != nil {
			return t.err
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stops accepting rows and waits for the encoder to drain.
func (t *csvTable) finish() error {
	close(t.rows)
	if t.started {
		<-t.done
	}
	return t.err
}

func (w *CSVFeedWriter) write(ctx context.Context, t *csvTable, key string, row interface{}) error {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	if w.closed {
		return ErrClosed
	}
	return t.write(ctx, key, row)
}

func (w *CSVFeedWriter) WriteAgency(ctx context.Context, agency *model.Agency) error {
	return w.write(ctx, w.agency, agency.ID, *agency)
}

func (w *CSVFeedWriter) WriteRoute(ctx context.Context, route *model.Route) error {
	return w.write(ctx, w.routes, route.ID, *route)
}

func (w *CSVFeedWriter) WriteTrip(ctx context.Context, trip *model.Trip) error {
	return w.write(ctx, w.trips, "", *trip)
}

func (w *CSVFeedWriter) WriteStopTime(ctx context.Context, stopTime *model.StopTime) error {
	return w.write(ctx, w.stopTimes, "", *stopTime)
}

func (w *CSVFeedWriter) WriteStop(ctx context.Context, stop *model.Stop) error {
	return w.write(ctx, w.stops, stop.ID, *stop)
}

func (w *CSVFeedWriter) WriteTransfer(ctx context.Context, transfer *model.Transfer) error {
	return w.write(ctx, w.transfers, "", *transfer)
}

func (w *CSVFeedWriter) WriteCalendar(ctx context.Context, cal *model.Calendar) error {
	return w.write(ctx, w.calendar, cal.ServiceID, *cal)
}

func (w *CSVFeedWriter) WriteCalendarDate(ctx context.Context, caldate *model.CalendarDate) error {
	return w.write(ctx, w.calendarDates, "", *caldate)
}

func (w *CSVFeedWriter) markClosed() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	return nil
}

// Flushes every table to disk.
func (w *CSVFeedWriter) Close() error {
	if err := w.markClosed(); err != nil {
		return err
	}

	var firstErr error
	for _, t := range w.tables {
		if err := t.finish(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := w.closeFiles(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Stops all encoders and removes the directory.
func (w *CSVFeedWriter) Abort() error {
	if err := w.markClosed(); err != nil {
		return err
	}

	for _, t := range w.tables {
		t.finish()
	}
	w.closeFiles()

	err := os.RemoveAll(w.dir)
	if err != nil {
		return fmt.Errorf("removing %s: %w", w.dir, err)
	}
	return nil
}

func (w *CSVFeedWriter) closeFiles() error {
	var firstErr error
	for _, t := range w.tables {
		if err := t.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", t.file.Name(), err)
		}
	}
	return firstErr
}

// Bundles the table files into a zip archive at path, without any
// directory structure. Only valid after Close(). The archive is
// written next to path and renamed into place, so path never holds a
// partial archive.
func (w *CSVFeedWriter) Package(path string) error {
	w.mutex.RLock()
	closed := w.closed
	w.mutex.RUnlock()
	if !closed {
		return fmt.Errorf("packaging before close")
	}

	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating archive for %s: %w", path, err)
	}

	err = writeZip(out, w.tables)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("closing %s: %w", out.Name(), closeErr)
	}
	if err == nil {
		err = os.Rename(out.Name(), path)
	}
	if err != nil {
		os.Remove(out.Name())
		return err
	}

	return nil
}

func writeZip(out io.Writer, tables []*csvTable) error {
	zw := zip.NewWriter(out)
	for _, t := range tables {
		err := addToZip(zw, t.file.Name())
		if err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing zip: %w", err)
	}
	return nil
}

func addToZip(zw *zip.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	entry, err := zw.Create(filepath.Base(name))
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}

	_, err = io.Copy(entry, f)
	if err != nil {
		return fmt.Errorf("copying %s: %w", name, err)
	}

	return nil
}
