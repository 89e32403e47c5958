package parse

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"tidbyt.dev/gtfsmerge/calendar"
	"tidbyt.dev/gtfsmerge/model"
)

var ErrNoFeedFiles = errors.New("no GTFS files found")

// Kind identifies one of the files read from a feed.
type Kind int

const (
	KindAgency Kind = iota
	KindRoutes
	KindCalendar
	KindCalendarDates
	KindTrips
	KindStops
	KindStopTimes
	KindTransfers
	KindLinks
)

// Kinds in the order they're loaded.
var kinds = []Kind{
	KindAgency,
	KindRoutes,
	KindCalendar,
	KindCalendarDates,
	KindTrips,
	KindStops,
	KindStopTimes,
	KindTransfers,
	KindLinks,
}

func (k Kind) File() string {
	switch k {
	case KindAgency:
		return "agency.txt"
	case KindRoutes:
		return "routes.txt"
	case KindCalendar:
		return "calendar.txt"
	case KindCalendarDates:
		return "calendar_dates.txt"
	case KindTrips:
		return "trips.txt"
	case KindStops:
		return "stops.txt"
	case KindStopTimes:
		return "stop_times.txt"
	case KindTransfers:
		return "transfers.txt"
	case KindLinks:
		// Not GTFS. Some older feeds list walking links here.
		return "links.txt"
	}
	return ""
}

type Options struct {
	// Prepended to every stop_id, including references to stops
	// from other files.
	StopPrefix string

	// Calendars ending before this YYYYMMDD date, and calendar
	// dates before it, are dropped. Empty keeps everything.
	FilterBefore string

	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Feed holds the rows of a single GTFS feed, as needed by the
// mergers.
type Feed struct {
	Agencies      []model.Agency
	Routes        []model.Route
	Trips         []model.Trip
	StopTimes     []model.StopTime
	Stops         []model.Stop
	Transfers     []model.Transfer
	Calendars     []model.Calendar
	CalendarDates *calendar.DateIndex

	// Maps child stops to their topmost parent station.
	ParentStops map[string]string
}

func (f *Feed) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("agencies", len(f.Agencies)),
		slog.Int("routes", len(f.Routes)),
		slog.Int("trips", len(f.Trips)),
		slog.Int("stop_times", len(f.StopTimes)),
		slog.Int("stops", len(f.Stops)),
		slog.Int("transfers", len(f.Transfers)),
		slog.Int("calendars", len(f.Calendars)),
		slog.Int("calendar_dates", f.CalendarDates.Len()),
	)
}

// Reads a GTFS zip file from disk.
func LoadFile(path string, opts Options) (*Feed, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	feed, err := Load(buf, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	return feed, nil
}

// Reads a GTFS zip archive. Missing files are treated as empty, but
// at least one recognized file must be present.
//
// Rows that can't be parsed are logged and skipped.
func Load(buf []byte, opts Options) (*Feed, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, errors.Wrap(err, "unzipping")
	}

	files := map[string]*zip.File{}
	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		files[path[len(path)-1]] = f
	}

	l := newLoader(opts)

	found := false
	for _, kind := range kinds {
		f := files[kind.File()]
		if f == nil {
			continue
		}
		found = true

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", f.Name)
		}
		err = l.load(kind, rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", kind.File())
		}
	}

	if !found {
		return nil, ErrNoFeedFiles
	}

	return l.finish(), nil
}

type loader struct {
	opts Options
	log  *slog.Logger
	feed *Feed

	// Index into feed.Transfers by from_stop_id, to_stop_id.
	transfers map[[2]string]int
}

func newLoader(opts Options) *loader {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &loader{
		opts: opts,
		log:  log,
		feed: &Feed{
			CalendarDates: calendar.NewDateIndex(),
			ParentStops:   map[string]string{},
		},
		transfers: map[[2]string]int{},
	}
}

func (l *loader) load(kind Kind, r io.Reader) error {
	switch kind {
	case KindAgency:
		return l.parseAgency(r)
	case KindRoutes:
		return l.parseRoutes(r)
	case KindCalendar:
		return l.parseCalendar(r)
	case KindCalendarDates:
		return l.parseCalendarDates(r)
	case KindTrips:
		return l.parseTrips(r)
	case KindStops:
		return l.parseStops(r)
	case KindStopTimes:
		return l.parseStopTimes(r)
	case KindTransfers:
		return l.parseTransfers(r)
	case KindLinks:
		return l.parseLinks(r)
	}
	return errors.Errorf("unknown kind %d", kind)
}

func (l *loader) finish() *Feed {
	l.feed.ParentStops = resolveParents(l.feed.Stops, l.log)
	return l.feed
}

func (l *loader) prefix(stopID string) string {
	if stopID == "" {
		return ""
	}
	return l.opts.StopPrefix + stopID
}

// Streams rows of a CSV file into f. Rows for which f returns an
// error are logged and skipped.
func decode[T any](l *loader, kind Kind, data io.Reader, f func(row *T) error) error {
	// Lazy quotes required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	reader := csv.NewReader(bom.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	i := 0
	skipped := 0
	err := gocsv.UnmarshalDecoderToCallback(
		gocsv.NewSimpleDecoderFromCSVReader(reader),
		func(row *T) {
			i++
			if err := f(row); err != nil {
				skipped++
				l.log.Warn(
					"skipping row",
					"file", kind.File(),
					"row", i,
					"error", err,
				)
			}
		},
	)
	if err == io.EOF {
		// No header
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "unmarshaling %s (row %d)", kind.File(), i+1)
	}

	l.log.Debug("decoded", "file", kind.File(), "rows", i, "skipped", skipped)

	return nil
}
