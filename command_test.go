package gtfsmerge_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsmerge"
	"tidbyt.dev/gtfsmerge/config"
	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/parse"
	"tidbyt.dev/gtfsmerge/testutil"
)

func newCommand(t *testing.T) *gtfsmerge.Command {
	cfg := config.Default()
	cfg.StopPrefixes = []string{"a:", "b:"}
	cfg.WorkDir = filepath.Join(t.TempDir(), "work")

	c := gtfsmerge.NewCommand(cfg)
	c.Logger = testutil.DiscardLogger()
	c.Now = func() time.Time { return time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCommandZip(t *testing.T) {
	c := newCommand(t)
	output := filepath.Join(t.TempDir(), "merged.zip")

	err := c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
		testutil.WriteZip(t, smallFeed("10")),
	}, output)
	require.NoError(t, err)

	// The work directory is kept when given explicitly
	_, err = os.Stat(filepath.Join(c.Config.WorkDir, "stops.txt"))
	assert.NoError(t, err)

	merged, err := parse.LoadFile(output, parse.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)

	assert.Equal(t, 1, len(merged.Agencies))
	assert.Equal(t, 2, len(merged.Routes))
	assert.Equal(t, 2, len(merged.Trips))
	assert.Equal(t, 4, len(merged.StopTimes))
	assert.Equal(t, 4, len(merged.Stops))
	assert.Equal(t, 4, len(merged.Transfers))
	assert.Equal(t, []model.Calendar{{
		ServiceID: "1",
		Monday:    1,
		StartDate: "20200101",
		EndDate:   "20201231",
	}}, merged.Calendars)
}

func TestCommandTemporaryWorkDir(t *testing.T) {
	c := newCommand(t)
	c.Config.WorkDir = ""
	c.Config.StopPrefixes = nil
	output := filepath.Join(t.TempDir(), "merged.zip")

	before, err := filepath.Glob(filepath.Join(os.TempDir(), "gtfsmerge-*"))
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
	}, output))

	after, err := filepath.Glob(filepath.Join(os.TempDir(), "gtfsmerge-*"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(output)
	assert.NoError(t, err)
}

func TestCommandDateFilter(t *testing.T) {
	c := newCommand(t)
	c.Config.StopPrefixes = nil
	c.Now = func() time.Time { return time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC) }
	output := filepath.Join(t.TempDir(), "merged.zip")

	require.NoError(t, c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
	}, output))

	merged, err := parse.LoadFile(output, parse.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	assert.Empty(t, merged.Calendars)
	assert.Empty(t, merged.Trips)
	assert.Equal(t, 2, len(merged.Stops))

	c.Config.DateFilter = false
	require.NoError(t, c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
	}, output))

	merged, err = parse.LoadFile(output, parse.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	assert.Equal(t, 1, len(merged.Calendars))
	assert.Equal(t, 1, len(merged.Trips))
}

func TestCommandSQLite(t *testing.T) {
	c := newCommand(t)
	output := filepath.Join(t.TempDir(), "merged.db")

	require.NoError(t, c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
		testutil.WriteZip(t, smallFeed("10")),
	}, output))

	db, err := sql.Open("sqlite3", output)
	require.NoError(t, err)
	defer db.Close()

	for table, count := range map[string]int{
		"agency":         1,
		"routes":         2,
		"trips":          2,
		"stop_times":     4,
		"stops":          4,
		"transfers":      4,
		"calendar":       1,
		"calendar_dates": 0,
	} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Equal(t, count, n, table)
	}
}

func TestCommandURLInput(t *testing.T) {
	body := testutil.BuildZip(t, smallFeed("1"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	c := newCommand(t)
	output := filepath.Join(t.TempDir(), "merged.zip")

	require.NoError(t, c.Run(context.Background(), []string{
		server.URL + "/gtfs.zip",
		testutil.WriteZip(t, smallFeed("10")),
	}, output))

	merged, err := parse.LoadFile(output, parse.Options{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	assert.Equal(t, 4, len(merged.Stops))
}

func TestCommandUsage(t *testing.T) {
	feed := testutil.WriteZip(t, smallFeed("1"))
	dir := t.TempDir()

	for _, tc := range []struct {
		name     string
		inputs   []string
		output   string
		prefixes []string
	}{
		{"no_inputs", []string{}, filepath.Join(dir, "out.zip"), nil},
		{"missing_input", []string{filepath.Join(dir, "nope.zip")}, filepath.Join(dir, "out.zip"), nil},
		{"directory_input", []string{dir}, filepath.Join(dir, "out.zip"), nil},
		{"bad_output", []string{feed}, filepath.Join(dir, "out.tar"), nil},
		{"no_output", []string{feed}, "", nil},
		{"prefix_count", []string{feed, feed, feed}, filepath.Join(dir, "out.zip"), []string{"a", "b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newCommand(t)
			c.Config.StopPrefixes = tc.prefixes

			err := c.Run(context.Background(), tc.inputs, tc.output)
			assert.ErrorIs(t, err, config.ErrUsage)

			// Nothing created
			_, err = os.Stat(c.Config.WorkDir)
			assert.True(t, os.IsNotExist(err))
		})
	}

	_, err := os.Stat(filepath.Join(dir, "out.zip"))
	assert.True(t, os.IsNotExist(err))
}

func TestCommandFailedInput(t *testing.T) {
	c := newCommand(t)
	output := filepath.Join(t.TempDir(), "merged.zip")
	broken := testutil.WriteZip(t, map[string][]string{"README": {"not a feed"}})

	err := c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
		broken,
	}, output)
	assert.ErrorIs(t, err, parse.ErrNoFeedFiles)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(c.Config.WorkDir)
	assert.True(t, os.IsNotExist(err))

	// Same for SQLite
	output = filepath.Join(t.TempDir(), "merged.db")
	err = c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
		broken,
	}, output)
	assert.ErrorIs(t, err, parse.ErrNoFeedFiles)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
}

func TestCommandPackageFailureRemovesWorkDir(t *testing.T) {
	c := newCommand(t)
	c.Config.WorkDir = ""
	c.Config.StopPrefixes = nil
	output := filepath.Join(t.TempDir(), "missing", "merged.zip")

	before, err := filepath.Glob(filepath.Join(os.TempDir(), "gtfsmerge-*"))
	require.NoError(t, err)

	err = c.Run(context.Background(), []string{
		testutil.WriteZip(t, smallFeed("1")),
	}, output)
	assert.Error(t, err)

	after, err := filepath.Glob(filepath.Join(os.TempDir(), "gtfsmerge-*"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
}
