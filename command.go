// Package gtfsmerge combines several GTFS feeds into one.
//
// Each input feed is loaded, filtered and remapped onto a shared ID
// space, then written to a single output: a GTFS zip archive, a
// SQLite database or a Postgres database.
package gtfsmerge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tidbyt.dev/gtfsmerge/config"
	"tidbyt.dev/gtfsmerge/downloader"
	"tidbyt.dev/gtfsmerge/parse"
	"tidbyt.dev/gtfsmerge/storage"
)

const DefaultInputMaxSize = 800 << 20 // 800 MB

// Command runs a merge from input paths (or URLs) to an output path.
type Command struct {
	Config     config.Config
	Downloader downloader.Downloader

	// Sent with every download of a URL input.
	Headers map[string]string

	Logger *slog.Logger
	Now    func() time.Time
}

func NewCommand(cfg config.Config) *Command {
	return &Command{
		Config:     cfg,
		Downloader: downloader.NewMemoryDownloader(),
		Logger:     slog.Default(),
		Now:        time.Now,
	}
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

func isPostgres(output string) bool {
	return strings.HasPrefix(output, "postgres://") || strings.HasPrefix(output, "postgresql://")
}

// Checks everything that can be checked before any output is
// created.
func (c *Command) validate(inputs []string, output string) error {
	err := c.Config.Validate()
	if err != nil {
		return err
	}

	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input feeds", config.ErrUsage)
	}
	if output == "" {
		return fmt.Errorf("%w: no output", config.ErrUsage)
	}

	_, err = c.Config.StopPrefix(0, len(inputs))
	if err != nil {
		return err
	}

	for _, input := range inputs {
		if isURL(input) {
			continue
		}
		info, err := os.Stat(input)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrUsage, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", config.ErrUsage, input)
		}
	}

	if !isPostgres(output) {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".zip", ".db", ".sqlite":
		default:
			return fmt.Errorf(
				"%w: output %s must be a .zip, .db or .sqlite file or a postgres:// URL",
				config.ErrUsage,
				output,
			)
		}
	}

	return nil
}

// A FeedWriter for the output, what must happen after it's closed,
// and what must happen if closing fails.
func (c *Command) openWriter(output string, runID string) (storage.FeedWriter, func() error, func(), error) {
	nothing := func() error { return nil }
	noCleanup := func() {}

	if isPostgres(output) {
		w, err := storage.NewPSQLFeedWriter(output)
		if err != nil {
			return nil, nil, nil, err
		}
		return w, nothing, noCleanup, nil
	}

	switch strings.ToLower(filepath.Ext(output)) {
	case ".db", ".sqlite":
		w, err := storage.NewSQLiteFeedWriter(output)
		if err != nil {
			return nil, nil, nil, err
		}
		// A failed commit can leave a partial database behind
		return w, nothing, func() { os.Remove(output) }, nil
	}

	dir := c.Config.WorkDir
	temporary := dir == ""
	if temporary {
		dir = filepath.Join(os.TempDir(), "gtfsmerge-"+runID)
	}

	w, err := storage.NewCSVFeedWriter(dir, c.Config.SinkBuffer)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		if temporary {
			os.RemoveAll(dir)
		}
	}

	return w, func() error {
		err := w.Package(output)
		if err != nil {
			cleanup()
			return fmt.Errorf("packaging: %w", err)
		}
		if temporary {
			err = os.RemoveAll(dir)
			if err != nil {
				return fmt.Errorf("removing %s: %w", dir, err)
			}
		}
		return nil
	}, cleanup, nil
}

func (c *Command) load(ctx context.Context, input string, opts parse.Options) (*parse.Feed, error) {
	if !isURL(input) {
		return parse.LoadFile(input, opts)
	}

	body, err := c.Downloader.Get(ctx, input, c.Headers, downloader.GetOptions{
		MaxSize:  DefaultInputMaxSize,
		Timeout:  c.Config.HTTPTimeout,
		Cache:    c.Config.DownloadCacheTTL > 0,
		CacheTTL: c.Config.DownloadCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", input, err)
	}

	feed, err := parse.Load(body, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", input, err)
	}
	return feed, nil
}

// Merges inputs, in order, into output.
//
// Nothing is left at the output path if the merge fails, and a
// temporary work directory is always removed. An existing SQLite or
// zip file at that path is replaced; existing Postgres tables are
// dropped.
func (c *Command) Run(ctx context.Context, inputs []string, output string) error {
	err := c.validate(inputs, output)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := c.Logger.With("run", runID)
	cutoff := c.Config.Cutoff(c.Now())

	writer, finish, cleanup, err := c.openWriter(output, runID)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	out := NewOutput(writer, OutputConfig{
		Transfers:         c.Config.TransferConfig(),
		ExcludeRouteTypes: c.Config.RouteTypes(),
	}, log)

	for i, input := range inputs {
		err = c.merge(ctx, out, log, input, i, len(inputs), cutoff)
		if err != nil {
			if abortErr := out.Abort(); abortErr != nil {
				log.Error("aborting", "error", abortErr)
			}
			return err
		}
	}

	err = out.Close()
	if err != nil {
		cleanup()
		return err
	}

	err = finish()
	if err != nil {
		return err
	}

	log.Info("done", "inputs", len(inputs), "output", output)

	return nil
}

func (c *Command) merge(
	ctx context.Context,
	out *Output,
	log *slog.Logger,
	input string,
	i, n int,
	cutoff string,
) error {
	prefix, err := c.Config.StopPrefix(i, n)
	if err != nil {
		return err
	}

	log = log.With("input", input)

	start := time.Now()
	feed, err := c.load(ctx, input, parse.Options{
		StopPrefix:   prefix,
		FilterBefore: cutoff,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	log.Info("loaded feed", "feed", feed, "duration", time.Since(start))

	err = out.Write(ctx, feed)
	if err != nil {
		return fmt.Errorf("merging %s: %w", input, err)
	}

	return nil
}
