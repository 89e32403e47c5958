package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/gtfsmerge"
	"tidbyt.dev/gtfsmerge/config"
	"tidbyt.dev/gtfsmerge/downloader"
)

var rootCmd = &cobra.Command{
	Use:   "gtfsmerge [flags] INPUT... OUTPUT",
	Short: "Merges GTFS feeds",
	Long: `Merges one or more GTFS feeds into one.

Inputs are GTFS zip files or http(s) URLs. OUTPUT is a .zip file, a
SQLite database (.db or .sqlite) or a postgres:// connection string.`,
	Args:         cobra.MinimumNArgs(2),
	SilenceUsage: true,
	RunE:         merge,
}

var (
	configPath        string
	transferDistance  float64
	walkingPace       float64
	referenceLatitude float64
	stopPrefixes      []string
	workDir           string
	noDateFilter      bool
	filterBefore      string
	noTransfers       bool
	excludeRouteTypes []int
	sinkBuffer        int
	headers           []string
	downloadCache     string
	verbose           bool
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.Float64VarP(&transferDistance, "transfer-distance", "d", 0, "add transfers between stops closer than this (metres)")
	flags.Float64VarP(&walkingPace, "walking-pace", "", 0, "seconds per metre walked in added transfers")
	flags.Float64VarP(&referenceLatitude, "reference-latitude", "", 0, "latitude distances are projected at (default: first stop)")
	flags.StringSliceVarP(&stopPrefixes, "stop-prefix", "p", []string{}, "stop_id prefix, for all inputs or one per input")
	flags.StringVarP(&workDir, "tmp", "t", "", "working directory for zip output (emptied before use)")
	flags.BoolVarP(&noDateFilter, "no-date-filter", "", false, "keep calendars and dates in the past")
	flags.StringVarP(&filterBefore, "filter-before", "", "", "drop calendars and dates before YYYYMMDD (default: today)")
	flags.BoolVarP(&noTransfers, "no-transfers", "", false, "don't add transfers between nearby stops")
	flags.IntSliceVarP(&excludeRouteTypes, "exclude-route-types", "x", []int{}, "drop routes of these route_types")
	flags.IntVarP(&sinkBuffer, "sink-buffer", "", 0, "rows buffered per output table")
	flags.StringSliceVarP(&headers, "header", "", []string{}, "HTTP header for URL inputs, on form <key>:<value>")
	flags.StringVarP(&downloadCache, "download-cache", "", "", "directory caching downloaded inputs across runs")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// Reads the config file, if any, and overrides it with flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("transfer-distance") {
		cfg.TransferDistance = transferDistance
	}
	if changed("walking-pace") {
		cfg.WalkingPace = walkingPace
	}
	if changed("reference-latitude") {
		cfg.ReferenceLatitude = referenceLatitude
	}
	if changed("stop-prefix") {
		cfg.StopPrefixes = stopPrefixes
	}
	if changed("tmp") {
		cfg.WorkDir = workDir
	}
	if changed("no-date-filter") {
		cfg.DateFilter = !noDateFilter
	}
	if changed("filter-before") {
		cfg.FilterBefore = filterBefore
	}
	if changed("no-transfers") {
		cfg.Transfers = !noTransfers
	}
	if changed("exclude-route-types") {
		cfg.ExcludeRouteTypes = excludeRouteTypes
	}
	if changed("sink-buffer") {
		cfg.SinkBuffer = sinkBuffer
	}
	if changed("download-cache") {
		cfg.DownloadCache = downloadCache
	}

	return cfg, cfg.Validate()
}

func merge(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(cmd)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	c := gtfsmerge.NewCommand(cfg)
	c.Logger = logger

	c.Headers, err = parseHeaders(headers)
	if err != nil {
		logger.Error("invalid header", "error", err)
		return err
	}

	if cfg.DownloadCache != "" {
		fs, err := downloader.NewFilesystem(cfg.DownloadCache)
		if err != nil {
			logger.Error("opening download cache", "error", err)
			return err
		}
		fs.Logger = logger
		c.Downloader = fs
	}

	inputs, output := args[:len(args)-1], args[len(args)-1]

	err = c.Run(cmd.Context(), inputs, output)
	if err != nil {
		logger.Error("merge failed", "error", err)
		return err
	}

	return nil
}
