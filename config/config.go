package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tidbyt.dev/gtfsmerge/merger"
	"tidbyt.dev/gtfsmerge/model"
	"tidbyt.dev/gtfsmerge/storage"
)

var ErrUsage = errors.New("invalid usage")

const (
	DefaultHTTPTimeout      = 60 * time.Second
	DefaultDownloadCacheTTL = 12 * time.Hour
)

// Config holds everything controlling a merge run. It can be loaded
// from YAML, and is usually adjusted by command line flags.
type Config struct {
	// Metres. Stops closer than this get a walking transfer.
	TransferDistance float64 `yaml:"transferDistance" validate:"gte=0"`

	// Seconds per metre.
	WalkingPace float64 `yaml:"walkingPace" validate:"gt=0"`

	// Latitude the distance projection is centered on. 0 picks
	// the first stop's latitude.
	ReferenceLatitude float64 `yaml:"referenceLatitude" validate:"gte=-90,lte=90"`

	// Either a single prefix used for all inputs, or one per
	// input.
	StopPrefixes []string `yaml:"stopPrefixes"`

	// Where the tables are written before packaging. Emptied
	// before use. Defaults to a new temporary directory.
	WorkDir string `yaml:"workDir"`

	// Drop calendars and calendar dates before FilterBefore, or
	// before today if FilterBefore is empty.
	DateFilter   bool   `yaml:"dateFilter"`
	FilterBefore string `yaml:"filterBefore" validate:"omitempty,datetime=20060102"`

	// Synthesize transfers between nearby stops.
	Transfers bool `yaml:"transfers"`

	ExcludeRouteTypes []int `yaml:"excludeRouteTypes" validate:"dive,gte=0"`

	// Rows buffered per output table.
	SinkBuffer int `yaml:"sinkBuffer" validate:"gt=0"`

	// For inputs given as URLs. DownloadCache is a directory
	// keeping downloads across runs; downloads are only cached in
	// memory without it.
	HTTPTimeout      time.Duration `yaml:"httpTimeout" validate:"gte=0"`
	DownloadCache    string        `yaml:"downloadCache"`
	DownloadCacheTTL time.Duration `yaml:"downloadCacheTTL" validate:"gte=0"`
}

func Default() Config {
	return Config{
		TransferDistance: merger.DefaultTransferDistance,
		WalkingPace:      merger.DefaultWalkingPace,
		DateFilter:       true,
		Transfers:        true,
		SinkBuffer:       storage.DefaultCSVBuffer,
		HTTPTimeout:      DefaultHTTPTimeout,
		DownloadCacheTTL: DefaultDownloadCacheTTL,
	}
}

// Loads a YAML config file. Settings missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}

// Stop prefix for the i:th of n inputs.
func (c Config) StopPrefix(i, n int) (string, error) {
	switch len(c.StopPrefixes) {
	case 0:
		return "", nil
	case 1:
		return c.StopPrefixes[0], nil
	case n:
		return c.StopPrefixes[i], nil
	}
	return "", fmt.Errorf(
		"%w: %d stop prefixes given for %d inputs",
		ErrUsage,
		len(c.StopPrefixes),
		n,
	)
}

// The date before which calendars are dropped, or "" to keep all.
func (c Config) Cutoff(now time.Time) string {
	if !c.DateFilter {
		return ""
	}
	if c.FilterBefore != "" {
		return c.FilterBefore
	}
	return now.Format("20060102")
}

func (c Config) TransferConfig() merger.TransferConfig {
	distance := c.TransferDistance
	if !c.Transfers {
		distance = 0
	}
	return merger.TransferConfig{
		Distance:          distance,
		WalkingPace:       c.WalkingPace,
		ReferenceLatitude: c.ReferenceLatitude,
	}
}

func (c Config) RouteTypes() []model.RouteType {
	types := []model.RouteType{}
	for _, t := range c.ExcludeRouteTypes {
		types = append(types, model.RouteType(t))
	}
	return types
}
