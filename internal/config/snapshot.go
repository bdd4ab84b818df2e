package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical snapshot defaults file.
const DefaultConfigPath = "config/snapshot.defaults.json"

// Fallback values used when a field is absent from the loaded file.
const (
	DefaultHardBodyRadius         = 0.02
	DefaultAllToAllBinCount       = 1_000_000
	DefaultAllToAllInitialBinMult = 1.5
	DefaultAllToAllMaxBinTries    = 5
	DefaultWatchDebounce          = 250 * time.Millisecond
	DefaultListen                 = ":8090"
	DefaultOutputDir              = "snapshot-out"
)

const maxConfigFileSize int64 = 1 * 1024 * 1024

// SnapshotConfig is the settings surface consumed by the orchestrator and
// the CLI. All fields are pointers so a partial file keeps defaults for
// anything it omits; use the Get* accessors to read effective values.
type SnapshotConfig struct {
	// Inputs
	InputFiles []string `json:"input_files,omitempty" yaml:"input_files,omitempty"`
	EpochIndex *uint32  `json:"epoch_index,omitempty" yaml:"epoch_index,omitempty"`

	// Conjunction params
	HardBodyRadius *float64 `json:"hard_body_radius,omitempty" yaml:"hard_body_radius,omitempty"`
	AllToAll       *bool    `json:"all_to_all,omitempty" yaml:"all_to_all,omitempty"`

	// All-to-All binning params
	AllToAllBinCount       *uint32  `json:"all_to_all_bin_count,omitempty" yaml:"all_to_all_bin_count,omitempty"`
	AllToAllInitialBinMult *float64 `json:"all_to_all_initial_bin_multiplier,omitempty" yaml:"all_to_all_initial_bin_multiplier,omitempty"`
	AllToAllMaxBinTries    *uint32  `json:"all_to_all_max_bin_tries,omitempty" yaml:"all_to_all_max_bin_tries,omitempty"`
	Workers                *int     `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Outputs
	OutputDir *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	PlotPNG   *bool   `json:"plot_png,omitempty" yaml:"plot_png,omitempty"`
	ChartHTML *bool   `json:"chart_html,omitempty" yaml:"chart_html,omitempty"`

	// Live mode
	Listen        *string  `json:"listen,omitempty" yaml:"listen,omitempty"`
	AllowedDirs   []string `json:"allowed_dirs,omitempty" yaml:"allowed_dirs,omitempty"`
	Watch         *bool    `json:"watch,omitempty" yaml:"watch,omitempty"`
	WatchDebounce *string  `json:"watch_debounce,omitempty" yaml:"watch_debounce,omitempty"` // duration string like "250ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrUint32(v uint32) *uint32    { return &v }

// EmptySnapshotConfig returns a SnapshotConfig with all fields unset.
func EmptySnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{}
}

// DefaultSnapshotConfig returns a config with every tunable populated from
// the built-in fallbacks. It does not touch the filesystem.
func DefaultSnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{
		EpochIndex:             ptrUint32(0),
		HardBodyRadius:         ptrFloat64(DefaultHardBodyRadius),
		AllToAll:               ptrBool(false),
		AllToAllBinCount:       ptrUint32(DefaultAllToAllBinCount),
		AllToAllInitialBinMult: ptrFloat64(DefaultAllToAllInitialBinMult),
		AllToAllMaxBinTries:    ptrUint32(DefaultAllToAllMaxBinTries),
		OutputDir:              ptrString(DefaultOutputDir),
		PlotPNG:                ptrBool(false),
		ChartHTML:              ptrBool(false),
		Listen:                 ptrString(DefaultListen),
		Watch:                  ptrBool(false),
		WatchDebounce:          ptrString(DefaultWatchDebounce.String()),
	}
}

// LoadSnapshotConfig loads a SnapshotConfig from a .json, .yaml or .yml file.
// Fields omitted from the file stay nil and fall back to defaults through
// the Get* accessors, so partial configs are safe.
func LoadSnapshotConfig(path string) (*SnapshotConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySnapshotConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *SnapshotConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSnapshotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set fields hold usable values.
func (c *SnapshotConfig) Validate() error {
	if c.HardBodyRadius != nil && (*c.HardBodyRadius < 0 || *c.HardBodyRadius != *c.HardBodyRadius) {
		return fmt.Errorf("hard_body_radius must be non-negative, got %f", *c.HardBodyRadius)
	}
	if c.AllToAllBinCount != nil && *c.AllToAllBinCount == 0 {
		return fmt.Errorf("all_to_all_bin_count must be positive")
	}
	if c.AllToAllInitialBinMult != nil && *c.AllToAllInitialBinMult <= 0 {
		return fmt.Errorf("all_to_all_initial_bin_multiplier must be positive, got %f", *c.AllToAllInitialBinMult)
	}
	if c.AllToAllMaxBinTries != nil && *c.AllToAllMaxBinTries == 0 {
		return fmt.Errorf("all_to_all_max_bin_tries must be at least 1")
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.WatchDebounce != nil && *c.WatchDebounce != "" {
		if _, err := time.ParseDuration(*c.WatchDebounce); err != nil {
			return fmt.Errorf("invalid watch_debounce '%s': %w", *c.WatchDebounce, err)
		}
	}
	return nil
}

// GetEpochIndex returns the epoch_index value or 0.
func (c *SnapshotConfig) GetEpochIndex() uint32 {
	if c.EpochIndex == nil {
		return 0
	}
	return *c.EpochIndex
}

// GetHardBodyRadius returns the hard_body_radius value or the default.
func (c *SnapshotConfig) GetHardBodyRadius() float64 {
	if c.HardBodyRadius == nil {
		return DefaultHardBodyRadius
	}
	return *c.HardBodyRadius
}

// GetAllToAll returns the all_to_all value or false.
func (c *SnapshotConfig) GetAllToAll() bool {
	if c.AllToAll == nil {
		return false
	}
	return *c.AllToAll
}

// GetAllToAllBinCount returns the all_to_all_bin_count value or the default.
func (c *SnapshotConfig) GetAllToAllBinCount() uint32 {
	if c.AllToAllBinCount == nil {
		return DefaultAllToAllBinCount
	}
	return *c.AllToAllBinCount
}

// GetAllToAllInitialBinMultiplier returns the initial bin multiplier or the default.
func (c *SnapshotConfig) GetAllToAllInitialBinMultiplier() float64 {
	if c.AllToAllInitialBinMult == nil {
		return DefaultAllToAllInitialBinMult
	}
	return *c.AllToAllInitialBinMult
}

// GetAllToAllMaxBinTries returns the all_to_all_max_bin_tries value or the default.
func (c *SnapshotConfig) GetAllToAllMaxBinTries() uint32 {
	if c.AllToAllMaxBinTries == nil {
		return DefaultAllToAllMaxBinTries
	}
	return *c.AllToAllMaxBinTries
}

// GetWorkers returns the worker count; 0 means one per CPU.
func (c *SnapshotConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetOutputDir returns the output_dir value or the default.
func (c *SnapshotConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

// GetPlotPNG returns the plot_png value or false.
func (c *SnapshotConfig) GetPlotPNG() bool {
	if c.PlotPNG == nil {
		return false
	}
	return *c.PlotPNG
}

// GetChartHTML returns the chart_html value or false.
func (c *SnapshotConfig) GetChartHTML() bool {
	if c.ChartHTML == nil {
		return false
	}
	return *c.ChartHTML
}

// GetListen returns the listen address or the default.
func (c *SnapshotConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetWatch returns the watch value or false.
func (c *SnapshotConfig) GetWatch() bool {
	if c.Watch == nil {
		return false
	}
	return *c.Watch
}

// GetWatchDebounce parses and returns WatchDebounce as a time.Duration.
func (c *SnapshotConfig) GetWatchDebounce() time.Duration {
	if c.WatchDebounce == nil || *c.WatchDebounce == "" {
		return DefaultWatchDebounce
	}
	d, err := time.ParseDuration(*c.WatchDebounce)
	if err != nil {
		return DefaultWatchDebounce
	}
	return d
}
