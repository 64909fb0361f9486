// Package config loads wordgrid configuration from defaults, YAML files and
// the environment.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/layout"
	"github.com/Aman-CERP/wordgrid/internal/logging"
	"github.com/Aman-CERP/wordgrid/internal/search"
)

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".wordgrid.yaml"

// Config is the full wordgrid configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Search     SearchConfig     `yaml:"search"`
	Server     ServerConfig     `yaml:"server"`
}

// ClusteringConfig controls row clustering.
type ClusteringConfig struct {
	// Tolerance fixes the row tolerance. Unset derives it per page from
	// fragment heights.
	Tolerance *float64 `yaml:"tolerance,omitempty"`

	// ToleranceRatio is the fraction of the average fragment height used as
	// the derived tolerance.
	ToleranceRatio float64 `yaml:"tolerance_ratio"`

	// Epsilon is the floor of the derived tolerance.
	Epsilon float64 `yaml:"epsilon"`

	// FallbackHeight replaces the average height on pages with no positive
	// fragment heights.
	FallbackHeight float64 `yaml:"fallback_height"`

	// OverMergeThreshold flags rows with more fragments than this. 0 disables.
	OverMergeThreshold int `yaml:"over_merge_threshold"`
}

// IndexingConfig controls indexing runs.
type IndexingConfig struct {
	// Workers bounds parallel page decoding and clustering. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`

	// DataDir holds per-document word stores and lock files.
	DataDir string `yaml:"data_dir"`

	// BoundariesFile is an optional YAML file of manual row cut-lines.
	BoundariesFile string `yaml:"boundaries_file,omitempty"`
}

// SearchConfig controls the search index.
type SearchConfig struct {
	// Backend is "memory" or "bleve".
	Backend string `yaml:"backend"`

	// Fields maps scored fields ("word", "sentence") to boosts.
	Fields map[string]float64 `yaml:"fields"`

	// PrefixWeight scales matches on a strict prefix of an indexed term.
	PrefixWeight float64 `yaml:"prefix_weight"`

	// MaxResults is the default result limit. 0 is unlimited.
	MaxResults int `yaml:"max_results"`

	// CacheSize is the number of cached query results. 0 disables the cache.
	CacheSize int `yaml:"cache_size"`
}

// ServerConfig controls logging and the optional metrics listener.
type ServerConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	lc := layout.DefaultConfig()
	weights := search.DefaultFieldWeights()

	return &Config{
		Version: 1,
		Clustering: ClusteringConfig{
			ToleranceRatio:     lc.ToleranceRatio,
			Epsilon:            lc.Epsilon,
			FallbackHeight:     lc.FallbackHeight,
			OverMergeThreshold: lc.OverMergeThreshold,
		},
		Indexing: IndexingConfig{
			Workers: runtime.GOMAXPROCS(0),
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			Backend: search.BackendMemory,
			Fields: map[string]float64{
				string(search.FieldWord):     weights[search.FieldWord],
				string(search.FieldSentence): weights[search.FieldSentence],
			},
			PrefixWeight: search.DefaultPrefixWeight,
			MaxResults:   50,
			CacheSize:    search.DefaultCacheSize,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".wordgrid", "data")
	}
	return filepath.Join(home, ".wordgrid", "data")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/wordgrid/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/wordgrid/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wordgrid", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "wordgrid", "config.yaml")
	}
	return filepath.Join(home, ".config", "wordgrid", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//  1. Defaults
//  2. User config (~/.config/wordgrid/config.yaml)
//  3. Project config (.wordgrid.yaml in dir), or explicit when non-empty
//  4. Environment variables (WORDGRID_*)
//
// The result is validated.
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if !fileExists(explicit) {
			return nil, errors.New(errors.ErrCodeConfigNotFound, fmt.Sprintf("config file not found: %s", explicit), nil)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	} else if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path over the current values; keys absent from the file
// keep their earlier value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read config file %s: %v", path, err), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
	}
	return nil
}

// applyEnvOverrides applies WORDGRID_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("WORDGRID_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("WORDGRID_TOLERANCE: %v", err), err)
		}
		c.Clustering.Tolerance = &f
	}
	if v := os.Getenv("WORDGRID_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("WORDGRID_WORKERS: %v", err), err)
		}
		c.Indexing.Workers = n
	}
	if v := os.Getenv("WORDGRID_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("WORDGRID_MAX_RESULTS: %v", err), err)
		}
		c.Search.MaxResults = n
	}
	if v := os.Getenv("WORDGRID_DATA_DIR"); v != "" {
		c.Indexing.DataDir = v
	}
	if v := os.Getenv("WORDGRID_BOUNDARIES_FILE"); v != "" {
		c.Indexing.BoundariesFile = v
	}
	if v := os.Getenv("WORDGRID_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("WORDGRID_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("WORDGRID_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	return nil
}

// Validate checks the configuration. A negative or non-finite fixed
// tolerance is reported as a tolerance error before any run starts.
func (c *Config) Validate() error {
	if t := c.Clustering.Tolerance; t != nil {
		if *t < 0 || math.IsNaN(*t) || math.IsInf(*t, 0) {
			return errors.ToleranceConfigError(*t)
		}
	}
	if !(c.Clustering.ToleranceRatio > 0) {
		return errors.ConfigError(fmt.Sprintf("clustering.tolerance_ratio must be > 0, got %v", c.Clustering.ToleranceRatio), nil)
	}
	if !(c.Clustering.Epsilon > 0) {
		return errors.ConfigError(fmt.Sprintf("clustering.epsilon must be > 0, got %v", c.Clustering.Epsilon), nil)
	}
	if !(c.Clustering.FallbackHeight > 0) {
		return errors.ConfigError(fmt.Sprintf("clustering.fallback_height must be > 0, got %v", c.Clustering.FallbackHeight), nil)
	}
	if c.Clustering.OverMergeThreshold < 0 {
		return errors.ConfigError(fmt.Sprintf("clustering.over_merge_threshold must be >= 0, got %d", c.Clustering.OverMergeThreshold), nil)
	}

	if c.Indexing.Workers < 0 {
		return errors.ConfigError(fmt.Sprintf("indexing.workers must be >= 0, got %d", c.Indexing.Workers), nil)
	}
	if c.Indexing.DataDir == "" {
		return errors.ConfigError("indexing.data_dir must be set", nil)
	}

	if _, err := search.NewBuilder(c.SearchBuilderConfig()); err != nil {
		return err
	}
	if c.Search.PrefixWeight < 0 || c.Search.PrefixWeight > 1 {
		return errors.ConfigError(fmt.Sprintf("search.prefix_weight must be between 0 and 1, got %v", c.Search.PrefixWeight), nil)
	}
	if c.Search.MaxResults < 0 {
		return errors.ConfigError(fmt.Sprintf("search.max_results must be >= 0, got %d", c.Search.MaxResults), nil)
	}
	if c.Search.CacheSize < 0 {
		return errors.ConfigError(fmt.Sprintf("search.cache_size must be >= 0, got %d", c.Search.CacheSize), nil)
	}

	if !logging.ValidLevel(c.Server.LogLevel) {
		return errors.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}

	return nil
}

// LayoutConfig returns the row clusterer configuration.
func (c *Config) LayoutConfig() layout.Config {
	return layout.Config{
		ToleranceRatio:     c.Clustering.ToleranceRatio,
		Epsilon:            c.Clustering.Epsilon,
		FallbackHeight:     c.Clustering.FallbackHeight,
		OverMergeThreshold: c.Clustering.OverMergeThreshold,
	}
}

// SearchBuilderConfig returns the search index builder configuration.
func (c *Config) SearchBuilderConfig() search.BuilderConfig {
	fields := make(search.FieldWeights, len(c.Search.Fields))
	for name, w := range c.Search.Fields {
		fields[search.Field(strings.ToLower(name))] = w
	}
	return search.BuilderConfig{
		Backend:      c.Search.Backend,
		Fields:       fields,
		PrefixWeight: c.Search.PrefixWeight,
	}
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
