// Package config provides configuration loading and management for semremodel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverYAML   = "yaml"
	DriverSQLite = "sqlite"
	DriverNATS   = "nats"
	DriverNone   = "none"
)

// Config represents the complete semremodel configuration
type Config struct {
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Templates TemplatesConfig `yaml:"templates"`
	Remodel   RemodelConfig   `yaml:"remodel"`
	History   HistoryConfig   `yaml:"history"`
	Report    ReportConfig    `yaml:"report"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SnapshotConfig says where the terminology snapshot comes from
type SnapshotConfig struct {
	// Driver is "yaml" or "sqlite"
	Driver string `yaml:"driver"`
	// Path is the snapshot file or database
	Path string `yaml:"path"`
}

// TemplatesConfig configures template discovery
type TemplatesConfig struct {
	// Dir is the directory searched for template definitions
	Dir string `yaml:"dir"`
	// Pattern is the doublestar glob matched under Dir (default: **/*.yaml)
	Pattern string `yaml:"pattern"`
	// Watch reloads templates when files under Dir change
	Watch bool `yaml:"watch"`
	// DebounceDelay batches rapid file changes into one reload
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// RemodelConfig configures the engine and the batch driver
type RemodelConfig struct {
	// Closure is the characteristic the subsumption closure is built over
	Closure string `yaml:"closure"`
	// Workers is the number of concepts remodeled concurrently
	Workers int `yaml:"workers"`
	// ConceptTimeout is the time budget per concept (0 = unlimited)
	ConceptTimeout time.Duration `yaml:"concept_timeout"`
	// MaxAdditionalGroups caps the groups formed beyond the template's own
	// (0 = no cap beyond template cardinality)
	MaxAdditionalGroups int `yaml:"max_additional_groups"`
}

// HistoryConfig configures where run outcomes are recorded
type HistoryConfig struct {
	// Driver is "none", "sqlite" or "nats"
	Driver string `yaml:"driver"`
	// Path is the SQLite database (defaults to the snapshot database)
	Path string `yaml:"path"`
}

// ReportConfig configures audit line delivery
type ReportConfig struct {
	// NATSURL enables publishing audit lines to NATS when set
	NATSURL string `yaml:"nats_url"`
	// Subject is the NATS subject audit lines are published on
	Subject string `yaml:"subject"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// Textfile is written in the node-exporter textfile format after a run
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Snapshot: SnapshotConfig{
			Driver: DriverYAML,
			Path:   "snapshot.yaml",
		},
		Templates: TemplatesConfig{
			Dir:           "templates",
			Pattern:       "**/*.yaml",
			DebounceDelay: 500 * time.Millisecond,
		},
		Remodel: RemodelConfig{
			Closure:        "inferred",
			Workers:        4,
			ConceptTimeout: 5 * time.Second,
		},
		History: HistoryConfig{
			Driver: DriverNone,
		},
		Report: ReportConfig{
			Subject: "semremodel.audit",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Snapshot.Driver {
	case DriverYAML, DriverSQLite:
	default:
		return fmt.Errorf("snapshot.driver must be %q or %q, got %q", DriverYAML, DriverSQLite, c.Snapshot.Driver)
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	if c.Templates.Dir == "" {
		return fmt.Errorf("templates.dir is required")
	}
	switch c.Remodel.Closure {
	case "inferred", "stated":
	default:
		return fmt.Errorf("remodel.closure must be inferred or stated, got %q", c.Remodel.Closure)
	}
	if c.Remodel.Workers < 1 {
		return fmt.Errorf("remodel.workers must be at least 1")
	}
	if c.Remodel.ConceptTimeout < 0 {
		return fmt.Errorf("remodel.concept_timeout must not be negative")
	}
	if c.Remodel.MaxAdditionalGroups < 0 {
		return fmt.Errorf("remodel.max_additional_groups must not be negative")
	}
	switch c.History.Driver {
	case DriverNone, DriverSQLite:
	case DriverNATS:
		if c.Report.NATSURL == "" {
			return fmt.Errorf("history.driver nats needs report.nats_url")
		}
	default:
		return fmt.Errorf("history.driver must be none, sqlite or nats, got %q", c.History.Driver)
	}
	if c.History.Driver == DriverSQLite && c.History.Path == "" && c.Snapshot.Driver != DriverSQLite {
		return fmt.Errorf("history.path is required unless the snapshot is in SQLite")
	}
	return nil
}

// HistoryPath returns the SQLite database the history is written to.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	if c.Snapshot.Driver == DriverSQLite {
		return c.Snapshot.Path
	}
	return ""
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// readLayer loads a file without defaults, so Merge only sees what the file
// sets.
func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Snapshot
	if other.Snapshot.Driver != "" {
		c.Snapshot.Driver = other.Snapshot.Driver
	}
	if other.Snapshot.Path != "" {
		c.Snapshot.Path = other.Snapshot.Path
	}

	// Templates
	if other.Templates.Dir != "" {
		c.Templates.Dir = other.Templates.Dir
	}
	if other.Templates.Pattern != "" {
		c.Templates.Pattern = other.Templates.Pattern
	}
	if other.Templates.Watch {
		c.Templates.Watch = true
	}
	if other.Templates.DebounceDelay != 0 {
		c.Templates.DebounceDelay = other.Templates.DebounceDelay
	}

	// Remodel
	if other.Remodel.Closure != "" {
		c.Remodel.Closure = other.Remodel.Closure
	}
	if other.Remodel.Workers != 0 {
		c.Remodel.Workers = other.Remodel.Workers
	}
	if other.Remodel.ConceptTimeout != 0 {
		c.Remodel.ConceptTimeout = other.Remodel.ConceptTimeout
	}
	if other.Remodel.MaxAdditionalGroups != 0 {
		c.Remodel.MaxAdditionalGroups = other.Remodel.MaxAdditionalGroups
	}

	// History
	if other.History.Driver != "" {
		c.History.Driver = other.History.Driver
	}
	if other.History.Path != "" {
		c.History.Path = other.History.Path
	}

	// Report
	if other.Report.NATSURL != "" {
		c.Report.NATSURL = other.Report.NATSURL
	}
	if other.Report.Subject != "" {
		c.Report.Subject = other.Report.Subject
	}

	// Metrics
	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
}
