package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Snapshot.Driver != DriverYAML {
		t.Errorf("expected default snapshot driver yaml, got %s", cfg.Snapshot.Driver)
	}
	if cfg.Templates.Pattern != "**/*.yaml" {
		t.Errorf("expected default pattern **/*.yaml, got %s", cfg.Templates.Pattern)
	}
	if cfg.Remodel.Closure != "inferred" {
		t.Errorf("expected inferred closure by default, got %s", cfg.Remodel.Closure)
	}
	if cfg.Remodel.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Remodel.Workers)
	}
	if cfg.History.Driver != DriverNone {
		t.Errorf("expected no history by default, got %s", cfg.History.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown snapshot driver",
			modify:  func(c *Config) { c.Snapshot.Driver = "csv" },
			wantErr: true,
		},
		{
			name:    "missing snapshot path",
			modify:  func(c *Config) { c.Snapshot.Path = "" },
			wantErr: true,
		},
		{
			name:    "missing templates dir",
			modify:  func(c *Config) { c.Templates.Dir = "" },
			wantErr: true,
		},
		{
			name:    "unknown closure",
			modify:  func(c *Config) { c.Remodel.Closure = "additional" },
			wantErr: true,
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Remodel.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Remodel.ConceptTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative group cap",
			modify:  func(c *Config) { c.Remodel.MaxAdditionalGroups = -1 },
			wantErr: true,
		},
		{
			name:    "nats history without url",
			modify:  func(c *Config) { c.History.Driver = DriverNATS },
			wantErr: true,
		},
		{
			name: "nats history with url",
			modify: func(c *Config) {
				c.History.Driver = DriverNATS
				c.Report.NATSURL = "nats://localhost:4222"
			},
			wantErr: false,
		},
		{
			name:    "sqlite history needs a database",
			modify:  func(c *Config) { c.History.Driver = DriverSQLite },
			wantErr: true,
		},
		{
			name: "sqlite history shares the snapshot database",
			modify: func(c *Config) {
				c.Snapshot.Driver = DriverSQLite
				c.Snapshot.Path = "terminology.db"
				c.History.Driver = DriverSQLite
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.HistoryPath(); got != "" {
		t.Errorf("expected no history path for a yaml snapshot, got %s", got)
	}

	cfg.Snapshot.Driver = DriverSQLite
	cfg.Snapshot.Path = "/data/terminology.db"
	if got := cfg.HistoryPath(); got != "/data/terminology.db" {
		t.Errorf("expected history in the snapshot database, got %s", got)
	}

	cfg.History.Path = "/data/history.db"
	if got := cfg.HistoryPath(); got != "/data/history.db" {
		t.Errorf("expected explicit history path, got %s", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
snapshot:
  driver: sqlite
  path: /var/lib/semremodel/terminology.db
templates:
  dir: /etc/semremodel/templates
  watch: true
  debounce_delay: 250ms
remodel:
  closure: stated
  workers: 16
  concept_timeout: 2s
  max_additional_groups: 2
report:
  nats_url: "nats://test:4222"
metrics:
  textfile: /var/lib/node_exporter/semremodel.prom
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Snapshot.Driver != DriverSQLite {
		t.Errorf("expected sqlite snapshot, got %s", cfg.Snapshot.Driver)
	}
	if !cfg.Templates.Watch {
		t.Error("expected template watching")
	}
	if cfg.Templates.DebounceDelay != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Templates.DebounceDelay)
	}
	if cfg.Templates.Pattern != "**/*.yaml" {
		t.Errorf("expected default pattern to survive, got %s", cfg.Templates.Pattern)
	}
	if cfg.Remodel.Workers != 16 {
		t.Errorf("expected 16 workers, got %d", cfg.Remodel.Workers)
	}
	if cfg.Remodel.ConceptTimeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Remodel.ConceptTimeout)
	}
	if cfg.Remodel.MaxAdditionalGroups != 2 {
		t.Errorf("expected group cap 2, got %d", cfg.Remodel.MaxAdditionalGroups)
	}
	if cfg.Report.NATSURL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.Report.NATSURL)
	}
	if cfg.Report.Subject != "semremodel.audit" {
		t.Errorf("expected default subject, got %s", cfg.Report.Subject)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Remodel: RemodelConfig{
			Workers: 8,
		},
		Templates: TemplatesConfig{
			Dir: "/override/templates",
		},
	}

	base.Merge(override)

	if base.Remodel.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", base.Remodel.Workers)
	}
	// Closure should remain from base since override didn't set it
	if base.Remodel.Closure != "inferred" {
		t.Errorf("expected closure to remain default, got %s", base.Remodel.Closure)
	}
	if base.Templates.Dir != "/override/templates" {
		t.Errorf("expected templates dir /override/templates, got %s", base.Templates.Dir)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Remodel.Workers = 12

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Remodel.Workers != 12 {
		t.Errorf("expected 12 workers, got %d", loaded.Remodel.Workers)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "concepts", "findings")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
remodel:
  workers: 8
  closure: stated
`)
	writeFile(t, filepath.Join(project, ProjectConfigFile), `
snapshot:
  path: data/snapshot.yaml
remodel:
  closure: inferred
`)

	l := NewLoader(nil)
	l.homeDir = home
	l.workDir = nested

	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Remodel.Workers != 8 {
		t.Errorf("expected user workers to survive the project layer, got %d", cfg.Remodel.Workers)
	}
	if cfg.Remodel.Closure != "inferred" {
		t.Errorf("expected project closure to win, got %s", cfg.Remodel.Closure)
	}
	want := filepath.Join(project, "data", "snapshot.yaml")
	if cfg.Snapshot.Path != want {
		t.Errorf("expected snapshot path %s, got %s", want, cfg.Snapshot.Path)
	}
}

func TestLoaderExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `
templates:
  dir: tmpl
`)

	l := NewLoader(nil)
	l.homeDir = t.TempDir()
	l.workDir = t.TempDir()

	cfg, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Templates.Dir != filepath.Join(dir, "tmpl") {
		t.Errorf("expected templates dir relative to the file, got %s", cfg.Templates.Dir)
	}
}

func TestLoaderInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigFile)
	writeFile(t, path, `
remodel:
  closure: sideways
`)

	l := NewLoader(nil)
	l.homeDir = t.TempDir()

	_, err := l.Load(path)
	if err == nil || !strings.Contains(err.Error(), "sideways") {
		t.Errorf("expected closure validation error, got %v", err)
	}

	_, err = l.Load(filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	l := NewLoader(nil)
	l.homeDir = t.TempDir()

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	path := filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected user config at %s: %v", path, err)
	}
	// A second call leaves the file alone.
	if err := l.EnsureUserConfig(); err != nil {
		t.Errorf("second EnsureUserConfig() error = %v", err)
	}
}
