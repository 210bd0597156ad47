package template

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// WatchConfig configures template directory watching.
type WatchConfig struct {
	// Dir is the template directory.
	Dir string `yaml:"dir"`

	// Pattern selects template files; DefaultPattern when empty.
	Pattern string `yaml:"pattern,omitempty"`

	// DebounceDelay is how long to wait for more changes before reloading.
	DebounceDelay string `yaml:"debounce_delay,omitempty"`
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c WatchConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return defaultDebounce
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil || d <= 0 {
		return defaultDebounce
	}
	return d
}

// Watcher reloads a Registry when template files change. Reloads are
// debounced; a failed reload is logged and the previous templates stay live.
type Watcher struct {
	config   WatchConfig
	registry *Registry
	lookup   Lookup
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// reloads receives the error (or nil) of every reload attempt
	reloads chan error
}

// NewWatcher creates a watcher for the registry's template directory.
func NewWatcher(config WatchConfig, registry *Registry, lookup Lookup, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		config:   config,
		registry: registry,
		lookup:   lookup,
		watcher:  fsw,
		logger:   logger,
		reloads:  make(chan error, 16),
	}, nil
}

// Reloads reports the outcome of each reload. The channel is closed when the
// watcher stops.
func (w *Watcher) Reloads() <-chan error {
	return w.reloads
}

// Start adds watches for the directory tree and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.config.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if strings.HasPrefix(base, ".") && path != w.config.Dir {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Template watcher started",
		"dir", w.config.Dir,
		"debounce", w.config.GetDebounceDelay())
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.reloads)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Template change detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.config.GetDebounceDelay())
			} else {
				timer.Reset(w.config.GetDebounceDelay())
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Template watcher error", "error", err)

		case <-fire:
			fire = nil
			err := w.registry.LoadDir(w.config.Dir, w.config.Pattern, w.lookup)
			if err != nil {
				w.logger.Warn("Template reload failed, keeping previous set", "error", err)
			}
			select {
			case w.reloads <- err:
			default:
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}
