// Package report carries the engine's human-readable audit lines to whatever
// sink the caller supplies.
//
// Reporting is one-way and best-effort: a Reporter never returns an error to
// the engine, and a slow or failing sink must not change a remodel outcome.
package report

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Level grades an audit line.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Entry is one audit line about one concept.
type Entry struct {
	ConceptID string    `json:"concept_id"`
	Template  string    `json:"template,omitempty"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Reporter receives audit lines. Implementations must be safe for concurrent
// use when the batch driver runs concepts in parallel.
type Reporter interface {
	Report(e Entry)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(e Entry)

// Report calls f(e).
func (f ReporterFunc) Report(e Entry) { f(e) }

// Discard drops every entry.
var Discard Reporter = ReporterFunc(func(Entry) {})

// SlogReporter writes entries to a structured logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a reporter on logger, or slog.Default() when nil.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{logger: logger}
}

// Report logs the entry at the matching level.
func (r *SlogReporter) Report(e Entry) {
	level := slog.LevelInfo
	if e.Level == LevelWarn {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, e.Message, "concept", e.ConceptID, "template", e.Template)
}

// Collector keeps entries in memory.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

// Report appends the entry.
func (c *Collector) Report(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

// Entries returns a copy of everything collected so far.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

// For returns the messages collected for one concept, in order.
func (c *Collector) For(conceptID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.entries {
		if e.ConceptID == conceptID {
			out = append(out, e.Message)
		}
	}
	return out
}

// Reset drops all collected entries.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

type multi []Reporter

func (m multi) Report(e Entry) {
	for _, r := range m {
		r.Report(e)
	}
}

// Multi fans every entry out to all non-nil reporters.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}
