package template

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches template files below a registry directory.
const DefaultPattern = "**/*.yaml"

// Registry holds resolved templates by name. It is safe for concurrent use;
// a reload swaps the whole set so readers never see a partial directory.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	sources   map[string]string
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		templates: make(map[string]*Template),
		sources:   make(map[string]string),
		logger:    logger,
	}
}

// Register adds or replaces one resolved template.
func (r *Registry) Register(t *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name()] = t
}

// Get returns the template with the given name.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// Names returns registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Source returns the file a template was loaded from, if any.
func (r *Registry) Source(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// LoadDir reads every file under dir matching pattern, resolves each one
// against lookup and replaces the registry contents. Files that fail to parse
// or resolve are collected into the returned error; the registry keeps its
// previous contents in that case. Two files declaring the same name are an
// error.
func (r *Registry) LoadDir(dir, pattern string, lookup Lookup) error {
	if pattern == "" {
		pattern = DefaultPattern
	}
	paths, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("glob templates: %w", err)
	}
	slices.Sort(paths)

	templates := make(map[string]*Template, len(paths))
	sources := make(map[string]string, len(paths))
	var errs []error
	for _, path := range paths {
		def, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t, err := Resolve(def, lookup)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if prev, dup := sources[t.Name()]; dup {
			errs = append(errs, fmt.Errorf("%s: template %q already defined in %s", path, t.Name(), prev))
			continue
		}
		templates[t.Name()] = t
		sources[t.Name()] = path
	}
	if len(errs) > 0 {
		return fmt.Errorf("load templates from %s: %w", dir, errors.Join(errs...))
	}

	r.mu.Lock()
	r.templates = templates
	r.sources = sources
	r.mu.Unlock()

	r.logger.Info("Templates loaded", "dir", dir, "count", len(templates))
	return nil
}
