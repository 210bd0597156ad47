package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
	"github.com/c360studio/semremodel/template"
)

// Snapshot is the YAML fixture layout of a terminology snapshot.
type Snapshot struct {
	Concepts      []ConceptRecord      `yaml:"concepts"`
	Relationships []RelationshipRecord `yaml:"relationships"`
}

// LoadSnapshotFile reads a YAML snapshot file into a new store.
func LoadSnapshotFile(path string, opts ...graph.StoreOption) (*graph.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	store, err := ReadSnapshot(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return store, nil
}

// ReadSnapshot decodes a YAML snapshot into a new store.
func ReadSnapshot(r io.Reader, opts ...graph.StoreOption) (*graph.Store, error) {
	var snap Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return Build(snap.Concepts, snap.Relationships, opts...)
}

// WriteSnapshot encodes the whole store, inactive relationships included.
func WriteSnapshot(w io.Writer, store *graph.Store) error {
	var snap Snapshot
	snap.Concepts, snap.Relationships = Records(store)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// SaveSnapshotFile writes the store to path, creating parent directories.
func SaveSnapshotFile(path string, store *graph.Store) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, store); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// RemovalRecord names a (type, target) pair to drop from every group.
type RemovalRecord struct {
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
}

// RequestRecord asks for one concept to be remodeled against a template.
type RequestRecord struct {
	Concept  string          `yaml:"concept"`
	Template string          `yaml:"template"`
	Remove   []RemovalRecord `yaml:"remove,omitempty"`
}

// RequestFile is the YAML layout of a batch of remodel requests.
//
//	template: finding          # default for entries without one
//	requests:
//	  - concept: "22298006"
//	  - concept: "195967001"
//	    template: disorder
//	    remove:
//	      - {type: "363698007", target: "123037004"}
type RequestFile struct {
	Template string          `yaml:"template,omitempty"`
	Requests []RequestRecord `yaml:"requests"`
}

// LoadRequestFile reads a YAML request file.
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	var rf RequestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse requests %s: %w", path, err)
	}
	return &rf, nil
}

// Resolve turns the records into engine requests, looking concepts up in the
// store and templates in the registry. Every unresolved name is reported.
func (rf *RequestFile) Resolve(store *graph.Store, templates *template.Registry) ([]remodel.Request, error) {
	var errs []error
	concept := func(id string) *graph.Concept {
		c, ok := store.Concept(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", graph.ErrUnknownConcept, id))
		}
		return c
	}

	reqs := make([]remodel.Request, 0, len(rf.Requests))
	for _, rec := range rf.Requests {
		name := rec.Template
		if name == "" {
			name = rf.Template
		}
		tmpl, err := templates.Get(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("request for %s: %w", rec.Concept, err))
			continue
		}
		req := remodel.Request{Concept: concept(rec.Concept), Template: tmpl}
		for _, rm := range rec.Remove {
			req.Remove = append(req.Remove, remodel.Removal{
				Type:   concept(rm.Type),
				Target: concept(rm.Target),
			})
		}
		reqs = append(reqs, req)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("resolve requests: %w", errors.Join(errs...))
	}
	return reqs, nil
}
