package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/joindb/internal/docdb"
	"github.com/roach88/joindb/internal/ir"
)

// IDField is the document key that carries an explicit document ID in
// fixture files. It is removed from the stored body.
const IDField = "_id"

// Fixture is a set of collections to load before running queries.
//
// YAML (or JSON) format:
//
//	collections:
//	  departments:
//	    schema: {type: object, required: [code]}   # optional JSON Schema
//	    documents:
//	      - {_id: d1000, code: "1000", name: Engineering}
//	  employees:
//	    documents:
//	      - {firstname: John, department: "1000"}  # ID generated
//
// Collections load in name order and documents in file order, so sequence
// numbers and therefore result order are reproducible.
type Fixture struct {
	Collections map[string]FixtureCollection `yaml:"collections"`
}

// FixtureCollection describes one collection in a fixture.
type FixtureCollection struct {
	// Schema is a JSON Schema given either as a YAML mapping or as a JSON
	// string. Empty means unvalidated.
	Schema any `yaml:"schema,omitempty"`

	// Documents are inserted in order.
	Documents []map[string]any `yaml:"documents"`
}

// LoadFixture reads and parses a fixture file.
// Unknown fields are rejected to catch typos.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture parses fixture YAML or JSON.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if len(f.Collections) == 0 {
		return fmt.Errorf("collections is required and must be non-empty")
	}
	for name, c := range f.Collections {
		if name == "" || name == docdb.DatabaseSource {
			return fmt.Errorf("invalid collection name %q", name)
		}
		for i, doc := range c.Documents {
			if id, ok := doc[IDField]; ok {
				if s, isString := id.(string); !isString || s == "" {
					return fmt.Errorf("collections.%s.documents[%d]: %s must be a non-empty string", name, i, IDField)
				}
			}
		}
	}
	return nil
}

// Names returns the collection names in load order.
func (f *Fixture) Names() []string {
	names := make([]string, 0, len(f.Collections))
	for name := range f.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply creates the fixture's collections in db and inserts every
// document. A collection that already exists is reused and its schema left
// unchanged. Returns the number of documents written.
func (f *Fixture) Apply(ctx context.Context, db *docdb.Database) (int, error) {
	written := 0
	for _, name := range f.Names() {
		fc := f.Collections[name]

		schema, err := schemaString(fc.Schema)
		if err != nil {
			return written, fmt.Errorf("collection %s: %w", name, err)
		}

		coll, err := db.Collection(name)
		if docdb.IsUnknownCollection(err) {
			coll, err = db.CreateCollection(ctx, name, schema)
		}
		if err != nil {
			return written, fmt.Errorf("collection %s: %w", name, err)
		}

		for i, raw := range fc.Documents {
			id, body, err := documentBody(raw)
			if err != nil {
				return written, fmt.Errorf("collection %s document %d: %w", name, i, err)
			}
			if _, err := coll.Put(ctx, id, body); err != nil {
				return written, fmt.Errorf("collection %s document %d: %w", name, i, err)
			}
			written++
		}
	}
	return written, nil
}

// documentBody splits the _id field off a fixture document and converts
// the rest to an IR object.
func documentBody(raw map[string]any) (string, ir.IRObject, error) {
	fields := make(map[string]any, len(raw))
	id := ""
	for k, v := range raw {
		if k == IDField {
			id, _ = v.(string)
			continue
		}
		fields[k] = v
	}
	v, err := ir.FromGo(fields)
	if err != nil {
		return "", nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return "", nil, fmt.Errorf("document is not an object")
	}
	return id, obj, nil
}

// schemaString renders a fixture schema as JSON text.
func schemaString(schema any) (string, error) {
	switch s := schema.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		// yaml.v3 decodes mappings as map[string]any, which encoding/json
		// accepts directly.
		data, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("encode schema: %w", err)
		}
		return string(data), nil
	}
}
