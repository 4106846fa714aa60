package manifest

import (
	"encoding/json"
	"io"
	"time"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Metadata is the typed, schema-validated view over a module or
// application's metadata.json (spec.md §4.2). The generic parameter T
// carries only the package-kind-specific schema selection; the struct
// fields are shared across kinds.
type Metadata[T any] struct {
	raw       json.RawMessage
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	BuildDate time.Time `json:"build_date"`
}

// MetadataSchema is implemented by the marker types ModuleKind/AppKind to
// select which embedded schema validates a Metadata[T].
type MetadataSchema interface {
	Schema() *Schema
}

type ModuleKind struct{}

func (ModuleKind) Schema() *Schema { return ModuleMetadataSchemaDoc() }

type AppKind struct{}

func (AppKind) Schema() *Schema { return AppMetadataSchemaDoc() }

// LoadMetadata reads JSON from r, validates it against T's schema, and
// returns the typed Metadata. Metadata values round-trip: Load -> Serialize
// -> Load is the identity on content (spec.md §4.2).
func LoadMetadata[T MetadataSchema](r io.Reader) (*Metadata[T], error) {
	var zero T
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, herrors.Wrap(err, "read metadata")
	}
	if err := zero.Schema().Validate(raw); err != nil {
		return nil, herrors.Wrap(err, "validate metadata against schema")
	}
	var m Metadata[T]
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, herrors.Wrap(err, "unmarshal metadata")
	}
	m.raw = raw
	return &m, nil
}

// Serialize re-encodes the metadata back to canonical JSON bytes.
func (m *Metadata[T]) Serialize() ([]byte, error) {
	return json.Marshal(struct {
		Name      string    `json:"name"`
		Version   string    `json:"version"`
		BuildDate time.Time `json:"build_date"`
	}{m.Name, m.Version, m.BuildDate})
}

// WithBuildDate returns a copy of m with BuildDate set, used by
// build_from_manifest (spec.md §4.3) to stamp the build time.
func (m Metadata[T]) WithBuildDate(t time.Time) Metadata[T] {
	m.BuildDate = t
	return m
}
