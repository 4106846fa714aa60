// Package manifest implements Component C: JSON manifests validated
// against embedded JSON-Schema-Draft-7 definitions, plus the generic
// Metadata[T] loader and Config validation.
package manifest

import (
	"github.com/xeipuuv/gojsonschema"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// SchemaKind names which embedded schema a document is validated against.
type SchemaKind int

const (
	ModuleMetadataSchema SchemaKind = iota
	AppMetadataSchema
)

// Schema wraps a compiled JSON-Schema-Draft-7 document.
type Schema struct {
	kind   SchemaKind
	loaded *gojsonschema.Schema
}

// compileSchema compiles raw schema JSON text embedded in the binary.
func compileSchema(kind SchemaKind, raw string) (*Schema, error) {
	loader := gojsonschema.NewStringLoader(raw)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, herrors.Wrap(err, "compile embedded json schema")
	}
	return &Schema{kind: kind, loaded: schema}, nil
}

// Validate validates documentJSON against s, returning a ManifestError
// naming the first failing field on failure.
func (s *Schema) Validate(documentJSON []byte) error {
	result, err := s.loaded.Validate(gojsonschema.NewBytesLoader(documentJSON))
	if err != nil {
		return herrors.Wrap(err, "validate json schema")
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) == 0 {
			return &herrors.ManifestError{Field: "<document>", Reason: "schema validation failed"}
		}
		return &herrors.ManifestError{Field: errs[0].Field(), Reason: errs[0].Description()}
	}
	return nil
}

var (
	moduleMetadataSchema *Schema
	appMetadataSchema    *Schema
)

func init() {
	var err error
	moduleMetadataSchema, err = compileSchema(ModuleMetadataSchema, moduleMetadataSchemaJSON)
	if err != nil {
		panic("hermes: invalid embedded module metadata schema: " + err.Error())
	}
	appMetadataSchema, err = compileSchema(AppMetadataSchema, appMetadataSchemaJSON)
	if err != nil {
		panic("hermes: invalid embedded app metadata schema: " + err.Error())
	}
}

// ModuleMetadataSchemaDoc returns the embedded schema for module metadata.json.
func ModuleMetadataSchemaDoc() *Schema { return moduleMetadataSchema }

// AppMetadataSchemaDoc returns the embedded schema for application metadata.json.
func AppMetadataSchemaDoc() *Schema { return appMetadataSchema }
