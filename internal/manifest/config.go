package manifest

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// ConfigSchema compiles a package-supplied config.schema.json document and
// acts as a validator for that package's config.json (spec.md §4.2: "A
// ConfigSchema object can later act as a validator for user Config
// instances, which are always validated at load time").
type ConfigSchema struct {
	loaded *gojsonschema.Schema
	raw    []byte
}

// LoadConfigSchema compiles a config.schema.json document's raw bytes.
func LoadConfigSchema(schemaJSON []byte) (*ConfigSchema, error) {
	loader := gojsonschema.NewBytesLoader(schemaJSON)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, herrors.Wrap(err, "compile config schema")
	}
	return &ConfigSchema{loaded: schema, raw: schemaJSON}, nil
}

// Config is a schema-validated config.json document.
type Config struct {
	raw json.RawMessage
}

// LoadConfig validates configJSON against s and returns the validated
// Config. Every Config is validated at load time; there is no way to
// construct one bypassing the schema (spec.md §4.2).
func (s *ConfigSchema) LoadConfig(configJSON []byte) (*Config, error) {
	result, err := s.loaded.Validate(gojsonschema.NewBytesLoader(configJSON))
	if err != nil {
		return nil, herrors.Wrap(err, "validate config")
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) == 0 {
			return nil, &herrors.ManifestError{Field: "<config>", Reason: "schema validation failed"}
		}
		return nil, &herrors.ManifestError{Field: errs[0].Field(), Reason: errs[0].Description()}
	}
	return &Config{raw: append(json.RawMessage(nil), configJSON...)}, nil
}

// Bytes returns the validated config document's raw bytes.
func (c *Config) Bytes() []byte { return c.raw }

// Unmarshal decodes the validated config into v.
func (c *Config) Unmarshal(v any) error {
	return json.Unmarshal(c.raw, v)
}
