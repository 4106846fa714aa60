package manifest

// Embedded JSON-Schema-Draft-7 documents (spec.md §2 Component C: "Each
// package kind has a fixed JSON-Schema-Draft-7 embedded in the runtime").

const moduleMetadataSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "HermesModuleMetadata",
  "type": "object",
  "required": ["name", "version", "build_date"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "build_date": {"type": "string", "format": "date-time"},
    "description": {"type": "string"},
    "author": {"type": "string"}
  },
  "additionalProperties": true
}`

const appMetadataSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "HermesApplicationMetadata",
  "type": "object",
  "required": ["name", "version", "build_date"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "build_date": {"type": "string", "format": "date-time"},
    "icon": {"type": "string"},
    "modules": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "additionalProperties": true
}`
