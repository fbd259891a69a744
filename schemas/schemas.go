// Package schemas embeds the JSON schemas used to validate portsel files.
package schemas

import _ "embed"

// ConfigSchemaJSON is the JSON schema for .portsel.yaml.
//
//go:embed config.schema.json
var ConfigSchemaJSON string
