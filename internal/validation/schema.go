package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spboyer/portsel/internal/corpus"
	"github.com/spboyer/portsel/internal/eligibility"
	"github.com/spboyer/portsel/schemas"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// configSchema is the compiled JSON Schema for .portsel.yaml files.
var configSchema *jsonschema.Schema

func init() {
	configSchema = mustCompileSchema(schemas.ConfigSchemaJSON, "config.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateConfigFile validates a .portsel.yaml file at the given path. When the
// schema passes, eligibility rule patterns are also compiled.
func ValidateConfigFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	errs := ValidateConfigBytes(data)
	if len(errs) > 0 {
		return errs, nil
	}
	return checkSemantics(data), nil
}

// ValidateConfigBytes validates raw YAML bytes against the config schema.
func ValidateConfigBytes(data []byte) []string {
	return validateYAMLBytes(configSchema, data)
}

// ValidateDescriptorBytes checks that raw YAML is a usable descriptor file.
func ValidateDescriptorBytes(data []byte) []string {
	if _, err := corpus.ParseDescriptors(data); err != nil {
		return []string{fmt.Sprintf("descriptors: %v", err)}
	}
	return nil
}

func checkSemantics(data []byte) []string {
	var doc struct {
		Eligibility struct {
			Rules []map[string]any `yaml:"rules"`
		} `yaml:"eligibility"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	rules, err := eligibility.DecodeRules(doc.Eligibility.Rules)
	if err != nil {
		return []string{fmt.Sprintf("/eligibility/rules: %v", err)}
	}
	if _, err := eligibility.New(rules); err != nil {
		return []string{fmt.Sprintf("/eligibility/rules: %v", err)}
	}
	return nil
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	// Parse YAML into generic any
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if yamlDoc == nil {
		// an empty file is a valid config: every value defaults
		return nil
	}

	jsonCompatible := convertToJSONCompatible(yamlDoc)

	return validateAgainstSchema(schema, jsonCompatible)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible
// types. Maps with non-string keys (e.g. `1: x`) get stringified keys.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case map[any]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[fmt.Sprint(k)] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
