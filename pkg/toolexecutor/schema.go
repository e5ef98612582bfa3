package toolexecutor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// Schema builds a JSON Schema object from parameter descriptors.
func Schema(params ...ToolParameter) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for _, param := range params {
		paramSchema := map[string]interface{}{
			"type": param.Type,
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		if param.Items != "" {
			paramSchema["items"] = map[string]interface{}{"type": param.Items}
		}
		if len(param.Enum) > 0 {
			paramSchema["enum"] = param.Enum
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return schemaMap
}

// ParameterSchema returns the JSON Schema the tool's arguments are validated against.
func (def ToolDefinition) ParameterSchema() map[string]interface{} {
	if def.Schema != nil {
		return def.Schema
	}
	return Schema(def.Parameters...)
}

// ArgumentDocs lists argument names with their descriptions for prompt rendering.
// Declared parameters keep their order; raw schema properties are sorted by name.
func (def ToolDefinition) ArgumentDocs() [][2]string {
	if def.Schema == nil {
		docs := make([][2]string, 0, len(def.Parameters))
		for _, p := range def.Parameters {
			docs = append(docs, [2]string{p.Name, p.Description})
		}
		return docs
	}

	props, _ := def.Schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([][2]string, 0, len(names))
	for _, name := range names {
		desc := ""
		if info, ok := props[name].(map[string]interface{}); ok {
			desc, _ = info["description"].(string)
		}
		docs = append(docs, [2]string{name, desc})
	}
	return docs
}

func compileSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.ParameterSchema()))
}

func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(messages, "; "))
	}

	return nil
}
