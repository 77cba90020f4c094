package router

import (
	"encoding/json"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	rawMessageType = reflect.TypeOf(json.RawMessage{})
)

// schemaRegistry tracks named schema definitions so they are emitted once
// under components.schemas and referenced everywhere else
type schemaRegistry struct {
	schemas map[string]map[string]any
}

// newSchemaRegistry creates a new schema registry
func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		schemas: make(map[string]map[string]any),
	}
}

// register adds a schema to the registry
func (r *schemaRegistry) register(typeName string, schema map[string]any) {
	r.schemas[typeName] = schema
}

func (r *schemaRegistry) has(typeName string) bool {
	_, ok := r.schemas[typeName]
	return ok
}

// getSchemas returns all registered schemas
func (r *schemaRegistry) getSchemas() map[string]any {
	result := make(map[string]any, len(r.schemas))
	for name, schema := range r.schemas {
		result[name] = schema
	}
	return result
}

func ref(typeName string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + typeName}
}

// schemaGenerator converts Go types to JSON Schema. Named struct types are
// registered once and referenced; anonymous ones are inlined.
type schemaGenerator struct {
	registry *schemaRegistry

	// inProgress tracks named types being built so cycles become references
	inProgress map[reflect.Type]bool
}

// newSchemaGenerator creates a new schema generator writing into registry
func newSchemaGenerator(registry *schemaRegistry) *schemaGenerator {
	return &schemaGenerator{
		registry:   registry,
		inProgress: make(map[reflect.Type]bool),
	}
}

// schemaRef returns the schema for the type of v. Named structs, slices and
// maps are registered and referenced, anything else is returned inline.
func (g *schemaGenerator) schemaRef(v any) map[string]any {
	if v == nil {
		return nil
	}

	typ := indirect(reflect.TypeOf(v))
	switch typ.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if typ.Name() != "" && typ != rawMessageType {
			return g.named(typ, g.container)
		}
	}

	return g.schema(typ)
}

// schema returns the schema for typ, registering named structs on the way
func (g *schemaGenerator) schema(typ reflect.Type) map[string]any {
	typ = indirect(typ)

	switch {
	case typ == timeType:
		return map[string]any{"type": "string", "format": "date-time"}
	case typ == rawMessageType:
		return map[string]any{}
	}

	if schema := basicTypeSchema(typ.Kind()); schema != nil {
		return schema
	}

	switch typ.Kind() {
	case reflect.Struct:
		if typ.Name() == "" {
			return g.object(typ)
		}
		return g.named(typ, g.object)
	case reflect.Slice, reflect.Array, reflect.Map:
		return g.container(typ)
	case reflect.Interface:
		return map[string]any{}
	default:
		return map[string]any{"type": "object"}
	}
}

// named registers the schema built by build under typ's name and returns a
// reference to it
func (g *schemaGenerator) named(typ reflect.Type, build func(reflect.Type) map[string]any) map[string]any {
	name := typ.Name()
	if g.registry.has(name) || g.inProgress[typ] {
		return ref(name)
	}

	g.inProgress[typ] = true
	schema := build(typ)
	delete(g.inProgress, typ)

	g.registry.register(name, schema)
	return ref(name)
}

// container handles slices, arrays and maps
func (g *schemaGenerator) container(typ reflect.Type) map[string]any {
	switch typ.Kind() {
	case reflect.Map:
		return map[string]any{
			"type":                 "object",
			"additionalProperties": g.schema(typ.Elem()),
		}
	default:
		if typ.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "format": "byte"}
		}
		return map[string]any{
			"type":  "array",
			"items": g.schema(typ.Elem()),
		}
	}
}

// object converts a struct type to an object schema
func (g *schemaGenerator) object(typ reflect.Type) map[string]any {
	properties := make(map[string]any)
	required := []string{}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		// skip unexported fields
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name, isRequired := parseJsonTag(jsonTag, field.Name)
		if isRequired {
			required = append(required, name)
		}

		schema := g.schema(field.Type)
		if _, isRef := schema["$ref"]; !isRef {
			addFieldMetadata(schema, field)
		}
		properties[name] = schema
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// parseJsonTag extracts name and required status from a json tag. Fields
// marked omitempty are optional.
func parseJsonTag(jsonTag, fieldName string) (string, bool) {
	if jsonTag == "" {
		return fieldName, true
	}

	parts := strings.Split(jsonTag, ",")
	name := parts[0]
	if name == "" {
		name = fieldName
	}

	return name, !slices.Contains(parts[1:], "omitempty")
}

// addFieldMetadata adds documentation from struct tags to a schema
func addFieldMetadata(schema map[string]any, field reflect.StructField) {
	if docTag := field.Tag.Get("doc"); docTag != "" {
		schema["description"] = docTag
	}

	if exampleTag := field.Tag.Get("example"); exampleTag != "" {
		schema["example"] = exampleValue(indirect(field.Type).Kind(), exampleTag)
	}

	if enumTag := field.Tag.Get("enum"); enumTag != "" {
		schema["enum"] = strings.Split(enumTag, ",")
	}
}

// exampleValue converts an example tag to the JSON type of the field,
// keeping the raw string when it doesn't parse
func exampleValue(kind reflect.Kind, raw string) any {
	switch kind {
	case reflect.Bool:
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return v
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

// basicTypeSchema creates a schema for a basic Go type
func basicTypeSchema(kind reflect.Kind) map[string]any {
	switch kind {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return map[string]any{"type": "integer"}
	case reflect.Int64, reflect.Uint64:
		return map[string]any{"type": "integer", "format": "int64"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.String:
		return map[string]any{"type": "string"}
	default:
		return nil
	}
}

func indirect(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}
