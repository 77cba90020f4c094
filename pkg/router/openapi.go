package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"
)

const openAPIVersion = "3.0.3"

// OpenAPI renders the OpenAPI 3 document describing every registered route
func (dr *DocRouter) OpenAPI() map[string]any {
	gen := newSchemaGenerator(newSchemaRegistry())

	spec := map[string]any{
		"openapi": openAPIVersion,
		"info": map[string]any{
			"title":       dr.title,
			"description": dr.description,
			"version":     dr.version,
		},
		"paths": dr.generatePaths(gen),
	}

	if len(dr.servers) > 0 {
		servers := make([]any, 0, len(dr.servers))
		for _, s := range dr.servers {
			servers = append(servers, map[string]any{"url": s.URL, "description": s.Description})
		}
		spec["servers"] = servers
	}

	if len(dr.tags) > 0 {
		tags := make([]any, 0, len(dr.tags))
		for _, t := range dr.tags {
			tags = append(tags, map[string]any{"name": t.Name, "description": t.Description})
		}
		spec["tags"] = tags
	}

	spec["components"] = dr.generateComponents(gen)

	return spec
}

// OpenAPIJSON renders the document as indented JSON
func (dr *DocRouter) OpenAPIJSON() ([]byte, error) {
	data, err := json.MarshalIndent(dr.OpenAPI(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return data, nil
}

// ServeOpenAPI writes the document as the response
func (dr *DocRouter) ServeOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := dr.OpenAPIJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// openAPIPath converts a ServeMux pattern path into an OpenAPI path template
func openAPIPath(path string) string {
	path = strings.TrimSuffix(path, "{$}")
	return strings.ReplaceAll(path, "...}", "}")
}

// extractPathParams gets path parameters from a URL path
func extractPathParams(path string) []string {
	var params []string

	for _, part := range strings.Split(path, "/") {
		if len(part) < 2 || part[0] != '{' || part[len(part)-1] != '}' {
			continue
		}

		name := strings.TrimSuffix(part[1:len(part)-1], "...")
		if name == "$" || name == "" {
			continue
		}
		params = append(params, name)
	}

	return params
}

// generateParameters documents path parameters found in the path, merged
// with the ones declared on the route
func generateParameters(route RouteInfo) []any {
	declared := map[string]Param{}
	for _, p := range route.Params {
		if p.In == "path" {
			declared[p.Name] = p
		}
	}

	var parameters []any
	for _, name := range extractPathParams(route.Path) {
		p, ok := declared[name]
		if !ok {
			p = Param{Name: name, In: "path", Description: fmt.Sprintf("%s parameter", name)}
		}
		p.Required = true
		parameters = append(parameters, paramObject(p))
	}

	for _, p := range route.Params {
		if p.In == "query" {
			parameters = append(parameters, paramObject(p))
		}
	}

	return parameters
}

func paramObject(p Param) map[string]any {
	schema := map[string]any{"type": "string"}
	if p.Type != "" {
		schema["type"] = p.Type
	}
	if p.Format != "" {
		schema["format"] = p.Format
	}
	if len(p.Enum) > 0 {
		schema["enum"] = p.Enum
	}

	return map[string]any{
		"name":        p.Name,
		"in":          p.In,
		"required":    p.Required,
		"description": p.Description,
		"schema":      schema,
	}
}

// operationID derives a camel cased identifier from the route name, falling
// back to the method and path
func operationID(route RouteInfo) string {
	source := route.Name
	if source == "" {
		source = route.Method + " " + openAPIPath(route.Path)
	}

	var b strings.Builder
	upper := false
	for _, r := range source {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = b.Len() > 0
			continue
		}
		switch {
		case b.Len() == 0:
			b.WriteRune(unicode.ToLower(r))
		case upper:
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		upper = false
	}
	return b.String()
}

// generatePaths creates the paths section of the OpenAPI spec
func (dr *DocRouter) generatePaths(gen *schemaGenerator) map[string]any {
	paths := map[string]any{}

	for _, route := range dr.routes {
		path := openAPIPath(route.Path)

		if _, exists := paths[path]; !exists {
			paths[path] = map[string]any{}
		}
		pathItem := paths[path].(map[string]any)
		method := strings.ToLower(route.Method)

		operation := map[string]any{
			"summary":     route.Name,
			"description": route.Description,
			"operationId": operationID(route),
			"responses":   dr.generateResponses(gen, route),
		}

		if len(route.Tags) > 0 {
			operation["tags"] = route.Tags
		}

		if params := generateParameters(route); len(params) > 0 {
			operation["parameters"] = params
		}

		// request body for POST, PUT, PATCH
		if route.RequestType != nil && (method == "post" || method == "put" || method == "patch") {
			operation["requestBody"] = dr.generateRequestBody(gen, route)
		}

		if route.Secured && dr.useBearerAuth {
			operation["security"] = []any{
				map[string]any{"bearerAuth": []any{}},
			}
		}

		pathItem[method] = operation
	}

	return paths
}

// generateResponses creates response documentation
func (dr *DocRouter) generateResponses(gen *schemaGenerator, route RouteInfo) map[string]any {
	responses := map[string]any{}

	for statusCode, routeResponse := range route.Responses {
		content := map[string]any{}

		if routeResponse.Schema != nil {
			content["schema"] = gen.schemaRef(routeResponse.Schema)
		}

		if len(routeResponse.Examples) > 0 {
			examples := map[string]any{}
			for i, example := range routeResponse.Examples {
				name := example.Name
				if name == "" {
					name = "example" + strconv.Itoa(i+1)
				}
				examples[name] = map[string]any{"value": exampleDocument(example.Value)}
			}
			content["examples"] = examples
		}

		response := map[string]any{
			"description": routeResponse.Description,
		}
		if len(content) > 0 {
			response["content"] = map[string]any{
				"application/json": content,
			}
		}

		responses[statusCode] = response
	}

	// success response unless overridden by a custom one
	status := route.SuccessStatus
	if status == 0 {
		status = http.StatusOK
	}
	code := strconv.Itoa(status)
	if _, exists := responses[code]; !exists {
		response := map[string]any{
			"description": "Successful response",
		}
		if route.ResponseType != nil && status != http.StatusNoContent {
			response["content"] = map[string]any{
				"application/json": map[string]any{
					"schema": gen.schemaRef(route.ResponseType),
				},
			}
		}
		responses[code] = response
	}

	// references to registered responses
	for statusCode, responseName := range dr.routeResponses[routeID(route.Method, route.Path)] {
		if _, exists := responses[statusCode]; exists {
			continue
		}
		responses[statusCode] = map[string]any{
			"$ref": "#/components/responses/" + responseName,
		}
	}

	return responses
}

// exampleDocument decodes a JSON example so it is embedded as a value
// rather than a string
func exampleDocument(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// generateRequestBody creates request body documentation
func (dr *DocRouter) generateRequestBody(gen *schemaGenerator, route RouteInfo) map[string]any {
	return map[string]any{
		"description": fmt.Sprintf("request body for %s", route.Name),
		"required":    true,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": gen.schemaRef(route.RequestType),
			},
		},
	}
}

// generateComponents creates reusable components
func (dr *DocRouter) generateComponents(gen *schemaGenerator) map[string]any {
	components := map[string]any{
		"schemas": gen.registry.getSchemas(),
	}

	if len(dr.customResponses) > 0 {
		responses := make(map[string]any, len(dr.customResponses))
		for name, response := range dr.customResponses {
			responses[name] = response
		}
		components["responses"] = responses
	}

	if dr.useBearerAuth {
		components["securitySchemes"] = map[string]any{
			"bearerAuth": map[string]any{
				"type":         "http",
				"scheme":       "bearer",
				"bearerFormat": "JWT",
			},
		}
	}

	return components
}
