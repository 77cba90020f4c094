// package router provides a router wrapper that captures documentation data
package router

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Middleware wraps a handler with cross-cutting behaviour
type Middleware func(http.Handler) http.Handler

// RouteResponse represents a documented response for a specific HTTP status code
type RouteResponse struct {
	StatusCode  string    // HTTP status code (e.g., "200", "400")
	Description string    // Description of the response
	Schema      any       // Response schema/type (optional)
	Examples    []Example // Example responses (optional)
}

// Example represents an example response for documentation
type Example struct {
	Name  string // Name of the example within the response
	Value string // Example value as a JSON document
}

// Param documents a path or query parameter
type Param struct {
	Name        string   // Parameter name as it appears in the URL
	In          string   // "path" or "query"
	Description string   // Human readable description
	Type        string   // JSON schema type, "string" when empty
	Format      string   // JSON schema format (optional)
	Enum        []string // Allowed values (optional)
	Required    bool     // Path parameters are always required
}

// Server describes a server the API is reachable at
type Server struct {
	URL         string
	Description string
}

// Tag groups operations in the rendered document
type Tag struct {
	Name        string
	Description string
}

// RouteInfo stores documentation for a route
type RouteInfo struct {
	Method        string                   // HTTP method (GET, POST, etc.)
	Path          string                   // URL path as registered with the mux
	Name          string                   // Friendly name for the endpoint
	Description   string                   // Description of what the endpoint does
	Handler       http.Handler             // The actual handler function
	RequestType   any                      // Example request type (for schema generation)
	ResponseType  any                      // Example success response type (for schema generation)
	SuccessStatus int                      // Status code of the success response
	Responses     map[string]RouteResponse // Map of HTTP status codes to responses
	Params        []Param                  // Documented path and query parameters
	Tags          []string                 // Tags for grouping endpoints
	Secured       bool                     // Whether the route requires bearer auth
}

// RouteConfig is a builder for route configuration
type RouteConfig struct {
	router        *DocRouter
	method        string
	path          string
	handler       http.HandlerFunc
	name          string
	description   string
	requestType   any
	responseType  any
	successStatus int
	responses     map[string]RouteResponse
	params        []Param
	tags          []string
	secured       bool
}

// DocRouter wraps http.ServeMux to add documentation capabilities
type DocRouter struct {
	title       string
	description string
	version     string

	mux         *http.ServeMux
	handler     http.Handler
	middlewares []Middleware
	routes      []RouteInfo

	servers       []Server
	tags          []Tag
	useBearerAuth bool

	customResponses map[string]map[string]any
	routeResponses  map[string]map[string]string // routeID -> statusCode -> responseName
}

// NewDocRouter creates a new documented router
func NewDocRouter(title, description, version string) *DocRouter {
	mux := http.NewServeMux()

	return &DocRouter{
		title:           title,
		description:     description,
		version:         version,
		mux:             mux,
		handler:         mux,
		routes:          []RouteInfo{},
		customResponses: make(map[string]map[string]any),
		routeResponses:  make(map[string]map[string]string),
	}
}

// WithServer adds a server entry to the document
func (dr *DocRouter) WithServer(url, description string) *DocRouter {
	dr.servers = append(dr.servers, Server{URL: url, Description: description})
	return dr
}

// WithTag declares a tag with its description
func (dr *DocRouter) WithTag(name, description string) *DocRouter {
	dr.tags = append(dr.tags, Tag{Name: name, Description: description})
	return dr
}

// WithBearerAuth declares the bearer security scheme used by secured routes
func (dr *DocRouter) WithBearerAuth() *DocRouter {
	dr.useBearerAuth = true
	return dr
}

// RegisterResponse adds a reusable response under components.responses
func (dr *DocRouter) RegisterResponse(name string, response map[string]any) {
	dr.customResponses[name] = response
}

// RegisterRouteResponse references a registered response from one route
func (dr *DocRouter) RegisterRouteResponse(path, method, statusCode, responseName string) {
	id := routeID(method, path)
	if _, ok := dr.routeResponses[id]; !ok {
		dr.routeResponses[id] = make(map[string]string)
	}
	dr.routeResponses[id][statusCode] = responseName
}

func routeID(method, path string) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(method), path)
}

// Route starts a route configuration chain
func (dr *DocRouter) Route(method, path string, handler http.HandlerFunc) *RouteConfig {
	return &RouteConfig{
		router:        dr,
		method:        method,
		path:          path,
		handler:       handler,
		successStatus: http.StatusOK,
		responses:     make(map[string]RouteResponse),
	}
}

// WithName adds a name to the route
func (rc *RouteConfig) WithName(name string) *RouteConfig {
	rc.name = name
	return rc
}

// WithDescription adds a description to the route
func (rc *RouteConfig) WithDescription(description string) *RouteConfig {
	rc.description = description
	return rc
}

// WithRequest adds a request type to the route
func (rc *RouteConfig) WithRequest(requestType any) *RouteConfig {
	rc.requestType = requestType
	return rc
}

// WithResponse adds a success response type to the route
func (rc *RouteConfig) WithResponse(responseType any) *RouteConfig {
	rc.responseType = responseType
	return rc
}

// WithSuccessStatus overrides the 200 status documented for success
func (rc *RouteConfig) WithSuccessStatus(code int) *RouteConfig {
	rc.successStatus = code
	return rc
}

// WithErrorResponse adds an error response to the route
func (rc *RouteConfig) WithErrorResponse(statusCode, description string, schema any, examples ...Example) *RouteConfig {
	rc.responses[statusCode] = RouteResponse{
		StatusCode:  statusCode,
		Description: description,
		Schema:      schema,
		Examples:    examples,
	}
	return rc
}

// WithQueryParam documents an optional query string parameter
func (rc *RouteConfig) WithQueryParam(name, description string, opts ...func(*Param)) *RouteConfig {
	p := Param{Name: name, In: "query", Description: description}
	for _, opt := range opts {
		opt(&p)
	}
	rc.params = append(rc.params, p)
	return rc
}

// WithPathParam documents a path parameter, overriding the string default
func (rc *RouteConfig) WithPathParam(name, description string, opts ...func(*Param)) *RouteConfig {
	p := Param{Name: name, In: "path", Description: description, Required: true}
	for _, opt := range opts {
		opt(&p)
	}
	rc.params = append(rc.params, p)
	return rc
}

// ParamType sets the schema type and format of a parameter
func ParamType(typ, format string) func(*Param) {
	return func(p *Param) {
		p.Type = typ
		p.Format = format
	}
}

// ParamEnum restricts a parameter to the given values
func ParamEnum(values ...string) func(*Param) {
	return func(p *Param) {
		p.Enum = values
	}
}

// WithTags adds tags to the route
func (rc *RouteConfig) WithTags(tags ...string) *RouteConfig {
	rc.tags = tags
	return rc
}

// WithSecurity marks the route as requiring bearer auth
func (rc *RouteConfig) WithSecurity() *RouteConfig {
	rc.secured = true
	return rc
}

// Register finalizes the route configuration and registers it with the router
func (rc *RouteConfig) Register() {
	// Go 1.22 pattern with method
	pattern := rc.method + " " + rc.path

	rc.router.mux.Handle(pattern, rc.handler)

	rc.router.routes = append(rc.router.routes, RouteInfo{
		Method:        rc.method,
		Path:          rc.path,
		Name:          rc.name,
		Description:   rc.description,
		Handler:       rc.handler,
		RequestType:   rc.requestType,
		ResponseType:  rc.responseType,
		SuccessStatus: rc.successStatus,
		Responses:     rc.responses,
		Params:        rc.params,
		Tags:          rc.tags,
		Secured:       rc.secured,
	})
}

// Routes returns all documented routes
func (dr *DocRouter) Routes() []RouteInfo {
	return slices.Clone(dr.routes)
}

// Use appends middlewares. They wrap every route no matter when the route was
// registered; the first middleware is the outermost.
func (dr *DocRouter) Use(middlewares ...Middleware) {
	dr.middlewares = append(dr.middlewares, middlewares...)

	var handler http.Handler = dr.mux
	for i := len(dr.middlewares) - 1; i >= 0; i-- {
		handler = dr.middlewares[i](handler)
	}
	dr.handler = handler
}

// ServeHTTP makes DocRouter implement the http.Handler interface
func (dr *DocRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	dr.handler.ServeHTTP(w, r)
}
