// package validation checks request payloads and reports field-level errors
package validation

import (
	"fmt"
	"sort"
	"strings"
)

// NonFieldErrors is the key used for errors not tied to a single field
const NonFieldErrors = "non_field_errors"

// Errors maps a field name to the reasons it was rejected
type Errors map[string][]string

// Add records msg against field
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether field was rejected
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Err returns e as an error, or nil when nothing was recorded
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e[field], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
