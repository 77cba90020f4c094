package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cirocosta/todorest/internal/model"
)

// MaxNameLength bounds the length of a todo name in characters
const MaxNameLength = 128

const (
	msgRequired = "This field is required."
	msgNotJSON  = "Request body is not valid JSON."
	msgBlank    = "This field may not be blank."
	msgTooLong  = "Ensure this field has no more than %d characters."
)

var todoSchema = mustCompile("mem://todorest/todo.json", `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"done": {"type": "boolean"}
	}
}`)

func mustCompile(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Errorf("add schema resource %s: %w", name, err))
	}
	return compiler.MustCompile(name)
}

// CreateTodo validates a POST body. Fields other than name and done are ignored.
func CreateTodo(body []byte) (model.CreateTodoRequest, error) {
	if err := check(body, "name"); err != nil {
		return model.CreateTodoRequest{}, err
	}

	var req model.CreateTodoRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.CreateTodoRequest{}, Errors{NonFieldErrors: {msgNotJSON}}
	}
	req.Name = strings.TrimSpace(req.Name)
	return req, nil
}

// UpdateTodo validates a PUT (full) or PATCH (partial) body. A full update
// requires name; done is optional in both.
func UpdateTodo(body []byte, partial bool) (model.UpdateTodoRequest, error) {
	var required []string
	if !partial {
		required = append(required, "name")
	}

	if err := check(body, required...); err != nil {
		return model.UpdateTodoRequest{}, err
	}

	var req model.UpdateTodoRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.UpdateTodoRequest{}, Errors{NonFieldErrors: {msgNotJSON}}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	return req, nil
}

// check decodes body, validates it against the todo schema and makes sure the
// required fields are present.
func check(body []byte, required ...string) error {
	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return Errors{NonFieldErrors: {msgNotJSON}}
	}

	errs := Errors{}
	if err := todoSchema.Validate(instance); err != nil {
		collectSchemaErrors(errs, err)
	}

	if obj, ok := instance.(map[string]any); ok {
		for _, field := range required {
			if _, present := obj[field]; !present {
				errs.Add(field, msgRequired)
			}
		}

		if name, ok := obj["name"].(string); ok {
			if msg := nameProblem(strings.TrimSpace(name)); msg != "" {
				errs.Add("name", msg)
			}
		}
	}

	return errs.Err()
}

// Name trims surrounding whitespace from name and checks what is left is
// neither blank nor longer than MaxNameLength.
func Name(name string) (string, error) {
	name = strings.TrimSpace(name)
	if msg := nameProblem(name); msg != "" {
		return "", Errors{"name": {msg}}
	}
	return name, nil
}

func nameProblem(trimmed string) string {
	switch {
	case trimmed == "":
		return msgBlank
	case utf8.RuneCountInString(trimmed) > MaxNameLength:
		return fmt.Sprintf(msgTooLong, MaxNameLength)
	}
	return ""
}

func collectSchemaErrors(errs Errors, err error) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		errs.Add(NonFieldErrors, err.Error())
		return
	}
	collectCauses(errs, ve)
}

func collectCauses(errs Errors, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		field := jsonPointerToField(ve.InstanceLocation)
		if field == "" {
			field = NonFieldErrors
		}
		errs.Add(field, ve.Message)
		return
	}

	for _, cause := range ve.Causes {
		collectCauses(errs, cause)
	}
}

// jsonPointerToField turns "/owner/id" into "owner.id"
func jsonPointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	var path string
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		if path == "" {
			path = part
		} else {
			path += "." + part
		}
	}
	return path
}
