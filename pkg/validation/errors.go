package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError collects per-field messages produced by Validate. Keys are
// field names as declared in the schema.
type ValidationError struct {
	Fields map[string][]string
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Message returns the first message recorded for field, or "".
func (e *ValidationError) Message(field string) string {
	if e == nil {
		return ""
	}
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// FieldNames returns the offending field names sorted alphabetically.
func (e *ValidationError) FieldNames() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return "validation: no errors"
	}
	names := e.FieldNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], "; ")))
	}
	return fmt.Sprintf("validation: %d field(s) invalid: %s", len(names), strings.Join(parts, ", "))
}

// Issue is one field message in a flat list, the shape runtimes hand back
// to clients.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Issues flattens the recorded messages, ordered by field name.
func (e *ValidationError) Issues() []Issue {
	if e.Empty() {
		return nil
	}
	var out []Issue
	for _, name := range e.FieldNames() {
		for _, msg := range e.Fields[name] {
			out = append(out, Issue{Field: name, Message: msg})
		}
	}
	return out
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
