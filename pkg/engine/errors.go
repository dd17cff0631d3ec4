package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

var (
	// ErrFormNotFound is returned when the registry has no form or detail
	// view with the requested id.
	ErrFormNotFound = errors.New("engine: form not found")
	// ErrEntityStoreMissing is returned when an operation needs entity
	// persistence and the engine was built without a store.
	ErrEntityStoreMissing = errors.New("engine: entity store is not configured")
)

// FieldErrorer is implemented by store errors that carry per-field
// messages, for example a backend rejecting a unique value. Keys may be
// dotted names or JSON pointers such as "/body/title".
type FieldErrorer interface {
	FieldErrors() map[string][]string
}

// RejectedError reports a submission the entity store refused after the
// payload passed validation. Field messages are keyed by declared field
// name; messages the engine could not attribute to a field land in Form.
type RejectedError struct {
	Fields map[string][]string
	Form   []string
	Err    error
}

func (e *RejectedError) Error() string {
	if e == nil {
		return "engine: submission rejected"
	}
	return fmt.Sprintf("engine: submission rejected: %v", e.Err)
}

func (e *RejectedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Validation returns the field messages in the shape Validate produces, so
// runtimes can surface both kinds next to the offending fields.
func (e *RejectedError) Validation() *validation.ValidationError {
	out := &validation.ValidationError{}
	if e == nil {
		return out
	}
	for name, messages := range e.Fields {
		for _, msg := range messages {
			out.Add(name, msg)
		}
	}
	return out
}

// ErrorMapping splits a store error payload into field-level and form-level
// messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MapErrorPayload normalises store error keys (dotted names, JSON pointer
// paths, request wrappers like "body" or "data") onto the declared field
// names. Unknown paths are treated as form-level errors so messages are not
// lost.
func MapErrorPayload(fields []schema.FieldSchema, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	if len(payload) == 0 {
		mapping.Fields = nil
		return mapping
	}

	known := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if name := strings.TrimSpace(field.Name); name != "" {
			known[name] = struct{}{}
		}
	}

	for rawPath, messages := range payload {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			continue
		}
		mapped, formLevel := mapErrorPath(rawPath, known)
		if formLevel {
			mapping.Form = append(mapping.Form, normalized...)
			continue
		}
		mapping.Fields[mapped] = append(mapping.Fields[mapped], normalized...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapErrorPath(raw string, known map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", true
	}
	segments := parsePathSegments(trimmed)
	if len(segments) == 0 {
		return "", true
	}

	best := ""
	for _, variant := range segmentVariants(segments) {
		path := longestMatchingPath(variant, known)
		if path != "" && segmentCount(path) > segmentCount(best) {
			best = path
		}
	}
	if best == "" {
		return "", true
	}
	return best, false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimLeft(clean, "#$/.")
	clean = strings.NewReplacer("[", ".", "]", "", "//", "/").Replace(clean)
	clean = strings.Trim(clean, "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func segmentVariants(segments []string) [][]string {
	var variants [][]string
	seen := make(map[string]struct{}, 4)
	add := func(candidate []string) {
		if len(candidate) == 0 {
			return
		}
		key := strings.Join(candidate, ".")
		if _, exists := seen[key]; exists {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, append([]string(nil), candidate...))
	}

	unwrapped := dropWrapperSegments(segments)
	add(segments)
	add(unwrapped)
	add(stripNumericSegments(segments))
	add(stripNumericSegments(unwrapped))
	return variants
}

var wrapperSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
}

func dropWrapperSegments(segments []string) []string {
	out := segments
	for len(out) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

func stripNumericSegments(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func longestMatchingPath(segments []string, known map[string]struct{}) string {
	for end := len(segments); end > 0; end-- {
		candidate := strings.Join(segments[:end], ".")
		if _, ok := known[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func segmentCount(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, ".") + 1
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
