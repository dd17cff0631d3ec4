package schema

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports a malformed declaration. It is an authoring defect:
// callers should fail fast instead of rendering a degraded form.
type SchemaError struct {
	// Scope names the form or detail view, when known.
	Scope  string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e == nil {
		return "schema: <nil>"
	}
	var b strings.Builder
	b.WriteString("schema: ")
	if e.Scope != "" {
		fmt.Fprintf(&b, "%s: ", e.Scope)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Reason)
	return b.String()
}

// IsSchemaError reports whether err (or any error it wraps or joins) is a
// SchemaError.
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}

// SchemaErrors flattens err into the SchemaErrors it carries, looking through
// errors.Join trees.
func SchemaErrors(err error) []*SchemaError {
	if err == nil {
		return nil
	}
	var out []*SchemaError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if se, ok := e.(*SchemaError); ok {
			out = append(out, se)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(e))
	}
	walk(err)
	return out
}

// WithScope returns a copy of err with every SchemaError tagged with scope.
func WithScope(err error, scope string) error {
	list := SchemaErrors(err)
	if len(list) == 0 {
		return err
	}
	scoped := make([]error, 0, len(list))
	for _, se := range list {
		copied := *se
		if copied.Scope == "" {
			copied.Scope = scope
		}
		scoped = append(scoped, &copied)
	}
	return errors.Join(scoped...)
}
