package validation

import (
	"errors"
	"strings"

	"github.com/goliatone/go-formkit/internal/paths"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// errSkip marks a missing optional field; it never leaves the package.
var errSkip = errors.New("validation: skip")

type compiledField struct {
	name     string
	required bool
	rule     schema.Rule
}

// Validator checks submission payloads against compiled field rules. It is
// immutable and safe for concurrent use.
type Validator struct {
	fields []compiledField
	index  map[string]int
}

// Fields returns the validated field names in declaration order.
func (v *Validator) Fields() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.fields))
	for _, f := range v.fields {
		out = append(out, f.name)
	}
	return out
}

// Has reports whether name has a compiled rule.
func (v *Validator) Has(name string) bool {
	if v == nil {
		return false
	}
	_, ok := v.index[strings.TrimSpace(name)]
	return ok
}

// Required reports whether name is a required field.
func (v *Validator) Required(name string) bool {
	if v == nil {
		return false
	}
	idx, ok := v.index[strings.TrimSpace(name)]
	return ok && v.fields[idx].required
}

// Validate checks payload and returns the coerced values keyed by field name.
// Keys may be flat dotted names or nested maps. Keys that are not declared
// fields are dropped. On failure the error is a *ValidationError and the
// returned map holds the values that did pass.
func (v *Validator) Validate(payload map[string]any) (map[string]any, error) {
	return v.run(payload, false)
}

// ValidatePartial checks only the fields present in payload, so required
// fields that were not sent are not reported.
func (v *Validator) ValidatePartial(payload map[string]any) (map[string]any, error) {
	return v.run(payload, true)
}

func (v *Validator) run(payload map[string]any, partial bool) (map[string]any, error) {
	out := make(map[string]any)
	if v == nil {
		return out, nil
	}
	verr := &ValidationError{}
	for _, field := range v.fields {
		raw, present := paths.Lookup(payload, field.name)
		if partial && !present {
			continue
		}
		value, err := field.rule(raw, present)
		switch {
		case errors.Is(err, errSkip):
			continue
		case err != nil:
			verr.Add(field.name, err.Error())
			continue
		}
		if !present && value == nil {
			continue
		}
		out[field.name] = value
	}
	if !verr.Empty() {
		return out, verr
	}
	return out, nil
}

// ValidateField checks a single value for inline feedback. Unknown names
// pass through unchanged.
func (v *Validator) ValidateField(name string, value any) (any, error) {
	if v == nil {
		return value, nil
	}
	idx, ok := v.index[strings.TrimSpace(name)]
	if !ok {
		return value, nil
	}
	field := v.fields[idx]
	out, err := field.rule(value, true)
	if errors.Is(err, errSkip) {
		return nil, nil
	}
	if err != nil {
		verr := &ValidationError{}
		verr.Add(field.name, err.Error())
		return nil, verr
	}
	return out, nil
}
