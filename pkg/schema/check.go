package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Check validates a composed field collection and returns every defect it
// finds joined into one error. Each entry is a *SchemaError.
func Check(fields []FieldSchema) error {
	var errs []error
	seen := make(map[string]struct{}, len(fields))

	for idx, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			errs = append(errs, &SchemaError{Reason: fmt.Sprintf("field at index %d has no name", idx)})
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, &SchemaError{Field: name, Reason: "declared more than once; compose overrides before checking"})
		}
		seen[name] = struct{}{}

		if !field.Width.Valid() {
			errs = append(errs, &SchemaError{Field: name, Reason: fmt.Sprintf("unknown width %q", field.Width)})
		}
		if err := checkOptions(field); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CheckDetail validates a detail field collection.
func CheckDetail(fields []DetailFieldSchema) error {
	plain := make([]FieldSchema, len(fields))
	for i, field := range fields {
		plain[i] = field.FieldSchema
		// Detail views only display values; option sources are optional.
		if plain[i].Type == FieldTypeCommand && plain[i].Options == nil {
			plain[i].Type = FieldTypeText
		}
	}
	return Check(plain)
}

func checkOptions(field FieldSchema) error {
	opts := field.Options
	hasItems := opts != nil && len(opts.Items) > 0
	hasRemote := opts != nil && opts.Remote != nil

	if hasRemote && strings.TrimSpace(opts.Remote.Endpoint) == "" {
		return &SchemaError{Field: field.Name, Reason: "remote options descriptor has no endpoint"}
	}

	if field.Type != FieldTypeCommand {
		return nil
	}
	switch {
	case !hasItems && !hasRemote:
		return &SchemaError{Field: field.Name, Reason: "command field declares neither static items nor a remote endpoint"}
	case hasItems && hasRemote:
		return &SchemaError{Field: field.Name, Reason: "command field declares both static items and a remote endpoint"}
	}
	return nil
}
