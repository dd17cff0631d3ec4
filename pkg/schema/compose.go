package schema

import "strings"

// Collision records a field name declared more than once across composed
// groups. The later declaration always wins in full; SectionChanged flags the
// case where the override also moved the field to another section.
type Collision struct {
	Name            string
	PreviousSection string
	Section         string
	SectionChanged  bool
}

// Compose concatenates declaration groups (shared base fields first, entity
// overrides last) into one collection. A repeated name replaces the earlier
// declaration entirely while keeping the slot of its first appearance.
func Compose(groups ...[]FieldSchema) ([]FieldSchema, []Collision) {
	var (
		out        []FieldSchema
		index      = make(map[string]int)
		collisions []Collision
	)
	for _, group := range groups {
		for _, field := range group {
			key := strings.TrimSpace(field.Name)
			if pos, exists := index[key]; exists {
				collisions = append(collisions, collisionOf(out[pos], field))
				out[pos] = CloneField(field)
				continue
			}
			index[key] = len(out)
			out = append(out, CloneField(field))
		}
	}
	return out, collisions
}

// ComposeDetail is Compose for detail field declarations.
func ComposeDetail(groups ...[]DetailFieldSchema) ([]DetailFieldSchema, []Collision) {
	var (
		out        []DetailFieldSchema
		index      = make(map[string]int)
		collisions []Collision
	)
	for _, group := range groups {
		for _, field := range group {
			key := strings.TrimSpace(field.Name)
			if pos, exists := index[key]; exists {
				collisions = append(collisions, collisionOf(out[pos].FieldSchema, field.FieldSchema))
				out[pos] = CloneDetailField(field)
				continue
			}
			index[key] = len(out)
			out = append(out, CloneDetailField(field))
		}
	}
	return out, collisions
}

func collisionOf(previous, next FieldSchema) Collision {
	return Collision{
		Name:            next.Name,
		PreviousSection: previous.SectionID(),
		Section:         next.SectionID(),
		SectionChanged:  previous.SectionID() != next.SectionID(),
	}
}

// CloneField returns a deep copy of field so registry entries stay immutable
// for callers.
func CloneField(field FieldSchema) FieldSchema {
	out := field
	if field.Options != nil {
		opts := *field.Options
		if len(field.Options.Items) > 0 {
			opts.Items = append([]Option(nil), field.Options.Items...)
		}
		if field.Options.Remote != nil {
			remote := *field.Options.Remote
			remote.Filter = cloneAnyMap(field.Options.Remote.Filter)
			opts.Remote = &remote
		}
		out.Options = &opts
	}
	if field.Validation != nil {
		override := *field.Validation
		out.Validation = &override
	}
	out.Default = cloneAny(field.Default)
	return out
}

// CloneFields deep copies a field collection.
func CloneFields(fields []FieldSchema) []FieldSchema {
	if fields == nil {
		return nil
	}
	out := make([]FieldSchema, len(fields))
	for i, field := range fields {
		out[i] = CloneField(field)
	}
	return out
}

// CloneDetailField returns a deep copy of a detail field.
func CloneDetailField(field DetailFieldSchema) DetailFieldSchema {
	out := field
	out.FieldSchema = CloneField(field.FieldSchema)
	if field.Format != nil {
		format := *field.Format
		if field.Format.Decimals != nil {
			decimals := *field.Format.Decimals
			format.Decimals = &decimals
		}
		out.Format = &format
	}
	return out
}

// CloneDetailFields deep copies a detail field collection.
func CloneDetailFields(fields []DetailFieldSchema) []DetailFieldSchema {
	if fields == nil {
		return nil
	}
	out := make([]DetailFieldSchema, len(fields))
	for i, field := range fields {
		out[i] = CloneDetailField(field)
	}
	return out
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneAny(value)
	}
	return out
}

func cloneAny(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneAnyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneAny(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}
