package layout

import (
	"strings"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Subset keeps the sections whose ids match one of ids (case-insensitive).
// An empty id list returns the plan unchanged.
func (p Plan) Subset(ids ...string) Plan {
	wanted := normaliseTokens(ids)
	if len(wanted) == 0 {
		return p
	}
	out := Plan{}
	for _, section := range p.Sections {
		if _, ok := wanted[normaliseToken(section.ID)]; ok {
			out.Sections = append(out.Sections, section)
		}
	}
	return out
}

// Filter keeps the fields keep accepts and prunes sections left empty so
// runtimes never render a bare section header.
func (p Plan) Filter(keep func(Field) bool) Plan {
	if keep == nil {
		return p
	}
	out := Plan{}
	for _, section := range p.Sections {
		filtered := make([]Field, 0, len(section.Fields))
		for _, field := range section.Fields {
			if keep(field) {
				filtered = append(filtered, field)
			}
		}
		if len(filtered) == 0 {
			continue
		}
		section.Fields = filtered
		out.Sections = append(out.Sections, section)
	}
	return out
}

// Visible drops hidden fields.
func (p Plan) Visible() Plan {
	return p.Filter(func(field Field) bool {
		return !field.Hidden && field.Type != schema.FieldTypeHidden
	})
}

func normaliseTokens(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]struct{}, len(values))
	for _, value := range values {
		token := normaliseToken(value)
		if token == "" {
			continue
		}
		result[token] = struct{}{}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normaliseToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
