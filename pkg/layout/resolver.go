// Package layout groups fields into ordered sections. It is pure: the same
// fields and section list always produce the same Plan.
package layout

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// GridColumns is the width of the section grid Span is expressed in.
const GridColumns = 12

// Field is a field placed in a section with its normalised width.
type Field struct {
	schema.FieldSchema
	Width schema.Width `json:"width"`
	Span  int          `json:"span"`
}

// Section is a section with its ordered fields.
type Section struct {
	schema.Section
	Fields []Field `json:"fields"`
}

// Plan is the ordered rendering plan of a form.
type Plan struct {
	Sections []Section `json:"sections"`
}

// Span returns the grid columns a width occupies.
func Span(w schema.Width) int {
	switch w.Normalize() {
	case schema.WidthHalf:
		return GridColumns / 2
	case schema.WidthThird:
		return GridColumns / 3
	default:
		return GridColumns
	}
}

type bucket struct {
	section schema.Section
	order   int
	fields  []Field
}

// Resolve groups fields by section id. Declared sections provide titles and
// positions; ids referenced only by fields are synthesized from the first
// field's section ref. Sections sort by Position and then by first
// appearance (declared list first); fields sort by Position with stable ties.
// Sections without fields are omitted. A nil section list is valid.
func Resolve(fields []schema.FieldSchema, sections []schema.Section) Plan {
	buckets := make(map[string]*bucket, len(sections)+1)
	var order []string

	for _, declared := range sections {
		id := strings.TrimSpace(declared.ID)
		if id == "" {
			id = schema.DefaultSectionID
		}
		if _, exists := buckets[id]; exists {
			continue
		}
		declared.ID = id
		buckets[id] = &bucket{section: declared, order: len(order)}
		order = append(order, id)
	}

	for _, field := range fields {
		id := field.SectionID()
		b, ok := buckets[id]
		if !ok {
			ref := field.Section
			ref.ID = id
			b = &bucket{section: ref, order: len(order)}
			buckets[id] = b
			order = append(order, id)
		}
		width := field.Width.Normalize()
		b.fields = append(b.fields, Field{FieldSchema: field, Width: width, Span: Span(width)})
	}

	ordered := make([]*bucket, 0, len(order))
	for _, id := range order {
		if b := buckets[id]; len(b.fields) > 0 {
			ordered = append(ordered, b)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].section.Position != ordered[j].section.Position {
			return ordered[i].section.Position < ordered[j].section.Position
		}
		return ordered[i].order < ordered[j].order
	})

	plan := Plan{Sections: make([]Section, 0, len(ordered))}
	for _, b := range ordered {
		sort.SliceStable(b.fields, func(i, j int) bool {
			return b.fields[i].Position < b.fields[j].Position
		})
		plan.Sections = append(plan.Sections, Section{Section: b.section, Fields: b.fields})
	}
	return plan
}

// Section returns the planned section with id.
func (p Plan) Section(id string) (Section, bool) {
	id = strings.TrimSpace(id)
	for _, section := range p.Sections {
		if section.ID == id {
			return section, true
		}
	}
	return Section{}, false
}

// Fields returns every planned field in rendering order.
func (p Plan) Fields() []Field {
	var out []Field
	for _, section := range p.Sections {
		out = append(out, section.Fields...)
	}
	return out
}

// Names returns the field names in rendering order.
func (p Plan) Names() []string {
	var out []string
	for _, section := range p.Sections {
		for _, field := range section.Fields {
			out = append(out, field.Name)
		}
	}
	return out
}

// Empty reports whether the plan has no fields.
func (p Plan) Empty() bool {
	return len(p.Sections) == 0
}
