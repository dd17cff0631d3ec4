package schema

import "strings"

// FieldType is the closed tag selecting how a field is validated, resolved
// and displayed. Unknown values are tolerated and treated permissively.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeNumber   FieldType = "number"
	FieldTypeCurrency FieldType = "currency"
	FieldTypeDate     FieldType = "date"
	FieldTypeSelect   FieldType = "select"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeTags     FieldType = "tags"
	FieldTypeCommand  FieldType = "command"
	FieldTypeStatic   FieldType = "static"
	FieldTypeHidden   FieldType = "hidden"
	FieldTypeEmail    FieldType = "email"
	FieldTypeURL      FieldType = "url"
)

// Width is the layout hint for a field inside its section grid.
type Width string

const (
	WidthFull  Width = "full"
	WidthHalf  Width = "half"
	WidthThird Width = "third"
)

// Normalize returns the canonical width, defaulting unknown or empty values
// to WidthFull.
func (w Width) Normalize() Width {
	switch Width(strings.ToLower(strings.TrimSpace(string(w)))) {
	case WidthHalf:
		return WidthHalf
	case WidthThird:
		return WidthThird
	default:
		return WidthFull
	}
}

// Valid reports whether w is empty or one of the known widths.
func (w Width) Valid() bool {
	switch Width(strings.ToLower(strings.TrimSpace(string(w)))) {
	case "", WidthFull, WidthHalf, WidthThird:
		return true
	default:
		return false
	}
}

// DefaultSectionID collects fields that do not reference a section.
const DefaultSectionID = "general"

// Section is a named, ordered group of fields rendered together. Fields embed
// a Section as their reference; the declared section list wins over the
// reference when both carry the same ID.
type Section struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Position int    `json:"position,omitempty" yaml:"position,omitempty"`
}

// Option is a static selectable entry.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// RemoteOptions describes a named catalog query that yields option records.
// Filter string leaves may reference other fields with "{{fieldName}}"
// placeholders; those fields become dependencies of the owning field.
type RemoteOptions struct {
	Endpoint      string         `json:"endpoint" yaml:"endpoint"`
	LabelField    string         `json:"labelField,omitempty" yaml:"labelField,omitempty"`
	ValueField    string         `json:"valueField,omitempty" yaml:"valueField,omitempty"`
	LabelTemplate string         `json:"labelTemplate,omitempty" yaml:"labelTemplate,omitempty"`
	Multiple      bool           `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Filter        map[string]any `json:"filter,omitempty" yaml:"filter,omitempty"`
	FormatLabel   LabelFormatter `json:"-" yaml:"-"`
}

// LabelFormatter computes the visible label of an option record.
type LabelFormatter func(record map[string]any) string

// Options holds either static items or a remote descriptor. Multiple marks a
// multi-select for static items; remote descriptors carry their own flag.
type Options struct {
	Items    []Option       `json:"items,omitempty" yaml:"items,omitempty"`
	Remote   *RemoteOptions `json:"remote,omitempty" yaml:"remote,omitempty"`
	Multiple bool           `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

// IsMultiple reports whether the bound value is an array of option values.
func (o *Options) IsMultiple() bool {
	if o == nil {
		return false
	}
	if o.Remote != nil && o.Remote.Multiple {
		return true
	}
	return o.Multiple
}

// IsRemote reports whether options come from a catalog query.
func (o *Options) IsRemote() bool {
	return o != nil && o.Remote != nil
}

// Rule validates one payload entry and returns the value to keep. present is
// false when the payload did not carry the key at all.
type Rule func(value any, present bool) (any, error)

// Override replaces the rule derived from a field's type. Rule wins over Tag;
// Tag is a go-playground/validator expression such as "omitempty,max=40".
type Override struct {
	Rule    Rule   `json:"-" yaml:"-"`
	Tag     string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// FieldSchema declares one input field of an entity form.
type FieldSchema struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Disabled    bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Hidden      bool      `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Position    int       `json:"position,omitempty" yaml:"position,omitempty"`
	Width       Width     `json:"width,omitempty" yaml:"width,omitempty"`
	Section     Section   `json:"section,omitempty" yaml:"section,omitempty"`
	Options     *Options  `json:"options,omitempty" yaml:"options,omitempty"`
	Validation  *Override `json:"validation,omitempty" yaml:"validation,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Nullable    bool      `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText    string    `json:"helpText,omitempty" yaml:"helpText,omitempty"`
}

// DisplayLabel returns the authored label or a label derived from the name.
func (f FieldSchema) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return DefaultLabeler(lastSegment(f.Name))
}

// SectionID returns the section the field belongs to.
func (f FieldSchema) SectionID() string {
	if id := strings.TrimSpace(f.Section.ID); id != "" {
		return id
	}
	return DefaultSectionID
}

// Format configures the built-in display directives of a detail field.
type Format struct {
	Kind         string `json:"kind,omitempty" yaml:"kind,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty" yaml:"currencyCode,omitempty"`
	Layout       string `json:"layout,omitempty" yaml:"layout,omitempty"`
	Decimals     *int   `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// Built-in format kinds.
const (
	FormatCurrency = "currency"
	FormatNumber   = "number"
	FormatDate     = "date"
	FormatDateTime = "datetime"
	FormatBoolean  = "boolean"
	FormatList     = "list"
)

// Transform converts a resolved value (and the whole entity) into a display
// string for read-only views.
type Transform func(value any, item map[string]any) (string, error)

// DetailFieldSchema declares one read-only field of an entity detail view.
type DetailFieldSchema struct {
	FieldSchema `yaml:",inline"`
	Format      *Format   `json:"format,omitempty" yaml:"format,omitempty"`
	Transform   Transform `json:"-" yaml:"-"`
}

func lastSegment(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return name[idx+1:]
	}
	return name
}
