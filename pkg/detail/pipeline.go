package detail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/goliatone/go-formkit/internal/paths"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// DefaultCurrency is used by currency fields that omit a code.
const DefaultCurrency = "EUR"

// Pipeline turns stored entity values into display strings. It is immutable
// after New and safe for concurrent use.
type Pipeline struct {
	locale    language.Tag
	printer   *message.Printer
	currency  string
	separator string
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocale sets the display locale. Defaults to English.
func WithLocale(tag language.Tag) Option {
	return func(p *Pipeline) {
		p.locale = tag
	}
}

// WithCurrency sets the currency used when a field's format omits one.
func WithCurrency(code string) Option {
	return func(p *Pipeline) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			p.currency = code
		}
	}
}

// WithSeparator sets the separator used to join list values.
func WithSeparator(sep string) Option {
	return func(p *Pipeline) {
		p.separator = sep
	}
}

// WithSanitizer strips markup from every produced string, for runtimes that
// embed display values into HTML.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(p *Pipeline) {
		p.sanitizer = policy
	}
}

// WithLogger sets the logger used to report failing transforms.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New constructs a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		locale:    language.English,
		currency:  DefaultCurrency,
		separator: ", ",
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.printer = message.NewPrinter(p.locale, message.Catalog(newCatalog()))
	return p
}

// Locale returns the display locale.
func (p *Pipeline) Locale() language.Tag {
	return p.locale
}

// Entry is one rendered field of a detail view.
type Entry struct {
	Name    string       `json:"name"`
	Label   string       `json:"label"`
	Value   string       `json:"value"`
	Section string       `json:"section"`
	Width   schema.Width `json:"width"`
}

// Value renders field from item. Lookups follow dotted names and never
// panic. A custom Transform wins over Format; a Transform that errors or
// panics renders the placeholder. Otherwise its output is used as is, even
// when blank. Without a Transform, nil and empty values render the
// placeholder.
func (p *Pipeline) Value(field schema.DetailFieldSchema, item map[string]any) string {
	value, _ := paths.Get(item, field.Name)
	return p.sanitize(p.render(field, value, item))
}

func (p *Pipeline) render(field schema.DetailFieldSchema, value any, item map[string]any) string {
	if field.Transform != nil {
		out, ok := p.transform(field, value, item)
		if !ok {
			return Placeholder
		}
		return out
	}
	if isEmpty(value) {
		return Placeholder
	}

	kind := ""
	if field.Format != nil {
		kind = strings.ToLower(strings.TrimSpace(field.Format.Kind))
	}
	if kind == "" {
		kind = implicitKind(field)
	}

	var (
		out string
		ok  bool
	)
	switch kind {
	case schema.FormatCurrency:
		out, ok = p.formatCurrency(value, field.Format)
	case schema.FormatNumber:
		out, ok = p.formatNumber(value, field.Format)
	case schema.FormatDate:
		out, ok = p.formatDate(value, field.Format, false)
	case schema.FormatDateTime:
		out, ok = p.formatDate(value, field.Format, true)
	case schema.FormatBoolean:
		out, ok = p.formatBoolean(value)
	case schema.FormatList:
		out, ok = p.formatList(value, field)
	}
	if !ok {
		switch value.(type) {
		case []any, []string, map[string]any:
			out = coerce(value, p.separator)
		default:
			out = optionLabel(field, value)
		}
	}
	if strings.TrimSpace(out) == "" {
		return Placeholder
	}
	return out
}

// transform runs the custom hook and converts panics into a failed result.
func (p *Pipeline) transform(field schema.DetailFieldSchema, value any, item map[string]any) (out string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn().Str("field", field.Name).Interface("panic", r).Msg("detail transform panicked")
			out, ok = "", false
		}
	}()
	result, err := field.Transform(value, item)
	if err != nil {
		p.logger.Warn().Err(err).Str("field", field.Name).Msg("detail transform failed")
		return "", false
	}
	return result, true
}

// implicitKind derives a display directive from the field type when no
// Format is declared.
func implicitKind(field schema.DetailFieldSchema) string {
	switch field.Type {
	case schema.FieldTypeCurrency:
		return schema.FormatCurrency
	case schema.FieldTypeNumber:
		return schema.FormatNumber
	case schema.FieldTypeDate:
		return schema.FormatDate
	case schema.FieldTypeCheckbox:
		return schema.FormatBoolean
	case schema.FieldTypeTags:
		return schema.FormatList
	}
	if field.Options.IsMultiple() {
		return schema.FormatList
	}
	return ""
}

func (p *Pipeline) sanitize(out string) string {
	if p.sanitizer == nil || out == Placeholder {
		return out
	}
	return p.sanitizer.Sanitize(out)
}

// Render produces entries for fields in declaration order.
func (p *Pipeline) Render(fields []schema.DetailFieldSchema, item map[string]any) []Entry {
	out := make([]Entry, 0, len(fields))
	for _, field := range fields {
		if field.Hidden {
			continue
		}
		out = append(out, Entry{
			Name:    field.Name,
			Label:   field.DisplayLabel(),
			Value:   p.Value(field, item),
			Section: field.SectionID(),
			Width:   field.Width.Normalize(),
		})
	}
	return out
}

// Bind returns a renderer for one field, the shape detail views wire into
// their columns.
func (p *Pipeline) Bind(field schema.DetailFieldSchema) func(item map[string]any) string {
	field = schema.CloneDetailField(field)
	return func(item map[string]any) string {
		return p.Value(field, item)
	}
}

var defaultPipeline = New()

// Bind returns a renderer for field using the default English pipeline.
func Bind(field schema.DetailFieldSchema) func(item map[string]any) string {
	return defaultPipeline.Bind(field)
}

// Value renders field from item using the default English pipeline.
func Value(field schema.DetailFieldSchema, item map[string]any) string {
	return defaultPipeline.Value(field, item)
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}

// displayKeys are tried in order when a nested record is displayed raw.
var displayKeys = []string{"name", "title", "label", "id"}

// coerce renders a raw value without a directive.
func coerce(value any, sep string) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		if typed {
			return wordYes
		}
		return wordNo
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	case time.Time:
		return typed.Format(time.RFC3339)
	case map[string]any:
		for _, key := range displayKeys {
			if v, ok := typed[key]; ok && !isEmpty(v) {
				return coerce(v, sep)
			}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+": "+coerce(typed[key], sep))
		}
		return strings.Join(parts, sep)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			if s := coerce(item, sep); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	case []string:
		return strings.Join(typed, sep)
	}
	return fmt.Sprint(value)
}
