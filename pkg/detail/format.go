package detail

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"

	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// Placeholder is rendered for nil, empty and failed values.
const Placeholder = "-"

const (
	wordYes = "Yes"
	wordNo  = "No"
)

// booleanWords translates the boolean display words. Unlisted locales fall
// back to English.
var booleanWords = map[string][2]string{
	"de": {"Ja", "Nein"},
	"fr": {"Oui", "Non"},
	"es": {"Sí", "No"},
	"it": {"Sì", "No"},
	"nl": {"Ja", "Nee"},
	"pt": {"Sim", "Não"},
}

// symbolSuffixLocales place the currency symbol after the amount.
var symbolSuffixLocales = map[string]struct{}{
	"de": {}, "fr": {}, "es": {}, "it": {}, "pt": {}, "pl": {}, "sv": {},
	"da": {}, "fi": {}, "nb": {}, "cs": {}, "sk": {}, "hu": {}, "ru": {},
	"uk": {}, "ro": {}, "bg": {}, "hr": {}, "sl": {}, "lt": {}, "lv": {},
	"et": {}, "el": {},
}

// dateLayouts are the default layouts per base language.
var dateLayouts = map[string]string{
	"de": "02.01.2006",
	"fr": "02/01/2006",
	"es": "02/01/2006",
	"it": "02/01/2006",
	"nl": "02-01-2006",
	"pt": "02/01/2006",
	"en": "01/02/2006",
}

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	_ = b.SetString(language.English, wordYes, wordYes)
	_ = b.SetString(language.English, wordNo, wordNo)
	for base, words := range booleanWords {
		tag := language.Make(base)
		_ = b.SetString(tag, wordYes, words[0])
		_ = b.SetString(tag, wordNo, words[1])
	}
	return b
}

func baseLanguage(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// toFloat converts numeric values and numeric strings.
func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	}
	return 0, false
}

// decimalsOf returns the fraction digits needed to print v exactly, capped.
func decimalsOf(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}
	if n := len(s) - idx - 1; n < 6 {
		return n
	}
	return 6
}

func (p *Pipeline) formatNumber(value any, format *schema.Format) (string, bool) {
	v, ok := toFloat(value)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	decimals := decimalsOf(v)
	if format != nil && format.Decimals != nil {
		decimals = *format.Decimals
	}
	return p.printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v), true
}

func (p *Pipeline) formatCurrency(value any, format *schema.Format) (string, bool) {
	v, ok := toFloat(value)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	code := p.currency
	if format != nil && strings.TrimSpace(format.CurrencyCode) != "" {
		code = strings.ToUpper(strings.TrimSpace(format.CurrencyCode))
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", false
	}
	scale, _ := currency.Standard.Rounding(unit)
	if format != nil && format.Decimals != nil {
		scale = *format.Decimals
	}
	amount := p.printer.Sprintf(fmt.Sprintf("%%.%df", scale), v)
	symbol := p.printer.Sprint(currency.Symbol(unit))
	if _, suffix := symbolSuffixLocales[baseLanguage(p.locale)]; suffix {
		return amount + " " + symbol, true
	}
	if strings.HasPrefix(amount, "-") {
		return "-" + symbol + strings.TrimPrefix(amount, "-"), true
	}
	return symbol + amount, true
}

func (p *Pipeline) formatDate(value any, format *schema.Format, withTime bool) (string, bool) {
	t, ok := validation.ParseDate(value)
	if !ok {
		return "", false
	}
	layout := ""
	if format != nil {
		layout = strings.TrimSpace(format.Layout)
	}
	if layout == "" {
		layout = dateLayouts[baseLanguage(p.locale)]
		if layout == "" {
			layout = "2006-01-02"
		}
		if withTime {
			layout += " 15:04"
		}
	}
	return t.Format(layout), true
}

func (p *Pipeline) formatBoolean(value any) (string, bool) {
	switch typed := value.(type) {
	case bool:
		if typed {
			return p.printer.Sprintf(wordYes), true
		}
		return p.printer.Sprintf(wordNo), true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(typed)); err == nil {
			return p.formatBoolean(b)
		}
	}
	return "", false
}

func (p *Pipeline) formatList(value any, field schema.DetailFieldSchema) (string, bool) {
	var items []any
	switch typed := value.(type) {
	case []any:
		items = typed
	case []string:
		for _, s := range typed {
			items = append(items, s)
		}
	default:
		return "", false
	}
	labels := make([]string, 0, len(items))
	for _, item := range items {
		if label := optionLabel(field, item); label != "" {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return "", false
	}
	return strings.Join(labels, p.separator), true
}

// optionLabel maps a stored value back to its static option label.
func optionLabel(field schema.DetailFieldSchema, value any) string {
	raw := coerce(value, ", ")
	if field.Options != nil {
		for _, option := range field.Options.Items {
			if option.Value == raw && option.Label != "" {
				return option.Label
			}
		}
	}
	return raw
}
