package options

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formkit/internal/paths"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)
	wholePlaceholder   = regexp.MustCompile(`^\s*\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}\s*$`)
)

// Dependencies lists the field names referenced by "{{field}}" placeholders
// in the string leaves of filter, sorted and de-duplicated.
func Dependencies(filter map[string]any) []string {
	if len(filter) == 0 {
		return nil
	}
	result := make(map[string]struct{})
	collectReferences(filter, result)
	if len(result) == 0 {
		return nil
	}
	out := make([]string, 0, len(result))
	for name := range result {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectReferences(value any, into map[string]struct{}) {
	switch typed := value.(type) {
	case string:
		for _, match := range placeholderPattern.FindAllStringSubmatch(typed, -1) {
			if name := strings.TrimSpace(match[1]); name != "" {
				into[name] = struct{}{}
			}
		}
	case map[string]any:
		for _, child := range typed {
			collectReferences(child, into)
		}
	case []any:
		for _, child := range typed {
			collectReferences(child, into)
		}
	}
}

// Lookup resolves a referenced field value.
type Lookup func(name string) (any, bool)

// Interpolate returns a copy of filter with placeholders replaced. A leaf that
// is exactly one placeholder takes the raw value, keeping arrays and numbers;
// placeholders embedded in longer strings are stringified. Unresolved
// references become nil (whole leaf) or "" (embedded).
func Interpolate(filter map[string]any, lookup Lookup) map[string]any {
	if filter == nil {
		return nil
	}
	if lookup == nil {
		lookup = func(string) (any, bool) { return nil, false }
	}
	out, _ := interpolateValue(filter, lookup).(map[string]any)
	return out
}

func interpolateValue(value any, lookup Lookup) any {
	switch typed := value.(type) {
	case string:
		if match := wholePlaceholder.FindStringSubmatch(typed); match != nil {
			resolved, _ := lookup(match[1])
			return resolved
		}
		if !strings.Contains(typed, "{{") {
			return typed
		}
		return placeholderPattern.ReplaceAllStringFunc(typed, func(token string) string {
			match := placeholderPattern.FindStringSubmatch(token)
			resolved, _ := lookup(match[1])
			return Stringify(resolved)
		})
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[key] = interpolateValue(child, lookup)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, child := range typed {
			out[i] = interpolateValue(child, lookup)
		}
		return out
	default:
		return typed
	}
}

// RenderLabel fills "{{path}}" placeholders of tpl from record. Paths may be
// dotted.
func RenderLabel(tpl string, record map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		match := placeholderPattern.FindStringSubmatch(token)
		value, _ := paths.Get(record, match[1])
		return Stringify(value)
	})
}

// Stringify renders scalars and flat lists the way they appear in option
// values and labels.
func Stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(typed)
	case []string:
		return strings.Join(typed, ",")
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(typed)
	}
}

// empty reports whether a dependency value counts as missing.
func empty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []string:
		return len(typed) == 0
	case []any:
		return len(typed) == 0
	}
	return false
}
