package options

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSource is returned by catalogs that do not know a query key.
var ErrUnknownSource = errors.New("options: unknown source")

// Catalog serves named record lists. The key is the remote descriptor's
// endpoint; filter is the interpolated filter (nil when none is declared).
// Implementations must be safe for concurrent use.
type Catalog interface {
	Query(ctx context.Context, key string, filter map[string]any) ([]map[string]any, error)
}

// CatalogFunc adapts a function to Catalog.
type CatalogFunc func(ctx context.Context, key string, filter map[string]any) ([]map[string]any, error)

// Query calls f.
func (f CatalogFunc) Query(ctx context.Context, key string, filter map[string]any) ([]map[string]any, error) {
	return f(ctx, key, filter)
}

// MapCatalog serves fixed record lists and applies filters as equality
// matches over record keys. A filter value that is a slice matches any of its
// elements.
type MapCatalog map[string][]map[string]any

// Query returns the records stored under key that match filter.
func (m MapCatalog) Query(ctx context.Context, key string, filter map[string]any) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, ok := m[strings.TrimSpace(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, key)
	}
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		if Matches(record, filter) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Matches reports whether record satisfies every filter entry. Values are
// compared by their string form so "3" matches 3.
func Matches(record map[string]any, filter map[string]any) bool {
	for key, want := range filter {
		got := Stringify(record[key])
		switch typed := want.(type) {
		case []any:
			if !containsString(typed, got) {
				return false
			}
		case []string:
			found := false
			for _, candidate := range typed {
				if candidate == got {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if Stringify(want) != got {
				return false
			}
		}
	}
	return true
}

func containsString(values []any, target string) bool {
	for _, value := range values {
		if Stringify(value) == target {
			return true
		}
	}
	return false
}
