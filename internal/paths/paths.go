// Package paths reads and writes dotted field paths ("organisation.name",
// "contacts.0.email") against decoded JSON-like documents.
package paths

import (
	"fmt"
	"strconv"
	"strings"
)

// Get resolves a dotted path against root. Missing segments, out-of-range
// indices and non-container intermediates report false; Get never panics.
func Get(root map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if root == nil || path == "" {
		return nil, false
	}
	var current any = root
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case []map[string]any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Lookup finds a field value in a payload that may be flat (keys are full
// dotted names) or nested. The flat key wins when both exist.
func Lookup(payload map[string]any, name string) (any, bool) {
	if payload == nil {
		return nil, false
	}
	if value, ok := payload[name]; ok {
		return value, true
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	return Get(payload, name)
}

// Set writes value at a dotted path, creating intermediate maps as needed.
// Numeric segments index into existing slices; they never grow a slice.
func Set(root map[string]any, path string, value any) error {
	if root == nil {
		return fmt.Errorf("paths: root map is nil")
	}
	segments := strings.Split(strings.TrimSpace(path), ".")
	if len(segments) == 0 || segments[0] == "" {
		return fmt.Errorf("paths: empty path")
	}

	var current any = root
	for i, segment := range segments {
		last := i == len(segments)-1
		switch node := current.(type) {
		case map[string]any:
			if last {
				node[segment] = value
				return nil
			}
			next, ok := node[segment]
			if !ok || next == nil {
				child := make(map[string]any)
				node[segment] = child
				current = child
				continue
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("paths: segment %q of %q is not a valid index", segment, path)
			}
			if last {
				node[idx] = value
				return nil
			}
			if node[idx] == nil {
				node[idx] = make(map[string]any)
			}
			current = node[idx]
		default:
			return fmt.Errorf("paths: cannot descend into %T at segment %q of %q", current, segment, path)
		}
	}
	return nil
}

// Expand converts a flat map keyed by dotted names into a nested document.
func Expand(flat map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(flat))
	for key, value := range flat {
		if err := Set(out, key, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone deep copies maps and slices inside a decoded document.
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Clone(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return typed
	}
}
