package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every compiled rule; validator.Validate is safe for
// concurrent use once configured.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Kind bundles the behaviour of one field type: how raw input is coerced,
// which shape the coerced value must have, and what counts as "filled" for
// required fields.
type Kind struct {
	// Coerce converts raw form input into the value Base expects. It returns
	// nil when the input carries no value (for example "" for numbers) and
	// the input unchanged when it cannot convert it.
	Coerce func(value any) any
	// Base checks the coerced value and returns a problem phrased to follow
	// the field label ("must be a number").
	Base func(value any) error
	// Filled reports whether a coerced value satisfies a required field.
	Filled func(value any) bool
}

var (
	errNotNumber  = errors.New("must be a number")
	errNotDate    = errors.New("must be a valid date")
	errNotBoolean = errors.New("must be true or false")
	errNotList    = errors.New("must be a list of values")
	errNotText    = errors.New("must be text")
	errNotEmail   = errors.New("must be a valid email address")
	errNotURL     = errors.New("must be a valid URL")
)

// Names of the built-in kinds. KindList is picked for select and command
// fields whose options declare multiple.
const (
	KindNumber     = "number"
	KindDate       = "date"
	KindBoolean    = "boolean"
	KindList       = "list"
	KindString     = "string"
	KindEmail      = "email"
	KindURL        = "url"
	KindPermissive = "permissive"
)

func builtinKinds() map[string]Kind {
	return map[string]Kind{
		KindNumber:     numberKind(),
		KindDate:       dateKind(),
		KindBoolean:    booleanKind(),
		KindList:       listKind(),
		KindString:     stringKind(),
		KindEmail:      formattedStringKind("email", errNotEmail),
		KindURL:        formattedStringKind("url", errNotURL),
		KindPermissive: permissiveKind(),
	}
}

func numberKind() Kind {
	return Kind{
		Coerce: func(value any) any {
			s, ok := value.(string)
			if !ok {
				return value
			}
			s = strings.TrimSpace(s)
			if s == "" {
				return nil
			}
			if validate.Var(s, "numeric") != nil {
				return value
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return value
			}
			return f
		},
		Base: func(value any) error {
			switch typed := value.(type) {
			case json.Number:
				if _, err := typed.Float64(); err != nil {
					return errNotNumber
				}
				return nil
			case float64:
				if math.IsNaN(typed) || math.IsInf(typed, 0) {
					return errNotNumber
				}
				return nil
			case float32:
				if math.IsNaN(float64(typed)) || math.IsInf(float64(typed), 0) {
					return errNotNumber
				}
				return nil
			}
			switch reflect.ValueOf(value).Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
				reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				return nil
			}
			return errNotNumber
		},
		Filled: present,
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
}

// ParseDate applies the lenient date coercion used by date fields: common
// ISO and European layouts for strings, JavaScript style epoch milliseconds
// for numbers.
func ParseDate(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case *time.Time:
		if typed == nil {
			return time.Time{}, false
		}
		return *typed, !typed.IsZero()
	case string:
		s := strings.TrimSpace(typed)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(typed)).UTC(), true
	case int64:
		return time.UnixMilli(typed).UTC(), true
	case int:
		return time.UnixMilli(int64(typed)).UTC(), true
	case json.Number:
		ms, err := typed.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func dateKind() Kind {
	return Kind{
		Coerce: func(value any) any {
			if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
				return nil
			}
			if parsed, ok := ParseDate(value); ok {
				return parsed
			}
			return value
		},
		Base: func(value any) error {
			if t, ok := value.(time.Time); ok && !t.IsZero() {
				return nil
			}
			return errNotDate
		},
		Filled: func(value any) bool {
			t, ok := value.(time.Time)
			return ok && !t.IsZero()
		},
	}
}

func booleanKind() Kind {
	return Kind{
		Coerce: func(value any) any {
			s, ok := value.(string)
			if !ok {
				return value
			}
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "on", "1", "yes":
				return true
			case "false", "off", "0", "no", "":
				return false
			}
			return value
		},
		Base: func(value any) error {
			if _, ok := value.(bool); ok {
				return nil
			}
			return errNotBoolean
		},
		Filled: present,
	}
}

func listKind() Kind {
	return Kind{
		Coerce: func(value any) any {
			items, ok := value.([]any)
			if !ok {
				return value
			}
			out := make([]string, 0, len(items))
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return value
				}
				out = append(out, s)
			}
			return out
		},
		Base: func(value any) error {
			if _, ok := value.([]string); ok {
				return nil
			}
			return errNotList
		},
		Filled: func(value any) bool {
			return validate.Var(value, "min=1") == nil
		},
	}
}

func stringKind() Kind {
	return Kind{
		Coerce: coerceScalarToString,
		Base: func(value any) error {
			if _, ok := value.(string); ok {
				return nil
			}
			return errNotText
		},
		Filled: filledString,
	}
}

func formattedStringKind(tag string, problem error) Kind {
	return Kind{
		Coerce: coerceScalarToString,
		Base: func(value any) error {
			s, ok := value.(string)
			if !ok {
				return errNotText
			}
			if s == "" {
				return nil
			}
			if validate.Var(s, tag) != nil {
				return problem
			}
			return nil
		},
		Filled: filledString,
	}
}

func permissiveKind() Kind {
	return Kind{
		Coerce: func(value any) any { return value },
		Base:   func(any) error { return nil },
		Filled: func(value any) bool {
			if s, ok := value.(string); ok {
				return s != ""
			}
			return value != nil
		},
	}
}

func coerceScalarToString(value any) any {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(typed)
	}
	return value
}

func filledString(value any) bool {
	s, ok := value.(string)
	return ok && validate.Var(s, "required") == nil
}

func present(value any) bool {
	return value != nil
}
