package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Compiler turns field declarations into validators. It owns the dispatch
// table from field type to Kind; registering a type never touches the
// compile path. The zero value is not usable; call NewCompiler.
type Compiler struct {
	mu    sync.RWMutex
	kinds map[schema.FieldType]Kind
}

// NewCompiler constructs a compiler with the built-in field types registered.
func NewCompiler() *Compiler {
	c := &Compiler{kinds: make(map[schema.FieldType]Kind)}
	c.registerBuiltins()
	return c
}

func (c *Compiler) registerBuiltins() {
	kinds := builtinKinds()
	for _, t := range []schema.FieldType{schema.FieldTypeNumber, schema.FieldTypeCurrency} {
		c.kinds[t] = kinds[KindNumber]
	}
	c.kinds[schema.FieldTypeDate] = kinds[KindDate]
	c.kinds[schema.FieldTypeCheckbox] = kinds[KindBoolean]
	c.kinds[schema.FieldTypeTags] = kinds[KindList]
	for _, t := range []schema.FieldType{
		schema.FieldTypeText,
		schema.FieldTypeTextarea,
		schema.FieldTypeSelect,
		schema.FieldTypeCommand,
		schema.FieldTypeRadio,
		schema.FieldTypeHidden,
		schema.FieldTypeStatic,
	} {
		c.kinds[t] = kinds[KindString]
	}
	c.kinds[schema.FieldTypeEmail] = kinds[KindEmail]
	c.kinds[schema.FieldTypeURL] = kinds[KindURL]
}

// Register binds a field type to a Kind. Later registrations replace earlier
// ones. Missing Kind callbacks fall back to the permissive behaviour.
func (c *Compiler) Register(fieldType schema.FieldType, kind Kind) {
	if c == nil {
		return
	}
	trimmed := schema.FieldType(strings.TrimSpace(string(fieldType)))
	if trimmed == "" {
		return
	}
	fallback := permissiveKind()
	if kind.Coerce == nil {
		kind.Coerce = fallback.Coerce
	}
	if kind.Base == nil {
		kind.Base = fallback.Base
	}
	if kind.Filled == nil {
		kind.Filled = fallback.Filled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[trimmed] = kind
}

// Builtin returns one of the named built-in kinds (KindNumber, KindString,
// ...) so callers can register new field types with existing behaviour.
func Builtin(name string) (Kind, bool) {
	kind, ok := builtinKinds()[name]
	return kind, ok
}

func (c *Compiler) kindFor(field schema.FieldSchema) Kind {
	if field.Options.IsMultiple() {
		return listKind()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if kind, ok := c.kinds[field.Type]; ok {
		return kind
	}
	return permissiveKind()
}

// Compile builds a validator for fields. It never fails: unknown types get a
// permissive rule. Duplicate names keep the last declaration.
func (c *Compiler) Compile(fields []schema.FieldSchema) *Validator {
	v := &Validator{index: make(map[string]int, len(fields))}
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		compiled := compiledField{
			name:     name,
			required: field.Required,
			rule:     c.compileField(field),
		}
		if idx, ok := v.index[name]; ok {
			v.fields[idx] = compiled
			continue
		}
		v.index[name] = len(v.fields)
		v.fields = append(v.fields, compiled)
	}
	return v
}

var defaultCompiler = NewCompiler()

// Compile builds a validator with the built-in dispatch table.
func Compile(fields []schema.FieldSchema) *Validator {
	return defaultCompiler.Compile(fields)
}

func (c *Compiler) compileField(field schema.FieldSchema) schema.Rule {
	label := field.DisplayLabel()
	if field.Validation != nil {
		return overrideRule(field.Validation, label)
	}

	kind := c.kindFor(field)
	required := field.Required
	nullable := field.Nullable
	return func(value any, present bool) (any, error) {
		if !present {
			if required {
				return nil, requiredError(label)
			}
			return nil, errSkip
		}
		if value == nil {
			if required {
				return nil, requiredError(label)
			}
			if nullable {
				return nil, nil
			}
			return nil, fmt.Errorf("%s must not be empty", label)
		}

		coerced := kind.Coerce(value)
		if coerced == nil {
			if required {
				return nil, requiredError(label)
			}
			return nil, errSkip
		}
		if err := kind.Base(coerced); err != nil {
			return nil, fmt.Errorf("%s %s", label, err.Error())
		}
		if required && !kind.Filled(coerced) {
			return nil, requiredError(label)
		}
		return coerced, nil
	}
}

func overrideRule(override *schema.Override, label string) schema.Rule {
	if override.Rule != nil {
		rule := override.Rule
		message := strings.TrimSpace(override.Message)
		return func(value any, present bool) (any, error) {
			out, err := rule(value, present)
			if err != nil && message != "" {
				return nil, fmt.Errorf("%s", message)
			}
			return out, err
		}
	}

	tag := strings.TrimSpace(override.Tag)
	message := strings.TrimSpace(override.Message)
	needsValue := tagRequires(tag)
	return func(value any, present bool) (any, error) {
		if !present || value == nil {
			if needsValue {
				if message != "" {
					return nil, fmt.Errorf("%s", message)
				}
				return nil, requiredError(label)
			}
			if !present {
				return nil, errSkip
			}
			return nil, nil
		}
		if tag == "" {
			return value, nil
		}
		if err := validate.Var(value, tag); err != nil {
			if message != "" {
				return nil, fmt.Errorf("%s", message)
			}
			return nil, describe(label, err)
		}
		return value, nil
	}
}

func tagRequires(tag string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == "required" {
			return true
		}
	}
	return false
}

func requiredError(label string) error {
	return fmt.Errorf("%s is required", label)
}

// describe turns a validator failure into a message that embeds the label.
func describe(label string, err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return fmt.Errorf("%s is invalid", label)
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return requiredError(label)
	case "min":
		return fmt.Errorf("%s must be at least %s", label, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", label, fe.Param())
	case "len":
		return fmt.Errorf("%s must have length %s", label, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of %s", label, fe.Param())
	case "email":
		return fmt.Errorf("%s %s", label, errNotEmail.Error())
	case "url":
		return fmt.Errorf("%s %s", label, errNotURL.Error())
	case "numeric", "number":
		return fmt.Errorf("%s %s", label, errNotNumber.Error())
	}
	return fmt.Errorf("%s failed the %s rule", label, fe.Tag())
}
