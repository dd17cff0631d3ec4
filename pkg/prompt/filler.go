// Package prompt fills a mounted form interactively, one prompt per visible
// field in plan order. Option fields resolve through the form's option
// session, so a dependent list always reflects the answers given so far.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/layout"
	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithLogger sets the filler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Filler) {
		f.logger = logger
	}
}

// WithSections limits prompting to the given section ids.
func WithSections(ids ...string) Option {
	return func(f *Filler) {
		f.sections = ids
	}
}

// Filler walks a form plan and collects values through a Driver.
type Filler struct {
	driver   Driver
	logger   zerolog.Logger
	sections []string
}

// New constructs a filler. Without WithDriver it prompts on stdio.
func New(opts ...Option) *Filler {
	f := &Filler{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	return f
}

// Fill prompts for every visible, enabled field of form and records each
// accepted answer with form.Set. Rejected answers are reported and asked
// again. It returns the form values ready for Submit.
func (f *Filler) Fill(ctx context.Context, form *engine.Form) (map[string]any, error) {
	if ctx == nil {
		return nil, errors.New("prompt: context is required")
	}
	if form == nil {
		return nil, errors.New("prompt: form is required")
	}
	if form.Title != "" {
		if err := f.driver.Info(ctx, form.Title); err != nil {
			return nil, err
		}
	}

	plan := form.Plan.Visible().Subset(f.sections...)
	for _, section := range plan.Sections {
		if section.Title != "" {
			if err := f.driver.Info(ctx, "== "+section.Title+" =="); err != nil {
				return nil, err
			}
		}
		for _, field := range section.Fields {
			if field.Disabled || field.Type == schema.FieldTypeStatic {
				continue
			}
			if err := f.promptField(ctx, form, field); err != nil {
				return nil, err
			}
		}
	}

	values := form.Options.Values()
	out := make(map[string]any, len(form.Fields))
	for _, field := range form.Fields {
		if value, ok := values[field.Name]; ok {
			out[field.Name] = value
		}
	}
	return out, nil
}

func (f *Filler) promptField(ctx context.Context, form *engine.Form, field layout.Field) error {
	current, hasCurrent := form.Options.Values()[field.Name]
	for {
		value, skip, err := f.ask(ctx, form, field, current, hasCurrent)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		err = form.Set(ctx, field.Name, value)
		if err == nil {
			form.Options.Wait()
			return nil
		}
		verr, ok := validation.AsValidationError(err)
		if !ok {
			return err
		}
		f.logger.Debug().Str("field", field.Name).Err(err).Msg("answer rejected")
		if err := f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", field.DisplayLabel(), verr.Message(field.Name))); err != nil {
			return err
		}
	}
}

// ask returns the raw answer for field. skip is set when an optional field
// was left empty and the previous value should stand.
func (f *Filler) ask(ctx context.Context, form *engine.Form, field layout.Field, current any, hasCurrent bool) (any, bool, error) {
	label := field.DisplayLabel()
	if field.Required {
		label += " *"
	}
	def := ""
	if hasCurrent {
		def = options.Stringify(current)
	}

	if field.Options != nil {
		return f.askChoice(ctx, form, field, label, current)
	}

	switch field.Type {
	case schema.FieldTypeCheckbox:
		v, err := f.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: truthy(current), Help: field.HelpText})
		return v, false, err
	case schema.FieldTypeTextarea:
		v, err := f.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: def, Help: field.HelpText})
		return v, !field.Required && strings.TrimSpace(v) == "" && !hasCurrent, err
	case schema.FieldTypeTags:
		v, err := f.driver.Input(ctx, InputConfig{Message: label + " (comma separated)", Default: def, Help: field.HelpText})
		if err != nil {
			return nil, false, err
		}
		return splitTags(v), !field.Required && strings.TrimSpace(v) == "" && !hasCurrent, nil
	default:
		v, err := f.driver.Input(ctx, InputConfig{Message: label, Default: def, Help: helpText(field)})
		return v, !field.Required && strings.TrimSpace(v) == "" && !hasCurrent, err
	}
}

func (f *Filler) askChoice(ctx context.Context, form *engine.Form, field layout.Field, label string, current any) (any, bool, error) {
	items, err := f.items(ctx, form, field)
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		if field.Required {
			return nil, false, fmt.Errorf("%w: %s", ErrNoOptions, field.Name)
		}
		return nil, true, f.driver.Info(ctx, fmt.Sprintf("%s: no options available", field.DisplayLabel()))
	}

	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = item.Label
		if labels[i] == "" {
			labels[i] = item.Value
		}
	}
	selected := selectedValues(current)
	var defaults []int
	for i, item := range items {
		if slices.Contains(selected, item.Value) {
			defaults = append(defaults, i)
		}
	}

	var picked []string
	if field.Options.IsMultiple() {
		idx, err := f.driver.MultiSelect(ctx, SelectConfig{Message: label, Options: labels, Defaults: defaults, Help: field.HelpText})
		if err != nil {
			return nil, false, err
		}
		for _, i := range idx {
			if i >= 0 && i < len(items) {
				picked = append(picked, items[i].Value)
			}
		}
		return picked, false, nil
	}

	def := -1
	if len(defaults) > 0 {
		def = defaults[0]
	}
	i, err := f.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: def, Help: field.HelpText})
	if err != nil {
		return nil, false, err
	}
	if i < 0 || i >= len(items) {
		return nil, false, fmt.Errorf("prompt: %s: selection out of range", field.Name)
	}
	return items[i].Value, false, nil
}

// items returns static items or resolves remote ones. Retryable failures
// offer a retry; the others end the fill.
func (f *Filler) items(ctx context.Context, form *engine.Form, field layout.Field) ([]schema.Option, error) {
	if !field.Options.IsRemote() {
		return field.Options.Items, nil
	}
	for {
		state, err := form.Options.Resolve(ctx, field.Name)
		if err != nil {
			return nil, err
		}
		switch state.Status {
		case options.StatusReady:
			return state.Items, nil
		case options.StatusWaiting:
			return nil, f.driver.Info(ctx, fmt.Sprintf("%s needs %s first", field.DisplayLabel(), strings.Join(state.Waiting, ", ")))
		}

		var rerr *options.ResolutionError
		if !errors.As(state.Err, &rerr) || !rerr.Retryable() {
			return nil, state.Err
		}
		if err := f.driver.Info(ctx, fmt.Sprintf("Could not load %s: %s", field.DisplayLabel(), state.Error)); err != nil {
			return nil, err
		}
		retry, err := f.driver.Confirm(ctx, ConfirmConfig{Message: "Retry?", Default: true})
		if err != nil {
			return nil, err
		}
		if !retry {
			return nil, state.Err
		}
	}
}

func helpText(field layout.Field) string {
	if field.HelpText != "" {
		return field.HelpText
	}
	return field.Placeholder
}

func selectedValues(value any) []string {
	switch typed := value.(type) {
	case nil:
		return nil
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, options.Stringify(item))
		}
		return out
	default:
		return []string{options.Stringify(typed)}
	}
}

func splitTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func truthy(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(typed, "true") || typed == "1"
	default:
		return false
	}
}
