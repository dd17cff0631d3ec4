package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-formkit/internal/paths"
	"github.com/goliatone/go-formkit/pkg/layout"
	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// Form is one mounted form: the compiled validator, the rendering plan and
// the option session of a single editing session.
type Form struct {
	ID       string
	Entity   string
	EntityID string
	Title    string
	Fields   []schema.FieldSchema

	Validator *validation.Validator
	Plan      layout.Plan
	Options   *options.Session

	engine  *Engine
	prefill map[string]any
}

// Prefill returns the values the form started from: stored entity values
// when mounted with an id, declared defaults otherwise.
func (f *Form) Prefill() map[string]any {
	return paths.Clone(f.prefill)
}

// Set records an in-progress value and checks it for inline feedback.
// Dependent option fields re-resolve in the background. The returned error
// is a *validation.ValidationError for a rejected value.
func (f *Form) Set(ctx context.Context, name string, value any) error {
	if err := f.Options.SetValue(ctx, name, value); err != nil {
		return err
	}
	_, err := f.Validator.ValidateField(name, value)
	return err
}

// SubmitResult reports a successful submission.
type SubmitResult struct {
	EntityID string         `json:"entityId"`
	Created  bool           `json:"created,omitempty"`
	Values   map[string]any `json:"values"`
}

// Submit validates payload and, when it passes, hands the coerced values to
// the entity store as one patch. Validation failures return a
// *validation.ValidationError and never reach the store. Store failures
// that name fields come back as *RejectedError. Submit does not retry.
func (f *Form) Submit(ctx context.Context, payload map[string]any) (SubmitResult, error) {
	started := time.Now()
	result, err := f.submit(ctx, payload)
	if obs := f.engine.submitObserver; obs != nil {
		obs.ObserveSubmit(f.ID, time.Since(started), err)
	}
	return result, err
}

func (f *Form) submit(ctx context.Context, payload map[string]any) (SubmitResult, error) {
	if ctx == nil {
		return SubmitResult{}, errors.New("engine: context is required")
	}
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, err
	}

	values, err := f.Validator.Validate(payload)
	if err != nil {
		f.engine.logger.Debug().Str("form", f.ID).Err(err).Msg("submission failed validation")
		return SubmitResult{}, err
	}
	store := f.engine.store
	if store == nil {
		return SubmitResult{}, ErrEntityStoreMissing
	}
	patch, err := paths.Expand(values)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("engine: build patch: %w", err)
	}

	result := SubmitResult{EntityID: f.EntityID, Values: values}
	if f.EntityID == "" {
		creator, ok := store.(EntityCreator)
		if !ok {
			return SubmitResult{}, fmt.Errorf("engine: form %q has no entity id and the store cannot create %s entities", f.ID, f.Entity)
		}
		id, err := creator.Create(ctx, f.Entity, patch)
		if err != nil {
			return SubmitResult{}, f.storeError("create", err)
		}
		f.EntityID = id
		result.EntityID = id
		result.Created = true
	} else if err := store.Patch(ctx, f.Entity, f.EntityID, patch); err != nil {
		return SubmitResult{}, f.storeError("patch", err)
	}

	f.engine.logger.Info().
		Str("form", f.ID).
		Str("entity", f.Entity).
		Str("entity_id", result.EntityID).
		Bool("created", result.Created).
		Int("fields", len(values)).
		Msg("form submitted")
	return result, nil
}

func (f *Form) storeError(op string, err error) error {
	var fe FieldErrorer
	if errors.As(err, &fe) {
		mapping := MapErrorPayload(f.Fields, fe.FieldErrors())
		return &RejectedError{Fields: mapping.Fields, Form: mapping.Form, Err: err}
	}
	return fmt.Errorf("engine: %s %s %q: %w", op, f.Entity, f.EntityID, err)
}

// Close cancels in-flight option queries. It is safe to call more than once.
func (f *Form) Close() error {
	if f == nil || f.Options == nil {
		return nil
	}
	return f.Options.Close()
}
