package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/internal/paths"
	"github.com/goliatone/go-formkit/pkg/detail"
	"github.com/goliatone/go-formkit/pkg/layout"
	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/registry"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// EntityStore reads and patches stored entities by id.
type EntityStore interface {
	Get(ctx context.Context, entity, id string) (map[string]any, error)
	Patch(ctx context.Context, entity, id string, patch map[string]any) error
}

// EntityCreator is an optional EntityStore extension. Submitting a form
// mounted without an entity id creates the entity when the store supports
// it.
type EntityCreator interface {
	Create(ctx context.Context, entity string, values map[string]any) (string, error)
}

// SubmitObserver receives one call per submission attempt.
type SubmitObserver interface {
	ObserveSubmit(formID string, elapsed time.Duration, err error)
}

// Option customises the engine configuration.
type Option func(*Engine)

// WithCatalog sets the data source catalog used by remote option fields.
func WithCatalog(catalog options.Catalog) Option {
	return func(e *Engine) {
		e.catalog = catalog
	}
}

// WithEntityStore sets the persistence used for prefill, submit and detail
// views.
func WithEntityStore(store EntityStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger sets the engine logger. Sessions inherit it.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCompiler injects a validation compiler carrying custom field types.
func WithCompiler(compiler *validation.Compiler) Option {
	return func(e *Engine) {
		if compiler != nil {
			e.compiler = compiler
		}
	}
}

// WithPipeline injects the detail pipeline (locale, currency, sanitizer).
func WithPipeline(pipeline *detail.Pipeline) Option {
	return func(e *Engine) {
		if pipeline != nil {
			e.pipeline = pipeline
		}
	}
}

// WithConcurrency bounds concurrent catalog queries per mounted form.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithObserver registers resolution metrics for every mounted session. When
// the observer also implements SubmitObserver it receives submissions too.
func WithObserver(observer options.Observer) Option {
	return func(e *Engine) {
		e.observer = observer
		if submit, ok := observer.(SubmitObserver); ok {
			e.submitObserver = submit
		}
	}
}

type compiledForm struct {
	form      registry.Form
	validator *validation.Validator
	plan      layout.Plan
}

// Engine binds a registry to a catalog and an entity store. Validators and
// plans are compiled once per form and reused until Reload swaps the
// registry.
type Engine struct {
	catalog        options.Catalog
	store          EntityStore
	compiler       *validation.Compiler
	pipeline       *detail.Pipeline
	logger         zerolog.Logger
	concurrency    int
	observer       options.Observer
	submitObserver SubmitObserver

	mu       sync.RWMutex
	registry *registry.Registry
	compiled map[string]*compiledForm
}

// New constructs an engine over reg. A nil registry behaves as an empty one.
func New(reg *registry.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = registry.New()
	}
	e := &Engine{
		registry:    reg,
		compiled:    make(map[string]*compiledForm),
		compiler:    validation.NewCompiler(),
		logger:      zerolog.Nop(),
		concurrency: options.DefaultConcurrency,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	if e.pipeline == nil {
		e.pipeline = detail.New(detail.WithLogger(e.logger))
	}
	return e
}

// Registry returns the registry currently served.
func (e *Engine) Registry() *registry.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// Pipeline returns the detail pipeline.
func (e *Engine) Pipeline() *detail.Pipeline {
	return e.pipeline
}

// Reload swaps the registry and drops every memoized validator and plan.
// Forms already mounted keep the declarations they were mounted with.
func (e *Engine) Reload(reg *registry.Registry) {
	if reg == nil {
		return
	}
	e.mu.Lock()
	e.registry = reg
	e.compiled = make(map[string]*compiledForm)
	e.mu.Unlock()
	e.logger.Info().Int("forms", len(reg.Forms())).Int("details", len(reg.Details())).Msg("engine registry reloaded")
}

// Compiled returns the memoized validator and plan of a form.
func (e *Engine) Compiled(formID string) (registry.Form, *validation.Validator, layout.Plan, error) {
	c, err := e.compile(formID)
	if err != nil {
		return registry.Form{}, nil, layout.Plan{}, err
	}
	return c.form, c.validator, c.plan, nil
}

func (e *Engine) compile(formID string) (*compiledForm, error) {
	e.mu.RLock()
	c, ok := e.compiled[formID]
	reg := e.registry
	e.mu.RUnlock()
	if ok {
		return c, nil
	}

	form, ok := reg.Form(formID)
	if !ok {
		return nil, fmt.Errorf("engine: form %q: %w", formID, ErrFormNotFound)
	}
	c = &compiledForm{
		form:      form,
		validator: e.compiler.Compile(form.Fields),
		plan:      layout.Resolve(form.Fields, form.Sections),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registry != reg {
		return c, nil
	}
	if existing, ok := e.compiled[formID]; ok {
		return existing, nil
	}
	e.compiled[formID] = c
	return c, nil
}

// MountOption customises one mounted form.
type MountOption func(*mountConfig)

type mountConfig struct {
	onUpdate func(options.State)
	values   map[string]any
}

// WithUpdates registers a callback for option state changes of the mounted
// form, typically to push them to a live client.
func WithUpdates(fn func(options.State)) MountOption {
	return func(c *mountConfig) {
		c.onUpdate = fn
	}
}

// WithInitialValues seeds values on top of the prefill, as if the user had
// already typed them.
func WithInitialValues(values map[string]any) MountOption {
	return func(c *mountConfig) {
		c.values = values
	}
}

// Mount prepares formID for editing. When entityID is set the stored entity
// prefills the form and Submit patches it; otherwise declared defaults
// prefill and Submit creates a new entity when the store supports it. The
// caller must Close the returned form.
func (e *Engine) Mount(ctx context.Context, formID, entityID string, opts ...MountOption) (*Form, error) {
	if ctx == nil {
		return nil, errors.New("engine: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := mountConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c, err := e.compile(formID)
	if err != nil {
		return nil, err
	}

	var stored map[string]any
	if entityID != "" {
		if e.store == nil {
			return nil, ErrEntityStoreMissing
		}
		stored, err = e.store.Get(ctx, c.form.Entity, entityID)
		if err != nil {
			return nil, fmt.Errorf("engine: load %s %q: %w", c.form.Entity, entityID, err)
		}
	}
	prefill := prefillValues(c.form.Fields, stored)
	values := paths.Clone(prefill)
	for key, value := range cfg.values {
		values[key] = value
	}

	sessionOpts := []options.Option{
		options.WithLogger(e.logger.With().Str("form", formID).Logger()),
		options.WithConcurrency(e.concurrency),
		options.WithValues(values),
	}
	if e.observer != nil {
		sessionOpts = append(sessionOpts, options.WithObserver(e.observer))
	}
	if cfg.onUpdate != nil {
		sessionOpts = append(sessionOpts, options.WithOnUpdate(cfg.onUpdate))
	}
	session, err := options.NewSession(c.form.Fields, e.catalog, sessionOpts...)
	if err != nil {
		return nil, schema.WithScope(err, formID)
	}

	e.logger.Debug().Str("form", formID).Str("entity_id", entityID).Msg("form mounted")
	return &Form{
		ID:        formID,
		Entity:    c.form.Entity,
		EntityID:  entityID,
		Title:     c.form.Title,
		Fields:    schema.CloneFields(c.form.Fields),
		Validator: c.validator,
		Plan:      c.plan,
		Options:   session,
		engine:    e,
		prefill:   prefill,
	}, nil
}

// Lint compiles every form and detail of the registry and returns the joined
// schema errors. Registry loading already rejects malformed declarations;
// Lint covers registries assembled in code and option sessions that need a
// catalog.
func (e *Engine) Lint() error {
	reg := e.Registry()
	var errs []error
	for _, id := range reg.Forms() {
		form, _ := reg.Form(id)
		if err := schema.Check(form.Fields); err != nil {
			errs = append(errs, schema.WithScope(err, id))
			continue
		}
		for _, field := range form.Fields {
			if field.Options.IsRemote() && e.catalog == nil {
				errs = append(errs, &schema.SchemaError{
					Scope:  id,
					Field:  field.Name,
					Reason: fmt.Sprintf("remote endpoint %q needs a catalog", field.Options.Remote.Endpoint),
				})
			}
		}
		if _, err := e.compile(id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range reg.Details() {
		detail, _ := reg.Detail(id)
		if err := schema.CheckDetail(detail.Fields); err != nil {
			errs = append(errs, schema.WithScope(err, id))
		}
	}
	return errors.Join(errs...)
}

// DetailView is a rendered read-only view, grouped like the layout plan.
type DetailView struct {
	ID       string          `json:"id"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entityId"`
	Title    string          `json:"title,omitempty"`
	Sections []DetailSection `json:"sections"`
}

// DetailSection is one section of a DetailView.
type DetailSection struct {
	schema.Section
	Entries []detail.Entry `json:"entries"`
}

// Entries flattens the view in display order.
func (v DetailView) Entries() []detail.Entry {
	var out []detail.Entry
	for _, section := range v.Sections {
		out = append(out, section.Entries...)
	}
	return out
}

// Detail loads entityID and renders the detail view detailID. The
// validator never runs on this path.
func (e *Engine) Detail(ctx context.Context, detailID, entityID string) (DetailView, error) {
	if ctx == nil {
		return DetailView{}, errors.New("engine: context is required")
	}
	if err := ctx.Err(); err != nil {
		return DetailView{}, err
	}
	view, ok := e.Registry().Detail(detailID)
	if !ok {
		return DetailView{}, fmt.Errorf("engine: detail %q: %w", detailID, ErrFormNotFound)
	}
	if e.store == nil {
		return DetailView{}, ErrEntityStoreMissing
	}
	item, err := e.store.Get(ctx, view.Entity, entityID)
	if err != nil {
		return DetailView{}, fmt.Errorf("engine: load %s %q: %w", view.Entity, entityID, err)
	}
	return e.RenderDetail(view, entityID, item), nil
}

// RenderDetail renders item through view without touching the store.
func (e *Engine) RenderDetail(view registry.Detail, entityID string, item map[string]any) DetailView {
	byName := make(map[string]schema.DetailFieldSchema, len(view.Fields))
	plain := make([]schema.FieldSchema, 0, len(view.Fields))
	for _, field := range view.Fields {
		byName[field.Name] = field
		plain = append(plain, field.FieldSchema)
	}

	out := DetailView{ID: view.ID, Entity: view.Entity, EntityID: entityID, Title: view.Title}
	for _, section := range layout.Resolve(plain, view.Sections).Sections {
		ordered := make([]schema.DetailFieldSchema, 0, len(section.Fields))
		for _, field := range section.Fields {
			ordered = append(ordered, byName[field.Name])
		}
		entries := e.pipeline.Render(ordered, item)
		if len(entries) == 0 {
			continue
		}
		out.Sections = append(out.Sections, DetailSection{Section: section.Section, Entries: entries})
	}
	return out
}

func prefillValues(fields []schema.FieldSchema, stored map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		if stored != nil {
			if value, ok := paths.Get(stored, field.Name); ok {
				out[field.Name] = value
				continue
			}
		}
		if field.Default != nil {
			out[field.Name] = field.Default
		}
	}
	return out
}
