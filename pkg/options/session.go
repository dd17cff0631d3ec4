package options

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formkit/internal/paths"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// Default record keys used when a remote descriptor omits them.
const (
	DefaultLabelField = "name"
	DefaultValueField = "id"
)

// DefaultConcurrency bounds concurrent catalog queries issued by ResolveAll.
const DefaultConcurrency = 4

// Status is the resolution state of one field.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// State is the currently rendered option list of a field. Err is a
// *ResolutionError when Status is StatusFailed. Waiting lists the
// dependencies that still lack a value.
type State struct {
	Field      string          `json:"field"`
	Status     Status          `json:"status"`
	Items      []schema.Option `json:"items"`
	Waiting    []string        `json:"waiting,omitempty"`
	Err        error           `json:"-"`
	Error      string          `json:"error,omitempty"`
	Generation uint64          `json:"generation"`
}

// Observer receives one call per finished catalog query, stale or not.
type Observer interface {
	ObserveResolution(field, endpoint string, elapsed time.Duration, err error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithConcurrency bounds concurrent queries issued by ResolveAll.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithOnUpdate registers a callback invoked whenever a field's rendered
// state changes. Updates are delivered in order from a single goroutine,
// outside the session lock. A state superseded by a newer generation before
// it is delivered is dropped.
func WithOnUpdate(fn func(State)) Option {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// WithValues seeds in-progress form values, typically from a prefill.
func WithValues(values map[string]any) Option {
	return func(s *Session) {
		for key, value := range values {
			s.values[key] = value
		}
	}
}

// WithObserver registers a resolution observer such as a metrics collector.
func WithObserver(observer Observer) Option {
	return func(s *Session) {
		s.observer = observer
	}
}

type entry struct {
	field    schema.FieldSchema
	deps     []string
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	state    State
	multiple bool
}

// Session resolves the options of one mounted form. Every field gets its own
// generation counter: a completion whose generation is no longer current, or
// that arrives after Close, is discarded.
type Session struct {
	catalog     Catalog
	logger      zerolog.Logger
	concurrency int
	onUpdate    func(State)
	observer    Observer

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	wake       chan struct{}
	dispatched chan struct{}

	mu         sync.Mutex
	closed     bool
	values     map[string]any
	entries    map[string]*entry
	order      []string
	dependents map[string][]string
	pending    []State
}

// NewSession prepares option resolution for fields. Fields without options
// are ignored. Static items are ready immediately; remote fields start idle.
// Malformed option declarations fail with a *schema.SchemaError.
func NewSession(fields []schema.FieldSchema, catalog Catalog, opts ...Option) (*Session, error) {
	if err := schema.Check(fields); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		catalog:     catalog,
		logger:      zerolog.Nop(),
		concurrency: DefaultConcurrency,
		ctx:         ctx,
		cancel:      cancel,
		values:      make(map[string]any),
		entries:     make(map[string]*entry),
		dependents:  make(map[string][]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	for _, field := range fields {
		if field.Options == nil {
			continue
		}
		e := &entry{
			field:    schema.CloneField(field),
			multiple: field.Options.IsMultiple(),
			state:    State{Field: field.Name, Status: StatusIdle},
		}
		if remote := field.Options.Remote; remote != nil {
			if catalog == nil {
				cancel()
				return nil, fmt.Errorf("options: field %q needs a catalog for endpoint %q", field.Name, remote.Endpoint)
			}
			e.deps = Dependencies(remote.Filter)
			for _, dep := range e.deps {
				s.dependents[dep] = append(s.dependents[dep], field.Name)
			}
		} else {
			e.state.Status = StatusReady
			e.state.Items = cloneItems(field.Options.Items)
		}
		if _, exists := s.entries[field.Name]; !exists {
			s.order = append(s.order, field.Name)
		}
		s.entries[field.Name] = e
	}
	if s.onUpdate != nil {
		s.wake = make(chan struct{}, 1)
		s.dispatched = make(chan struct{})
		go s.dispatch()
	}
	return s, nil
}

// Fields returns the names of fields with options, in declaration order.
func (s *Session) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Dependencies returns the fields referenced by name's filter.
func (s *Session) Dependencies(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		return append([]string(nil), e.deps...)
	}
	return nil
}

// Values returns a copy of the in-progress form values.
func (s *Session) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paths.Clone(s.values)
}

// Options returns the currently rendered state of name.
func (s *Session) Options(name string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return State{}, false
	}
	return copyState(e.state), true
}

// States returns the rendered state of every field, in declaration order.
func (s *Session) States() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, copyState(s.entries[name].state))
	}
	return out
}

// SetValue records an in-progress value. When the value changes, every field
// whose filter references name is re-resolved in the background. ctx is
// only checked for cancellation; background queries run under the session.
func (s *Session) SetValue(ctx context.Context, name string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	previous, had := s.values[name]
	s.values[name] = value
	changed := !had || !reflect.DeepEqual(previous, value)
	if changed {
		for _, dependent := range s.dependents[name] {
			if state, ok := s.startLocked(s.ctx, dependent); ok {
				s.enqueueLocked(state)
			}
		}
	}
	s.mu.Unlock()

	if changed {
		s.logger.Debug().Str("field", name).Int("dependents", len(s.dependents[name])).Msg("options value changed")
	}
	return nil
}

// Resolve issues a fresh resolution of name and waits for it. Field failures
// are reported in the returned State; the error is only set for unknown
// fields, a closed session, or ctx ending first.
func (s *Session) Resolve(ctx context.Context, name string) (State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, ErrSessionClosed
	}
	if _, ok := s.entries[name]; !ok {
		s.mu.Unlock()
		return State{}, fmt.Errorf("options: field %q has no options", name)
	}
	callCtx, stop := s.mergeContext(ctx)
	state, started := s.startLocked(callCtx, name)
	if started {
		s.enqueueLocked(state)
	}
	done := s.entries[name].done
	s.mu.Unlock()
	defer stop()

	if state.Status != StatusLoading {
		return state, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	current, _ := s.Options(name)
	return current, nil
}

// ResolveAll resolves every field with options concurrently, bounded by
// the configured concurrency. Dependent fields whose references are still
// empty end up StatusWaiting without a query.
func (s *Session) ResolveAll(ctx context.Context) error {
	names := s.Fields()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, name := range names {
		g.Go(func() error {
			_, err := s.Resolve(gctx, name)
			return err
		})
	}
	return g.Wait()
}

// Bind shapes selected option values for the form payload: a slice for
// multiple fields, a scalar otherwise.
func (s *Session) Bind(name string, values ...string) (any, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("options: field %q has no options", name)
	}
	if e.multiple {
		return append([]string{}, values...), nil
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return nil, fmt.Errorf("options: field %q accepts a single value, got %d", name, len(values))
	}
}

// Wait blocks until every in-flight resolution has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight queries and waits for their goroutines. Late
// completions are discarded. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if s.dispatched != nil {
		<-s.dispatched
	}
	return nil
}

// mergeContext derives a query context that ends with either the session or
// the caller.
func (s *Session) mergeContext(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

// startLocked bumps the generation of name and either marks it waiting or
// launches a query. It reports the new state and whether it changed.
func (s *Session) startLocked(ctx context.Context, name string) (State, bool) {
	e, ok := s.entries[name]
	if !ok {
		return State{}, false
	}
	remote := e.field.Options.Remote
	if remote == nil {
		return copyState(e.state), false
	}

	e.gen++
	gen := e.gen
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	var missing []string
	for _, dep := range e.deps {
		value, _ := paths.Lookup(s.values, dep)
		if empty(value) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		e.state = State{Field: name, Status: StatusWaiting, Waiting: missing, Generation: gen}
		e.done = closedChan()
		return copyState(e.state), true
	}

	filter := Interpolate(remote.Filter, func(ref string) (any, bool) {
		return paths.Lookup(s.values, ref)
	})
	queryCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	done := make(chan struct{})
	e.done = done
	e.state = State{Field: name, Status: StatusLoading, Items: e.state.Items, Generation: gen}

	s.wg.Add(1)
	go s.run(queryCtx, cancel, done, name, gen, *remote, filter)
	return copyState(e.state), true
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, name string, gen uint64, remote schema.RemoteOptions, filter map[string]any) {
	defer s.wg.Done()
	defer close(done)
	defer cancel()

	started := time.Now()
	records, err := s.catalog.Query(ctx, remote.Endpoint, filter)
	if s.observer != nil {
		s.observer.ObserveResolution(name, remote.Endpoint, time.Since(started), err)
	}

	s.mu.Lock()
	e := s.entries[name]
	if s.closed || e.gen != gen {
		s.mu.Unlock()
		s.logger.Debug().Str("field", name).Uint64("generation", gen).Msg("discarding stale option result")
		return
	}
	e.cancel = nil
	if err != nil {
		rerr := &ResolutionError{Field: name, Endpoint: remote.Endpoint, Err: err}
		e.state = State{
			Field:      name,
			Status:     StatusFailed,
			Err:        rerr,
			Error:      rerr.Error(),
			Generation: gen,
		}
	} else {
		e.state = State{Field: name, Status: StatusReady, Items: toItems(records, remote), Generation: gen}
	}
	state := copyState(e.state)
	s.enqueueLocked(state)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("field", name).Str("endpoint", remote.Endpoint).Msg("option resolution failed")
	} else {
		s.logger.Debug().Str("field", name).Int("items", len(state.Items)).Msg("options resolved")
	}
}

// enqueueLocked queues state for the update callback. The caller holds s.mu,
// so the queue follows the order in which states were applied.
func (s *Session) enqueueLocked(state State) {
	if s.onUpdate == nil {
		return
	}
	s.pending = append(s.pending, state)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued updates until the session closes. Each state is
// checked against its field's generation right before delivery.
func (s *Session) dispatch() {
	defer close(s.dispatched)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if s.closed || len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			state := s.pending[0]
			s.pending = s.pending[1:]
			e := s.entries[state.Field]
			current := e != nil && e.gen == state.Generation
			s.mu.Unlock()

			if !current {
				s.logger.Debug().Str("field", state.Field).Uint64("generation", state.Generation).Msg("dropping superseded option update")
				continue
			}
			s.onUpdate(state)
		}
	}
}

// toItems maps catalog records to options. FormatLabel wins over
// LabelTemplate, which wins over LabelField. Records without a value are
// skipped.
func toItems(records []map[string]any, remote schema.RemoteOptions) []schema.Option {
	valueField := strings.TrimSpace(remote.ValueField)
	if valueField == "" {
		valueField = DefaultValueField
	}
	labelField := strings.TrimSpace(remote.LabelField)
	if labelField == "" {
		labelField = DefaultLabelField
	}

	items := make([]schema.Option, 0, len(records))
	for _, record := range records {
		raw, ok := paths.Get(record, valueField)
		if !ok || raw == nil {
			continue
		}
		value := Stringify(raw)
		var label string
		switch {
		case remote.FormatLabel != nil:
			label = remote.FormatLabel(record)
		case remote.LabelTemplate != "":
			label = RenderLabel(remote.LabelTemplate, record)
		default:
			if rawLabel, ok := paths.Get(record, labelField); ok {
				label = Stringify(rawLabel)
			}
		}
		if strings.TrimSpace(label) == "" {
			label = value
		}
		items = append(items, schema.Option{Value: value, Label: label})
	}
	return items
}

func copyState(state State) State {
	state.Items = cloneItems(state.Items)
	state.Waiting = append([]string(nil), state.Waiting...)
	return state
}

func cloneItems(items []schema.Option) []schema.Option {
	if items == nil {
		return nil
	}
	return append(make([]schema.Option, 0, len(items)), items...)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
