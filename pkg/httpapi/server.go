// Package httpapi serves mounted forms and detail views over HTTP. JSON
// endpoints cover plans, option resolution, validation, submission and
// detail rendering; a websocket endpoint keeps one form mounted per
// connection and pushes option state as dependencies change.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/registry"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveRequest(route string, code int)
}

// SessionObserver tracks live websocket sessions.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRequestObserver records per-route request counts. When the observer
// also implements SessionObserver it tracks live sessions too.
func WithRequestObserver(observer RequestObserver) Option {
	return func(s *Server) {
		s.requests = observer
		if sessions, ok := observer.(SessionObserver); ok {
			s.sessions = sessions
		}
	}
}

// WithMetricsHandler mounts h under /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithNotFound registers store errors that map to 404 responses.
func WithNotFound(errs ...error) Option {
	return func(s *Server) {
		s.notFound = append(s.notFound, errs...)
	}
}

// WithOriginPatterns sets the hosts allowed to open live sessions from a
// browser. Same-origin requests are always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// Server is the HTTP runtime of an engine.
type Server struct {
	engine         *engine.Engine
	logger         zerolog.Logger
	requests       RequestObserver
	sessions       SessionObserver
	metrics        http.Handler
	notFound       []error
	originPatterns []string
	router         chi.Router
}

// New builds the router for eng.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:   eng,
		logger:   zerolog.Nop(),
		notFound: []error{engine.ErrFormNotFound},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", s.handleListForms)
		r.Route("/{formID}", func(r chi.Router) {
			r.Get("/", s.handlePlan)
			r.Get("/options/{field}", s.handleOptions)
			r.Post("/validate", s.handleValidate)
			r.Post("/submit", s.handleSubmit)
			r.Get("/entities/{entityID}", s.handleMount)
			r.Post("/entities/{entityID}/submit", s.handleSubmit)
			r.Get("/live", s.handleLive)
		})
	})
	r.Get("/details/{detailID}/{entityID}", s.handleDetail)
	return r
}

// observe logs each request and reports it under its route pattern so
// metrics stay low cardinality.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		if s.requests != nil {
			s.requests.ObserveRequest(route, code)
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", code).
			Dur("elapsed", time.Since(started)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request served")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FormSummary is one entry of the form listing.
type FormSummary struct {
	ID     string `json:"id"`
	Entity string `json:"entity"`
	Title  string `json:"title,omitempty"`
	Fields int    `json:"fields"`
}

func (s *Server) handleListForms(w http.ResponseWriter, _ *http.Request) {
	reg := s.engine.Registry()
	out := make([]FormSummary, 0, len(reg.Forms()))
	for _, id := range reg.Forms() {
		form, _ := reg.Form(id)
		out = append(out, summarize(form))
	}
	writeJSON(w, http.StatusOK, out)
}

func summarize(form registry.Form) FormSummary {
	return FormSummary{ID: form.ID, Entity: form.Entity, Title: form.Title, Fields: len(form.Fields)}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	form, _, plan, err := s.engine.Compiled(chi.URLParam(r, "formID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"form": summarize(form),
		"plan": plan,
	})
}

// handleOptions resolves one option field. Query parameters other than
// "entity" seed the values its filter references.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	values := make(map[string]any, len(query))
	for key, list := range query {
		if key == "entity" || len(list) == 0 {
			continue
		}
		if len(list) == 1 {
			values[key] = list[0]
		} else {
			values[key] = list
		}
	}
	form, err := s.engine.Mount(r.Context(), chi.URLParam(r, "formID"), query.Get("entity"), engine.WithInitialValues(values))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	defer form.Close()

	field := chi.URLParam(r, "field")
	if !slices.Contains(form.Options.Fields(), field) {
		writeError(w, http.StatusNotFound, "unknown_field", fmt.Sprintf("field %q has no options", field))
		return
	}
	state, err := form.Options.Resolve(r.Context(), field)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleMount returns the prefilled values and plan of a stored entity.
func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	form, err := s.engine.Mount(r.Context(), chi.URLParam(r, "formID"), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	defer form.Close()
	writeJSON(w, http.StatusOK, map[string]any{
		"form":     FormSummary{ID: form.ID, Entity: form.Entity, Title: form.Title, Fields: len(form.Fields)},
		"entityId": form.EntityID,
		"values":   form.Prefill(),
		"plan":     form.Plan,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	_, validator, _, err := s.engine.Compiled(chi.URLParam(r, "formID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	validate := validator.Validate
	if r.URL.Query().Get("partial") == "true" {
		validate = validator.ValidatePartial
	}
	values, err := validate(payload)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "values": values})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	form, err := s.engine.Mount(r.Context(), chi.URLParam(r, "formID"), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	defer form.Close()

	result, err := form.Submit(r.Context(), payload)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Detail(r.Context(), chi.URLParam(r, "detailID"), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ErrorBody is the JSON error envelope. Fields carries per-field messages
// for rejected submissions.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Form    []string            `json:"form,omitempty"`
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	body := s.errorBody(err)
	status := http.StatusInternalServerError
	switch body.Code {
	case "invalid", "rejected":
		status = http.StatusUnprocessableEntity
	case "not_found":
		status = http.StatusNotFound
	case "store_missing":
		status = http.StatusNotImplemented
	default:
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func decodePayload(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON body: %v", err))
		return nil, false
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Code: code, Message: strings.TrimSpace(message)})
}
