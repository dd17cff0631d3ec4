package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// Live message types sent by the client.
const (
	MsgSet        = "set"
	MsgResolve    = "resolve"
	MsgResolveAll = "resolveAll"
	MsgSubmit     = "submit"
)

// Live message types sent by the server.
const (
	MsgMounted   = "mounted"
	MsgOptions   = "options"
	MsgFieldOK   = "fieldOk"
	MsgInvalid   = "invalid"
	MsgSubmitted = "submitted"
	MsgError     = "error"
)

// ClientMessage is a message from the browser.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is a message to the browser. RequestID echoes the client
// message it answers; pushed option updates carry none.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// SetData is the payload of a set message.
type SetData struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// ResolveData is the payload of a resolve message.
type ResolveData struct {
	Field string `json:"field"`
}

// SubmitData is the payload of a submit message. Without values the
// session's in-progress values are submitted.
type SubmitData struct {
	Values map[string]any `json:"values,omitempty"`
}

// MountedData describes the mounted form.
type MountedData struct {
	Form     FormSummary     `json:"form"`
	EntityID string          `json:"entityId,omitempty"`
	Values   map[string]any  `json:"values"`
	Plan     any             `json:"plan"`
	Options  []options.State `json:"options"`
}

// handleLive mounts the form for the lifetime of the websocket. The
// "entity" query parameter selects the entity to edit.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := func(msg ServerMessage) {
		if err := wsjson.Write(ctx, conn, msg); err != nil && ctx.Err() == nil {
			s.logger.Debug().Err(err).Str("type", msg.Type).Msg("live write failed")
		}
	}

	formID := chi.URLParam(r, "formID")
	form, err := s.engine.Mount(ctx, formID, r.URL.Query().Get("entity"), engine.WithUpdates(func(state options.State) {
		send(ServerMessage{Type: MsgOptions, Data: state})
	}))
	if err != nil {
		send(ServerMessage{Type: MsgError, Data: s.errorBody(err)})
		conn.Close(websocket.StatusPolicyViolation, "mount failed")
		return
	}
	defer form.Close()

	if s.sessions != nil {
		s.sessions.SessionOpened()
		defer s.sessions.SessionClosed()
	}
	s.logger.Debug().Str("form", formID).Str("entity_id", form.EntityID).Msg("live session opened")

	send(ServerMessage{Type: MsgMounted, Data: MountedData{
		Form:     FormSummary{ID: form.ID, Entity: form.Entity, Title: form.Title, Fields: len(form.Fields)},
		EntityID: form.EntityID,
		Values:   form.Prefill(),
		Plan:     form.Plan,
		Options:  form.Options.States(),
	}})
	resolved := make(chan struct{})
	go func() {
		defer close(resolved)
		_ = form.Options.ResolveAll(ctx)
	}()
	defer func() {
		cancel()
		<-resolved
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				s.logger.Debug().Err(err).Str("form", formID).Msg("live read failed")
			}
			return
		}
		send(s.dispatch(ctx, form, msg))
	}
}

func (s *Server) dispatch(ctx context.Context, form *engine.Form, msg ClientMessage) ServerMessage {
	reply := func(kind string, data any) ServerMessage {
		return ServerMessage{Type: kind, RequestID: msg.ID, Data: data}
	}
	fail := func(err error) ServerMessage {
		body := s.errorBody(err)
		if body.Code == "invalid" || body.Code == "rejected" {
			return reply(MsgInvalid, body)
		}
		return reply(MsgError, body)
	}

	switch msg.Type {
	case MsgSet:
		var data SetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return reply(MsgError, ErrorBody{Code: "bad_request", Message: err.Error()})
		}
		if err := form.Set(ctx, data.Field, data.Value); err != nil {
			return fail(err)
		}
		return reply(MsgFieldOK, data.Field)
	case MsgResolve:
		var data ResolveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return reply(MsgError, ErrorBody{Code: "bad_request", Message: err.Error()})
		}
		state, err := form.Options.Resolve(ctx, data.Field)
		if err != nil {
			return reply(MsgError, ErrorBody{Code: "unknown_field", Message: err.Error()})
		}
		return reply(MsgOptions, state)
	case MsgResolveAll:
		if err := form.Options.ResolveAll(ctx); err != nil {
			return fail(err)
		}
		return reply(MsgOptions, form.Options.States())
	case MsgSubmit:
		var data SubmitData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				return reply(MsgError, ErrorBody{Code: "bad_request", Message: err.Error()})
			}
		}
		values := data.Values
		if values == nil {
			values = form.Options.Values()
		}
		result, err := form.Submit(ctx, values)
		if err != nil {
			return fail(err)
		}
		return reply(MsgSubmitted, result)
	default:
		return reply(MsgError, ErrorBody{Code: "unknown_type", Message: "unknown message type " + msg.Type})
	}
}

// errorBody classifies err into the envelope shared by the JSON endpoints
// and live sessions.
func (s *Server) errorBody(err error) ErrorBody {
	var rejected *engine.RejectedError
	if errors.As(err, &rejected) {
		return ErrorBody{Code: "rejected", Message: err.Error(), Fields: rejected.Fields, Form: rejected.Form}
	}
	if verr, ok := validation.AsValidationError(err); ok {
		return ErrorBody{Code: "invalid", Message: err.Error(), Fields: verr.Fields}
	}
	for _, target := range s.notFound {
		if errors.Is(err, target) {
			return ErrorBody{Code: "not_found", Message: err.Error()}
		}
	}
	if errors.Is(err, engine.ErrEntityStoreMissing) {
		return ErrorBody{Code: "store_missing", Message: err.Error()}
	}
	return ErrorBody{Code: "internal", Message: err.Error()}
}
