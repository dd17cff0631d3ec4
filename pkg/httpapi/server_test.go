package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/internal/metrics"
	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/testsupport"
)

func newTestServer(t *testing.T) (*httptest.Server, *testsupport.MemoryStore) {
	t.Helper()
	store := testsupport.NewMemoryStore()
	store.Put("tender", "t-1", map[string]any{
		"title":        "Bridge",
		"budget":       1234.5,
		"teamID":       "2",
		"organisation": map[string]any{"name": "ACME"},
	})
	m := metrics.New()
	eng := engine.New(testsupport.LoadRegistry(t, testsupport.TenderFS()),
		engine.WithCatalog(testsupport.TenderCatalog()),
		engine.WithEntityStore(store),
		engine.WithObserver(m),
	)
	srv := httptest.NewServer(New(eng,
		WithRequestObserver(m),
		WithMetricsHandler(m.Handler()),
		WithNotFound(testsupport.ErrNotFound),
	))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestServer_ListAndPlan(t *testing.T) {
	srv, _ := newTestServer(t)

	var forms []FormSummary
	if code := doJSON(t, http.MethodGet, srv.URL+"/forms", nil, &forms); code != http.StatusOK {
		t.Fatalf("list status %d", code)
	}
	want := []FormSummary{{ID: "tender.edit", Entity: "tender", Title: "Edit tender", Fields: 4}}
	if diff := cmp.Diff(want, forms); diff != "" {
		t.Fatalf("forms mismatch (-want +got):\n%s", diff)
	}

	var plan struct {
		Plan struct {
			Sections []struct {
				ID     string `json:"id"`
				Fields []struct {
					Name string `json:"name"`
					Span int    `json:"span"`
				} `json:"fields"`
			} `json:"sections"`
		} `json:"plan"`
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/forms/tender.edit", nil, &plan); code != http.StatusOK {
		t.Fatalf("plan status %d", code)
	}
	if len(plan.Plan.Sections) != 2 || plan.Plan.Sections[0].ID != "summary" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if budget := plan.Plan.Sections[0].Fields[1]; budget.Name != "budget" || budget.Span != 6 {
		t.Fatalf("expected half width budget, got %+v", budget)
	}

	var body ErrorBody
	if code := doJSON(t, http.MethodGet, srv.URL+"/forms/missing", nil, &body); code != http.StatusNotFound || body.Code != "not_found" {
		t.Fatalf("expected not_found, got %d %+v", code, body)
	}
}

func TestServer_OptionsUseQueryValues(t *testing.T) {
	srv, _ := newTestServer(t)

	var state options.State
	if code := doJSON(t, http.MethodGet, srv.URL+"/forms/tender.edit/options/employeeIDs?teamID=1", nil, &state); code != http.StatusOK {
		t.Fatalf("options status %d", code)
	}
	want := []schema.Option{{Value: "p-1", Label: "Ada Lovelace"}}
	if state.Status != options.StatusReady {
		t.Fatalf("expected ready state, got %+v", state)
	}
	if diff := cmp.Diff(want, state.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/forms/tender.edit/options/title", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for a field without options, got %d", code)
	}
}

func TestServer_ValidateAndSubmit(t *testing.T) {
	srv, store := newTestServer(t)

	var invalid ErrorBody
	code := doJSON(t, http.MethodPost, srv.URL+"/forms/tender.edit/validate", map[string]any{"budget": "x"}, &invalid)
	if code != http.StatusUnprocessableEntity || invalid.Code != "invalid" {
		t.Fatalf("expected 422 invalid, got %d %+v", code, invalid)
	}
	for _, field := range []string{"title", "budget", "employeeIDs"} {
		if len(invalid.Fields[field]) == 0 {
			t.Fatalf("expected a message for %s, got %v", field, invalid.Fields)
		}
	}

	var partial map[string]any
	code = doJSON(t, http.MethodPost, srv.URL+"/forms/tender.edit/validate?partial=true", map[string]any{"budget": "12"}, &partial)
	if code != http.StatusOK || partial["valid"] != true {
		t.Fatalf("expected partial validation to pass, got %d %v", code, partial)
	}

	var result engine.SubmitResult
	code = doJSON(t, http.MethodPost, srv.URL+"/forms/tender.edit/entities/t-1/submit", map[string]any{
		"title":       "Bridge 2",
		"employeeIDs": []string{"p-2"},
	}, &result)
	if code != http.StatusOK || result.EntityID != "t-1" {
		t.Fatalf("unexpected submit response %d %+v", code, result)
	}
	if got := len(store.Patches()); got != 1 {
		t.Fatalf("expected one patch, got %d", got)
	}

	code = doJSON(t, http.MethodPost, srv.URL+"/forms/tender.edit/submit", map[string]any{
		"title":       "Tunnel",
		"employeeIDs": []string{"p-1"},
	}, &result)
	if code != http.StatusCreated || !result.Created || result.EntityID == "" {
		t.Fatalf("unexpected create response %d %+v", code, result)
	}

	store.FailNext(&testsupport.FieldError{Fields: map[string][]string{"/data/attributes/title": {"taken"}}})
	var rejected ErrorBody
	code = doJSON(t, http.MethodPost, srv.URL+"/forms/tender.edit/entities/t-1/submit", map[string]any{
		"title":       "Bridge",
		"employeeIDs": []string{"p-2"},
	}, &rejected)
	if code != http.StatusUnprocessableEntity || rejected.Code != "rejected" {
		t.Fatalf("expected rejected, got %d %+v", code, rejected)
	}
	if diff := cmp.Diff(map[string][]string{"title": {"taken"}}, rejected.Fields); diff != "" {
		t.Fatalf("rejected fields mismatch (-want +got):\n%s", diff)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/forms/tender.edit/entities/nope/submit", map[string]any{}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown entity, got %d", code)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	for _, want := range []string{
		`formkit_submissions_total{form="tender.edit",outcome="ok"} 2`,
		`formkit_http_requests_total{code="201",route="/forms/{formID}/submit"} 1`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestServer_MountAndDetail(t *testing.T) {
	srv, _ := newTestServer(t)

	var mounted struct {
		EntityID string         `json:"entityId"`
		Values   map[string]any `json:"values"`
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/forms/tender.edit/entities/t-1", nil, &mounted); code != http.StatusOK {
		t.Fatalf("mount status %d", code)
	}
	if mounted.EntityID != "t-1" || mounted.Values["title"] != "Bridge" {
		t.Fatalf("unexpected mount %+v", mounted)
	}

	var view engine.DetailView
	if code := doJSON(t, http.MethodGet, srv.URL+"/details/tender.detail/t-1", nil, &view); code != http.StatusOK {
		t.Fatalf("detail status %d", code)
	}
	var values []string
	for _, entry := range view.Entries() {
		values = append(values, entry.Value)
	}
	if diff := cmp.Diff([]string{"ACME", "Bridge", "€1,234.50"}, values); diff != "" {
		t.Fatalf("detail values mismatch (-want +got):\n%s", diff)
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/details/tender.detail/nope", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

type wireMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
}

// readUntil reads messages until match accepts one.
func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	for {
		var msg wireMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestServer_LiveSession(t *testing.T) {
	srv, store := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/forms/tender.edit/live?entity=t-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	mounted := readUntil(ctx, t, conn, func(m wireMessage) bool { return m.Type == MsgMounted })
	var data MountedData
	if err := json.Unmarshal(mounted.Data, &data); err != nil {
		t.Fatalf("decode mounted: %v", err)
	}
	if data.EntityID != "t-1" || data.Values["teamID"] != "2" {
		t.Fatalf("unexpected mounted data %+v", data)
	}

	send := func(kind, id string, payload any) {
		raw, _ := json.Marshal(payload)
		if err := wsjson.Write(ctx, conn, ClientMessage{Type: kind, ID: id, Data: raw}); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
	}

	send(MsgSet, "1", SetData{Field: "teamID", Value: "1"})
	readUntil(ctx, t, conn, func(m wireMessage) bool { return m.RequestID == "1" && m.Type == MsgFieldOK })
	readUntil(ctx, t, conn, func(m wireMessage) bool {
		if m.Type != MsgOptions || m.RequestID != "" {
			return false
		}
		var state options.State
		_ = json.Unmarshal(m.Data, &state)
		return state.Field == "employeeIDs" && state.Status == options.StatusReady &&
			len(state.Items) == 1 && state.Items[0].Value == "p-1"
	})

	send(MsgSet, "2", SetData{Field: "budget", Value: "lots"})
	invalid := readUntil(ctx, t, conn, func(m wireMessage) bool { return m.RequestID == "2" })
	if invalid.Type != MsgInvalid {
		t.Fatalf("expected invalid reply, got %s", invalid.Type)
	}

	send(MsgSubmit, "3", SubmitData{Values: map[string]any{"title": "Live", "employeeIDs": []string{"p-1"}}})
	submitted := readUntil(ctx, t, conn, func(m wireMessage) bool { return m.RequestID == "3" })
	if submitted.Type != MsgSubmitted {
		t.Fatalf("expected submitted, got %s: %s", submitted.Type, submitted.Data)
	}
	stored, _ := store.Get(ctx, "tender", "t-1")
	if stored["title"] != "Live" {
		t.Fatalf("expected the live submit to patch the entity, got %v", stored)
	}

	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestServer_LiveUnknownForm(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/forms/missing/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	msg := readUntil(ctx, t, conn, func(wireMessage) bool { return true })
	var body ErrorBody
	_ = json.Unmarshal(msg.Data, &body)
	if msg.Type != MsgError || body.Code != "not_found" {
		t.Fatalf("expected not_found error, got %s %+v", msg.Type, body)
	}
}
