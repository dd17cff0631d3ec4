package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formkit/pkg/schema"
)

func TestMapErrorPayload_PointersAndWrappers(t *testing.T) {
	fields := []schema.FieldSchema{
		{Name: "title"},
		{Name: "owner.email"},
		{Name: "owner.phone"},
		{Name: "tags"},
		{Name: "owner"},
	}
	payload := map[string][]string{
		"/body/title":                {"Title is required"},
		"body.owner.email":           {"Email invalid", " Email invalid "},
		"$.body.tags[0]":             {"Tags must be unique"},
		"request.payload.owner":      {"Owner missing"},
		"non_field_errors":           {"Form level error"},
		"body/owner/phone/~1number":  {"Phone malformed"},
		"request/body/unknown-field": {"Should fall back to form errors"},
		"":                           {"Unscoped form error"},
		"title":                      {"  "},
	}

	mapped := MapErrorPayload(fields, payload)

	wantFields := map[string][]string{
		"title":       {"Title is required"},
		"owner.email": {"Email invalid"},
		"tags":        {"Tags must be unique"},
		"owner":       {"Owner missing"},
		"owner.phone": {"Phone malformed"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	wantForm := []string{"Form level error", "Should fall back to form errors", "Unscoped form error"}
	if diff := cmp.Diff(wantForm, mapped.Form, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorPayload_Empty(t *testing.T) {
	mapped := MapErrorPayload(nil, nil)
	if mapped.Fields != nil || mapped.Form != nil {
		t.Fatalf("expected empty mapping, got %+v", mapped)
	}
}
