package paths

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGet(t *testing.T) {
	doc := map[string]any{
		"organisation": map[string]any{"name": "ACME"},
		"contacts":     []any{map[string]any{"email": "a@example.com"}},
		"owner":        nil,
	}

	if got, ok := Get(doc, "organisation.name"); !ok || got != "ACME" {
		t.Fatalf("expected nested value, got %v (%v)", got, ok)
	}
	if got, ok := Get(doc, "contacts.0.email"); !ok || got != "a@example.com" {
		t.Fatalf("expected indexed value, got %v (%v)", got, ok)
	}
	for _, path := range []string{"owner.name", "contacts.3.email", "organisation.name.first", "missing", ""} {
		if _, ok := Get(doc, path); ok {
			t.Fatalf("expected %q to be unresolved", path)
		}
	}
}

func TestLookup_FlatKeyWins(t *testing.T) {
	payload := map[string]any{
		"address.city": "Berlin",
		"address":      map[string]any{"city": "Hamburg", "zip": "20095"},
	}
	if got, _ := Lookup(payload, "address.city"); got != "Berlin" {
		t.Fatalf("expected flat key to win, got %v", got)
	}
	if got, _ := Lookup(payload, "address.zip"); got != "20095" {
		t.Fatalf("expected nested fallback, got %v", got)
	}
}

func TestSetAndExpand(t *testing.T) {
	doc, err := Expand(map[string]any{
		"title":             "Bridge",
		"organisation.name": "ACME",
		"organisation.city": "Berlin",
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := map[string]any{
		"title":        "Bridge",
		"organisation": map[string]any{"name": "ACME", "city": "Berlin"},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("expand mismatch (-want +got):\n%s", diff)
	}

	if err := Set(doc, "title.sub", "x"); err == nil {
		t.Fatalf("expected error descending into a string")
	}
}

func TestClone(t *testing.T) {
	src := map[string]any{"tags": []any{"a"}, "meta": map[string]any{"k": "v"}}
	dst := Clone(src)
	dst["tags"].([]any)[0] = "b"
	dst["meta"].(map[string]any)["k"] = "w"
	if src["tags"].([]any)[0] != "a" || src["meta"].(map[string]any)["k"] != "v" {
		t.Fatalf("clone must not share containers")
	}
}
