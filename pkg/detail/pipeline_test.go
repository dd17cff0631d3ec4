package detail

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	"github.com/goliatone/go-formkit/pkg/schema"
)

func field(name string, format *schema.Format) schema.DetailFieldSchema {
	return schema.DetailFieldSchema{FieldSchema: schema.FieldSchema{Name: name}, Format: format}
}

func TestValue_NullRendersPlaceholder(t *testing.T) {
	item := map[string]any{"notes": nil, "empty": "  ", "tags": []any{}}
	for _, name := range []string{"notes", "empty", "tags", "missing", "organisation.name"} {
		if got := Value(field(name, nil), item); got != Placeholder {
			t.Fatalf("%s: expected placeholder, got %q", name, got)
		}
	}
}

func TestValue_CurrencyGerman(t *testing.T) {
	p := New(WithLocale(language.German))
	got := p.Value(field("budget", &schema.Format{Kind: schema.FormatCurrency, CurrencyCode: "EUR"}), map[string]any{"budget": 1234.5})
	if got != "1.234,50 €" {
		t.Fatalf("unexpected currency %q", got)
	}
}

func TestValue_CurrencyEnglishPrefix(t *testing.T) {
	p := New(WithLocale(language.AmericanEnglish), WithCurrency("usd"))
	item := map[string]any{"budget": "1234.5"}
	got := p.Value(schema.DetailFieldSchema{FieldSchema: schema.FieldSchema{Name: "budget", Type: schema.FieldTypeCurrency}}, item)
	if got != "$1,234.50" {
		t.Fatalf("unexpected currency %q", got)
	}
}

func TestValue_TransformWinsAndIsGuarded(t *testing.T) {
	upper := field("title", nil)
	upper.Transform = func(value any, item map[string]any) (string, error) {
		return value.(string) + " / " + item["code"].(string), nil
	}
	failing := field("title", nil)
	failing.Transform = func(any, map[string]any) (string, error) {
		return "", errors.New("boom")
	}
	panicking := field("title", nil)
	panicking.Transform = func(value any, _ map[string]any) (string, error) {
		return value.(map[string]any)["x"].(string), nil
	}
	item := map[string]any{"title": "Bridge", "code": "T-1"}

	if got := Value(upper, item); got != "Bridge / T-1" {
		t.Fatalf("unexpected transform output %q", got)
	}
	if got := Value(failing, item); got != Placeholder {
		t.Fatalf("failing transform must render placeholder, got %q", got)
	}
	if got := Value(panicking, item); got != Placeholder {
		t.Fatalf("panicking transform must render placeholder, got %q", got)
	}

	blank := field("title", nil)
	blank.Transform = func(any, map[string]any) (string, error) {
		return "", nil
	}
	if got := Value(blank, item); got != "" {
		t.Fatalf("a blank transform result must be kept, got %q", got)
	}
	missing := field("owner", nil)
	missing.Transform = func(value any, _ map[string]any) (string, error) {
		if value == nil {
			return "unassigned", nil
		}
		return "assigned", nil
	}
	if got := Value(missing, item); got != "unassigned" {
		t.Fatalf("a transform must override the nil placeholder, got %q", got)
	}
}

func TestValue_DotPathsAndRawCoercion(t *testing.T) {
	item := map[string]any{
		"organisation": map[string]any{"name": "ACME", "owner": map[string]any{"title": "CEO"}},
		"lots":         []any{"A", map[string]any{"id": 2}},
	}
	cases := map[string]string{
		"organisation.name":  "ACME",
		"organisation.owner": "CEO",
		"lots":               "A, 2",
		"lots.1.id":          "2",
	}
	for name, want := range cases {
		if got := Value(field(name, nil), item); got != want {
			t.Fatalf("%s: got %q, want %q", name, got, want)
		}
	}
}

func TestValue_DatesBooleansAndLists(t *testing.T) {
	p := New(WithLocale(language.German))
	published := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	item := map[string]any{
		"deadline":  "2024-03-01",
		"published": published,
		"active":    true,
		"sectors":   []any{"it", "health"},
		"share":     0.125,
	}
	sectors := field("sectors", &schema.Format{Kind: schema.FormatList})
	sectors.Options = &schema.Options{Items: []schema.Option{{Value: "it", Label: "IT"}, {Value: "health", Label: "Gesundheit"}}}

	got := map[string]string{
		"deadline":  p.Value(field("deadline", &schema.Format{Kind: schema.FormatDate}), item),
		"published": p.Value(field("published", &schema.Format{Kind: schema.FormatDateTime}), item),
		"active":    p.Value(field("active", &schema.Format{Kind: schema.FormatBoolean}), item),
		"sectors":   p.Value(sectors, item),
		"share":     p.Value(field("share", &schema.Format{Kind: schema.FormatNumber}), item),
	}
	want := map[string]string{
		"deadline":  "01.03.2024",
		"published": "01.03.2024 14:30",
		"active":    "Ja",
		"sectors":   "IT, Gesundheit",
		"share":     "0,125",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("formatted values mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderAndBind(t *testing.T) {
	fields := []schema.DetailFieldSchema{
		{FieldSchema: schema.FieldSchema{Name: "title", Section: schema.Section{ID: "summary"}}},
		{FieldSchema: schema.FieldSchema{Name: "secret", Hidden: true}},
		{FieldSchema: schema.FieldSchema{Name: "notes", Width: schema.WidthHalf}},
	}
	p := New(WithSanitizer(bluemonday.StrictPolicy()))
	entries := p.Render(fields, map[string]any{"title": "<b>Bridge</b>", "secret": "x"})

	want := []Entry{
		{Name: "title", Label: "Title", Value: "Bridge", Section: "summary", Width: schema.WidthFull},
		{Name: "notes", Label: "Notes", Value: Placeholder, Section: schema.DefaultSectionID, Width: schema.WidthHalf},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}

	render := Bind(fields[0])
	if got := render(map[string]any{"title": "Tunnel"}); got != "Tunnel" {
		t.Fatalf("unexpected bound output %q", got)
	}
}
