package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/pkg/schema"
)

func sectionIDs(plan Plan) []string {
	out := make([]string, 0, len(plan.Sections))
	for _, section := range plan.Sections {
		out = append(out, section.ID)
	}
	return out
}

func TestResolve_OrdersSectionsAndFields(t *testing.T) {
	a := schema.Section{ID: "A", Position: 2}
	b := schema.Section{ID: "B", Position: 1}
	fields := []schema.FieldSchema{
		{Name: "a2", Position: 2, Section: a},
		{Name: "b1", Position: 1, Section: b},
		{Name: "a1", Position: 1, Section: a},
	}

	plan := Resolve(fields, nil)

	if diff := cmp.Diff([]string{"B", "A"}, sectionIDs(plan)); diff != "" {
		t.Fatalf("section order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b1", "a1", "a2"}, plan.Names()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_DeclaredSectionsWinAndDefaultSection(t *testing.T) {
	declared := []schema.Section{
		{ID: "summary", Title: "Summary", Position: 1},
		{ID: "unused", Title: "Unused", Position: 0},
	}
	fields := []schema.FieldSchema{
		{Name: "title", Section: schema.Section{ID: "summary", Title: "Ignored", Position: 9}},
		{Name: "notes"},
		{Name: "budget", Section: schema.Section{ID: "money", Title: "Money", Position: 1}},
	}

	plan := Resolve(fields, declared)

	if diff := cmp.Diff([]string{schema.DefaultSectionID, "summary", "money"}, sectionIDs(plan)); diff != "" {
		t.Fatalf("section order mismatch (-want +got):\n%s", diff)
	}
	summary, ok := plan.Section("summary")
	if !ok || summary.Title != "Summary" || summary.Position != 1 {
		t.Fatalf("declared section must win over field ref, got %+v", summary.Section)
	}
	money, _ := plan.Section("money")
	if money.Title != "Money" {
		t.Fatalf("undeclared section must be synthesized from the field ref, got %+v", money.Section)
	}
	if _, ok := plan.Section("unused"); ok {
		t.Fatalf("empty sections must be omitted")
	}
}

func TestResolve_StableTiesAndSpans(t *testing.T) {
	fields := []schema.FieldSchema{
		{Name: "first", Width: schema.WidthHalf},
		{Name: "second", Width: schema.WidthThird},
		{Name: "third", Width: "bogus"},
	}
	got := Resolve(fields, nil).Fields()

	type placed struct {
		Name string
		Span int
	}
	var summary []placed
	for _, f := range got {
		summary = append(summary, placed{f.Name, f.Span})
	}
	want := []placed{{"first", 6}, {"second", 4}, {"third", 12}}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("placement mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_SubsetAndVisible(t *testing.T) {
	fields := []schema.FieldSchema{
		{Name: "id", Type: schema.FieldTypeHidden, Section: schema.Section{ID: "meta"}},
		{Name: "title", Section: schema.Section{ID: "Content"}},
		{Name: "body", Section: schema.Section{ID: "Content"}},
	}
	plan := Resolve(fields, nil)

	subset := plan.Subset("content")
	if diff := cmp.Diff([]string{"title", "body"}, subset.Names()); diff != "" {
		t.Fatalf("subset mismatch (-want +got):\n%s", diff)
	}
	if got := plan.Subset(); len(got.Sections) != 2 {
		t.Fatalf("empty subset must keep the plan")
	}

	visible := plan.Visible()
	if diff := cmp.Diff([]string{"Content"}, sectionIDs(visible)); diff != "" {
		t.Fatalf("hidden-only sections must be pruned (-want +got):\n%s", diff)
	}
}
