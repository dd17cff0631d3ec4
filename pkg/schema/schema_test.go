package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultLabeler(t *testing.T) {
	cases := map[string]string{
		"employeeIDs":     "Employee IDs",
		"first_name":      "First Name",
		"tender-deadline": "Tender Deadline",
		"address2":        "Address 2",
		"":                "",
	}
	for input, want := range cases {
		if got := DefaultLabeler(input); got != want {
			t.Fatalf("DefaultLabeler(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFieldSchema_DisplayLabelUsesLastPathSegment(t *testing.T) {
	field := FieldSchema{Name: "organisation.legalName"}
	if got := field.DisplayLabel(); got != "Legal Name" {
		t.Fatalf("expected derived label, got %q", got)
	}
	field.Label = "Company"
	if got := field.DisplayLabel(); got != "Company" {
		t.Fatalf("expected authored label, got %q", got)
	}
}

func TestCompose_LastDeclarationWinsInFull(t *testing.T) {
	base := []FieldSchema{
		{Name: "title", Label: "Title", Type: FieldTypeText, Required: true, Position: 1},
		{Name: "notes", Label: "Notes", Type: FieldTypeTextarea, Position: 2, Section: Section{ID: "meta"}},
	}
	override := []FieldSchema{
		{Name: "notes", Label: "Remarks", Type: FieldTypeText, Position: 5, Section: Section{ID: "details"}},
		{Name: "budget", Type: FieldTypeCurrency, Position: 3},
	}

	fields, collisions := Compose(base, override)

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"title", "notes", "budget"}, names); diff != "" {
		t.Fatalf("composed order mismatch (-want +got):\n%s", diff)
	}

	notes := fields[1]
	if notes.Label != "Remarks" || notes.Type != FieldTypeText || notes.Position != 5 {
		t.Fatalf("expected override to replace declaration in full, got %+v", notes)
	}
	if notes.Required {
		t.Fatalf("override must not inherit base attributes")
	}

	want := []Collision{{Name: "notes", PreviousSection: "meta", Section: "details", SectionChanged: true}}
	if diff := cmp.Diff(want, collisions); diff != "" {
		t.Fatalf("collisions mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_ClonesOptions(t *testing.T) {
	base := []FieldSchema{{
		Name: "employeeIDs",
		Type: FieldTypeCommand,
		Options: &Options{Remote: &RemoteOptions{
			Endpoint: "profiles.all",
			Filter:   map[string]any{"team": "{{teamID}}"},
		}},
	}}

	fields, _ := Compose(base)
	fields[0].Options.Remote.Filter["team"] = "mutated"

	if base[0].Options.Remote.Filter["team"] != "{{teamID}}" {
		t.Fatalf("compose must not share filter maps with its input")
	}
}

func TestCheck_CommandOptionsSource(t *testing.T) {
	fields := []FieldSchema{
		{Name: "none", Type: FieldTypeCommand},
		{Name: "both", Type: FieldTypeCommand, Options: &Options{
			Items:  []Option{{Value: "a"}},
			Remote: &RemoteOptions{Endpoint: "profiles.all"},
		}},
		{Name: "static", Type: FieldTypeCommand, Options: &Options{Items: []Option{{Value: "a"}}}},
		{Name: "remote", Type: FieldTypeCommand, Options: &Options{Remote: &RemoteOptions{Endpoint: "profiles.all"}}},
	}

	err := Check(fields)
	if err == nil {
		t.Fatalf("expected schema errors")
	}
	list := SchemaErrors(err)
	if len(list) != 2 {
		t.Fatalf("expected 2 schema errors, got %d: %v", len(list), err)
	}
	if list[0].Field != "none" || list[1].Field != "both" {
		t.Fatalf("unexpected fields: %q, %q", list[0].Field, list[1].Field)
	}
	var target *SchemaError
	if !errors.As(err, &target) {
		t.Fatalf("expected errors.As to find a SchemaError")
	}
}

func TestCheck_RejectsEmptyEndpointAndWidth(t *testing.T) {
	fields := []FieldSchema{
		{Name: "sector", Type: FieldTypeSelect, Options: &Options{Remote: &RemoteOptions{}}},
		{Name: "title", Type: FieldTypeText, Width: "quarter"},
		{Name: "", Type: FieldTypeText},
	}
	err := Check(fields)
	if len(SchemaErrors(err)) != 3 {
		t.Fatalf("expected 3 schema errors, got %v", err)
	}
}

func TestWithScope(t *testing.T) {
	err := WithScope(Check([]FieldSchema{{Name: "x", Type: FieldTypeCommand}}), "tender.edit")
	if !strings.Contains(err.Error(), "tender.edit") {
		t.Fatalf("expected scope in message, got %q", err.Error())
	}
}

func TestWidthNormalize(t *testing.T) {
	if WidthHalf != Width(" Half ").Normalize() {
		t.Fatalf("expected half")
	}
	if WidthFull != Width("").Normalize() {
		t.Fatalf("expected default full width")
	}
}
