package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/pkg/schema"
)

const tenderYAML = `
fieldSets:
  tenderBase:
    - name: title
      type: text
      required: true
      position: 1
    - name: notes
      type: textarea
      position: 9
      section:
        id: meta
forms:
  tender.edit:
    title: Edit tender
    include: [tenderBase]
    sections:
      - id: details
        title: Details
        position: 1
    fields:
      - name: notes
        type: text
        label: Remarks
        section:
          id: details
      - name: awardedAt
        type: date
        default: null
      - name: employeeIDs
        type: command
        options:
          remote:
            endpoint: profiles.all
            multiple: true
            labelTemplate: "{{firstName}} {{lastName}}"
            filter:
              team: "{{teamID}}"
details:
  tender.detail:
    include: [tenderBase]
    fields:
      - name: budget
        type: currency
        format:
          kind: currency
          currencyCode: EUR
`

const profileJSON = `{
  "forms": {
    "profile.edit": {
      "entity": "profile",
      "fields": [
        {"name": "email", "type": "email", "required": true},
        {"name": "team", "type": "select", "default": null,
         "options": {"items": [{"value": "a", "label": "Team A"}]}}
      ]
    }
  }
}`

func TestLoadFS_ComposesFieldSets(t *testing.T) {
	var logs bytes.Buffer
	reg, err := LoadFS(fstest.MapFS{
		"forms/tender.yaml":  {Data: []byte(tenderYAML)},
		"forms/profile.json": {Data: []byte(profileJSON)},
		"README.md":          {Data: []byte("ignored")},
	}, WithLogger(zerolog.New(&logs)))
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}

	if diff := cmp.Diff([]string{"profile.edit", "tender.edit"}, reg.Forms()); diff != "" {
		t.Fatalf("forms mismatch (-want +got):\n%s", diff)
	}

	form, ok := reg.Form("tender.edit")
	if !ok {
		t.Fatalf("expected tender.edit")
	}
	if form.Entity != "tender" || form.Title != "Edit tender" {
		t.Fatalf("unexpected form header %+v", form)
	}
	var names []string
	for _, f := range form.Fields {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"title", "notes", "awardedAt", "employeeIDs"}, names); diff != "" {
		t.Fatalf("composed fields mismatch (-want +got):\n%s", diff)
	}
	notes := form.Fields[1]
	if notes.Label != "Remarks" || notes.Type != schema.FieldTypeText || notes.Position != 0 {
		t.Fatalf("override must replace the shared declaration in full, got %+v", notes)
	}
	if !form.Fields[2].Nullable {
		t.Fatalf("default: null must mark the field nullable")
	}
	remote := form.Fields[3].Options.Remote
	if remote.Endpoint != "profiles.all" || !remote.Multiple || remote.Filter["team"] != "{{teamID}}" {
		t.Fatalf("unexpected remote descriptor %+v", remote)
	}
	if len(form.Collisions) != 1 || !form.Collisions[0].SectionChanged {
		t.Fatalf("expected one section-changing collision, got %+v", form.Collisions)
	}
	if !strings.Contains(logs.String(), "another section") {
		t.Fatalf("expected a collision warning, got %q", logs.String())
	}

	profile, _ := reg.Form("profile.edit")
	if !profile.Fields[1].Nullable || profile.Fields[0].Nullable {
		t.Fatalf("unexpected nullable flags in JSON document: %+v", profile.Fields)
	}

	detail, ok := reg.Detail("tender.detail")
	if !ok || len(detail.Fields) != 3 || detail.Fields[2].Format.CurrencyCode != "EUR" {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestLoadFS_FailsFastOnSchemaErrors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"bad.yaml": {Data: []byte(`
forms:
  broken.edit:
    fields:
      - name: owner
        type: command
`)}})
	if !schema.IsSchemaError(err) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.edit") {
		t.Fatalf("expected scope in message, got %q", err.Error())
	}
}

func TestLoadFS_UnknownFieldSetAndDuplicates(t *testing.T) {
	if _, err := LoadFS(fstest.MapFS{"a.yaml": {Data: []byte("forms:\n  x.edit:\n    include: [missing]\n")}}); err == nil {
		t.Fatalf("expected unknown field set error")
	}
	dup := []byte("forms:\n  x.edit:\n    fields:\n      - name: a\n        type: text\n")
	if _, err := LoadFS(fstest.MapFS{"a.yaml": {Data: dup}, "b.yaml": {Data: dup}}); err == nil {
		t.Fatalf("expected duplicate form error")
	}
	if _, err := LoadFS(fstest.MapFS{"empty.yaml": {Data: []byte("  ")}}); err == nil {
		t.Fatalf("expected empty file error")
	}
}

func TestRegistry_ReturnsClones(t *testing.T) {
	reg := New()
	err := reg.AddForm(Form{ID: "tender.edit", Fields: []schema.FieldSchema{{
		Name:    "sector",
		Type:    schema.FieldTypeSelect,
		Options: &schema.Options{Remote: &schema.RemoteOptions{Endpoint: "sectors", Filter: map[string]any{"k": "v"}}},
	}}})
	if err != nil {
		t.Fatalf("AddForm: %v", err)
	}
	first, _ := reg.Form("tender.edit")
	first.Fields[0].Options.Remote.Filter["k"] = "mutated"
	second, _ := reg.Form("tender.edit")
	if second.Fields[0].Options.Remote.Filter["k"] != "v" {
		t.Fatalf("registry entries must stay immutable")
	}

	if err := reg.SetLabelFormatter("tender.edit", "sector", func(map[string]any) string { return "x" }); err != nil {
		t.Fatalf("SetLabelFormatter: %v", err)
	}
	third, _ := reg.Form("tender.edit")
	if third.Fields[0].Options.Remote.FormatLabel == nil {
		t.Fatalf("expected formatter to be attached")
	}
	if err := reg.SetTransform("missing", "x", nil); err == nil {
		t.Fatalf("expected unknown detail error")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forms.yaml")
	write := func(field string) {
		doc := "forms:\n  x.edit:\n    fields:\n      - name: " + field + "\n        type: text\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("first")

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *Registry, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(dir, WithReloadDelay(20*time.Millisecond)).Run(ctx, func(r *Registry) {
			reloaded <- r
		})
	}()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		write("second")
		select {
		case reg := <-reloaded:
			form, _ := reg.Form("x.edit")
			if form.Fields[0].Name == "second" {
				return
			}
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatalf("registry was not reloaded")
		}
	}
}
