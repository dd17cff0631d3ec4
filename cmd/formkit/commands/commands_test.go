package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-formkit/pkg/testsupport"
)

const seedYAML = `
catalog:
  teams.all:
    - {id: 1, name: Bridges}
    - {id: 2, name: Tunnels}
  profiles.all:
    - {id: p-1, firstName: Ada, lastName: Lovelace, team: 1}
entities:
  tender:
    t-1:
      title: Bridge
      budget: 1234.5
      organisation: {name: ACME}
`

// workspace lays out a registry directory and a seed file in a temp dir
// and makes it the working directory.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "forms"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	write := func(name, data string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("forms/tender.yaml", testsupport.TenderRegistry)
	write("seed.yaml", seedYAML)
	t.Chdir(dir)
	t.Setenv("FORMKIT_LOGGING_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test", "none")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLint_ReportsMissingCatalogSources(t *testing.T) {
	workspace(t)

	_, err := run(t, "lint")
	if err == nil || !strings.Contains(err.Error(), `catalog source "teams.all" does not exist`) {
		t.Fatalf("expected missing source error, got %v", err)
	}

	if out, err := run(t, "seed", "seed.yaml"); err != nil || !strings.Contains(out, "seeded 2 catalog source(s), 1 entit(ies)") {
		t.Fatalf("seed: %q %v", out, err)
	}
	out, err := run(t, "lint")
	if err != nil {
		t.Fatalf("lint after seed: %v", err)
	}
	if !strings.Contains(out, "ok: 1 form(s), 1 detail view(s)") {
		t.Fatalf("unexpected lint output %q", out)
	}
}

func TestDetailAndPlan(t *testing.T) {
	workspace(t)
	if _, err := run(t, "seed", "seed.yaml"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := run(t, "detail", "tender.detail", "t-1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	for _, want := range []string{"Summary", "Organisation", "ACME", "€1,234.50"} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "--json", "plan", "tender.edit", "--section", "staffing")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var plan struct {
		Sections []struct {
			ID string `json:"id"`
		} `json:"sections"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if len(plan.Sections) != 1 || plan.Sections[0].ID != "staffing" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	if _, err := run(t, "detail", "tender.detail", "missing"); err == nil {
		t.Fatalf("expected an error for an unknown entity")
	}
}

func TestList(t *testing.T) {
	workspace(t)
	out, err := run(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "form   tender.edit") || !strings.Contains(out, "detail tender.detail") {
		t.Fatalf("unexpected list output %q", out)
	}
}
