package testsupport

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/registry"
)

// TenderRegistry is a small registry document covering static and remote
// options, a dependent filter, sections and a currency detail view.
const TenderRegistry = `
fieldSets:
  tenderBase:
    - name: title
      type: text
      label: Tender title
      required: true
      position: 1
      section: {id: summary, title: Summary, position: 1}
    - name: budget
      type: currency
      width: half
      position: 2
      section: {id: summary}
forms:
  tender.edit:
    title: Edit tender
    include: [tenderBase]
    sections:
      - {id: summary, title: Summary, position: 1}
      - {id: staffing, title: Staffing, position: 2}
    fields:
      - name: teamID
        type: select
        label: Team
        section: {id: staffing}
        options:
          remote: {endpoint: teams.all}
      - name: employeeIDs
        type: command
        required: true
        section: {id: staffing}
        options:
          remote:
            endpoint: profiles.all
            multiple: true
            labelTemplate: "{{firstName}} {{lastName}}"
            filter: {team: "{{teamID}}"}
details:
  tender.detail:
    include: [tenderBase]
    fields:
      - name: organisation.name
        label: Organisation
        section: {id: summary}
      - name: budget
        type: currency
        width: half
        position: 2
        section: {id: summary}
        format: {kind: currency, currencyCode: EUR}
`

// TenderFS wraps TenderRegistry in an in-memory file system.
func TenderFS() fs.FS {
	return fstest.MapFS{"tender.yaml": {Data: []byte(TenderRegistry)}}
}

// LoadRegistry builds a registry from fsys, failing the test on error.
func LoadRegistry(t *testing.T, fsys fs.FS) *registry.Registry {
	t.Helper()

	reg, err := registry.LoadFS(fsys)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return reg
}

// TenderCatalog serves the records the tender fixture refers to.
func TenderCatalog() options.MapCatalog {
	return options.MapCatalog{
		"teams.all": {
			{"id": 1, "name": "Bridges"},
			{"id": 2, "name": "Tunnels"},
		},
		"profiles.all": {
			{"id": "p-1", "firstName": "Ada", "lastName": "Lovelace", "team": 1},
			{"id": "p-2", "firstName": "Grace", "lastName": "Hopper", "team": 2},
			{"id": "p-3", "firstName": "Edsger", "lastName": "Dijkstra", "team": 2},
		},
	}
}
