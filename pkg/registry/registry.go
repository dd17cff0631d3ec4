package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Form is an authored entity form: its fields already composed from any
// included field sets.
type Form struct {
	ID         string               `json:"id"`
	Entity     string               `json:"entity"`
	Title      string               `json:"title,omitempty"`
	Sections   []schema.Section     `json:"sections,omitempty"`
	Fields     []schema.FieldSchema `json:"fields"`
	Source     string               `json:"source,omitempty"`
	Collisions []schema.Collision   `json:"collisions,omitempty"`
}

// Detail is an authored read-only entity view.
type Detail struct {
	ID         string                     `json:"id"`
	Entity     string                     `json:"entity"`
	Title      string                     `json:"title,omitempty"`
	Sections   []schema.Section           `json:"sections,omitempty"`
	Fields     []schema.DetailFieldSchema `json:"fields"`
	Source     string                     `json:"source,omitempty"`
	Collisions []schema.Collision         `json:"collisions,omitempty"`
}

// Registry holds form and detail declarations keyed by id. Lookups return
// clones so callers can never mutate the authored declarations.
type Registry struct {
	mu      sync.RWMutex
	forms   map[string]Form
	details map[string]Detail
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		forms:   make(map[string]Form),
		details: make(map[string]Detail),
	}
}

// AddForm validates and stores a form. Ids must be unique.
func (r *Registry) AddForm(form Form) error {
	form.ID = strings.TrimSpace(form.ID)
	if form.ID == "" {
		return fmt.Errorf("registry: form without id")
	}
	if err := schema.WithScope(schema.Check(form.Fields), form.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.forms[form.ID]; exists {
		return fmt.Errorf("registry: duplicate form %q", form.ID)
	}
	r.forms[form.ID] = cloneForm(form)
	return nil
}

// AddDetail validates and stores a detail view. Ids must be unique.
func (r *Registry) AddDetail(detail Detail) error {
	detail.ID = strings.TrimSpace(detail.ID)
	if detail.ID == "" {
		return fmt.Errorf("registry: detail without id")
	}
	if err := schema.WithScope(schema.CheckDetail(detail.Fields), detail.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.details[detail.ID]; exists {
		return fmt.Errorf("registry: duplicate detail %q", detail.ID)
	}
	r.details[detail.ID] = cloneDetail(detail)
	return nil
}

// Form returns a copy of the form with id.
func (r *Registry) Form(id string) (Form, bool) {
	if r == nil {
		return Form{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	form, ok := r.forms[strings.TrimSpace(id)]
	if !ok {
		return Form{}, false
	}
	return cloneForm(form), true
}

// Detail returns a copy of the detail view with id.
func (r *Registry) Detail(id string) (Detail, bool) {
	if r == nil {
		return Detail{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	detail, ok := r.details[strings.TrimSpace(id)]
	if !ok {
		return Detail{}, false
	}
	return cloneDetail(detail), true
}

// Forms returns the form ids sorted alphabetically.
func (r *Registry) Forms() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.forms)
}

// Details returns the detail ids sorted alphabetically.
func (r *Registry) Details() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.details)
}

// Empty reports whether the registry holds no declarations.
func (r *Registry) Empty() bool {
	if r == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms) == 0 && len(r.details) == 0
}

// SetLabelFormatter attaches a Go label formatter to a remote field of a
// form. Declarations loaded from files can only carry label templates.
func (r *Registry) SetLabelFormatter(formID, field string, fn schema.LabelFormatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	form, ok := r.forms[formID]
	if !ok {
		return fmt.Errorf("registry: unknown form %q", formID)
	}
	for i := range form.Fields {
		if form.Fields[i].Name != field {
			continue
		}
		if !form.Fields[i].Options.IsRemote() {
			return fmt.Errorf("registry: form %q field %q has no remote options", formID, field)
		}
		form.Fields[i].Options.Remote.FormatLabel = fn
		r.forms[formID] = form
		return nil
	}
	return fmt.Errorf("registry: form %q has no field %q", formID, field)
}

// SetTransform attaches a Go transform to a detail field.
func (r *Registry) SetTransform(detailID, field string, fn schema.Transform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	detail, ok := r.details[detailID]
	if !ok {
		return fmt.Errorf("registry: unknown detail %q", detailID)
	}
	for i := range detail.Fields {
		if detail.Fields[i].Name == field {
			detail.Fields[i].Transform = fn
			r.details[detailID] = detail
			return nil
		}
	}
	return fmt.Errorf("registry: detail %q has no field %q", detailID, field)
}

func cloneForm(form Form) Form {
	out := form
	out.Sections = append([]schema.Section(nil), form.Sections...)
	out.Fields = schema.CloneFields(form.Fields)
	out.Collisions = append([]schema.Collision(nil), form.Collisions...)
	return out
}

func cloneDetail(detail Detail) Detail {
	out := detail
	out.Sections = append([]schema.Section(nil), detail.Sections...)
	out.Fields = schema.CloneDetailFields(detail.Fields)
	out.Collisions = append([]schema.Collision(nil), detail.Collisions...)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
