package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// LoadOption configures LoadFS.
type LoadOption func(*loader)

// WithLogger sets the logger that receives composition warnings.
func WithLogger(logger zerolog.Logger) LoadOption {
	return func(l *loader) {
		l.logger = logger
	}
}

type loader struct {
	logger zerolog.Logger
}

type documentFile struct {
	FieldSets map[string][]fieldFile `json:"fieldSets" yaml:"fieldSets"`
	Forms     map[string]viewFile    `json:"forms" yaml:"forms"`
	Details   map[string]viewFile    `json:"details" yaml:"details"`
}

type viewFile struct {
	Entity   string           `json:"entity" yaml:"entity"`
	Title    string           `json:"title" yaml:"title"`
	Include  []string         `json:"include" yaml:"include"`
	Sections []schema.Section `json:"sections" yaml:"sections"`
	Fields   []fieldFile      `json:"fields" yaml:"fields"`
}

// fieldFile decodes a field declaration and marks it nullable when the
// document spells out "default: null".
type fieldFile struct {
	schema.DetailFieldSchema
}

func (f *fieldFile) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &f.DetailFieldSchema); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if value, ok := raw["default"]; ok && bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		f.Nullable = true
	}
	return nil
}

func (f *fieldFile) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&f.DetailFieldSchema); err != nil {
		return err
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "default" && node.Content[i+1].Tag == "!!null" {
			f.Nullable = true
		}
	}
	return nil
}

type parsedFile struct {
	path string
	doc  documentFile
}

// LoadFS walks fsys and builds a registry from every JSON/YAML document.
// Field sets are shared across files; forms and details compose the sets
// they include, in order, followed by their own fields, with the later
// declaration of a name winning in full. Malformed declarations fail with a
// *schema.SchemaError. A nil fsys yields an empty registry.
func LoadFS(fsys fs.FS, opts ...LoadOption) (*Registry, error) {
	l := &loader{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	reg := New()
	if fsys == nil {
		return reg, nil
	}

	var files []parsedFile
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isRegistryFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("registry: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}
		files = append(files, parsedFile{path: path, doc: doc})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sets := make(map[string][]schema.DetailFieldSchema)
	setSources := make(map[string]string)
	for _, file := range files {
		for name, fields := range file.doc.FieldSets {
			id := strings.TrimSpace(name)
			if id == "" {
				return nil, fmt.Errorf("registry: file %s defines an empty field set name", file.path)
			}
			if previous, exists := setSources[id]; exists {
				return nil, fmt.Errorf("registry: duplicate field set %q (files %s and %s)", id, previous, file.path)
			}
			setSources[id] = file.path
			sets[id] = unwrapFields(fields)
		}
	}

	for _, file := range files {
		for _, id := range sortedKeys(file.doc.Forms) {
			raw := file.doc.Forms[id]
			groups, err := includeGroups(sets, raw, id, file.path)
			if err != nil {
				return nil, err
			}
			composed, collisions := schema.ComposeDetail(append(groups, unwrapFields(raw.Fields))...)
			l.warnCollisions(id, file.path, collisions)
			form := Form{
				ID:         id,
				Entity:     resolveEntity(raw.Entity, id),
				Title:      raw.Title,
				Sections:   raw.Sections,
				Fields:     formFields(composed),
				Source:     file.path,
				Collisions: collisions,
			}
			if err := reg.AddForm(form); err != nil {
				return nil, fmt.Errorf("registry: %s: %w", file.path, err)
			}
		}
		for _, id := range sortedKeys(file.doc.Details) {
			raw := file.doc.Details[id]
			groups, err := includeGroups(sets, raw, id, file.path)
			if err != nil {
				return nil, err
			}
			composed, collisions := schema.ComposeDetail(append(groups, unwrapFields(raw.Fields))...)
			l.warnCollisions(id, file.path, collisions)
			detail := Detail{
				ID:         id,
				Entity:     resolveEntity(raw.Entity, id),
				Title:      raw.Title,
				Sections:   raw.Sections,
				Fields:     composed,
				Source:     file.path,
				Collisions: collisions,
			}
			if err := reg.AddDetail(detail); err != nil {
				return nil, fmt.Errorf("registry: %s: %w", file.path, err)
			}
		}
	}

	l.logger.Debug().
		Int("files", len(files)).
		Int("forms", len(reg.Forms())).
		Int("details", len(reg.Details())).
		Msg("registry loaded")
	return reg, nil
}

func (l *loader) warnCollisions(id, source string, collisions []schema.Collision) {
	for _, c := range collisions {
		if !c.SectionChanged {
			continue
		}
		l.logger.Warn().
			Str("view", id).
			Str("file", source).
			Str("field", c.Name).
			Str("from_section", c.PreviousSection).
			Str("to_section", c.Section).
			Msg("field override moves the field to another section")
	}
}

func includeGroups(sets map[string][]schema.DetailFieldSchema, raw viewFile, id, source string) ([][]schema.DetailFieldSchema, error) {
	groups := make([][]schema.DetailFieldSchema, 0, len(raw.Include)+1)
	for _, name := range raw.Include {
		set, ok := sets[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("registry: %q (file %s) includes unknown field set %q", id, source, name)
		}
		groups = append(groups, set)
	}
	return groups, nil
}

func unwrapFields(files []fieldFile) []schema.DetailFieldSchema {
	out := make([]schema.DetailFieldSchema, 0, len(files))
	for _, f := range files {
		out = append(out, f.DetailFieldSchema)
	}
	return out
}

func formFields(fields []schema.DetailFieldSchema) []schema.FieldSchema {
	out := make([]schema.FieldSchema, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.FieldSchema)
	}
	return out
}

// resolveEntity defaults the entity to the id prefix ("tender.edit" ⇒
// "tender").
func resolveEntity(entity, id string) string {
	if entity = strings.TrimSpace(entity); entity != "" {
		return entity
	}
	if idx := strings.Index(id, "."); idx > 0 {
		return id[:idx]
	}
	return id
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(bytes.TrimSpace(data)) == 0 {
		return documentFile{}, fmt.Errorf("registry: file %s is empty", source)
	}

	if strings.EqualFold(filepath.Ext(source), ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return documentFile{}, fmt.Errorf("registry: parse %s: %w", source, err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("registry: parse %s: %w", source, err)
	}
	return doc, nil
}

func isRegistryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Describe summarises a registry for CLI listings.
func Describe(reg *Registry) []string {
	var out []string
	for _, id := range reg.Forms() {
		form, _ := reg.Form(id)
		out = append(out, fmt.Sprintf("form   %-28s entity=%s fields=%d", id, form.Entity, len(form.Fields)))
	}
	for _, id := range reg.Details() {
		detail, _ := reg.Detail(id)
		out = append(out, fmt.Sprintf("detail %-28s entity=%s fields=%d", id, detail.Entity, len(detail.Fields)))
	}
	sort.Strings(out)
	return out
}
