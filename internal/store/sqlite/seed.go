package sqlite

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Seed is a fixture document loaded into a store:
//
//	catalog:
//	  profiles.all:
//	    - {id: p-1, name: Ada}
//	entities:
//	  tender:
//	    t-1: {title: Bridge}
type Seed struct {
	Catalog  map[string][]map[string]any          `yaml:"catalog"`
	Entities map[string]map[string]map[string]any `yaml:"entities"`
}

// LoadSeed decodes a YAML seed document from r and writes it to the store.
// Catalog sources are replaced; entities are upserted.
func (s *Store) LoadSeed(ctx context.Context, r io.Reader) (Seed, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("sqlite: decode seed: %w", err)
	}
	if err := s.ApplySeed(ctx, seed); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// ApplySeed writes seed to the store.
func (s *Store) ApplySeed(ctx context.Context, seed Seed) error {
	for _, name := range sortedNames(seed.Catalog) {
		if err := s.ReplaceSource(ctx, name, seed.Catalog[name]); err != nil {
			return err
		}
	}
	for _, entity := range sortedNames(seed.Entities) {
		docs := seed.Entities[entity]
		for _, id := range sortedNames(docs) {
			if err := s.Put(ctx, entity, id, docs[id]); err != nil {
				return err
			}
		}
	}
	s.logger.Info().Int("sources", len(seed.Catalog)).Int("entities", len(seed.Entities)).Msg("seed applied")
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
