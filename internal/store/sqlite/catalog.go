package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goliatone/go-formkit/pkg/options"
)

var filterKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

var _ options.Catalog = (*Store)(nil)

// ReplaceSource stores records as the complete content of a catalog source.
func (s *Store) ReplaceSource(ctx context.Context, name string, records []map[string]any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("sqlite: catalog source name is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_sources (name, updated_at) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET updated_at = excluded.updated_at`,
		name, s.now().UTC(),
	); err != nil {
		return fmt.Errorf("sqlite: upsert source %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_records WHERE source = ?`, name); err != nil {
		return fmt.Errorf("sqlite: clear source %q: %w", name, err)
	}
	for i, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("sqlite: encode %q record %d: %w", name, i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_records (source, position, record) VALUES (?, ?, ?)`,
			name, i, string(payload),
		); err != nil {
			return fmt.Errorf("sqlite: insert %q record %d: %w", name, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit source %q: %w", name, err)
	}
	s.logger.Debug().Str("source", name).Int("records", len(records)).Msg("catalog source replaced")
	return nil
}

// Sources returns the catalog source names, sorted.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM catalog_sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sources: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scan source: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Query returns the records of source key matching filter. Each filter
// entry is an equality on the record's dotted key, compared as text; a list
// value matches any of its elements and nil matches a missing or null key.
// Unknown sources fail with options.ErrUnknownSource.
func (s *Store) Query(ctx context.Context, key string, filter map[string]any) ([]map[string]any, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_sources WHERE name = ?`, key).Scan(&exists); err != nil {
		return nil, fmt.Errorf("sqlite: lookup source %q: %w", key, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %q", options.ErrUnknownSource, key)
	}

	where, args, err := filterClause(filter)
	if err != nil {
		return nil, err
	}
	query := `SELECT record FROM catalog_records WHERE source = ?` + where + ` ORDER BY position`
	rows, err := s.db.QueryContext(ctx, query, append([]any{key}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %q: %w", key, err)
	}
	defer rows.Close()

	out := make([]map[string]any, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan %q record: %w", key, err)
		}
		record, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func filterClause(filter map[string]any) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	var args []any
	for _, k := range keys {
		if !filterKeyPattern.MatchString(k) {
			return "", nil, fmt.Errorf("sqlite: invalid filter key %q", k)
		}
		path := "$." + k
		switch value := filter[k].(type) {
		case nil:
			b.WriteString(` AND json_extract(record, ?) IS NULL`)
			args = append(args, path)
		case []any, []string:
			values := listValues(value)
			if len(values) == 0 {
				b.WriteString(` AND 0`)
				continue
			}
			b.WriteString(` AND CAST(json_extract(record, ?) AS TEXT) IN (?` + strings.Repeat(", ?", len(values)-1) + `)`)
			args = append(args, path)
			args = append(args, values...)
		default:
			b.WriteString(` AND CAST(json_extract(record, ?) AS TEXT) = ?`)
			args = append(args, path, options.Stringify(value))
		}
	}
	return b.String(), args, nil
}

func listValues(value any) []any {
	var out []any
	switch typed := value.(type) {
	case []any:
		for _, item := range typed {
			out = append(out, options.Stringify(item))
		}
	case []string:
		for _, item := range typed {
			out = append(out, item)
		}
	}
	return out
}
