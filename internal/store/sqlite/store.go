// Package sqlite is the reference entity store and data source catalog,
// backed by a single SQLite file. Entities are JSON documents keyed by
// entity name and id; catalog sources are ordered lists of JSON records.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned for unknown entities.
var ErrNotFound = errors.New("sqlite: entity not found")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store implements engine.EntityStore, engine.EntityCreator and
// options.Catalog.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and runs the
// embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	s := &Store{path: path, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug().Str("path", path).Msg("sqlite store ready")
	return s, nil
}

func (s *Store) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sqlite: migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the stored document of entity/id.
func (s *Store) Get(ctx context.Context, entity, id string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM entities WHERE entity = ? AND id = ?`, entity, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s %q: %w", entity, id, err)
	}
	return decodeDocument(raw)
}

// Patch merges patch into the stored document as a JSON merge patch: nested
// objects merge, other values replace, and null removes the key.
func (s *Store) Patch(ctx context.Context, entity, id string, patch map[string]any) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("sqlite: encode patch: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET document = json_patch(document, ?), updated_at = ? WHERE entity = ? AND id = ?`,
		string(payload), s.now().UTC(), entity, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: patch %s %q: %w", entity, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
	}
	s.logger.Debug().Str("entity", entity).Str("id", id).Int("keys", len(patch)).Msg("entity patched")
	return nil
}

// Create stores values as a new entity under a random uuid.
func (s *Store) Create(ctx context.Context, entity string, values map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.insert(ctx, entity, id, values, false); err != nil {
		return "", err
	}
	return id, nil
}

// Put stores doc under entity/id, replacing any previous document.
func (s *Store) Put(ctx context.Context, entity, id string, doc map[string]any) error {
	return s.insert(ctx, entity, id, doc, true)
}

func (s *Store) insert(ctx context.Context, entity, id string, doc map[string]any, replace bool) error {
	if doc == nil {
		doc = map[string]any{}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s %q: %w", entity, id, err)
	}
	query := `INSERT INTO entities (entity, id, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if replace {
		query += ` ON CONFLICT (entity, id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`
	}
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, query, entity, id, string(payload), now, now); err != nil {
		return fmt.Errorf("sqlite: store %s %q: %w", entity, id, err)
	}
	return nil
}

// List returns the ids of entity, sorted.
func (s *Store) List(ctx context.Context, entity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entities WHERE entity = ? ORDER BY id`, entity)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", entity, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s id: %w", entity, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func decodeDocument(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("sqlite: decode document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
