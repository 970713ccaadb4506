package soundstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the sound library tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS sounds (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    path       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sounds_name ON sounds(name);

CREATE TABLE IF NOT EXISTS plays (
    id        BIGSERIAL PRIMARY KEY,
    sound     TEXT NOT NULL,
    speaker   TEXT NOT NULL DEFAULT '',
    trigger   TEXT NOT NULL,
    played_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_plays_sound ON plays(sound);
CREATE INDEX IF NOT EXISTS idx_plays_played_at ON plays(played_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db    DB
	close func()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a pgx connection pool against dsn, verifies connectivity,
// and returns a store that owns the pool.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("soundstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("soundstore: ping: %w", err)
	}
	return &PostgresStore{db: pool, close: pool.Close}, nil
}

// Migrate executes the [Schema] DDL against the database, creating the
// sound library tables and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("soundstore: migrate: %w", err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, name string) (Sound, error) {
	const query = `SELECT id, name, path, created_at FROM sounds WHERE name = $1`

	var snd Sound
	err := s.db.QueryRow(ctx, query, name).Scan(&snd.ID, &snd.Name, &snd.Path, &snd.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sound{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return Sound{}, fmt.Errorf("soundstore: get %q: %w", name, err)
	}
	return snd, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context) ([]Sound, error) {
	const query = `SELECT id, name, path, created_at FROM sounds ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("soundstore: list: %w", err)
	}
	defer rows.Close()

	var sounds []Sound
	for rows.Next() {
		var snd Sound
		if err := rows.Scan(&snd.ID, &snd.Name, &snd.Path, &snd.CreatedAt); err != nil {
			return nil, fmt.Errorf("soundstore: list scan: %w", err)
		}
		sounds = append(sounds, snd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("soundstore: list: %w", err)
	}
	return sounds, nil
}

// Add implements [Store].
func (s *PostgresStore) Add(ctx context.Context, snd Sound) error {
	const query = `INSERT INTO sounds (id, name, path) VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, query, snd.ID, snd.Name, snd.Path); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("soundstore: sound %q already exists", snd.Name)
		}
		return fmt.Errorf("soundstore: add %q: %w", snd.Name, err)
	}
	return nil
}

// Random implements [Store].
func (s *PostgresStore) Random(ctx context.Context) (Sound, error) {
	const query = `SELECT id, name, path, created_at FROM sounds ORDER BY random() LIMIT 1`

	var snd Sound
	err := s.db.QueryRow(ctx, query).Scan(&snd.ID, &snd.Name, &snd.Path, &snd.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sound{}, ErrEmpty
		}
		return Sound{}, fmt.Errorf("soundstore: random: %w", err)
	}
	return snd, nil
}

// RecordPlay implements [Store].
func (s *PostgresStore) RecordPlay(ctx context.Context, rec PlayRecord) error {
	const query = `INSERT INTO plays (sound, speaker, trigger, played_at) VALUES ($1, $2, $3, $4)`

	if _, err := s.db.Exec(ctx, query, rec.Sound, rec.SpeakerID, rec.Trigger, rec.PlayedAt); err != nil {
		return fmt.Errorf("soundstore: record play: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
