// Package soundstore manages the sound library: the named audio files the
// bot can play, and the audit log of what was played when.
//
// Two implementations exist: a PostgreSQL store for persistent deployments
// and an in-memory store used when no database is configured.
package soundstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no sound matches the requested name.
var ErrNotFound = errors.New("soundstore: sound not found")

// ErrEmpty is returned by Random when the library has no sounds.
var ErrEmpty = errors.New("soundstore: library is empty")

// Sound is one entry in the library.
type Sound struct {
	// ID uniquely identifies the entry.
	ID uuid.UUID

	// Name is the unique lookup key, lowercase.
	Name string

	// Path is the audio file path relative to the configured sounds
	// directory.
	Path string

	// CreatedAt is when the entry was added.
	CreatedAt time.Time
}

// PlayRecord is one entry in the play audit log.
type PlayRecord struct {
	// Sound is the name of the played sound.
	Sound string

	// SpeakerID identifies who triggered the play, when known.
	SpeakerID string

	// Trigger describes what initiated the play: "keyword", "manual",
	// "ambient", or "tts".
	Trigger string

	// PlayedAt is when playback was granted.
	PlayedAt time.Time
}

// Store is the sound library abstraction. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the sound with the exact given name.
	// Returns [ErrNotFound] when absent.
	Get(ctx context.Context, name string) (Sound, error)

	// List returns all sounds in the library.
	List(ctx context.Context) ([]Sound, error)

	// Add inserts a sound. The name must be unique.
	Add(ctx context.Context, s Sound) error

	// Random returns a uniformly random sound. Returns [ErrEmpty] when the
	// library has no entries.
	Random(ctx context.Context) (Sound, error)

	// RecordPlay appends one entry to the play audit log.
	RecordPlay(ctx context.Context, rec PlayRecord) error

	// Close releases the store's resources.
	Close() error
}
