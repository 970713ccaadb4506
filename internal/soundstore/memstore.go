package soundstore

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// MemStore is an in-memory [Store] used when no database is configured.
// Play records are logged instead of persisted. Safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	sounds map[string]Sound
	names  []string
	plays  []PlayRecord
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sounds: make(map[string]Sound)}
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, name string) (Sound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snd, ok := s.sounds[name]
	if !ok {
		return Sound{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return snd, nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context) ([]Sound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sound, 0, len(s.sounds))
	for _, name := range s.names {
		out = append(out, s.sounds[name])
	}
	return out, nil
}

// Add implements [Store].
func (s *MemStore) Add(_ context.Context, snd Sound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sounds[snd.Name]; ok {
		return fmt.Errorf("soundstore: sound %q already exists", snd.Name)
	}
	s.sounds[snd.Name] = snd
	s.names = append(s.names, snd.Name)
	return nil
}

// Random implements [Store].
func (s *MemStore) Random(_ context.Context) (Sound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.names) == 0 {
		return Sound{}, ErrEmpty
	}
	return s.sounds[s.names[rand.IntN(len(s.names))]], nil
}

// RecordPlay implements [Store]. Records are kept in memory only.
func (s *MemStore) RecordPlay(_ context.Context, rec PlayRecord) error {
	s.mu.Lock()
	s.plays = append(s.plays, rec)
	s.mu.Unlock()
	slog.Debug("soundstore: play",
		"sound", rec.Sound, "speaker", rec.SpeakerID, "trigger", rec.Trigger)
	return nil
}

// Plays returns a copy of all recorded plays in order.
func (s *MemStore) Plays() []PlayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PlayRecord, len(s.plays))
	copy(out, s.plays)
	return out
}

// Close implements [Store].
func (s *MemStore) Close() error { return nil }
