// Package ambient plays random sounds at loosely periodic intervals
// while the bot sits in a channel.
package ambient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/playback"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/soundstore"
)

// Player submits playback requests. Satisfied by [playback.Controller].
type Player interface {
	Play(ctx context.Context, req playback.Request) error
}

// Scheduler picks a random sound from the store every interval, give or
// take the jitter, and offers it at ambient priority. Offers made while
// something else is playing are dropped.
type Scheduler struct {
	store     soundstore.Store
	player    Player
	soundsDir string
	interval  time.Duration
	jitter    time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler. Jitter must be smaller than interval; both
// are validated at config load.
func New(store soundstore.Store, player Player, soundsDir string, interval, jitter time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		player:    player,
		soundsDir: soundsDir,
		interval:  interval,
		jitter:    jitter,
		done:      make(chan struct{}),
	}
}

// Run blocks, offering sounds until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if err := s.playOnce(ctx); err != nil {
			slog.Warn("ambient: play", "error", err)
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) nextDelay() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	return s.interval + rand.N(2*s.jitter) - s.jitter
}

func (s *Scheduler) playOnce(ctx context.Context) error {
	snd, err := s.store.Random(ctx)
	if err != nil {
		if errors.Is(err, soundstore.ErrEmpty) {
			slog.Debug("ambient: no sounds available")
			return nil
		}
		return fmt.Errorf("ambient: pick sound: %w", err)
	}

	path := snd.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.soundsDir, path)
	}

	err = s.player.Play(ctx, playback.Request{
		Sound:    snd.Name,
		Path:     path,
		Priority: playback.PriorityAmbient,
	})
	if err != nil {
		if errors.Is(err, playback.ErrBusy) {
			slog.Debug("ambient: channel busy, skipping", "sound", snd.Name)
			return nil
		}
		return fmt.Errorf("ambient: %w", err)
	}

	rec := soundstore.PlayRecord{
		Sound:    snd.Name,
		Trigger:  "ambient",
		PlayedAt: time.Now(),
	}
	if err := s.store.RecordPlay(ctx, rec); err != nil {
		slog.Warn("ambient: record play", "sound", snd.Name, "error", err)
	}
	return nil
}
