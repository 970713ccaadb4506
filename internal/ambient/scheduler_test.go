package ambient_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/ambient"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/playback"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/soundstore"
)

type fakePlayer struct {
	mu   sync.Mutex
	reqs []playback.Request
	err  error
}

func (p *fakePlayer) Play(_ context.Context, req playback.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reqs = append(p.reqs, req)
	return nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

func (p *fakePlayer) first() playback.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[0]
}

func newStore(t *testing.T, names ...string) *soundstore.MemStore {
	t.Helper()
	store := soundstore.NewMemStore()
	for _, name := range names {
		err := store.Add(t.Context(), soundstore.Sound{
			ID: uuid.New(), Name: name, Path: name + ".mp3",
		})
		if err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	return store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerPlaysAtAmbientPriority(t *testing.T) {
	t.Parallel()
	store := newStore(t, "airhorn")
	player := &fakePlayer{}
	s := ambient.New(store, player, "/srv/sounds", 20*time.Millisecond, 0)
	t.Cleanup(s.Stop)

	go s.Run(context.Background())

	waitFor(t, func() bool { return player.count() >= 1 })
	req := player.first()
	if req.Priority != playback.PriorityAmbient {
		t.Errorf("Priority = %v, want ambient", req.Priority)
	}
	if req.Sound != "airhorn" {
		t.Errorf("Sound = %q, want %q", req.Sound, "airhorn")
	}

	waitFor(t, func() bool { return len(store.Plays()) >= 1 })
	if got := store.Plays()[0].Trigger; got != "ambient" {
		t.Errorf("Trigger = %q, want %q", got, "ambient")
	}
}

func TestSchedulerToleratesBusyPlayer(t *testing.T) {
	t.Parallel()
	store := newStore(t, "airhorn")
	player := &fakePlayer{err: playback.ErrBusy}
	s := ambient.New(store, player, "/srv/sounds", 10*time.Millisecond, 0)
	t.Cleanup(s.Stop)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(60 * time.Millisecond)
	s.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(store.Plays()); got != 0 {
		t.Errorf("%d plays recorded while busy, want 0", got)
	}
}

func TestSchedulerToleratesEmptyStore(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	player := &fakePlayer{}
	s := ambient.New(store, player, "/srv/sounds", 10*time.Millisecond, 0)
	t.Cleanup(s.Stop)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if player.count() != 0 {
		t.Errorf("player received %d requests from an empty store", player.count())
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	store := newStore(t, "airhorn")
	s := ambient.New(store, &fakePlayer{}, "/srv/sounds", time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	t.Parallel()
	s := ambient.New(newStore(t), &fakePlayer{}, "", time.Hour, 0)
	s.Stop()
	s.Stop()
}
