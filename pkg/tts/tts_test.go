package tts_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/tts"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := tts.New(""); err == nil {
		t.Fatal("New with empty key succeeded, want error")
	}
}

func TestSynthesizeWritesAudioFile(t *testing.T) {
	t.Parallel()
	audio := []byte("fake mp3 payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	synth, err := tts.New("test-key",
		tts.WithBaseURL(srv.URL),
		tts.WithOutputDir(t.TempDir()),
		tts.WithModel("tts-1"),
		tts.WithVoice("onyx"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := synth.Synthesize(t.Context(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasSuffix(path, ".mp3") {
		t.Errorf("path = %q, want .mp3 suffix", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("file content = %q, want %q", got, audio)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()
	synth, err := tts.New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := synth.Synthesize(t.Context(), ""); err == nil {
		t.Fatal("Synthesize with empty text succeeded, want error")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	synth, err := tts.New("test-key", tts.WithBaseURL(srv.URL), tts.WithOutputDir(t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := synth.Synthesize(t.Context(), "hello"); err == nil {
		t.Fatal("Synthesize against failing server succeeded, want error")
	}
}
