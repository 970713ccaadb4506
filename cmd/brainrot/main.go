// Command brainrot is the Discord voice-reaction bot: it listens to a
// voice channel, transcribes speakers, and answers keywords with sounds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/app"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/config"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/events"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/observe"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/soundstore"
	discordaudio "github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/audio/discord"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/recognizer/whisper"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Configuration (with hot reload) ───────────────────────────────────────
	var session atomic.Pointer[app.Session]
	watcher, err := config.NewWatcher(*configPath, func(_, newCfg *config.Config) {
		if s := session.Load(); s != nil {
			s.Reload(newCfg)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "brainrot: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "brainrot: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("brainrot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "brainrot"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Sound store ───────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open sound store", "err", err)
		return 1
	}
	defer store.Close()

	// ── Recognition engine ────────────────────────────────────────────────────
	engine, err := whisper.New(cfg.Recognition.ModelPath, whisper.WithLanguage(cfg.Recognition.Language))
	if err != nil {
		slog.Error("failed to load whisper model", "err", err, "model", cfg.Recognition.ModelPath)
		return 1
	}
	defer engine.Close()
	slog.Info("whisper model loaded", "model", cfg.Recognition.ModelPath, "language", cfg.Recognition.Language)

	// ── Discord ───────────────────────────────────────────────────────────────
	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		slog.Error("failed to create Discord session", "err", err)
		return 1
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if err := dg.Open(); err != nil {
		slog.Error("failed to connect to Discord", "err", err)
		return 1
	}
	defer dg.Close()
	slog.Info("discord connected", "guild_id", cfg.Discord.GuildID)

	// ── Event bus + HTTP server ───────────────────────────────────────────────
	bus := events.NewBus()
	defer bus.Close()

	var httpErr chan error
	if cfg.Server.ListenAddr != "" {
		httpErr = serveHTTP(ctx, cfg.Server.ListenAddr, bus)
	}

	// ── Session ───────────────────────────────────────────────────────────────
	opts := []app.Option{app.WithMetrics(observe.DefaultMetrics())}
	if cfg.TTS.APIKey != "" {
		synth, err := newSynthesizer(cfg)
		if err != nil {
			slog.Error("failed to create speech synthesizer", "err", err)
			return 1
		}
		opts = append(opts, app.WithSynthesizer(synth))
		slog.Info("speech synthesis enabled", "model", cfg.TTS.Model, "voice", cfg.TTS.Voice)
	}

	platform := discordaudio.New(dg, cfg.Discord.GuildID)
	sess := app.New(cfg, platform, engine, store, bus, opts...)
	session.Store(sess)

	slog.Info("joining voice channel — press Ctrl+C to shut down", "channel_id", cfg.Discord.ChannelID)

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("session error", "err", err)
			return 1
		}
	case err := <-httpErr:
		slog.Error("http server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// serveHTTP exposes /metrics for Prometheus scraping and /events as a
// WebSocket stream of pipeline activity.
func serveHTTP(ctx context.Context, addr string, bus *events.Bus) chan error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/events", events.NewHandler(bus))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return errCh
}

// openStore connects to Postgres when a DSN is configured, otherwise it
// falls back to an in-memory store seeded from the sounds directory.
func openStore(ctx context.Context, cfg *config.Config) (soundstore.Store, error) {
	if cfg.Store.PostgresDSN != "" {
		store, err := soundstore.Connect(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		slog.Info("sound store connected", "backend", "postgres")
		return store, nil
	}

	store := soundstore.NewMemStore()
	n, err := seedFromDir(ctx, store, cfg.Store.SoundsDir)
	if err != nil {
		slog.Warn("could not scan sounds directory", "dir", cfg.Store.SoundsDir, "err", err)
	}
	slog.Info("sound store ready", "backend", "memory", "sounds", n)
	return store, nil
}

// seedFromDir registers every audio file in dir under its base name.
func seedFromDir(ctx context.Context, store soundstore.Store, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		switch ext {
		case ".mp3", ".wav", ".ogg", ".flac", ".m4a":
		default:
			continue
		}
		name := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		err := store.Add(ctx, soundstore.Sound{
			ID:        uuid.New(),
			Name:      name,
			Path:      de.Name(),
			CreatedAt: time.Now(),
		})
		if err != nil {
			slog.Warn("skipping sound", "file", de.Name(), "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func newSynthesizer(cfg *config.Config) (tts.Synthesizer, error) {
	var opts []tts.Option
	if cfg.TTS.Model != "" {
		opts = append(opts, tts.WithModel(cfg.TTS.Model))
	}
	if cfg.TTS.Voice != "" {
		opts = append(opts, tts.WithVoice(cfg.TTS.Voice))
	}
	if cfg.TTS.OutputDir != "" {
		opts = append(opts, tts.WithOutputDir(cfg.TTS.OutputDir))
	}
	return tts.New(cfg.TTS.APIKey, opts...)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
