package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if cfg.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id is required"))
	}

	// Recognition
	if cfg.Recognition.ModelPath == "" {
		errs = append(errs, errors.New("recognition.model_path is required"))
	}
	if cfg.Recognition.Workers <= 0 {
		errs = append(errs, fmt.Errorf("recognition.workers %d must be positive", cfg.Recognition.Workers))
	}

	// Pipeline
	if cfg.Pipeline.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_timeout %s must be positive", cfg.Pipeline.SilenceTimeout))
	}
	if cfg.Pipeline.MinFrames <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_frames %d must be positive", cfg.Pipeline.MinFrames))
	}
	if cfg.Pipeline.IdleEviction <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.idle_eviction %s must be positive", cfg.Pipeline.IdleEviction))
	}
	if cfg.Pipeline.StuckEviction < cfg.Pipeline.IdleEviction {
		errs = append(errs, fmt.Errorf("pipeline.stuck_eviction %s must not be shorter than pipeline.idle_eviction %s",
			cfg.Pipeline.StuckEviction, cfg.Pipeline.IdleEviction))
	}

	// Keywords
	if cfg.Keywords.Threshold <= 0 || cfg.Keywords.Threshold > 1 {
		errs = append(errs, fmt.Errorf("keywords.threshold %.2f is out of range (0, 1]", cfg.Keywords.Threshold))
	}
	keywordsSeen := make(map[string]int, len(cfg.Keywords.Entries))
	for i, entry := range cfg.Keywords.Entries {
		prefix := fmt.Sprintf("keywords.entries[%d]", i)
		kw := strings.ToLower(strings.TrimSpace(entry.Keyword))
		if kw == "" {
			errs = append(errs, fmt.Errorf("%s.keyword is required", prefix))
			continue
		}
		if prev, ok := keywordsSeen[kw]; ok {
			errs = append(errs, fmt.Errorf("%s.keyword %q is a duplicate of keywords.entries[%d]", prefix, kw, prev))
		}
		keywordsSeen[kw] = i
		for v, score := range entry.Variants {
			if score < 0 || score > 1 {
				errs = append(errs, fmt.Errorf("%s.variants[%q] score %.2f is out of range [0, 1]", prefix, v, score))
			}
		}
	}
	if len(cfg.Keywords.Entries) == 0 {
		slog.Warn("keywords.entries is empty; the bot will not react to any speech")
	}

	// Playback
	if cfg.Playback.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("playback.stop_timeout %s must be positive", cfg.Playback.StopTimeout))
	}
	if cfg.Playback.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("playback.max_attempts %d must be positive", cfg.Playback.MaxAttempts))
	}

	// Ambient
	if cfg.Ambient.Enabled {
		if cfg.Ambient.Interval <= 0 {
			errs = append(errs, fmt.Errorf("ambient.interval %s must be positive when ambient is enabled", cfg.Ambient.Interval))
		}
		if cfg.Ambient.Jitter < 0 || cfg.Ambient.Jitter >= cfg.Ambient.Interval {
			errs = append(errs, fmt.Errorf("ambient.jitter %s must be in [0, interval)", cfg.Ambient.Jitter))
		}
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; using in-memory sound library without play auditing")
	}

	// TTS availability
	if cfg.TTS.APIKey == "" {
		slog.Warn("tts.api_key is empty; spoken responses are disabled")
	}

	return errors.Join(errs...)
}
