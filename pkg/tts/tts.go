// Package tts provides text-to-speech synthesis for spoken bot responses.
//
// The OpenAI-backed synthesizer renders text to an MP3 file on local disk so
// the result can be handed to the playback layer like any other sound file.
package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Synthesizer renders spoken text to a playable audio file.
type Synthesizer interface {
	// Synthesize converts text to speech and returns the path of the
	// resulting audio file. The caller owns the file and may delete it
	// after playback.
	Synthesize(ctx context.Context, text string) (string, error)
}

// Compile-time interface assertion.
var _ Synthesizer = (*OpenAI)(nil)

// OpenAI implements Synthesizer using the OpenAI speech API.
type OpenAI struct {
	client oai.Client
	model  oai.SpeechModel
	voice  oai.AudioSpeechNewParamsVoice
	dir    string
}

// config holds optional configuration for the synthesizer.
type config struct {
	baseURL string
	model   oai.SpeechModel
	voice   oai.AudioSpeechNewParamsVoice
	dir     string
	timeout time.Duration
}

// Option is a functional option for OpenAI.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the speech model. Defaults to tts-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = oai.SpeechModel(model) }
}

// WithVoice sets the synthesis voice. Defaults to "onyx".
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = oai.AudioSpeechNewParamsVoice(voice) }
}

// WithOutputDir sets the directory synthesized files are written to.
// Defaults to the OS temp directory.
func WithOutputDir(dir string) Option {
	return func(c *config) { c.dir = dir }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI speech synthesizer.
func New(apiKey string, opts ...Option) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tts: apiKey must not be empty")
	}

	cfg := &config{
		model: oai.SpeechModelTTS1,
		voice: oai.AudioSpeechNewParamsVoiceOnyx,
		dir:   os.TempDir(),
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &OpenAI{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		voice:  cfg.voice,
		dir:    cfg.dir,
	}, nil
}

// Synthesize implements Synthesizer. The rendered MP3 is written to the
// configured output directory under a random file name.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("tts: text must not be empty")
	}

	res, err := o.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return "", fmt.Errorf("tts: speech request: %w", err)
	}
	defer res.Body.Close()

	path := filepath.Join(o.dir, "tts-"+uuid.NewString()+".mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("tts: create output file: %w", err)
	}

	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("tts: write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("tts: close output file: %w", err)
	}

	return path, nil
}
