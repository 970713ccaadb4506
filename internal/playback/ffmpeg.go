package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/audio"
)

// Playback decodes to Discord's native format so the send path does not have
// to resample.
const (
	playbackSampleRate = 48000
	playbackChannels   = 2

	// frameBytes is 20 ms of 48 kHz stereo s16le audio.
	frameBytes = playbackSampleRate / 50 * playbackChannels * 2
)

// Compile-time interface assertion.
var _ Player = (*FFmpegPlayer)(nil)

// FFmpegPlayer implements [Player] by decoding sound files through an
// ffmpeg subprocess into raw PCM.
type FFmpegPlayer struct {
	// Path is the ffmpeg executable. Defaults to "ffmpeg" via PATH.
	Path string

	// Filter is an optional ffmpeg audio filter string (-filter:a) applied
	// to every playback.
	Filter string
}

// Play implements [Player]. The file is validated up front so a missing
// sound is a permanent error; failures once decoding is underway are marked
// transient.
func (p *FFmpegPlayer) Play(ctx context.Context, req Request, out chan<- audio.Frame, stop <-chan struct{}) error {
	if _, err := os.Stat(req.Path); err != nil {
		return fmt.Errorf("playback: sound file: %w", err)
	}

	bin := p.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", req.Path,
	}
	if p.Filter != "" {
		args = append(args, "-filter:a", p.Filter)
	}
	args = append(args,
		"-f", "s16le",
		"-ar", fmt.Sprint(playbackSampleRate),
		"-ac", fmt.Sprint(playbackChannels),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Transient(fmt.Errorf("stdout pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("playback: ffmpeg not found at %q: %w", bin, err)
		}
		return Transient(fmt.Errorf("start ffmpeg: %w", err))
	}

	// Killer: tear the process down when stop fires so the reader unblocks.
	readerDone := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		select {
		case <-stop:
			close(killed)
			_ = cmd.Process.Kill()
		case <-ctx.Done():
			_ = cmd.Process.Kill()
		case <-readerDone:
		}
	}()

	readErr := p.streamFrames(ctx, stdout, out, stop)
	close(readerDone)
	waitErr := cmd.Wait()

	select {
	case <-killed:
		// Stopped on purpose; the kill fallout is expected noise.
		return nil
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		slog.Debug("playback: ffmpeg exited with error", "sound", req.Sound, "error", waitErr)
		return Transient(fmt.Errorf("ffmpeg: %w", waitErr))
	}
	return nil
}

// streamFrames reads fixed-size PCM frames from r and delivers them to out
// until EOF, stop, or ctx cancellation.
func (p *FFmpegPlayer) streamFrames(ctx context.Context, r io.Reader, out chan<- audio.Frame, stop <-chan struct{}) error {
	var ts time.Duration
	buf := make([]byte, frameBytes)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			frame := audio.Frame{
				Data:       append([]byte(nil), buf[:n]...),
				SampleRate: playbackSampleRate,
				Channels:   playbackChannels,
				Timestamp:  ts,
			}
			ts += frame.Duration()
			select {
			case out <- frame:
			case <-stop:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return Transient(fmt.Errorf("read pcm: %w", err))
		}
	}
}
