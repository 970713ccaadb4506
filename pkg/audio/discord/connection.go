package discord

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const (
	inputChannelBuffer  = 64
	outputChannelBuffer = 64
)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. It demuxes incoming Opus packets by SSRC
// into per-speaker PCM input streams, and encodes outgoing PCM frames to
// Opus for transmission.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string

	inputsMu sync.RWMutex
	inputs   map[string]chan audio.Frame // keyed by speaker ID
	ssrcUser map[uint32]string           // SSRC -> user ID mapping

	output chan audio.Frame

	changeCb func(audio.Event)
	changeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func() // removes the VoiceStateUpdate handler

	// disconnectVC is called during Disconnect to tear down the voice connection.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newConnection initialises a Connection for an already-joined voice channel.
// It starts background goroutines for receiving and sending audio.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) (*Connection, error) {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		inputs:       make(map[string]chan audio.Frame),
		ssrcUser:     make(map[uint32]string),
		output:       make(chan audio.Frame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	// Register a VoiceStateUpdate handler to detect speaker join/leave.
	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)

	// Track SSRC -> user ID so input streams are keyed by real user IDs
	// instead of raw SSRC values.
	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()
	go c.sendLoop()

	return c, nil
}

// InputStreams returns a snapshot of the current per-speaker audio channels.
// The map key is the speaker ID; the value is the read-only input channel.
func (c *Connection) InputStreams() map[string]<-chan audio.Frame {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	snap := make(map[string]<-chan audio.Frame, len(c.inputs))
	for id, ch := range c.inputs {
		snap[id] = ch
	}
	return snap
}

// OutputStream returns the write-only channel for bot audio output.
// Frames written here are encoded to Opus and sent to Discord.
func (c *Connection) OutputStream() chan<- audio.Frame {
	return c.output
}

// OnSpeakerChange registers cb as the callback for speaker join/leave events.
// Only one callback may be registered; subsequent calls replace the previous one.
func (c *Connection) OnSpeakerChange(cb func(audio.Event)) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()
	c.changeCb = cb
}

// Disconnect cleanly tears down the voice connection and stops all background
// goroutines. It is safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		if c.removeHandler != nil {
			c.removeHandler()
		}

		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}

		// Close all input channels so downstream consumers see EOF.
		c.inputsMu.Lock()
		for id, ch := range c.inputs {
			close(ch)
			delete(c.inputs, id)
		}
		c.inputsMu.Unlock()
	})
	return err
}

// speakerID resolves the stream key for an SSRC: the mapped user ID when a
// speaking update has been seen, otherwise the SSRC rendered as a string.
func (c *Connection) speakerID(ssrc uint32) string {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	if userID, ok := c.ssrcUser[ssrc]; ok {
		return userID
	}
	return strconv.FormatUint(uint64(ssrc), 10)
}

// recvLoop reads Opus packets from the Discord voice connection, demuxes them
// by SSRC, decodes Opus to PCM, and delivers frames to per-speaker channels.
func (c *Connection) recvLoop() {
	// Each SSRC gets its own decoder to maintain state across frames.
	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			ssrc := pkt.SSRC
			speaker := c.speakerID(ssrc)

			// Lazily create a decoder for this SSRC.
			dec, exists := decoders[ssrc]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: failed to create opus decoder", "speaker", speaker, "error", err)
					continue
				}
				decoders[ssrc] = dec
			}

			// Ensure an input channel exists for this speaker.
			c.inputsMu.Lock()
			ch, chExists := c.inputs[speaker]
			if !chExists {
				ch = make(chan audio.Frame, inputChannelBuffer)
				c.inputs[speaker] = ch
			}
			c.inputsMu.Unlock()

			if !chExists {
				c.emitEvent(audio.Event{
					Type:      audio.EventJoin,
					SpeakerID: speaker,
				})
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "speaker", speaker, "error", err)
				continue
			}

			frame := audio.Frame{
				Data:       pcm,
				SampleRate: opusSampleRate,
				Channels:   opusChannels,
				Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opusSampleRate),
			}

			select {
			case ch <- frame:
			default:
				// Channel full — drop frame rather than block.
			}
		}
	}
}

// sendLoop reads PCM frames from the output channel, converts them to
// Discord's target format (48 kHz stereo), extracts exact Opus frame-sized
// chunks, encodes them to Opus, and sends the encoded data via the Discord
// voice connection.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	conv := audio.Converter{Target: audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}}

	// Signal speaking when we start sending audio.
	speakingSet := false

	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample = 3840 bytes.
	const opusFrameBytes = opusFrameSize * opusChannels * 2

	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			frame = conv.Convert(frame)
			buf = append(buf, frame.Data...)

			// Encode and send complete Opus frames.
			for len(buf) >= opusFrameBytes {
				opus, eErr := enc.encode(buf[:opusFrameBytes])
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					buf = buf[opusFrameBytes:]
					continue
				}
				buf = buf[opusFrameBytes:]

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleSpeakingUpdate records the SSRC -> user ID mapping Discord provides
// when a user starts or stops speaking.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	c.inputsMu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.inputsMu.Unlock()
}

// handleVoiceStateUpdate processes Discord VoiceStateUpdate events to detect
// speaker joins and leaves for the voice channel this connection is on.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != c.guildID {
		return
	}

	channelID := c.vc.ChannelID

	// Speaker left our channel.
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == channelID && vsu.ChannelID != channelID {
		username := ""
		if vsu.Member != nil && vsu.Member.User != nil {
			username = vsu.Member.User.Username
		}
		c.emitEvent(audio.Event{
			Type:      audio.EventLeave,
			SpeakerID: vsu.UserID,
			Username:  username,
		})
		return
	}

	// Speaker joined our channel.
	if vsu.ChannelID == channelID && (vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != channelID) {
		username := ""
		if vsu.Member != nil && vsu.Member.User != nil {
			username = vsu.Member.User.Username
		}
		c.emitEvent(audio.Event{
			Type:      audio.EventJoin,
			SpeakerID: vsu.UserID,
			Username:  username,
		})
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

// emitEvent safely invokes the registered speaker change callback.
func (c *Connection) emitEvent(ev audio.Event) {
	c.changeMu.Lock()
	cb := c.changeCb
	c.changeMu.Unlock()
	if cb != nil {
		go cb(ev)
	}
}
