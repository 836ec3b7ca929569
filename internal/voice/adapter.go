package voice

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/voice"
	"go.uber.org/zap"
	"layeh.com/gopus"

	"github.com/discordplex/discordplex/pkg/audio"
)

const (
	playbackBitrate  = 64_000
	maxOpusFrameSize = 4000
)

// guildSession ties one arikawa voice connection to the bridge: the capture
// loop feeds decoded participant audio in, the playback loop writes the
// bridge's output back out at the frame cadence. It also serves as the
// bridge's text and error sink for the guild's text channel.
type guildSession struct {
	svc           *Service
	guildID       discord.GuildID
	channelID     discord.ChannelID
	textChannelID discord.ChannelID
	voice         *voice.Session
	voiceName     string
	startedAt     time.Time

	encoder *gopus.Encoder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newGuildSession(svc *Service, guildID discord.GuildID, channelID, textChannelID discord.ChannelID, vs *voice.Session, voiceName string) *guildSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &guildSession{
		svc:           svc,
		guildID:       guildID,
		channelID:     channelID,
		textChannelID: textChannelID,
		voice:         vs,
		voiceName:     voiceName,
		startedAt:     time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (g *guildSession) start() {
	g.wg.Add(2)
	go g.captureLoop()
	go g.playbackLoop()
}

func (g *guildSession) stop(ctx context.Context) {
	g.cancel()
	// Leaving unblocks the capture loop's ReadPacket.
	if err := g.voice.Leave(ctx); err != nil {
		g.svc.logger.Warn("Failed to leave voice channel cleanly", zap.Error(err))
	}
	g.wg.Wait()
}

// captureLoop reads RTP packets from the voice connection, decodes them per
// speaker and submits the PCM to the bridge. Speakers are keyed by SSRC; a
// speaker keeps one decoder for the life of the session so Opus inter-frame
// state survives.
func (g *guildSession) captureLoop() {
	defer g.wg.Done()

	decoders := make(map[uint32]*gopus.Decoder)

	for {
		packet, err := g.voice.ReadPacket()
		if err != nil {
			if g.ctx.Err() != nil {
				return
			}
			g.svc.logger.Debug("Voice packet read failed", zap.Error(err))
			continue
		}

		ssrc := packet.SSRC()
		dec, ok := decoders[ssrc]
		if !ok {
			dec, err = gopus.NewDecoder(audio.DiscordSampleRate, audio.DiscordChannels)
			if err != nil {
				g.svc.logger.Error("Failed to create speaker decoder", zap.Error(err))
				continue
			}
			decoders[ssrc] = dec
		}

		pcm, err := dec.Decode(packet.Opus, audio.DiscordFrameSize, false)
		if err != nil {
			g.svc.logger.Debug("Dropping undecodable voice packet",
				zap.Uint32("ssrc", ssrc), zap.Error(err))
			continue
		}

		g.svc.bridge.Submit(strconv.FormatUint(uint64(ssrc), 10), audio.NewDiscordFrame(pcm))
	}
}

// playbackLoop greets the channel, then writes one bridge output frame every
// frame period. Encoding silence when the bridge has nothing keeps the RTP
// stream continuous.
func (g *guildSession) playbackLoop() {
	defer g.wg.Done()

	encoder, err := gopus.NewEncoder(audio.DiscordSampleRate, audio.DiscordChannels, gopus.Voip)
	if err != nil {
		g.svc.logger.Error("Failed to create playback encoder", zap.Error(err))
		return
	}
	encoder.SetBitrate(playbackBitrate)
	g.encoder = encoder

	g.playPCM(audio.GreetingPCM())

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
		}

		g.writeFrame(g.svc.bridge.Poll())
	}
}

// playPCM plays raw Discord-format PCM with frame-paced timing. Writing
// faster than real time makes Discord drop audio.
func (g *guildSession) playPCM(pcm []byte) {
	start := time.Now()
	frameIndex := 0

	for offset := 0; offset < len(pcm); offset += audio.DiscordFrameBytes {
		end := offset + audio.DiscordFrameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frame := pcm[offset:end]
		if len(frame) < audio.DiscordFrameBytes {
			padded := make([]byte, audio.DiscordFrameBytes)
			copy(padded, frame)
			frame = padded
		}

		due := start.Add(time.Duration(frameIndex) * audio.FrameDuration)
		if wait := time.Until(due); wait > 0 {
			select {
			case <-g.ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		g.writeFrame(frame)
		frameIndex++
	}
}

func (g *guildSession) writeFrame(pcm []byte) {
	opus, err := g.encoder.Encode(audio.LEToInt16(pcm), audio.DiscordFrameSize, maxOpusFrameSize)
	if err != nil {
		g.svc.logger.Warn("Failed to encode playback frame", zap.Error(err))
		return
	}
	if _, err := g.voice.Write(opus); err != nil && g.ctx.Err() == nil {
		g.svc.logger.Debug("Failed to write playback frame", zap.Error(err))
	}
}

// WriteText posts flushed AI text to the session's text channel.
func (g *guildSession) WriteText(_ context.Context, text string) error {
	_, err := g.svc.state.SendMessage(g.textChannelID, text)
	return err
}

// ReportError handles a terminal bridge error. Cleanup runs on its own
// goroutine: the bridge session is still winding down when it reports.
func (g *guildSession) ReportError(err error) {
	go g.svc.handleSessionError(g.guildID, g.textChannelID, err)
}
