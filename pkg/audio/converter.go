package audio

import (
	"errors"
	"fmt"

	"layeh.com/gopus"
)

// ErrConversionFailure wraps codec and resampling errors. A conversion
// failure is fatal to the stream that produced it: the codec state can no
// longer be trusted.
var ErrConversionFailure = errors.New("audio conversion failure")

const (
	plexBitrate      = 48_000
	maxOpusFrameSize = 4000
)

// Converter translates between Discord-format PCM frames and the
// PersonaPlex Opus bitstream.
//
// ───────────────────────────── pipeline ─────────────────────────────
// Discord 48 k stereo ─▶ downmix ─▶ 2:1 decimate ─▶ stage ─▶ Opus 24 k mono
//
//	◀─ split 20 ms ◀─ upmix ◀─ 2x interpolate ◀─ Opus decode ◀─┘
//
// Stateless across calls except for the streaming codec buffers: the
// encoder stages 24-kHz samples until a full Opus frame is available, and
// the decode side keeps the partial Discord frame left over from each call
// so it can be prefixed onto the next call's output. Not safe for
// concurrent use; each session owns one Converter.
type Converter struct {
	enc *gopus.Encoder
	dec *gopus.Decoder

	// 24-kHz mono samples waiting for a complete encoder frame.
	encStage []int16

	// Partial Discord frame carried over between FromBackend calls.
	playback []byte
}

func NewConverter() (*Converter, error) {
	enc, err := gopus.NewEncoder(PlexSampleRate, PlexChannels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	enc.SetBitrate(plexBitrate)

	dec, err := gopus.NewDecoder(PlexSampleRate, PlexChannels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	return &Converter{enc: enc, dec: dec}, nil
}

// ToBackend converts one captured Discord frame (or a batch spanning
// several frame periods) into zero or more PersonaPlex Opus packets.
// An empty result is not an error: the encoder emits a packet only once a
// complete 480-sample frame has been staged, and platform frames do not
// have to map 1:1 onto encoder frame boundaries.
func (c *Converter) ToBackend(frame Frame) ([][]byte, error) {
	if err := frame.validateDiscord(); err != nil {
		return nil, err
	}

	// Batches are sliced into nominal 20-ms frames before resampling.
	for off := 0; off < len(frame.PCM); off += DiscordFrameSamples {
		end := off + DiscordFrameSamples
		if end > len(frame.PCM) {
			end = len(frame.PCM)
		}
		mono := stereoToMono(frame.PCM[off:end])
		c.encStage = append(c.encStage, decimate2(mono)...)
	}

	var packets [][]byte
	for len(c.encStage) >= PlexFrameSize {
		pcm := c.encStage[:PlexFrameSize]
		packet, err := c.enc.Encode(pcm, PlexFrameSize, maxOpusFrameSize)
		if err != nil {
			return nil, fmt.Errorf("%w: opus encode: %v", ErrConversionFailure, err)
		}
		c.encStage = c.encStage[PlexFrameSize:]
		packets = append(packets, packet)
	}
	if len(c.encStage) == 0 {
		c.encStage = nil
	}

	return packets, nil
}

// FromBackend converts one PersonaPlex Opus packet into zero or more
// complete Discord frames of DiscordFrameBytes each. Output that does not
// fill a whole frame is buffered and prefixed onto the next call, never
// dropped or zero-padded. An empty packet is a no-op.
func (c *Converter) FromBackend(opus []byte) ([][]byte, error) {
	if len(opus) == 0 {
		return nil, nil
	}

	mono24, err := c.dec.Decode(opus, PlexFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("%w: opus decode: %v", ErrConversionFailure, err)
	}
	if len(mono24) == 0 {
		return nil, nil
	}

	stereo := monoToStereo(interpolate2(mono24))
	c.playback = append(c.playback, Int16ToLE(stereo)...)

	var frames [][]byte
	for len(c.playback) >= DiscordFrameBytes {
		frame := make([]byte, DiscordFrameBytes)
		copy(frame, c.playback[:DiscordFrameBytes])
		frames = append(frames, frame)
		c.playback = c.playback[DiscordFrameBytes:]
	}
	if len(c.playback) == 0 {
		c.playback = nil
	}

	return frames, nil
}

// decimate2 halves the sample rate by averaging adjacent samples, which
// doubles as a basic anti-aliasing filter.
func decimate2(src []int16) []int16 {
	dst := make([]int16, len(src)/2)
	for i := range dst {
		dst[i] = int16((int32(src[2*i]) + int32(src[2*i+1])) / 2)
	}
	return dst
}

// interpolate2 doubles the sample rate, filling the inserted positions by
// linear interpolation between neighbours.
func interpolate2(src []int16) []int16 {
	dst := make([]int16, len(src)*2)
	for i, v := range src {
		dst[2*i] = v
		if i+1 < len(src) {
			dst[2*i+1] = saturateInt16((int32(v) + int32(src[i+1])) / 2)
		} else {
			dst[2*i+1] = v
		}
	}
	return dst
}
