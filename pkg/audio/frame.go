package audio

import "fmt"

// Frame is one immutable buffer of interleaved 16-bit PCM samples, tagged
// with its sample rate and channel count. Frames are created by a capture
// callback or by backend decode, consumed exactly once by the converter,
// then discarded.
type Frame struct {
	Rate     int
	Channels int
	PCM      []int16
}

// NewDiscordFrame wraps pcm as a Discord-format frame (48 kHz interleaved
// stereo). The sample count does not have to match one nominal frame
// period: capture batches covering several periods are sliced later by the
// converter.
func NewDiscordFrame(pcm []int16) Frame {
	return Frame{Rate: DiscordSampleRate, Channels: DiscordChannels, PCM: pcm}
}

// SilenceDiscordFrame returns one 20-ms Discord frame of silence.
func SilenceDiscordFrame() Frame {
	return NewDiscordFrame(make([]int16, DiscordFrameSamples))
}

// SamplesPerChannel reports the frame length in samples per channel.
func (f Frame) SamplesPerChannel() int {
	if f.Channels == 0 {
		return 0
	}
	return len(f.PCM) / f.Channels
}

func (f Frame) validateDiscord() error {
	if f.Rate != DiscordSampleRate || f.Channels != DiscordChannels {
		return fmt.Errorf("%w: want %d Hz %d ch, got %d Hz %d ch",
			ErrConversionFailure, DiscordSampleRate, DiscordChannels, f.Rate, f.Channels)
	}
	if len(f.PCM)%DiscordChannels != 0 {
		return fmt.Errorf("%w: pcm length %d not a whole number of sample pairs",
			ErrConversionFailure, len(f.PCM))
	}
	return nil
}
