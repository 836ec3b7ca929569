package audio

import "time"

// Format constants shared by the converter, mixer and platform adapter layers.
const (
	// Discord side.
	DiscordSampleRate   = 48_000 // Hz
	DiscordChannels     = 2      // interleaved stereo
	DiscordFrameSize    = 960    // samples per channel (20 ms)
	DiscordFrameSamples = DiscordFrameSize * DiscordChannels
	DiscordFrameBytes   = DiscordFrameSamples * 2 // 16-bit PCM

	// PersonaPlex side.
	PlexSampleRate = 24_000 // Hz
	PlexChannels   = 1
	PlexFrameSize  = 480 // samples (20 ms)

	// FrameDuration is the nominal period of one audio frame on both sides.
	FrameDuration = 20 * time.Millisecond
)
