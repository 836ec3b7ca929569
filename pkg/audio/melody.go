package audio

import "math"

// Greeting melody: the first two phrases of Ode to Joy, synthesized as
// Discord-format PCM so the bot can announce itself when it joins a voice
// channel.

type note struct {
	freq  float64 // Hz
	beats float64
}

const (
	greetingBPM       = 132
	greetingAmplitude = 0.9
	attackDuration    = 0.01 // seconds
	releaseDuration   = 0.03 // seconds
)

// E E F G | G F E D | C C D E | E. D | D
var greetingMelody = []note{
	{329.63, 1}, {329.63, 1}, {349.23, 1}, {392.00, 1},
	{392.00, 1}, {349.23, 1}, {329.63, 1}, {293.66, 1},
	{261.63, 1}, {261.63, 1}, {293.66, 1}, {329.63, 1},
	{329.63, 1.5}, {293.66, 0.5},
	{293.66, 2},
}

// GreetingPCM renders the greeting melody as 48-kHz interleaved stereo
// int16 PCM bytes, ready for the playback path.
func GreetingPCM() []byte {
	beat := 60.0 / greetingBPM

	var mono []int16
	for _, n := range greetingMelody {
		mono = append(mono, makeNote(n.freq, n.beats*beat)...)
	}
	return Int16ToLE(monoToStereo(mono))
}

// makeNote generates a sine tone with a short attack/release envelope to
// avoid clicks at note boundaries.
func makeNote(freq, duration float64) []int16 {
	n := int(DiscordSampleRate * duration)
	attack := int(DiscordSampleRate * attackDuration)
	release := int(DiscordSampleRate * releaseDuration)

	out := make([]int16, n)
	for i := range out {
		t := float64(i) / DiscordSampleRate
		v := math.Sin(2 * math.Pi * freq * t)

		env := 1.0
		if attack > 0 && i < attack {
			env = float64(i) / float64(attack)
		} else if release > 0 && i >= n-release {
			env = float64(n-1-i) / float64(release)
		}

		out[i] = clipFloat(v * env * greetingAmplitude * 32767)
	}
	return out
}
