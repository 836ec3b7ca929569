package audio

import (
	"bytes"
	"encoding/binary"
)

// Int16ToLE converts int16 samples to raw little-endian bytes.
func Int16ToLE(samples []int16) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

// LEToInt16 converts raw little-endian bytes back to int16 samples.
func LEToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &out)
	return out
}

func stereoToMono(st []int16) []int16 {
	n := len(st) / 2
	dst := make([]int16, n)
	for i := 0; i < n; i++ {
		dst[i] = int16((int32(st[2*i]) + int32(st[2*i+1])) / 2)
	}
	return dst
}

func monoToStereo(m []int16) []int16 {
	dst := make([]int16, len(m)*2)
	for i, v := range m {
		dst[2*i], dst[2*i+1] = v, v
	}
	return dst
}

// saturateInt16 clamps v to the valid int16 range.
func saturateInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

var silence = make([]byte, DiscordFrameBytes)

// SilenceFrame returns one 20-ms Discord frame of silence. The returned
// slice is shared; callers must not modify it.
func SilenceFrame() []byte {
	return silence
}
