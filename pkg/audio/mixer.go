package audio

import (
	"sync"
)

// Mixer combines per-participant capture streams into a single Discord
// frame per period. Each participant has a bounded pending queue fed from
// the capture callback; Mix drains at most one frame per contributor,
// averages the floating-point sum over the participants that actually
// contributed, clips, and returns silence when nobody did.
//
// Adding or removing a participant only affects the set considered for
// subsequent periods; it never aborts a mix already in progress.
type Mixer struct {
	mu       sync.Mutex
	pending  map[string][]Frame
	capacity int
}

// NewMixer creates a Mixer whose per-participant queues hold at most
// capacity frames. On overflow the oldest pending frame is discarded to
// admit the newest, favouring low latency over completeness.
func NewMixer(capacity int) *Mixer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mixer{
		pending:  make(map[string][]Frame),
		capacity: capacity,
	}
}

// Submit appends one captured frame for the participant. Non-blocking:
// when the participant's queue is full the oldest frame is dropped.
// Reports whether a frame was dropped.
func (m *Mixer) Submit(participant string, frame Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.pending[participant]
	dropped := false
	if len(q) >= m.capacity {
		q = q[1:]
		dropped = true
	}
	m.pending[participant] = append(q, frame)
	return dropped
}

// Remove forgets a participant and discards any frames still pending for
// them.
func (m *Mixer) Remove(participant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, participant)
}

// Pending returns the number of frames queued for the participant.
func (m *Mixer) Pending(participant string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[participant])
}

// Mix produces the next 20-ms frame. Contributors are the participants
// holding at least one pending frame at the moment of the call; the output
// is their per-sample float average, hard-clipped to the int16 range.
// With zero contributors the output is silence. The result always spans
// exactly one frame period: odd-length contributions are zero-padded or
// truncated so the uplink clock never runs dry.
func (m *Mixer) Mix() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	var contributors []Frame
	for id, q := range m.pending {
		if len(q) == 0 {
			continue
		}
		contributors = append(contributors, q[0])
		if len(q) == 1 {
			delete(m.pending, id)
		} else {
			m.pending[id] = q[1:]
		}
	}

	if len(contributors) == 0 {
		return SilenceDiscordFrame()
	}
	if len(contributors) == 1 {
		return normalizeFrame(contributors[0])
	}

	sum := make([]float64, DiscordFrameSamples)
	for _, f := range contributors {
		for i, s := range f.PCM {
			if i >= len(sum) {
				break
			}
			sum[i] += float64(s)
		}
	}

	mixed := make([]int16, DiscordFrameSamples)
	n := float64(len(contributors))
	for i, v := range sum {
		mixed[i] = clipFloat(v / n)
	}
	return NewDiscordFrame(mixed)
}

// normalizeFrame pads or truncates a frame to exactly one frame period.
// The uplink requires a full frame every tick; a short capture frame must
// not leave the encoder staging mid-frame with nothing to send.
func normalizeFrame(f Frame) Frame {
	if len(f.PCM) == DiscordFrameSamples {
		return f
	}
	pcm := make([]int16, DiscordFrameSamples)
	copy(pcm, f.PCM)
	return NewDiscordFrame(pcm)
}

// clipFloat converts a float sample to int16, clamping out-of-range values
// rather than letting them wrap.
func clipFloat(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
