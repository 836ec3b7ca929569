package bridge

import (
	"sync"
)

// FrameQueue is a bounded FIFO of PCM frames shared between the session pumps
// and the playback loop.
type FrameQueue struct {
	mu       sync.Mutex
	frames   [][]byte
	capacity int
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	return &FrameQueue{capacity: capacity}
}

// PushDropOldest appends the frame, evicting the oldest one when full.
// It reports whether an eviction occurred.
func (q *FrameQueue) PushDropOldest(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	if len(q.frames) >= q.capacity {
		q.frames = q.frames[1:]
		dropped = true
	}
	q.frames = append(q.frames, frame)
	return dropped
}

// PushDropNewest appends the frame unless the queue is full, in which case the
// frame is discarded. It reports whether the frame was discarded.
func (q *FrameQueue) PushDropNewest(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) >= q.capacity {
		return true
	}
	q.frames = append(q.frames, frame)
	return false
}

// Poll removes and returns the oldest frame, or nil when the queue is empty.
func (q *FrameQueue) Poll() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
