// Package bridge orchestrates the audio path between a Discord voice channel
// and a PersonaPlex session: mixing participants, pacing uplink frames, and
// buffering downlink audio and text.
package bridge

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/internal/personaplex"
	"github.com/discordplex/discordplex/pkg/audio"
)

var (
	// ErrBusy indicates a session is already active.
	ErrBusy = errors.New("bridge session already active")
	// ErrNoSession indicates no session is active.
	ErrNoSession = errors.New("no active bridge session")
)

// BackendClient is the PersonaPlex connection surface the bridge drives.
type BackendClient interface {
	Audio() <-chan []byte
	Text() <-chan string
	SendAudio(ctx context.Context, opus []byte) error
	Close() error
}

// DialFunc establishes a backend connection with the given prompts.
type DialFunc func(ctx context.Context, textPrompt, voicePrompt string) (BackendClient, error)

// TextSink receives flushed AI text for display.
type TextSink interface {
	WriteText(ctx context.Context, text string) error
}

// ErrorSink receives terminal session errors.
type ErrorSink interface {
	ReportError(err error)
}

// Bridge owns at most one live session at a time. The backend dedicates its
// model to a single connection, so a second start is rejected rather than
// queued.
type Bridge struct {
	logger *zap.Logger
	cfg    *config.Config
	dial   DialFunc

	mu       sync.Mutex
	session  *session
	starting bool
}

// New creates a Bridge using the given dial function.
func New(logger *zap.Logger, cfg *config.Config, dial DialFunc) *Bridge {
	return &Bridge{
		logger: logger.Named("bridge"),
		cfg:    cfg,
		dial:   dial,
	}
}

// NewBridge creates a Bridge backed by the PersonaPlex dialer.
func NewBridge(logger *zap.Logger, cfg *config.Config, dialer *personaplex.Dialer) *Bridge {
	return New(logger, cfg, func(ctx context.Context, textPrompt, voicePrompt string) (BackendClient, error) {
		return dialer.Dial(ctx, textPrompt, voicePrompt)
	})
}

// StartSession dials the backend and starts the audio pumps. It returns
// ErrBusy while a previous session is still active or another start is
// mid-dial; the slot is claimed before dialing so the backend never sees
// two connection attempts from one bridge.
func (b *Bridge) StartSession(ctx context.Context, textPrompt, voicePrompt string, texts TextSink, errs ErrorSink) error {
	b.mu.Lock()
	if b.starting || (b.session != nil && !b.session.closed()) {
		b.mu.Unlock()
		return ErrBusy
	}
	b.starting = true
	b.mu.Unlock()

	client, err := b.dial(ctx, textPrompt, voicePrompt)
	if err != nil {
		b.release()
		return err
	}

	s, err := newSession(b.logger, b.cfg, client, texts, errs)
	if err != nil {
		client.Close()
		b.release()
		return err
	}

	b.mu.Lock()
	b.session = s
	b.starting = false
	b.mu.Unlock()

	s.start()
	b.logger.Info("Bridge session started", zap.String("voice_prompt", voicePrompt))
	return nil
}

// release frees the session slot after a failed start.
func (b *Bridge) release() {
	b.mu.Lock()
	b.starting = false
	b.mu.Unlock()
}

// StopSession tears down the active session and waits for its pumps to exit.
func (b *Bridge) StopSession() error {
	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}
	s.stop()
	b.logger.Info("Bridge session stopped")
	return nil
}

// Active reports whether a session is currently live.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil && !b.session.closed()
}

// Submit feeds one participant's captured frame into the active session.
// Frames arriving while no session is live are discarded.
func (b *Bridge) Submit(participant string, frame audio.Frame) {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()

	if s == nil || s.closed() {
		return
	}
	s.submit(participant, frame)
}

// RemoveParticipant discards any pending audio for a departed participant.
func (b *Bridge) RemoveParticipant(participant string) {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()

	if s == nil {
		return
	}
	s.mixer.Remove(participant)
}

// Poll returns the next 20 ms playback frame, or a silence frame when the
// session has nothing buffered. Playback must keep a steady cadence either way.
func (b *Bridge) Poll() []byte {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()

	if s == nil {
		return audio.SilenceFrame()
	}
	if frame := s.output.Poll(); frame != nil {
		return frame
	}
	return audio.SilenceFrame()
}
