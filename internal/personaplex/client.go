package personaplex

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/config"
)

var (
	// ErrConnectionRefused indicates the backend could not be reached.
	ErrConnectionRefused = errors.New("personaplex connection refused")
	// ErrHandshakeTimeout indicates the server did not signal readiness in time.
	ErrHandshakeTimeout = errors.New("personaplex handshake timeout")
	// ErrClientClosed indicates an operation on a closed or failed connection.
	ErrClientClosed = errors.New("personaplex client closed")
)

const (
	audioQueueSize = 100
	textQueueSize  = 50
)

// Dialer establishes PersonaPlex sessions. One Dial produces one Client; the
// server dedicates its model to a single connection at a time.
type Dialer struct {
	logger           *zap.Logger
	baseURL          string
	handshakeTimeout time.Duration
	httpClient       *http.Client
}

// Option customizes a Dialer.
type Option func(*Dialer)

// WithBaseURL overrides the endpoint the dialer connects to.
func WithBaseURL(u string) Option {
	return func(d *Dialer) { d.baseURL = u }
}

// WithHandshakeTimeout overrides how long Dial waits for the server's
// handshake frame.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(d *Dialer) { d.handshakeTimeout = timeout }
}

// NewDialer creates a Dialer from the application configuration. The backend
// serves a self-signed certificate, so certificate verification is disabled
// for its connections only.
func NewDialer(logger *zap.Logger, cfg *config.Config, opts ...Option) *Dialer {
	d := &Dialer{
		logger:           logger.Named("personaplex"),
		baseURL:          cfg.PersonaPlex.URL,
		handshakeTimeout: time.Duration(cfg.PersonaPlex.HandshakeTimeoutSeconds) * time.Second,
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects to the backend with the given prompts and waits for the
// handshake frame. The returned Client is ready for audio exchange.
func (d *Dialer) Dial(ctx context.Context, textPrompt, voicePrompt string) (*Client, error) {
	wsURL, err := sessionURL(d.baseURL, textPrompt, voicePrompt)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: d.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}
	conn.SetReadLimit(-1)

	if err := awaitHandshake(ctx, conn, d.handshakeTimeout); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return nil, err
	}

	clientCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		logger: d.logger,
		conn:   conn,
		audio:  make(chan []byte, audioQueueSize),
		text:   make(chan string, textQueueSize),
		ctx:    clientCtx,
		cancel: cancel,
	}
	go c.receiveLoop()

	d.logger.Info("PersonaPlex session established",
		zap.String("url", d.baseURL),
		zap.String("voice_prompt", voicePrompt))
	return c, nil
}

// sessionURL appends the prompt query parameters to the base endpoint.
func sessionURL(base, textPrompt, voicePrompt string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	q := u.Query()
	q.Set("text_prompt", textPrompt)
	q.Set("voice_prompt", voicePrompt)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// awaitHandshake blocks until the server sends its handshake frame. The
// server loads model state before signalling, which can take most of a
// minute on cold start.
func awaitHandshake(ctx context.Context, conn *websocket.Conn, timeout time.Duration) error {
	handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, frame, err := conn.Read(handshakeCtx)
	if err != nil {
		if handshakeCtx.Err() != nil && ctx.Err() == nil {
			return ErrHandshakeTimeout
		}
		return fmt.Errorf("read handshake: %w", err)
	}

	kind, _, err := Decode(frame)
	if err != nil {
		return err
	}
	if kind != MessageHandshake {
		return fmt.Errorf("%w: expected handshake, got tag 0x%02x", ErrMalformedMessage, byte(kind))
	}
	return nil
}

// Client is a live PersonaPlex connection. Audio and text received from the
// server are delivered on the Audio and Text channels; both close when the
// connection ends.
type Client struct {
	logger *zap.Logger
	conn   *websocket.Conn
	audio  chan []byte
	text   chan string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Audio returns the channel of Opus packets produced by the server.
func (c *Client) Audio() <-chan []byte {
	return c.audio
}

// Text returns the channel of text fragments produced by the server.
func (c *Client) Text() <-chan string {
	return c.text
}

// SendAudio writes one Opus packet to the server.
func (c *Client) SendAudio(ctx context.Context, opus []byte) error {
	if c.ctx.Err() != nil {
		return ErrClientClosed
	}
	if err := c.conn.Write(ctx, websocket.MessageBinary, Encode(MessageAudio, opus)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrClientClosed, err)
	}
	return nil
}

// receiveLoop reads frames from the websocket and routes them by tag. It owns
// the audio and text channels and closes both when it exits.
func (c *Client) receiveLoop() {
	defer close(c.audio)
	defer close(c.text)

	for {
		_, frame, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Debug("PersonaPlex connection closed", zap.Error(err))
			}
			return
		}

		kind, payload, err := Decode(frame)
		if err != nil {
			c.logger.Warn("Dropping malformed backend frame", zap.Error(err))
			continue
		}

		switch kind {
		case MessageAudio:
			data := make([]byte, len(payload))
			copy(data, payload)
			select {
			case c.audio <- data:
			case <-c.ctx.Done():
				return
			}
		case MessageText:
			select {
			case c.text <- string(payload):
			case <-c.ctx.Done():
				return
			}
		case MessageHandshake:
			// Already completed during Dial; ignore duplicates.
		}
	}
}

// Close terminates the connection and releases resources. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}
