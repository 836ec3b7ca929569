package bridge_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/discordplex/discordplex/internal/bridge"
	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/pkg/audio"
)

// fakeClient stands in for a PersonaPlex connection in pump tests.
type fakeClient struct {
	audio chan []byte
	text  chan string
	sent  chan []byte

	closeOnce sync.Once
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		audio: make(chan []byte, 100),
		text:  make(chan string, 50),
		sent:  make(chan []byte, 1000),
	}
}

func (f *fakeClient) Audio() <-chan []byte { return f.audio }
func (f *fakeClient) Text() <-chan string  { return f.text }

func (f *fakeClient) SendAudio(_ context.Context, opus []byte) error {
	select {
	case f.sent <- opus:
	default:
	}
	return nil
}

func (f *fakeClient) Close() error {
	f.closeOnce.Do(func() {
		close(f.audio)
		close(f.text)
	})
	return nil
}

type recordingTextSink struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingTextSink) WriteText(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingTextSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type recordingErrorSink struct {
	errs chan error
}

func (r *recordingErrorSink) ReportError(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

func testBridgeConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Bridge.InputQueueFrames = 50
	cfg.Bridge.OutputQueueFrames = 200
	cfg.Bridge.TextFlushRunes = 50
	return cfg
}

func startTestBridge(t *testing.T) (*bridge.Bridge, *fakeClient, *recordingTextSink, *recordingErrorSink) {
	t.Helper()

	client := newFakeClient()
	first := true
	var dialMu sync.Mutex
	b := bridge.New(zaptest.NewLogger(t), testBridgeConfig(),
		func(ctx context.Context, textPrompt, voicePrompt string) (bridge.BackendClient, error) {
			dialMu.Lock()
			defer dialMu.Unlock()
			if first {
				first = false
				return client, nil
			}
			return newFakeClient(), nil
		})

	texts := &recordingTextSink{}
	errs := &recordingErrorSink{errs: make(chan error, 1)}
	require.NoError(t, b.StartSession(context.Background(), "prompt", "voice", texts, errs))
	t.Cleanup(func() { b.StopSession() })

	return b, client, texts, errs
}

func TestBridge_SingleSession(t *testing.T) {
	b, _, _, _ := startTestBridge(t)

	err := b.StartSession(context.Background(), "p", "v", nil, nil)
	require.ErrorIs(t, err, bridge.ErrBusy)

	require.NoError(t, b.StopSession())
	assert.False(t, b.Active())

	require.ErrorIs(t, b.StopSession(), bridge.ErrNoSession)
}

func TestBridge_StartWhileConnectingIsBusy(t *testing.T) {
	dialGate := make(chan struct{})
	var dials atomic.Int32
	b := bridge.New(zaptest.NewLogger(t), testBridgeConfig(),
		func(ctx context.Context, textPrompt, voicePrompt string) (bridge.BackendClient, error) {
			dials.Add(1)
			<-dialGate
			return newFakeClient(), nil
		})

	started := make(chan error, 1)
	go func() {
		started <- b.StartSession(context.Background(), "p", "v", nil, nil)
	}()
	require.Eventually(t, func() bool {
		return dials.Load() == 1
	}, time.Second, time.Millisecond)

	// The first start is still mid-dial; the backend must not see a
	// second connection attempt.
	require.ErrorIs(t, b.StartSession(context.Background(), "p", "v", nil, nil), bridge.ErrBusy)

	close(dialGate)
	require.NoError(t, <-started)
	assert.Equal(t, int32(1), dials.Load())
	require.NoError(t, b.StopSession())
}

func TestBridge_DialFailureReleasesSlot(t *testing.T) {
	failFirst := true
	b := bridge.New(zaptest.NewLogger(t), testBridgeConfig(),
		func(ctx context.Context, textPrompt, voicePrompt string) (bridge.BackendClient, error) {
			if failFirst {
				failFirst = false
				return nil, errors.New("connection refused")
			}
			return newFakeClient(), nil
		})

	require.Error(t, b.StartSession(context.Background(), "p", "v", nil, nil))
	require.NoError(t, b.StartSession(context.Background(), "p", "v", nil, nil))
	require.NoError(t, b.StopSession())
}

func TestBridge_UplinkPacesFrames(t *testing.T) {
	_, client, _, _ := startTestBridge(t)

	// Even with no participant audio, the uplink must emit encoded silence
	// at the frame cadence.
	for i := 0; i < 3; i++ {
		select {
		case pkt := <-client.sent:
			assert.NotEmpty(t, pkt)
		case <-time.After(time.Second):
			t.Fatal("uplink produced no packet within a second")
		}
	}
}

func TestBridge_ParticipantAudioReachesUplink(t *testing.T) {
	b, client, _, _ := startTestBridge(t)

	frame := audio.SilenceDiscordFrame()
	for i := range frame.PCM {
		frame.PCM[i] = int16((i*7919)%28000 - 14000)
	}
	for i := 0; i < 10; i++ {
		b.Submit("user-1", frame)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case pkt := <-client.sent:
			// Encoded non-silence is noticeably larger than encoded silence.
			if len(pkt) > 10 {
				return
			}
		case <-deadline:
			t.Fatal("uplink never emitted a non-silent packet")
		}
	}
}

func TestBridge_DownlinkAudioReachesPoll(t *testing.T) {
	b, client, _, _ := startTestBridge(t)

	// Build real backend packets by encoding a loud tone through the
	// uplink path of a second converter.
	conv, err := audio.NewConverter()
	require.NoError(t, err)
	frame := audio.SilenceDiscordFrame()
	for i := range frame.PCM {
		frame.PCM[i] = 16000
	}
	for i := 0; i < 10; i++ {
		packets, err := conv.ToBackend(frame)
		require.NoError(t, err)
		for _, pkt := range packets {
			client.audio <- pkt
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		pcm := b.Poll()
		require.Len(t, pcm, audio.DiscordFrameBytes)
		for _, sample := range pcm {
			if sample != 0 {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("poll never returned a non-silent frame")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBridge_PollWithoutSession(t *testing.T) {
	b := bridge.New(zaptest.NewLogger(t), testBridgeConfig(),
		func(ctx context.Context, textPrompt, voicePrompt string) (bridge.BackendClient, error) {
			return newFakeClient(), nil
		})

	pcm := b.Poll()
	require.Len(t, pcm, audio.DiscordFrameBytes)
	for _, sample := range pcm {
		assert.Zero(t, sample)
	}
}

func TestBridge_TextFlushedAtWordBoundary(t *testing.T) {
	_, client, texts, _ := startTestBridge(t)

	client.text <- "Hel"
	client.text <- "lo "

	require.Eventually(t, func() bool {
		all := texts.all()
		return len(all) == 1 && all[0] == "Hello "
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_TextFlushedWhenLong(t *testing.T) {
	_, client, texts, _ := startTestBridge(t)

	// No whitespace anywhere, flushed only once the buffer grows long.
	for i := 0; i < 10; i++ {
		client.text <- "aaaaaa"
	}

	require.Eventually(t, func() bool {
		return len(texts.all()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, len(texts.all()[0]), 50)
}

func TestBridge_ConversionFailureEndsSession(t *testing.T) {
	b, client, _, errs := startTestBridge(t)

	// An undecodable packet corrupts the downlink stream; the session must
	// report it and terminate rather than keep playing.
	client.audio <- []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03}

	select {
	case err := <-errs.errs:
		require.ErrorIs(t, err, audio.ErrConversionFailure)
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported for an undecodable packet")
	}
	require.Eventually(t, func() bool {
		return !b.Active()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_TextFlushCountsRunes(t *testing.T) {
	_, client, texts, _ := startTestBridge(t)

	// Multibyte fragments with no whitespace: the long-buffer flush must
	// wait for 50 characters, not 50 bytes.
	for i := 0; i < 17; i++ {
		client.text <- "ééé"
	}

	require.Eventually(t, func() bool {
		return len(texts.all()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(texts.all()[0]), 50)
}

func TestBridge_ServerDisconnectEndsSession(t *testing.T) {
	b, client, _, errs := startTestBridge(t)

	client.Close()

	select {
	case err := <-errs.errs:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported after server disconnect")
	}

	require.Eventually(t, func() bool {
		return !b.Active()
	}, 2*time.Second, 10*time.Millisecond)
}
