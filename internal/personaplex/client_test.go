package personaplex_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/internal/personaplex"
)

// wsURL converts an httptest server URL to a websocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startBackend launches a test websocket server. The handler receives the
// accepted connection; the server closes when the test finishes.
func startBackend(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFrame(t *testing.T, conn *websocket.Conn, kind personaplex.MessageType, payload []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, personaplex.Encode(kind, payload)))
}

func newTestDialer(t *testing.T, srv *httptest.Server, opts ...personaplex.Option) *personaplex.Dialer {
	t.Helper()
	cfg := &config.Config{}
	cfg.PersonaPlex.URL = wsURL(srv)
	cfg.PersonaPlex.HandshakeTimeoutSeconds = 3
	return personaplex.NewDialer(zaptest.NewLogger(t), cfg, opts...)
}

func TestDial_Handshake(t *testing.T) {
	prompts := make(chan [2]string, 1)

	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		q := r.URL.Query()
		prompts <- [2]string{q.Get("text_prompt"), q.Get("voice_prompt")}
		writeFrame(t, conn, personaplex.MessageHandshake, nil)
		<-conn.CloseRead(context.Background()).Done()
	})

	client, err := newTestDialer(t, srv).Dial(context.Background(), "Be brief.", "NATM2.pt")
	require.NoError(t, err)
	defer client.Close()

	got := <-prompts
	assert.Equal(t, "Be brief.", got[0])
	assert.Equal(t, "NATM2.pt", got[1])
}

func TestDial_HandshakeTimeout(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		// Never send the handshake.
		<-conn.CloseRead(context.Background()).Done()
	})

	dialer := newTestDialer(t, srv, personaplex.WithHandshakeTimeout(100*time.Millisecond))
	_, err := dialer.Dial(context.Background(), "p", "v")
	require.ErrorIs(t, err, personaplex.ErrHandshakeTimeout)
}

func TestDial_ConnectionRefused(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {})
	srv.Close()

	_, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.ErrorIs(t, err, personaplex.ErrConnectionRefused)
}

func TestDial_UnexpectedFirstFrame(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		writeFrame(t, conn, personaplex.MessageAudio, []byte{0x01})
		<-conn.CloseRead(context.Background()).Done()
	})

	_, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.Error(t, err)
}

func TestClient_RoutesAudioAndText(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		writeFrame(t, conn, personaplex.MessageHandshake, nil)
		writeFrame(t, conn, personaplex.MessageAudio, []byte{0xaa, 0xbb})
		writeFrame(t, conn, personaplex.MessageText, []byte("Hello "))
		writeFrame(t, conn, personaplex.MessageAudio, []byte{0xcc})
		<-conn.CloseRead(context.Background()).Done()
	})

	client, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.NoError(t, err)
	defer client.Close()

	select {
	case pkt := <-client.Audio():
		assert.Equal(t, []byte{0xaa, 0xbb}, pkt)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for first audio packet")
	}

	select {
	case text := <-client.Text():
		assert.Equal(t, "Hello ", text)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for text fragment")
	}

	select {
	case pkt := <-client.Audio():
		assert.Equal(t, []byte{0xcc}, pkt)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for second audio packet")
	}
}

func TestClient_DropsMalformedFrames(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		writeFrame(t, conn, personaplex.MessageHandshake, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		// Unknown tag; the client must skip it and keep reading.
		require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{0x7f, 0x00}))

		writeFrame(t, conn, personaplex.MessageText, []byte("still here"))
		<-conn.CloseRead(context.Background()).Done()
	})

	client, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.NoError(t, err)
	defer client.Close()

	select {
	case text := <-client.Text():
		assert.Equal(t, "still here", text)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for text after malformed frame")
	}
}

func TestClient_SendAudio(t *testing.T) {
	received := make(chan []byte, 1)

	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		writeFrame(t, conn, personaplex.MessageHandshake, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return
		}
		received <- frame
	})

	client, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SendAudio(context.Background(), []byte{0x11, 0x22}))

	select {
	case frame := <-received:
		kind, payload, err := personaplex.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, personaplex.MessageAudio, kind)
		assert.Equal(t, []byte{0x11, 0x22}, payload)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for audio frame at server")
	}
}

func TestClient_ChannelsCloseOnServerDisconnect(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		writeFrame(t, conn, personaplex.MessageHandshake, nil)
		conn.Close(websocket.StatusNormalClosure, "going away")
	})

	client, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.NoError(t, err)
	defer client.Close()

	select {
	case _, ok := <-client.Audio():
		assert.False(t, ok, "audio channel should close")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for audio channel close")
	}

	select {
	case _, ok := <-client.Text():
		assert.False(t, ok, "text channel should close")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for text channel close")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	srv := startBackend(t, func(conn *websocket.Conn, r *http.Request) {
		writeFrame(t, conn, personaplex.MessageHandshake, nil)
		<-conn.CloseRead(context.Background()).Done()
	})

	client, err := newTestDialer(t, srv).Dial(context.Background(), "p", "v")
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	err = client.SendAudio(context.Background(), []byte{0x01})
	require.ErrorIs(t, err, personaplex.ErrClientClosed)
}

func TestDial_SelfSignedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		writeFrame(t, conn, personaplex.MessageHandshake, nil)
		<-conn.CloseRead(context.Background()).Done()
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.PersonaPlex.URL = "wss" + strings.TrimPrefix(srv.URL, "https")
	cfg.PersonaPlex.HandshakeTimeoutSeconds = 3

	client, err := personaplex.NewDialer(zaptest.NewLogger(t), cfg).Dial(context.Background(), "p", "v")
	require.NoError(t, err)
	client.Close()
}
