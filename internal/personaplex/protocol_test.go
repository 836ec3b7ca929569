package personaplex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discordplex/discordplex/internal/personaplex"
)

func TestEncode(t *testing.T) {
	tests := map[string]struct {
		kind    personaplex.MessageType
		payload []byte
		want    []byte
	}{
		"audio packet": {
			kind:    personaplex.MessageAudio,
			payload: []byte{0xde, 0xad, 0xbe, 0xef},
			want:    []byte{0x01, 0xde, 0xad, 0xbe, 0xef},
		},
		"empty payload": {
			kind:    personaplex.MessageHandshake,
			payload: nil,
			want:    []byte{0x00},
		},
		"text fragment": {
			kind:    personaplex.MessageText,
			payload: []byte("hello"),
			want:    append([]byte{0x02}, []byte("hello")...),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, personaplex.Encode(tc.kind, tc.payload))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := map[string]struct {
		frame       []byte
		wantKind    personaplex.MessageType
		wantPayload []byte
		wantErr     bool
	}{
		"audio frame": {
			frame:       []byte{0x01, 0x01, 0x02},
			wantKind:    personaplex.MessageAudio,
			wantPayload: []byte{0x01, 0x02},
		},
		"handshake without payload": {
			frame:       []byte{0x00},
			wantKind:    personaplex.MessageHandshake,
			wantPayload: []byte{},
		},
		"text frame": {
			frame:       append([]byte{0x02}, []byte("hi")...),
			wantKind:    personaplex.MessageText,
			wantPayload: []byte("hi"),
		},
		"empty frame": {
			frame:   nil,
			wantErr: true,
		},
		"unknown tag": {
			frame:   []byte{0x7f, 0x01},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			kind, payload, err := personaplex.Decode(tc.frame)
			if tc.wantErr {
				require.ErrorIs(t, err, personaplex.ErrMalformedMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, kind)
			assert.Equal(t, tc.wantPayload, payload)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	kind, got, err := personaplex.Decode(personaplex.Encode(personaplex.MessageAudio, payload))
	require.NoError(t, err)
	assert.Equal(t, personaplex.MessageAudio, kind)
	assert.Equal(t, payload, got)
}
