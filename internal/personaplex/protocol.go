// Package personaplex implements the wire protocol and websocket client for
// the PersonaPlex speech-to-speech backend.
package personaplex

import (
	"errors"
	"fmt"
)

// MessageType is the single-byte tag prefixing every frame on the wire.
type MessageType byte

const (
	// MessageHandshake is sent once by the server when the model is ready.
	MessageHandshake MessageType = 0x00
	// MessageAudio carries an Opus packet in either direction.
	MessageAudio MessageType = 0x01
	// MessageText carries a UTF-8 text fragment from the server.
	MessageText MessageType = 0x02
)

// ErrMalformedMessage indicates a frame that does not follow the tag-prefixed
// layout or carries an unknown tag.
var ErrMalformedMessage = errors.New("malformed personaplex message")

// Encode prepends the type tag to the payload, producing a wire frame.
func Encode(kind MessageType, payload []byte) []byte {
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(kind)
	copy(frame[1:], payload)
	return frame
}

// Decode splits a wire frame into its type tag and payload. The payload
// aliases the input frame.
func Decode(frame []byte) (MessageType, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}
	kind := MessageType(frame[0])
	switch kind {
	case MessageHandshake, MessageAudio, MessageText:
		return kind, frame[1:], nil
	default:
		return 0, nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrMalformedMessage, frame[0])
	}
}
