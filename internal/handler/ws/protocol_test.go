package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"event":"send","payload":{"to":"x","text":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "send", frame.Event)

	_, err = decodeFrame([]byte(`{"payload":{}}`))
	assert.Error(t, err, "event is mandatory")

	_, err = decodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeSendPayloadWithMedia(t *testing.T) {
	// "aGVsbG8=" is base64("hello"); encoding/json decodes []byte fields.
	frame, err := decodeFrame([]byte(`{
		"event": "send",
		"payload": {
			"to": "7d5e0d3e-7a33-4de4-b973-5a0dcf3ec7b0",
			"text": "look",
			"media": {"data": "aGVsbG8=", "mime_type": "text/plain", "file_name": "a.txt"}
		}
	}`))
	require.NoError(t, err)

	payload, err := decodePayload[sendPayload](frame)
	require.NoError(t, err)
	assert.Equal(t, "look", payload.Text)
	require.NotNil(t, payload.Media)
	assert.Equal(t, []byte("hello"), payload.Media.Data)
	assert.Equal(t, "text/plain", payload.Media.MimeType)
}

func TestDecodePayloadRejectsMalformed(t *testing.T) {
	frame := &Frame{Event: "typing", Payload: []byte(`{"is_typing": "yes"}`)}
	_, err := decodePayload[typingPayload](frame)
	assert.Error(t, err)
}
