package ws

import (
	"encoding/json"
	"fmt"
)

// Inbound frame types. The first frame on every connection must be
// "register"; everything else is rejected until registration completes.
const (
	frameRegister = "register"
	frameSend     = "send"
	frameMarkRead = "mark_read"
	frameTyping   = "typing"
)

// Frame is the generic envelope for inbound WebSocket messages.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type registerPayload struct {
	Token string `json:"token"`
}

type mediaPayload struct {
	// Data is base64 on the wire (encoding/json []byte convention).
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

type sendPayload struct {
	To    string        `json:"to"`
	Text  string        `json:"text"`
	Media *mediaPayload `json:"media,omitempty"`
}

type markReadPayload struct {
	MessageID string `json:"message_id"`
}

type typingPayload struct {
	To       string `json:"to"`
	IsTyping bool   `json:"is_typing"`
}

func decodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame without event")
	}
	return &f, nil
}

func decodePayload[T any](f *Frame) (*T, error) {
	payload := new(T)
	if err := json.Unmarshal(f.Payload, payload); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", f.Event, err)
	}
	return payload, nil
}
