package model

import "github.com/google/uuid"

//go:generate stringer -type=PeerType
type PeerType int16

const (
	// Start from 1 to distinguish from uninitialized data.
	PeerUser PeerType = iota + 1
	PeerBot
)

// Peer is a conversation participant, optionally enriched with
// profile data from the directory collaborator.
type Peer struct {
	ID     uuid.UUID `json:"id"`
	Type   PeerType  `json:"type"`
	Name   string    `json:"name,omitempty"`
	Avatar string    `json:"avatar,omitempty"`
}

func NewPeer(id uuid.UUID, t PeerType) Peer {
	return Peer{ID: id, Type: t}
}

// Message is the core conversation entity. Its Status field is owned by the
// in-memory status tracker; the durable store mirrors it best-effort.
type Message struct {
	ID          uuid.UUID `json:"id"`
	From        Peer      `json:"from"`
	To          Peer      `json:"to"`
	Text        string    `json:"text,omitempty"`
	MediaURL    string    `json:"media_url,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   int64     `json:"created_at"`
	DeliveredAt int64     `json:"delivered_at,omitempty"`
	ReadAt      int64     `json:"read_at,omitempty"`
}

// HasMedia reports whether the message carries a resolved media reference.
func (m *Message) HasMedia() bool { return m.MediaURL != "" }
