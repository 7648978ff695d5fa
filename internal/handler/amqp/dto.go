package amqp

import (
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

// MessageV1 is the payload published by sibling services when a message
// is created outside this node (REST API, bots, integrations).
type MessageV1 struct {
	MessageID  string `json:"message_id"`
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`
	Body       string `json:"body"`
	MediaURL   string `json:"media_url,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

func (d *MessageV1) ToDomain() *model.Message {
	return &model.Message{
		ID:        safeParseUUID(d.MessageID),
		From:      model.NewPeer(safeParseUUID(d.FromID), model.PeerUser),
		To:        model.NewPeer(safeParseUUID(d.ToID), model.PeerUser),
		Text:      d.Body,
		MediaURL:  d.MediaURL,
		CreatedAt: safeParseRFC3339(d.OccurredAt),
	}
}

func safeParseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func safeParseRFC3339(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}
