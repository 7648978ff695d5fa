package wsmarshaller

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

func TestMarshalMessageEvent(t *testing.T) {
	msg := &model.Message{
		ID:        uuid.New(),
		From:      model.Peer{ID: uuid.New(), Type: model.PeerUser, Name: "Alice"},
		To:        model.Peer{ID: uuid.New(), Type: model.PeerUser},
		Text:      "hi",
		Status:    model.StatusDelivered,
		CreatedAt: 1700000000000,
	}
	ev := model.NewMessageEvent(msg, msg.To.ID)

	data, err := MarshalEvent(ev)
	require.NoError(t, err)

	var wire struct {
		Event   string `json:"event"`
		ID      string `json:"id"`
		SentAt  int64  `json:"sent_at"`
		Payload struct {
			ID     string `json:"id"`
			Text   string `json:"text"`
			Status string `json:"status"`
			From   struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"from"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "message", wire.Event)
	assert.Equal(t, ev.GetID(), wire.ID)
	assert.Equal(t, msg.CreatedAt, wire.SentAt)
	assert.Equal(t, msg.ID.String(), wire.Payload.ID)
	assert.Equal(t, "hi", wire.Payload.Text)
	assert.Equal(t, "delivered", wire.Payload.Status)
	assert.Equal(t, "Alice", wire.Payload.From.Name)
}

func TestMarshalPassesOtherPayloadsThrough(t *testing.T) {
	userID := uuid.New()
	ev := model.NewEvent(userID, model.EventTyping, model.PriorityLow,
		model.TypingPayload{From: userID, IsTyping: true})

	data, err := MarshalEvent(ev)
	require.NoError(t, err)

	var wire struct {
		Event   string `json:"event"`
		Payload struct {
			From     string `json:"from"`
			IsTyping bool   `json:"is_typing"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "typing", wire.Event)
	assert.Equal(t, userID.String(), wire.Payload.From)
	assert.True(t, wire.Payload.IsTyping)
}

func TestOmitEmptyTimestamps(t *testing.T) {
	msg := &model.Message{
		ID:     uuid.New(),
		From:   model.Peer{ID: uuid.New()},
		To:     model.Peer{ID: uuid.New()},
		Text:   "fresh",
		Status: model.StatusSent,
	}
	data, err := MarshalEvent(model.NewMessageEvent(msg, msg.To.ID))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "delivered_at")
	assert.NotContains(t, string(data), "read_at")
}
