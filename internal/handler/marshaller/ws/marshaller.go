package wsmarshaller

import (
	"encoding/json"

	"github.com/webitel/im-routing-service/internal/domain/model"
)

// WSEvent is the generic envelope for outbound WebSocket frames.
type WSEvent struct {
	Event   string `json:"event"`
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshalEvent prepares a delivery event for WebSocket transmission.
func MarshalEvent(ev model.Eventer) ([]byte, error) {
	res := &WSEvent{
		Event:  ev.GetKind().String(),
		ID:     ev.GetID(),
		SentAt: ev.GetOccurredAt(),
	}

	switch p := ev.GetPayload().(type) {
	case *model.Message:
		res.Payload = mapMessage(p)
	default:
		res.Payload = p
	}

	return json.Marshal(res)
}
