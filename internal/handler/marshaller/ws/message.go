package wsmarshaller

import "github.com/webitel/im-routing-service/internal/domain/model"

type WSPeer struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type WSMessage struct {
	ID          string `json:"id"`
	From        WSPeer `json:"from"`
	To          WSPeer `json:"to"`
	Text        string `json:"text,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	DeliveredAt int64  `json:"delivered_at,omitempty"`
	ReadAt      int64  `json:"read_at,omitempty"`
}

func mapPeer(p model.Peer) WSPeer {
	return WSPeer{
		ID:     p.ID.String(),
		Name:   p.Name,
		Avatar: p.Avatar,
	}
}

func mapMessage(m *model.Message) *WSMessage {
	return &WSMessage{
		ID:          m.ID.String(),
		From:        mapPeer(m.From),
		To:          mapPeer(m.To),
		Text:        m.Text,
		MediaURL:    m.MediaURL,
		Status:      m.Status.String(),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
}
