package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/webitel/im-routing-service/internal/domain/model"
	"github.com/webitel/im-routing-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-routing-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-routing-service/internal/service"
	"github.com/webitel/im-routing-service/internal/store"
)

const (
	registerWait = 10 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	verifier  store.SessionVerifier
	enricher  service.Enricher
	media     store.MediaResolver
	upgrader  websocket.Upgrader
}

func NewWSHandler(
	logger *slog.Logger,
	deliverer service.Deliverer,
	verifier store.SessionVerifier,
	enricher service.Enricher,
	media store.MediaResolver,
) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		verifier:  verifier,
		enricher:  enricher,
		media:     media,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer sock.Close()

	// Registration phase: the first frame must carry credentials. The
	// connection exists but receives no routed traffic until the identity
	// is verified.
	userID, err := h.awaitRegistration(r.Context(), sock)
	if err != nil {
		h.logger.Warn("ws registration failed", "err", err)
		h.writeDirect(sock, model.NewEvent(uuid.Nil, model.EventError, model.PriorityNormal,
			model.ErrorPayload{Code: "unauthenticated", Reason: err.Error()}))
		return
	}

	conn, err := h.deliverer.Subscribe(r.Context(), userID)
	if err != nil {
		h.logger.Error("subscription rejected", "user_id", userID, "err", err)
		return
	}
	defer h.deliverer.Unsubscribe(userID, conn.GetID())

	l := h.logger.With("user_id", userID, "conn_id", conn.GetID())
	l.Info("ws session established")

	// Handshake acknowledgement goes through the same send queue as
	// routed traffic, so it precedes nothing it shouldn't.
	conn.Send(model.NewEvent(userID, model.EventConnected, model.PriorityHigh, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  conn.GetID().String(),
		ServerVersion: model.ServerVersion,
	}), writeWait)

	go h.writePump(l, sock, conn)
	h.readPump(r.Context(), l, sock, conn)

	l.Info("ws session closed")
}

func (h *WSHandler) awaitRegistration(ctx context.Context, sock *websocket.Conn) (uuid.UUID, error) {
	_ = sock.SetReadDeadline(time.Now().Add(registerWait))

	_, data, err := sock.ReadMessage()
	if err != nil {
		return uuid.Nil, err
	}
	frame, err := decodeFrame(data)
	if err != nil {
		return uuid.Nil, err
	}
	if frame.Event != frameRegister {
		return uuid.Nil, errors.New("first frame must be register")
	}
	payload, err := decodePayload[registerPayload](frame)
	if err != nil {
		return uuid.Nil, err
	}

	return h.verifier.Verify(ctx, payload.Token)
}

// writePump bridges the connection's send queue onto the wire and keeps
// the transport alive with pings.
func (h *WSHandler) writePump(l *slog.Logger, sock *websocket.Conn, conn registry.Connector) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			// Superseded by a newer registration or evicted by the
			// sweeper: say goodbye and drop the transport.
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = h.writeDirect(sock, model.NewEvent(conn.GetUserID(), model.EventError, model.PriorityHigh,
				model.DisconnectedPayload{Reason: "session_closed_by_server"}))
			_ = sock.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "superseded"))
			_ = sock.Close()
			return

		case ev := <-conn.Recv():
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.writeDirect(sock, ev); err != nil {
				l.Warn("ws send failed", "err", err)
				_ = sock.Close()
				return
			}

		case <-ticker.C:
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = sock.Close()
				return
			}
		}
	}
}

func (h *WSHandler) writeDirect(sock *websocket.Conn, ev model.Eventer) error {
	data, err := wsmarshaller.MarshalEvent(ev)
	if err != nil {
		return err
	}
	return sock.WriteMessage(websocket.TextMessage, data)
}

// readPump decodes inbound frames and dispatches them. Malformed frames
// get an error notice; the connection stays open.
func (h *WSHandler) readPump(ctx context.Context, l *slog.Logger, sock *websocket.Conn, conn registry.Connector) {
	userID := conn.GetUserID()

	_ = sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		conn.Touch()
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Warn("ws read failed", "err", err)
			}
			return
		}
		conn.Touch()
		_ = sock.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := decodeFrame(data)
		if err != nil {
			h.notifyError(conn, "bad_frame", err)
			continue
		}

		switch frame.Event {
		case frameRegister:
			h.notifyError(conn, "already_registered", errors.New("connection already bound to an identity"))
		case frameSend:
			h.handleSend(ctx, userID, conn, frame)
		case frameMarkRead:
			h.handleMarkRead(ctx, userID, conn, frame)
		case frameTyping:
			h.handleTyping(userID, conn, frame)
		default:
			h.notifyError(conn, "unknown_event", errors.New("unsupported event "+frame.Event))
		}
	}
}

func (h *WSHandler) handleSend(ctx context.Context, userID uuid.UUID, conn registry.Connector, frame *Frame) {
	payload, err := decodePayload[sendPayload](frame)
	if err != nil {
		h.notifyError(conn, "bad_frame", err)
		return
	}
	to, err := uuid.Parse(payload.To)
	if err != nil {
		h.notifyError(conn, "missing_recipient", errors.New("recipient id is required"))
		return
	}
	if payload.Text == "" && payload.Media == nil {
		h.notifyError(conn, "empty_message", errors.New("message needs text or media"))
		return
	}

	msg := &model.Message{
		From:      model.NewPeer(userID, model.PeerUser),
		To:        model.NewPeer(to, model.PeerUser),
		Text:      payload.Text,
		CreatedAt: time.Now().UnixMilli(),
	}

	// Media resolution happens before message creation. A resolver
	// failure aborts the send; it never degrades to text-only.
	if payload.Media != nil {
		url, err := h.media.Resolve(ctx, store.MediaUpload{
			Data:     payload.Media.Data,
			MimeType: payload.Media.MimeType,
			FileName: payload.Media.FileName,
		})
		if err != nil {
			h.notifyError(conn, "media_failed", err)
			return
		}
		msg.MediaURL = url
	}

	// Enrichment is best-effort; bare peers still deliver.
	if from, toPeer, err := h.enricher.ResolvePeers(ctx, msg.From, msg.To); err == nil {
		msg.From, msg.To = from, toPeer
	}

	if _, err := h.deliverer.Route(ctx, msg); err != nil {
		h.notifyError(conn, routeErrorCode(err), err)
	}
}

func (h *WSHandler) handleMarkRead(ctx context.Context, userID uuid.UUID, conn registry.Connector, frame *Frame) {
	payload, err := decodePayload[markReadPayload](frame)
	if err != nil {
		h.notifyError(conn, "bad_frame", err)
		return
	}
	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		h.notifyError(conn, "unknown_message", errors.New("message id is required"))
		return
	}

	if err := h.deliverer.MarkRead(ctx, userID, messageID); err != nil {
		h.notifyError(conn, routeErrorCode(err), err)
	}
}

func (h *WSHandler) handleTyping(userID uuid.UUID, conn registry.Connector, frame *Frame) {
	payload, err := decodePayload[typingPayload](frame)
	if err != nil {
		h.notifyError(conn, "bad_frame", err)
		return
	}
	to, err := uuid.Parse(payload.To)
	if err != nil {
		h.notifyError(conn, "missing_recipient", errors.New("recipient id is required"))
		return
	}
	h.deliverer.Typing(userID, to, payload.IsTyping)
}

func routeErrorCode(err error) string {
	var stateErr *service.StateError
	switch {
	case errors.Is(err, service.ErrAlreadyRouted):
		return "duplicate_message"
	case errors.Is(err, service.ErrUnknownMessage):
		return "unknown_message"
	case errors.Is(err, service.ErrNotRecipient):
		return "not_recipient"
	case errors.As(err, &stateErr):
		return "state_conflict"
	default:
		return "route_failed"
	}
}

func (h *WSHandler) notifyError(conn registry.Connector, code string, err error) {
	conn.Send(model.NewEvent(conn.GetUserID(), model.EventError, model.PriorityNormal,
		model.ErrorPayload{Code: code, Reason: err.Error()}), writeWait)
}
