package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-routing-service/internal/domain/model"
)

// enricherMiddleware adds observability to the enrichment process without
// touching the business logic.
type enricherMiddleware struct {
	next   Enricher
	logger *slog.Logger
}

func (m *enricherMiddleware) ResolvePeers(ctx context.Context, from, to model.Peer) (model.Peer, model.Peer, error) {
	start := time.Now()

	f, t, err := m.next.ResolvePeers(ctx, from, to)

	duration := time.Since(start)
	if err != nil {
		m.logger.Error("peer enrichment batch failed",
			"err", err,
			"from_id", from.ID,
			"to_id", to.ID,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.logger.Debug("peer enrichment batch completed",
			"duration_ms", duration.Milliseconds(),
		)
	}

	return f, t, err
}

func (m *enricherMiddleware) ResolvePeer(ctx context.Context, peer model.Peer) (model.Peer, error) {
	start := time.Now()

	res, err := m.next.ResolvePeer(ctx, peer)
	if err != nil {
		m.logger.Warn("single peer enrichment failed",
			"peer_id", peer.ID,
			"peer_type", peer.Type,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return res, err
}
