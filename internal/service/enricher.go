package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-routing-service/internal/domain/model"
	"github.com/webitel/im-routing-service/internal/store"
	"golang.org/x/sync/errgroup"
)

// Enricher augments conversation participants with directory profile data
// (name, avatar) before a message goes over the wire.
type Enricher interface {
	// ResolvePeers performs concurrent enrichment for both participants.
	ResolvePeers(ctx context.Context, from, to model.Peer) (model.Peer, model.Peer, error)
	// ResolvePeer handles a single participant.
	ResolvePeer(ctx context.Context, peer model.Peer) (model.Peer, error)
}

type ProfileEnricher struct {
	directory store.Directory
	cache     *lru.Cache[string, model.Peer]
}

// NewProfileEnricher provides a thread-safe enricher with an internal LRU
// cache for hot identities.
func NewProfileEnricher(directory store.Directory) *ProfileEnricher {
	cache, _ := lru.New[string, model.Peer](10000)

	return &ProfileEnricher{
		directory: directory,
		cache:     cache,
	}
}

// ResolvePeers runs both lookups in parallel; they complete or fail
// together.
func (e *ProfileEnricher) ResolvePeers(ctx context.Context, from, to model.Peer) (model.Peer, model.Peer, error) {
	g, gCtx := errgroup.WithContext(ctx)

	resFrom := from
	resTo := to

	g.Go(func() error {
		var err error
		resFrom, err = e.ResolvePeer(gCtx, from)
		return err
	})

	g.Go(func() error {
		var err error
		resTo, err = e.ResolvePeer(gCtx, to)
		return err
	})

	if err := g.Wait(); err != nil {
		return from, to, fmt.Errorf("parallel enrichment failed: %w", err)
	}

	return resFrom, resTo, nil
}

// ResolvePeer applies the cache-aside strategy over the directory.
func (e *ProfileEnricher) ResolvePeer(ctx context.Context, peer model.Peer) (model.Peer, error) {
	if peer.ID == uuid.Nil {
		return peer, nil
	}

	cacheKey := peer.ID.String()
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached, nil
	}

	profile, err := e.directory.Resolve(ctx, peer.ID)
	if err != nil {
		// Graceful fallback: keep the message moving with the bare peer.
		return peer, nil
	}

	peer.Name = profile.Name
	peer.Avatar = profile.Avatar
	if profile.Type != 0 {
		peer.Type = profile.Type
	}

	e.cache.Add(cacheKey, peer)
	return peer, nil
}
