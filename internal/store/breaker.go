package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

var _ MessageStore = (*BreakerStore)(nil)

// BreakerStore decorates a MessageStore with a circuit breaker. Status
// transitions happen on every routed message; when the store is down the
// breaker fails fast instead of burning a timeout per transition, and the
// router degrades to in-memory operation. The tracker stays authoritative,
// so callers log the divergence and carry on.
type BreakerStore struct {
	next    MessageStore
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerStore(next MessageStore) *BreakerStore {
	return &BreakerStore{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "message-store",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *BreakerStore) Persist(ctx context.Context, msg *model.Message) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.next.Persist(ctx, msg)
	})
	return err
}

func (s *BreakerStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status, at int64) error {
	res, err := s.breaker.Execute(func() (any, error) {
		err := s.next.UpdateStatus(ctx, id, status, at)
		if errors.Is(err, ErrNotFound) {
			// A miss is an answer, not a store outage; it must not
			// count toward tripping the breaker.
			return err, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	if resErr, ok := res.(error); ok {
		return resErr
	}
	return nil
}
