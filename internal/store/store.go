// Package store declares the narrow contracts this service consumes from
// its collaborators: the durable message store, the user directory, the
// session verifier and the media resolver. The coordinator core never
// reaches past these interfaces.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrUnauthenticated is returned for credentials that do not resolve
	// to a stable identity.
	ErrUnauthenticated = errors.New("store: unauthenticated")
)

// MessageStore is the durable message mirror. The in-memory status tracker
// is authoritative; a store failure degrades the affected message to
// in-memory-only operation and is reported as a warning, never as a fatal
// error on the connection.
type MessageStore interface {
	// Persist stores a freshly created message and assigns its ID.
	Persist(ctx context.Context, msg *model.Message) error
	// UpdateStatus mirrors a status transition. Returns ErrNotFound for
	// unknown message IDs.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status, at int64) error
}

// Directory resolves an identity to its profile data.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (model.Peer, error)
}

// SessionVerifier maps inbound credentials to a stable identity.
type SessionVerifier interface {
	Verify(ctx context.Context, credentials string) (uuid.UUID, error)
}

// MediaUpload is an asset attached to an outbound message before creation.
type MediaUpload struct {
	Data     []byte
	MimeType string
	FileName string
}

// MediaResolver turns an uploaded asset into a stable URL. A resolver
// failure must prevent message creation, not silently send text-only.
type MediaResolver interface {
	Resolve(ctx context.Context, upload MediaUpload) (string, error)
}
