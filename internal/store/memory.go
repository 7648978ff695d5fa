package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

// In-memory collaborator implementations. They back tests and standalone
// runs; production deployments swap them for the platform's storage,
// contact and media services through the same interfaces.

var (
	_ MessageStore    = (*MemoryMessageStore)(nil)
	_ Directory       = (*MemoryDirectory)(nil)
	_ SessionVerifier = (*MemoryVerifier)(nil)
	_ MediaResolver   = (*MemoryMediaResolver)(nil)
)

type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]model.Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[uuid.UUID]model.Message)}
}

func (s *MemoryMessageStore) Persist(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	s.messages[msg.ID] = *msg
	return nil
}

func (s *MemoryMessageStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.Status, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Status = status
	switch status {
	case model.StatusDelivered:
		msg.DeliveredAt = at
	case model.StatusRead:
		msg.ReadAt = at
	}
	s.messages[id] = msg
	return nil
}

// Get is a test helper; the coordinator itself never reads messages back.
func (s *MemoryMessageStore) Get(id uuid.UUID) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	return msg, ok
}

type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]model.Peer
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[uuid.UUID]model.Peer)}
}

func (d *MemoryDirectory) Put(peer model.Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[peer.ID] = peer
}

func (d *MemoryDirectory) Resolve(_ context.Context, id uuid.UUID) (model.Peer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peer, ok := d.profiles[id]
	if !ok {
		return model.Peer{}, ErrNotFound
	}
	return peer, nil
}

// MemoryVerifier resolves static bearer tokens. Convenient for tests and
// local runs; real deployments verify platform-issued session tokens.
type MemoryVerifier struct {
	mu     sync.RWMutex
	tokens map[string]uuid.UUID
}

func NewMemoryVerifier() *MemoryVerifier {
	return &MemoryVerifier{tokens: make(map[string]uuid.UUID)}
}

func (v *MemoryVerifier) Grant(token string, id uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = id
}

func (v *MemoryVerifier) Verify(_ context.Context, credentials string) (uuid.UUID, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	id, ok := v.tokens[credentials]
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

// MemoryMediaResolver stamps uploads with a synthetic stable URL.
type MemoryMediaResolver struct{}

func NewMemoryMediaResolver() *MemoryMediaResolver { return &MemoryMediaResolver{} }

func (r *MemoryMediaResolver) Resolve(_ context.Context, upload MediaUpload) (string, error) {
	if len(upload.Data) == 0 {
		return "", fmt.Errorf("media resolver: empty upload")
	}
	return fmt.Sprintf("mem://media/%s/%s", uuid.NewString(), upload.FileName), nil
}
