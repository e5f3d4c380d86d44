// Package history persists short widget conversation history. Each session
// holds an ordered {role, content} sequence under a single fixed key, capped
// to the most recent entries on every save: append-then-truncate, not a
// sliding-window eviction. Anything beyond the cap is silently dropped.
package history

import (
	"context"
	"sync"

	"lucy-support-gateway/models"
)

// DefaultLimit is how many entries survive a save.
const DefaultLimit = 10

// StorageKey is the fixed key name conversation history lives under. The
// Redis store suffixes it with the session id.
const StorageKey = "lucy_chat_history"

// Store is session-scoped history persistence. Load of an unknown session
// returns an empty slice, not an error. Save is read-modify-write with no
// cross-process lock; concurrent writers race and the last one wins.
type Store interface {
	Load(ctx context.Context, session string) ([]models.ChatMessage, error)
	Save(ctx context.Context, session string, msgs []models.ChatMessage) error
}

// Truncate keeps the most recent limit entries, unconditionally.
func Truncate(msgs []models.ChatMessage, limit int) []models.ChatMessage {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}

// MemoryStore keeps history in process memory. Used in tests and when no
// Redis is configured.
type MemoryStore struct {
	mu       sync.Mutex
	limit    int
	sessions map[string][]models.ChatMessage
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{
		limit:    limit,
		sessions: make(map[string][]models.ChatMessage),
	}
}

func (s *MemoryStore) Load(_ context.Context, session string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sessions[session]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, session string, msgs []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := Truncate(msgs, s.limit)
	stored := make([]models.ChatMessage, len(kept))
	copy(stored, kept)
	s.sessions[session] = stored
	return nil
}
