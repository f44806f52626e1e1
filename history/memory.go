package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory with per-conversation
// trimming. Used in tests and single-process setups.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message
	maxMessages   int // per conversation, 0 = unbounded
}

// NewMemoryStore creates an in-memory history store. maxMessages bounds
// each conversation; older messages are dropped first. 0 means unbounded.
func NewMemoryStore(maxMessages int) *MemoryStore {
	if maxMessages < 0 {
		maxMessages = 0
	}
	return &MemoryStore{
		conversations: make(map[string][]Message),
		maxMessages:   maxMessages,
	}
}

func conversationKey(userID, sessionID string) string {
	return userID + "\x00" + NormalizeSessionID(sessionID)
}

// Append adds a message to the (userID, sessionID) conversation.
func (s *MemoryStore) Append(ctx context.Context, userID, sessionID string, msg Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := conversationKey(userID, sessionID)
	msgs := append(s.conversations[key], msg)
	if s.maxMessages > 0 && len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	s.conversations[key] = msgs
	return nil
}

// Recent returns up to count most recent messages in chronological order.
func (s *MemoryStore) Recent(ctx context.Context, userID, sessionID string, count int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conversations[conversationKey(userID, sessionID)]
	if count > 0 && len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear removes the (userID, sessionID) conversation.
func (s *MemoryStore) Clear(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationKey(userID, sessionID))
	return nil
}

// ConversationCount returns the number of tracked conversations.
func (s *MemoryStore) ConversationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)
