package store

import (
	"sync"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

// Store holds the per-conversation ordered message log. Append order is
// receipt order; entries are never reordered by timestamp (in-order delivery
// from the channel is assumed).
type Store struct {
	mu   sync.RWMutex
	logs map[string][]model.Message
}

func New() *Store {
	return &Store{logs: map[string][]model.Message{}}
}

// Replace swaps in a freshly fetched history for one conversation. Full
// replace, not merge: optimistic entries that have not round-tripped are
// dropped.
func (s *Store) Replace(conversationID string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[conversationID] = append([]model.Message(nil), msgs...)
}

// Append adds one message to the end of a conversation's log.
func (s *Store) Append(conversationID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[conversationID] = append(s.logs[conversationID], msg)
}

// Get returns the ordered log, empty if never loaded.
func (s *Store) Get(conversationID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.logs[conversationID]...)
}

// Confirm flips the pending optimistic entry carrying correlationID to
// confirmed. Returns false when no such entry exists, in which case the
// caller appends the event as a plain inbound message.
func (s *Store) Confirm(conversationID, correlationID string) bool {
	if correlationID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[conversationID]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Origin == model.OriginOptimistic && log[i].CorrelationID == correlationID {
			log[i].Origin = model.OriginConfirmed
			return true
		}
	}
	return false
}

// Clear empties one conversation's log.
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[conversationID] = nil
}

// Reset drops every log, called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = map[string][]model.Message{}
}
