package app

import (
	"sync"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
)

// Conversation is the short-lived per-sender context. It is the only
// cross-request in-memory state the application holds.
type Conversation struct {
	SenderID   string
	LastIntent IntentKind
	RegNumber  string
	LastSeen   time.Time
}

// ContextStore keeps conversation contexts keyed by sender identity with a
// bounded lifetime. Entries past the inactivity window are dropped by Prune,
// which the scheduler invokes periodically.
type ContextStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   deadline.Clock
	items map[string]*Conversation
}

func NewContextStore(ttl time.Duration, now deadline.Clock) *ContextStore {
	if now == nil {
		now = time.Now
	}
	return &ContextStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]*Conversation),
	}
}

// Get returns the live conversation for the sender, creating a fresh one
// when none exists or the previous one expired.
func (s *ContextStore) Get(senderID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv, ok := s.items[senderID]
	if !ok || now.Sub(conv.LastSeen) > s.ttl {
		conv = &Conversation{SenderID: senderID}
		s.items[senderID] = conv
	}
	conv.LastSeen = now
	return conv
}

// Put stores the conversation back, refreshing its activity timestamp.
func (s *ContextStore) Put(conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.LastSeen = s.now()
	s.items[conv.SenderID] = conv
}

// Prune drops every context idle longer than the inactivity window and
// returns how many were removed.
func (s *ContextStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, conv := range s.items {
		if now.Sub(conv.LastSeen) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live contexts.
func (s *ContextStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
