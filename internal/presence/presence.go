package presence

import "sync"

// BlockPolicy decides what happens to inbound events from a blocked
// conversation.
type BlockPolicy int

const (
	// BlockStoreAndShow keeps storing and showing inbound messages from
	// blocked conversations; blocking only disables the send affordance and
	// call initiation.
	BlockStoreAndShow BlockPolicy = iota
	// BlockDrop discards inbound events from blocked conversations entirely.
	BlockDrop
)

// Predicates holds the derived per-conversation boolean sets. Muting is
// purely presentational; blocking gates the send affordance. Both live for
// the session only.
type Predicates struct {
	policy BlockPolicy

	mu      sync.RWMutex
	muted   map[string]bool
	blocked map[string]bool
}

func New(policy BlockPolicy) *Predicates {
	return &Predicates{
		policy:  policy,
		muted:   map[string]bool{},
		blocked: map[string]bool{},
	}
}

func (p *Predicates) Mute(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted[conversationID] = true
}

func (p *Predicates) Unmute(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.muted, conversationID)
}

func (p *Predicates) IsMuted(conversationID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muted[conversationID]
}

func (p *Predicates) Block(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked[conversationID] = true
}

func (p *Predicates) Unblock(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blocked, conversationID)
}

func (p *Predicates) IsBlocked(conversationID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blocked[conversationID]
}

func (p *Predicates) Policy() BlockPolicy {
	return p.policy
}

// Reset clears both sets, called on logout.
func (p *Predicates) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = map[string]bool{}
	p.blocked = map[string]bool{}
}
