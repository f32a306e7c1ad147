package rooms

import (
	"fmt"
	"sync"
)

// Joiner is the channel-side join operation.
type Joiner interface {
	Join(room string) error
}

// Membership tracks which rooms this session has joined: the self identity
// room plus one room per group. A room must be joined before inbound events
// addressed to it are guaranteed deliverable.
type Membership struct {
	joiner Joiner

	mu     sync.Mutex
	joined map[string]bool
}

func New(joiner Joiner) *Membership {
	return &Membership{joiner: joiner, joined: map[string]bool{}}
}

// JoinSelf joins the identity's own room, once per session start.
func (m *Membership) JoinSelf(identityID string) error {
	return m.join(identityID)
}

// JoinAll joins every listed group room, called after each directory group
// refresh. Already-joined rooms are skipped.
func (m *Membership) JoinAll(groupIDs []string) error {
	for _, id := range groupIDs {
		if err := m.join(id); err != nil {
			return err
		}
	}
	return nil
}

// JoinNew joins a freshly created group's room, synchronously before the
// creation result is surfaced anywhere.
func (m *Membership) JoinNew(groupID string) error {
	return m.join(groupID)
}

// Joined reports whether a room is currently joined.
func (m *Membership) Joined(room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined[room]
}

// RejoinAll replays the join for every tracked room after a reconnect.
func (m *Membership) RejoinAll() error {
	m.mu.Lock()
	all := make([]string, 0, len(m.joined))
	for room := range m.joined {
		all = append(all, room)
	}
	m.mu.Unlock()

	for _, room := range all {
		if err := m.joiner.Join(room); err != nil {
			return fmt.Errorf("rejoin %q: %w", room, err)
		}
	}
	return nil
}

// Reset forgets all memberships, called on logout.
func (m *Membership) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = map[string]bool{}
}

func (m *Membership) join(room string) error {
	if room == "" {
		return fmt.Errorf("join: empty room id")
	}
	m.mu.Lock()
	already := m.joined[room]
	m.mu.Unlock()
	if already {
		return nil
	}
	if err := m.joiner.Join(room); err != nil {
		return fmt.Errorf("join %q: %w", room, err)
	}
	m.mu.Lock()
	m.joined[room] = true
	m.mu.Unlock()
	return nil
}
