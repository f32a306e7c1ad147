package directory

import (
	"fmt"
	"sync"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
	"github.com/wetalk-app/wetalk-sync.git/internal/telemetry"
)

// Fetcher is the collaborator surface the directory needs. Satisfied by
// api.Client; tests supply fakes.
type Fetcher interface {
	FetchContacts(userID string) ([]model.Conversation, error)
	FetchGroups(userID string) ([]model.Conversation, error)
	SetStarred(userID, conversationID string, starred bool) error
	SetArchived(userID, conversationID string, archived bool) error
}

// Directory is the ordered set of all conversations with display metadata.
// Refresh replaces it wholesale from the collaborator; the stored order is
// whatever order the collaborator returned (contacts first, then groups).
// Recency ordering, if wanted, is the presentation layer's job.
type Directory struct {
	fetcher Fetcher
	userID  string

	mu      sync.RWMutex
	order   []string
	entries map[string]*model.Conversation

	// Refresh generations. A completed refresh only applies if no later
	// refresh already did: last-issued wins, not last-completed.
	issued  uint64
	applied uint64

	// stale is set when a refresh fails and the directory keeps serving old
	// entries; the presentation layer surfaces it as a non-fatal banner.
	stale bool
}

func New(fetcher Fetcher, userID string) *Directory {
	return &Directory{
		fetcher: fetcher,
		userID:  userID,
		entries: map[string]*model.Conversation{},
	}
}

// Refresh re-fetches the full contact and group lists and replaces the
// in-memory directory. Idempotent; always wins over any optimistic preview.
func (d *Directory) Refresh() error {
	d.mu.Lock()
	d.issued++
	gen := d.issued
	d.mu.Unlock()

	contacts, err := d.fetcher.FetchContacts(d.userID)
	if err != nil {
		d.markStale(true)
		return fmt.Errorf("refresh contacts: %w", err)
	}
	groups, err := d.fetcher.FetchGroups(d.userID)
	if err != nil {
		d.markStale(true)
		return fmt.Errorf("refresh groups: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen < d.applied {
		telemetry.StaleResponsesDropped.Inc()
		return nil
	}
	d.applied = gen
	d.stale = false

	d.order = d.order[:0]
	d.entries = make(map[string]*model.Conversation, len(contacts)+len(groups))
	for _, list := range [][]model.Conversation{contacts, groups} {
		for i := range list {
			conv := list[i]
			if _, ok := d.entries[conv.ID]; ok {
				continue
			}
			d.order = append(d.order, conv.ID)
			d.entries[conv.ID] = &conv
		}
	}
	telemetry.DirectoryRefreshes.Inc()
	return nil
}

func (d *Directory) markStale(v bool) {
	d.mu.Lock()
	d.stale = v
	d.mu.Unlock()
}

// Stale reports whether the last refresh failed and the entries on hand may
// be out of date.
func (d *Directory) Stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stale
}

// ApplyOptimisticPreview updates one entry's preview without a round trip,
// used right after a local send. The next Refresh overrides it.
func (d *Directory) ApplyOptimisticPreview(conversationID, text string, ts int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conv, ok := d.entries[conversationID]; ok {
		conv.LastPreview = text
		conv.LastActivity = ts
	}
}

// ToggleStar flips the star flag via the collaborator, then refreshes.
func (d *Directory) ToggleStar(conversationID string) error {
	conv, ok := d.Get(conversationID)
	if !ok {
		return fmt.Errorf("toggle star: unknown conversation %q", conversationID)
	}
	if err := d.fetcher.SetStarred(d.userID, conversationID, !conv.Starred); err != nil {
		return err
	}
	return d.Refresh()
}

// ToggleArchive flips the archive flag via the collaborator, then refreshes.
// Archival is a flag, never a removal.
func (d *Directory) ToggleArchive(conversationID string) error {
	conv, ok := d.Get(conversationID)
	if !ok {
		return fmt.Errorf("toggle archive: unknown conversation %q", conversationID)
	}
	if err := d.fetcher.SetArchived(d.userID, conversationID, !conv.Archived); err != nil {
		return err
	}
	return d.Refresh()
}

// IncrementUnread bumps the unread counter for an inbound event addressed to
// a non-active conversation. The next refresh is authoritative.
func (d *Directory) IncrementUnread(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conv, ok := d.entries[conversationID]; ok {
		conv.Unread++
	}
}

// ResetUnread zeroes the unread counter, called on selection.
func (d *Directory) ResetUnread(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conv, ok := d.entries[conversationID]; ok {
		conv.Unread = 0
	}
}

func (d *Directory) Get(conversationID string) (model.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conv, ok := d.entries[conversationID]
	if !ok {
		return model.Conversation{}, false
	}
	return *conv, true
}

// List returns every entry in stored order.
func (d *Directory) List() []model.Conversation {
	return d.filtered(func(model.Conversation) bool { return true })
}

// Chats returns the non-archived view.
func (d *Directory) Chats() []model.Conversation {
	return d.filtered(func(c model.Conversation) bool { return !c.Archived })
}

// Archived returns the archived view.
func (d *Directory) Archived() []model.Conversation {
	return d.filtered(func(c model.Conversation) bool { return c.Archived })
}

func (d *Directory) filtered(keep func(model.Conversation) bool) []model.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Conversation, 0, len(d.order))
	for _, id := range d.order {
		if conv := d.entries[id]; conv != nil && keep(*conv) {
			out = append(out, *conv)
		}
	}
	return out
}

// GroupIDs returns the ids of every group conversation, for room joins.
func (d *Directory) GroupIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.order))
	for _, id := range d.order {
		if conv := d.entries[id]; conv != nil && conv.Kind == model.KindGroup {
			out = append(out, id)
		}
	}
	return out
}

// Reset drops all entries, called on logout.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = nil
	d.entries = map[string]*model.Conversation{}
	d.stale = false
}
