package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wetalk-app/wetalk-sync.git/internal/directory"
	"github.com/wetalk-app/wetalk-sync.git/internal/logger"
	"github.com/wetalk-app/wetalk-sync.git/internal/model"
	"github.com/wetalk-app/wetalk-sync.git/internal/presence"
	"github.com/wetalk-app/wetalk-sync.git/internal/rooms"
	"github.com/wetalk-app/wetalk-sync.git/internal/store"
	"github.com/wetalk-app/wetalk-sync.git/internal/telemetry"
)

var (
	// ErrNoActiveConversation is returned by Send when nothing is selected.
	ErrNoActiveConversation = errors.New("no active conversation")
	// ErrBlocked is returned by Send when the active conversation is blocked.
	ErrBlocked = errors.New("conversation is blocked")
)

// Emitter is the outbound side of the channel client.
type Emitter interface {
	Join(room string) error
	Send(event string, payload any) error
}

// Collaborator is the HTTP surface the engine consumes directly. The
// directory holds its own narrower view of the same client.
type Collaborator interface {
	FetchDirectHistory(selfID, peerID string) ([]model.Message, error)
	FetchGroupHistory(groupID string) ([]model.Message, error)
	CreateGroup(name, creatorID string, memberIDs []string) (model.Conversation, error)
	AddContact(userID, peerID string) (model.Conversation, error)
	MarkRead(userID, conversationID string) error
	UpdateProfile(userID, displayName string, settings model.Settings) (model.Session, error)
}

// Engine reconciles optimistic local sends with server-confirmed events and
// keeps the directory and message logs in step with the channel.
type Engine struct {
	emitter Emitter
	collab  Collaborator
	dir     *directory.Directory
	store   *store.Store
	rooms   *rooms.Membership
	preds   *presence.Predicates

	mu      sync.Mutex
	session model.Session
	active  string // empty means no selection

	now   func() int64
	newID func() string
}

func New(session model.Session, emitter Emitter, collab Collaborator,
	dir *directory.Directory, st *store.Store, rm *rooms.Membership, pr *presence.Predicates) *Engine {
	return &Engine{
		emitter: emitter,
		collab:  collab,
		dir:     dir,
		store:   st,
		rooms:   rm,
		preds:   pr,
		session: session,
		now:     func() int64 { return time.Now().UnixMilli() },
		newID:   uuid.NewString,
	}
}

// Start brings the session online: join the self room, populate the
// directory, then join every group room it lists.
func (e *Engine) Start() error {
	if err := e.rooms.JoinSelf(e.Session().IdentityID); err != nil {
		return err
	}
	if err := e.dir.Refresh(); err != nil {
		return err
	}
	return e.rooms.JoinAll(e.dir.GroupIDs())
}

// Session returns the current session snapshot.
func (e *Engine) Session() model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Active returns the selected conversation id, or false when none is.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active != ""
}

// Send emits a message to the active conversation and appends the matching
// optimistic entry. The returned message is the appended entry.
func (e *Engine) Send(text string) (model.Message, error) {
	active, ok := e.Active()
	if !ok {
		return model.Message{}, ErrNoActiveConversation
	}
	if e.preds.IsBlocked(active) {
		return model.Message{}, ErrBlocked
	}
	conv, ok := e.dir.Get(active)
	if !ok {
		return model.Message{}, fmt.Errorf("active conversation %q missing from directory", active)
	}

	ts := e.now()
	payload := model.SendPayload{
		CorrelationID: e.newID(),
		SenderID:      e.Session().IdentityID,
		Text:          text,
		Time:          ts,
	}
	if conv.Kind == model.KindGroup {
		payload.GroupID = active
	} else {
		payload.ReceiverID = active
	}

	if err := e.emitter.Send(model.EventSendMessage, payload); err != nil {
		return model.Message{}, fmt.Errorf("emit send_message: %w", err)
	}

	msg := model.Message{
		ConversationID: active,
		SenderID:       payload.SenderID,
		Text:           text,
		Time:           ts,
		Origin:         model.OriginOptimistic,
		CorrelationID:  payload.CorrelationID,
	}
	e.store.Append(active, msg)
	e.dir.ApplyOptimisticPreview(active, text, ts)
	telemetry.MessagesSent.Inc()
	return msg, nil
}

// HandleReceive is the receive_message channel handler.
func (e *Engine) HandleReceive(data json.RawMessage) {
	var p model.ReceivePayload
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Log.Warn("bad receive_message payload", "err", err)
		return
	}
	e.handleInbound(p)
}

func (e *Engine) handleInbound(p model.ReceivePayload) {
	src := p.SourceID()
	if e.preds.IsBlocked(src) && e.preds.Policy() == presence.BlockDrop {
		return
	}

	self := e.Session().IdentityID
	active, _ := e.Active()

	switch {
	case src == active && src != "":
		// An echo of our own send flips its optimistic entry to confirmed;
		// anything else is appended as a new confirmed message.
		if !e.store.Confirm(src, p.CorrelationID) {
			e.store.Append(src, model.Message{
				ConversationID: src,
				SenderID:       p.SenderID,
				Text:           p.Text,
				Time:           p.Time,
				Origin:         model.OriginConfirmed,
				CorrelationID:  p.CorrelationID,
			})
		}
	case p.SenderID == self && p.CorrelationID != "":
		// A direct-send echo lands in our own room, so its source id is our
		// identity, not the conversation. The payload carries no receiver
		// id; best effort is to reconcile against the selected log.
		if active != "" {
			e.store.Confirm(active, p.CorrelationID)
		}
	case p.SenderID != self:
		e.dir.IncrementUnread(src)
	}

	// Previews and unread counts for any conversation may have moved.
	if err := e.dir.Refresh(); err != nil {
		logger.Log.Warn("directory refresh after inbound event failed", "err", err)
	}
}

// Select makes a conversation active: loads its history (replacing any
// optimistic leftovers), ensures group room membership, and clears unread.
func (e *Engine) Select(conversationID string) error {
	conv, ok := e.dir.Get(conversationID)
	if !ok {
		return fmt.Errorf("select: unknown conversation %q", conversationID)
	}

	e.mu.Lock()
	e.active = conversationID
	e.mu.Unlock()

	if conv.Kind == model.KindGroup {
		if err := e.rooms.JoinNew(conv.ID); err != nil {
			return err
		}
	}

	e.dir.ResetUnread(conversationID)
	if err := e.collab.MarkRead(e.Session().IdentityID, conversationID); err != nil {
		logger.Log.Warn("mark read failed", "conversation", conversationID, "err", err)
	}

	return e.loadHistory(conv)
}

// loadHistory fetches and applies a conversation's log. The result is
// discarded if the selection moved while the fetch was in flight.
func (e *Engine) loadHistory(conv model.Conversation) error {
	var msgs []model.Message
	var err error
	if conv.Kind == model.KindGroup {
		msgs, err = e.collab.FetchGroupHistory(conv.ID)
	} else {
		msgs, err = e.collab.FetchDirectHistory(e.Session().IdentityID, conv.ID)
	}
	if err != nil {
		return fmt.Errorf("load history for %q: %w", conv.ID, err)
	}

	if active, _ := e.Active(); active != conv.ID {
		telemetry.StaleResponsesDropped.Inc()
		return nil
	}

	for i := range msgs {
		msgs[i].ConversationID = conv.ID
		if msgs[i].Origin == "" {
			msgs[i].Origin = model.OriginConfirmed
		}
	}
	e.store.Replace(conv.ID, msgs)
	return nil
}

// CreateGroup creates a group, joins its room before surfacing it, then
// refreshes the directory and selects the new group.
func (e *Engine) CreateGroup(name string, memberIDs []string) (model.Conversation, error) {
	grp, err := e.collab.CreateGroup(name, e.Session().IdentityID, memberIDs)
	if err != nil {
		return model.Conversation{}, err
	}
	// Membership must exist before the group shows up anywhere, or events
	// for it could be undeliverable.
	if err := e.rooms.JoinNew(grp.ID); err != nil {
		return model.Conversation{}, err
	}
	if err := e.dir.Refresh(); err != nil {
		return model.Conversation{}, err
	}
	if err := e.Select(grp.ID); err != nil {
		return model.Conversation{}, err
	}
	return grp, nil
}

// AddContact registers a new direct conversation, refreshes and selects it.
func (e *Engine) AddContact(peerID string) (model.Conversation, error) {
	conv, err := e.collab.AddContact(e.Session().IdentityID, peerID)
	if err != nil {
		return model.Conversation{}, err
	}
	if err := e.dir.Refresh(); err != nil {
		return model.Conversation{}, err
	}
	if err := e.Select(conv.ID); err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

// ClearChat empties the local log for a conversation.
func (e *Engine) ClearChat(conversationID string) {
	e.store.Clear(conversationID)
}

// UpdateProfile submits a profile change and replaces the session snapshot
// on success.
func (e *Engine) UpdateProfile(displayName string, settings model.Settings) error {
	sess, err := e.collab.UpdateProfile(e.Session().IdentityID, displayName, settings)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.session = sess
	e.mu.Unlock()
	return nil
}

// Recover runs after a channel reconnect: replay every joined room, refresh
// the directory once, and reload the active conversation's history.
func (e *Engine) Recover() {
	if err := e.rooms.RejoinAll(); err != nil {
		logger.Log.Warn("room rejoin after reconnect failed", "err", err)
	}
	if err := e.dir.Refresh(); err != nil {
		logger.Log.Warn("directory refresh after reconnect failed", "err", err)
	}
	active, ok := e.Active()
	if !ok {
		return
	}
	if conv, ok := e.dir.Get(active); ok {
		if err := e.loadHistory(conv); err != nil {
			logger.Log.Warn("history reload after reconnect failed", "conversation", active, "err", err)
		}
	}
}

// Logout resets the selection to none and clears all session-scoped state.
func (e *Engine) Logout() {
	e.mu.Lock()
	e.active = ""
	e.mu.Unlock()
	e.store.Reset()
	e.dir.Reset()
	e.rooms.Reset()
	e.preds.Reset()
}
