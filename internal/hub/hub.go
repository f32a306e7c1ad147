package hub

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/wetalk-app/wetalk-sync.git/internal/logger"
	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

type inboundFrame struct {
	peer *Peer
	env  model.Envelope
}

// groupState is one user's view of a group: their unread counter and
// relation flags.
type groupState struct {
	Unread   int
	Starred  bool
	Archived bool
}

// Hub is the development server for the wire contract: it routes
// send_message events between rooms (echoing back to the sender with the
// correlation id intact) and serves the collaborator REST endpoints off the
// same in-memory state.
type Hub struct {
	mu sync.RWMutex

	peers map[string]*Peer            // connection id -> peer
	rooms map[string]map[string]*Peer // room -> connection id -> peer

	users    map[string]model.Session
	contacts map[string]map[string]*model.Conversation // user -> peer user -> entry
	groups   map[string]*model.Conversation
	gstate   map[string]map[string]*groupState // user -> group -> state
	history  map[string][]model.Message

	RegisterChan   chan *Peer
	UnregisterChan chan *Peer
	InboundChan    chan inboundFrame
}

func New() *Hub {
	return &Hub{
		peers:          map[string]*Peer{},
		rooms:          map[string]map[string]*Peer{},
		users:          map[string]model.Session{},
		contacts:       map[string]map[string]*model.Conversation{},
		groups:         map[string]*model.Conversation{},
		gstate:         map[string]map[string]*groupState{},
		history:        map[string][]model.Message{},
		RegisterChan:   make(chan *Peer),
		UnregisterChan: make(chan *Peer),
		InboundChan:    make(chan inboundFrame),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case p := <-h.RegisterChan:
			h.mu.Lock()
			h.peers[p.ID] = p
			if _, ok := h.users[p.UserID]; !ok {
				h.users[p.UserID] = model.Session{IdentityID: p.UserID, DisplayName: p.UserID}
			}
			h.mu.Unlock()
			logger.Log.Debug("peer connected", "peer", p.ID, "user", p.UserID)

		case p := <-h.UnregisterChan:
			h.mu.Lock()
			delete(h.peers, p.ID)
			for _, members := range h.rooms {
				delete(members, p.ID)
			}
			close(p.Send)
			h.mu.Unlock()
			logger.Log.Debug("peer disconnected", "peer", p.ID, "user", p.UserID)

		case in := <-h.InboundChan:
			h.handleFrame(in.peer, in.env)
		}
	}
}

func (h *Hub) handleFrame(p *Peer, env model.Envelope) {
	switch env.Event {
	case model.EventJoin:
		var jp model.JoinPayload
		if err := json.Unmarshal(env.Data, &jp); err != nil || jp.Room == "" {
			return
		}
		h.joinRoom(p, jp.Room)

	case model.EventSendMessage:
		var sp model.SendPayload
		if err := json.Unmarshal(env.Data, &sp); err != nil {
			return
		}
		h.route(sp)
	}
}

// joinRoom is idempotent: a peer already in the room stays in it.
func (h *Hub) joinRoom(p *Peer, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[string]*Peer{}
	}
	h.rooms[room][p.ID] = p
}

func (h *Hub) route(sp model.SendPayload) {
	if sp.Time == 0 {
		sp.Time = time.Now().UnixMilli()
	}
	rp := model.ReceivePayload{
		CorrelationID: sp.CorrelationID,
		SenderID:      sp.SenderID,
		Text:          sp.Text,
		Time:          sp.Time,
	}

	if sp.GroupID != "" {
		rp.GroupID = sp.GroupID
		h.recordGroupMessage(sp)
		h.deliver(sp.GroupID, rp)
		return
	}

	h.recordDirectMessage(sp)
	h.deliver(sp.ReceiverID, rp)
	// Echo to the sender's own room so every device of that identity sees
	// the confirmed copy.
	if sp.SenderID != sp.ReceiverID {
		h.deliver(sp.SenderID, rp)
	}
}

func (h *Hub) deliver(room string, rp model.ReceivePayload) {
	frame, err := json.Marshal(model.Envelope{Event: model.EventReceiveMessage, Data: mustMarshal(rp)})
	if err != nil {
		return
	}
	h.mu.RLock()
	members := make([]*Peer, 0, len(h.rooms[room]))
	for _, p := range h.rooms[room] {
		members = append(members, p)
	}
	h.mu.RUnlock()

	for _, p := range members {
		select {
		case p.Send <- frame:
		default:
		}
	}
}

func (h *Hub) recordDirectMessage(sp model.SendPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := directKey(sp.SenderID, sp.ReceiverID)
	h.history[key] = append(h.history[key], model.Message{
		SenderID:      sp.SenderID,
		Text:          sp.Text,
		Time:          sp.Time,
		Origin:        model.OriginConfirmed,
		CorrelationID: sp.CorrelationID,
	})

	from := h.ensureContact(sp.SenderID, sp.ReceiverID)
	from.LastPreview = sp.Text
	from.LastActivity = sp.Time

	to := h.ensureContact(sp.ReceiverID, sp.SenderID)
	to.LastPreview = sp.Text
	to.LastActivity = sp.Time
	to.Unread++
}

func (h *Hub) recordGroupMessage(sp model.SendPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	grp, ok := h.groups[sp.GroupID]
	if !ok {
		return
	}
	key := "g:" + sp.GroupID
	h.history[key] = append(h.history[key], model.Message{
		ConversationID: sp.GroupID,
		SenderID:       sp.SenderID,
		Text:           sp.Text,
		Time:           sp.Time,
		Origin:         model.OriginConfirmed,
		CorrelationID:  sp.CorrelationID,
	})
	grp.LastPreview = sp.Text
	grp.LastActivity = sp.Time
	for _, member := range grp.Members {
		if member == sp.SenderID {
			continue
		}
		h.ensureGroupState(member, sp.GroupID).Unread++
	}
}

// ensureContact creates the owner-side directory entry for a peer if it does
// not exist yet. Callers hold the write lock.
func (h *Hub) ensureContact(owner, peer string) *model.Conversation {
	if h.contacts[owner] == nil {
		h.contacts[owner] = map[string]*model.Conversation{}
	}
	if conv, ok := h.contacts[owner][peer]; ok {
		return conv
	}
	name := peer
	if sess, ok := h.users[peer]; ok && sess.DisplayName != "" {
		name = sess.DisplayName
	}
	conv := &model.Conversation{ID: peer, Kind: model.KindDirect, DisplayName: name}
	h.contacts[owner][peer] = conv
	return conv
}

func (h *Hub) ensureGroupState(user, groupID string) *groupState {
	if h.gstate[user] == nil {
		h.gstate[user] = map[string]*groupState{}
	}
	if st, ok := h.gstate[user][groupID]; ok {
		return st
	}
	st := &groupState{}
	h.gstate[user][groupID] = st
	return st
}

// contactsFor returns the user's direct conversations, most recent first.
func (h *Hub) contactsFor(userID string) []model.Conversation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.Conversation, 0, len(h.contacts[userID]))
	for _, conv := range h.contacts[userID] {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	return out
}

// groupsFor returns every group the user belongs to, with that user's unread
// counter and relation flags folded in.
func (h *Hub) groupsFor(userID string) []model.Conversation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.Conversation, 0, len(h.groups))
	for _, grp := range h.groups {
		if !contains(grp.Members, userID) {
			continue
		}
		conv := *grp
		conv.Members = append([]string(nil), grp.Members...)
		conv.Admins = append([]string(nil), grp.Admins...)
		if st, ok := h.gstate[userID][grp.ID]; ok {
			conv.Unread = st.Unread
			conv.Starred = st.Starred
			conv.Archived = st.Archived
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	return out
}

func directKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "d:" + a + ":" + b
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
