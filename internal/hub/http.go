package hub

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

// RegisterRoutes mounts the channel endpoint and the collaborator REST API.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Get("/ws", websocket.New(h.handleWS))

	app.Get("/contacts/:userId", h.handleContacts)
	app.Get("/groups/:userId", h.handleGroups)
	app.Get("/messages/direct", h.handleDirectHistory)
	app.Get("/messages/group", h.handleGroupHistory)

	app.Post("/groups", h.handleCreateGroup)
	app.Post("/contacts", h.handleAddContact)
	app.Post("/contacts/star", h.handleStar)
	app.Post("/contacts/archive", h.handleArchive)
	app.Post("/contacts/read", h.handleMarkRead)
	app.Post("/profile", h.handleProfile)
}

// handleWS GET /ws?userId=&name=
func (h *Hub) handleWS(c *websocket.Conn) {
	userID := c.Query("userId")
	if userID == "" {
		_ = c.Close()
		return
	}
	if name := c.Query("name"); name != "" {
		h.mu.Lock()
		h.users[userID] = model.Session{IdentityID: userID, DisplayName: name}
		h.mu.Unlock()
	}
	peer := &Peer{ID: uuid.NewString(), UserID: userID, Conn: c, Send: make(chan []byte, 16)}
	h.RegisterChan <- peer
	go peer.WritePump()
	peer.ReadPump(h)
}

// handleContacts GET /contacts/:userId
func (h *Hub) handleContacts(c *fiber.Ctx) error {
	return c.JSON(h.contactsFor(c.Params("userId")))
}

// handleGroups GET /groups/:userId
func (h *Hub) handleGroups(c *fiber.Ctx) error {
	return c.JSON(h.groupsFor(c.Params("userId")))
}

// handleDirectHistory GET /messages/direct?self=&peer=
func (h *Hub) handleDirectHistory(c *fiber.Ctx) error {
	self, peer := c.Query("self"), c.Query("peer")
	if self == "" || peer == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	h.mu.RLock()
	log := h.history[directKey(self, peer)]
	out := make([]model.Message, len(log))
	copy(out, log)
	h.mu.RUnlock()
	// The conversation id is viewer-relative for direct chats.
	for i := range out {
		out[i].ConversationID = peer
	}
	return c.JSON(out)
}

// handleGroupHistory GET /messages/group?groupId=
func (h *Hub) handleGroupHistory(c *fiber.Ctx) error {
	groupID := c.Query("groupId")
	if groupID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	h.mu.RLock()
	log := h.history["g:"+groupID]
	out := make([]model.Message, len(log))
	copy(out, log)
	h.mu.RUnlock()
	return c.JSON(out)
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	CreatorID string   `json:"creatorId"`
	MemberIDs []string `json:"memberIds"`
}

// handleCreateGroup POST /groups
func (h *Hub) handleCreateGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" || req.CreatorID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	members := []string{req.CreatorID}
	for _, id := range req.MemberIDs {
		if id != "" && !contains(members, id) {
			members = append(members, id)
		}
	}
	grp := &model.Conversation{
		ID:          uuid.NewString(),
		Kind:        model.KindGroup,
		DisplayName: req.Name,
		Members:     members,
		Admins:      []string{req.CreatorID},
	}
	h.mu.Lock()
	h.groups[grp.ID] = grp
	h.mu.Unlock()
	return c.Status(fiber.StatusCreated).JSON(grp)
}

type contactRequest struct {
	UserID string `json:"userId"`
	PeerID string `json:"peerId"`
}

// handleAddContact POST /contacts
func (h *Hub) handleAddContact(c *fiber.Ctx) error {
	var req contactRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" || req.PeerID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	h.mu.Lock()
	conv := *h.ensureContact(req.UserID, req.PeerID)
	h.ensureContact(req.PeerID, req.UserID)
	h.mu.Unlock()
	return c.Status(fiber.StatusCreated).JSON(conv)
}

type relationRequest struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Starred        bool   `json:"starred"`
	Archived       bool   `json:"archived"`
}

// handleStar POST /contacts/star
func (h *Hub) handleStar(c *fiber.Ctx) error {
	return h.updateRelation(c, func(conv *model.Conversation, st *groupState, req relationRequest) {
		if conv != nil {
			conv.Starred = req.Starred
		}
		if st != nil {
			st.Starred = req.Starred
		}
	})
}

// handleArchive POST /contacts/archive
func (h *Hub) handleArchive(c *fiber.Ctx) error {
	return h.updateRelation(c, func(conv *model.Conversation, st *groupState, req relationRequest) {
		if conv != nil {
			conv.Archived = req.Archived
		}
		if st != nil {
			st.Archived = req.Archived
		}
	})
}

// handleMarkRead POST /contacts/read
func (h *Hub) handleMarkRead(c *fiber.Ctx) error {
	return h.updateRelation(c, func(conv *model.Conversation, st *groupState, _ relationRequest) {
		if conv != nil {
			conv.Unread = 0
		}
		if st != nil {
			st.Unread = 0
		}
	})
}

// updateRelation applies a mutation to the user's side of a conversation,
// direct or group.
func (h *Hub) updateRelation(c *fiber.Ctx, apply func(*model.Conversation, *groupState, relationRequest)) error {
	var req relationRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" || req.ConversationID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if conv, ok := h.contacts[req.UserID][req.ConversationID]; ok {
		apply(conv, nil, req)
		return c.SendStatus(fiber.StatusNoContent)
	}
	if _, ok := h.groups[req.ConversationID]; ok {
		apply(nil, h.ensureGroupState(req.UserID, req.ConversationID), req)
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.SendStatus(fiber.StatusNotFound)
}

type profileRequest struct {
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Settings    model.Settings `json:"settings"`
}

// handleProfile POST /profile
func (h *Hub) handleProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	sess := model.Session{IdentityID: req.UserID, DisplayName: req.DisplayName, Settings: req.Settings}
	h.mu.Lock()
	h.users[req.UserID] = sess
	h.mu.Unlock()
	return c.JSON(sess)
}
