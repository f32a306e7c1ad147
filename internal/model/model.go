package model

import "encoding/json"

// Kind discriminates direct and group conversations.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Origin marks whether a message entry is a local optimistic append or a
// server-confirmed event.
type Origin string

const (
	OriginOptimistic Origin = "optimistic"
	OriginConfirmed  Origin = "confirmed"
)

// Settings is the per-user settings snapshot carried on the session.
type Settings struct {
	LastSeen      bool `json:"last_seen"`
	ReadReceipts  bool `json:"read_receipts"`
	Notifications bool `json:"notifications"`
}

// Session is the authenticated identity for the lifetime of a login.
type Session struct {
	IdentityID  string   `json:"identity_id"`
	DisplayName string   `json:"display_name"`
	Settings    Settings `json:"settings"`
}

// Conversation is one directory entry. For direct conversations ID is the
// peer's identity id; for groups it is the server-assigned group id.
type Conversation struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	DisplayName  string   `json:"display_name"`
	AvatarRef    string   `json:"avatar_ref,omitempty"`
	LastPreview  string   `json:"last_preview,omitempty"`
	LastActivity int64    `json:"last_activity"`
	Unread       int      `json:"unread"`
	Starred      bool     `json:"starred"`
	Archived     bool     `json:"archived"`
	Members      []string `json:"members,omitempty"` // group only
	Admins       []string `json:"admins,omitempty"`  // group only
}

// Message is one entry in a conversation log. Time is unix milliseconds.
type Message struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	Time           int64  `json:"time"`
	Origin         Origin `json:"origin"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// Channel event names.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
)

// Envelope wraps every channel frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinPayload struct {
	Room string `json:"room"`
}

// SendPayload is the outbound send_message body. ReceiverID and GroupID are
// mutually exclusive: exactly one is set.
type SendPayload struct {
	CorrelationID string `json:"correlationId"`
	SenderID      string `json:"senderId"`
	ReceiverID    string `json:"receiverId,omitempty"`
	GroupID       string `json:"groupId,omitempty"`
	Text          string `json:"text"`
	Time          int64  `json:"time"`
}

// ReceivePayload is the inbound receive_message body. CorrelationID is only
// present when the server echoes back a client-originated send.
type ReceivePayload struct {
	CorrelationID string `json:"correlationId,omitempty"`
	SenderID      string `json:"senderId"`
	GroupID       string `json:"groupId,omitempty"`
	Text          string `json:"text"`
	Time          int64  `json:"time"`
}

// SourceID returns the conversation an inbound payload belongs to: the group
// id when present, otherwise the sender.
func (p ReceivePayload) SourceID() string {
	if p.GroupID != "" {
		return p.GroupID
	}
	return p.SenderID
}
