package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

// ErrFetch wraps every collaborator HTTP failure. Callers treat these as
// non-fatal: the worst case is a stale directory or log until the next
// successful refresh.
var ErrFetch = errors.New("collaborator fetch failed")

const defaultTimeout = 10 * time.Second

// Client talks to the collaborator's REST endpoints. All calls are opaque
// request/response; auth and CRUD details are owned by the server.
type Client struct {
	baseURL string
	hc      *fasthttp.Client
	timeout time.Duration
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &fasthttp.Client{},
		timeout: defaultTimeout,
	}
}

func (c *Client) FetchContacts(userID string) ([]model.Conversation, error) {
	var out []model.Conversation
	err := c.get("/contacts/"+url.PathEscape(userID), &out)
	return out, err
}

func (c *Client) FetchGroups(userID string) ([]model.Conversation, error) {
	var out []model.Conversation
	err := c.get("/groups/"+url.PathEscape(userID), &out)
	return out, err
}

func (c *Client) FetchDirectHistory(selfID, peerID string) ([]model.Message, error) {
	q := url.Values{"self": {selfID}, "peer": {peerID}}
	var out []model.Message
	err := c.get("/messages/direct?"+q.Encode(), &out)
	return out, err
}

func (c *Client) FetchGroupHistory(groupID string) ([]model.Message, error) {
	q := url.Values{"groupId": {groupID}}
	var out []model.Message
	err := c.get("/messages/group?"+q.Encode(), &out)
	return out, err
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	CreatorID string   `json:"creatorId"`
	MemberIDs []string `json:"memberIds"`
}

func (c *Client) CreateGroup(name, creatorID string, memberIDs []string) (model.Conversation, error) {
	var out model.Conversation
	err := c.post("/groups", createGroupRequest{Name: name, CreatorID: creatorID, MemberIDs: memberIDs}, &out)
	return out, err
}

type contactRequest struct {
	UserID string `json:"userId"`
	PeerID string `json:"peerId"`
}

func (c *Client) AddContact(userID, peerID string) (model.Conversation, error) {
	var out model.Conversation
	err := c.post("/contacts", contactRequest{UserID: userID, PeerID: peerID}, &out)
	return out, err
}

// relationRequest always carries the bools explicitly so that un-star and
// un-archive state the value rather than rely on server-side defaults.
type relationRequest struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Starred        bool   `json:"starred"`
	Archived       bool   `json:"archived"`
}

func (c *Client) SetStarred(userID, conversationID string, starred bool) error {
	return c.post("/contacts/star", relationRequest{UserID: userID, ConversationID: conversationID, Starred: starred}, nil)
}

func (c *Client) SetArchived(userID, conversationID string, archived bool) error {
	return c.post("/contacts/archive", relationRequest{UserID: userID, ConversationID: conversationID, Archived: archived}, nil)
}

func (c *Client) MarkRead(userID, conversationID string) error {
	return c.post("/contacts/read", relationRequest{UserID: userID, ConversationID: conversationID}, nil)
}

type profileRequest struct {
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Settings    model.Settings `json:"settings"`
}

func (c *Client) UpdateProfile(userID, displayName string, settings model.Settings) (model.Session, error) {
	var out model.Session
	err := c.post("/profile", profileRequest{UserID: userID, DisplayName: displayName, Settings: settings}, &out)
	return out, err
}

func (c *Client) get(path string, out any) error {
	return c.do(fasthttp.MethodGet, path, nil, out)
}

func (c *Client) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}
	return c.do(fasthttp.MethodPost, path, data, out)
}

func (c *Client) do(method, path string, body []byte, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.hc.DoTimeout(req, resp, c.timeout); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrFetch, method, path, err)
	}
	code := resp.StatusCode()
	if code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("%w: %s %s: status %d", ErrFetch, method, path, code)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %s %s: decode: %v", ErrFetch, method, path, err)
	}
	return nil
}
