package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/fasthttp/websocket"

	"github.com/wetalk-app/wetalk-sync.git/internal/logger"
	"github.com/wetalk-app/wetalk-sync.git/internal/model"
	"github.com/wetalk-app/wetalk-sync.git/internal/telemetry"
)

var (
	// ErrNotConnected is returned when an emit is attempted before Connect
	// or after Close.
	ErrNotConnected = errors.New("channel not connected")
	// ErrSendBufferFull is returned when the outbound buffer is full, which
	// means the connection is dead or badly stalled.
	ErrSendBufferFull = errors.New("channel send buffer full")
)

// Conn is the subset of the websocket connection the client needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Handler is invoked once per inbound event carrying the envelope data.
type Handler func(data json.RawMessage)

// Client owns the one persistent event connection for a session. It joins
// rooms, emits fire-and-forget events and dispatches inbound frames to
// subscribed handlers. A dropped connection is redialed with exponential
// backoff, after which the OnReconnect hook runs.
type Client struct {
	url   string
	token string

	// Dial overrides the websocket dial, used by tests to inject a fake Conn.
	Dial func() (Conn, error)

	mu          sync.RWMutex
	conn        Conn
	handlers    map[string]Handler
	onReconnect func()
	closed      bool

	send chan []byte
}

func NewClient(url string) *Client {
	return &Client{
		url:      url,
		handlers: map[string]Handler{},
		send:     make(chan []byte, 64),
	}
}

// Connect establishes the connection and starts the pumps. identityToken is
// sent as a bearer header.
func (c *Client) Connect(identityToken string) error {
	c.mu.Lock()
	c.token = identityToken
	c.mu.Unlock()

	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("channel connect %q: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()
	return nil
}

// Subscribe registers the handler for an event name, replacing any previous
// handler for that event.
func (c *Client) Subscribe(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = h
	c.mu.Unlock()
}

// OnReconnect sets the hook run after a successful redial.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	c.onReconnect = fn
	c.mu.Unlock()
}

// Join requests membership in a room. Idempotent on the server side.
func (c *Client) Join(room string) error {
	return c.Send(model.EventJoin, model.JoinPayload{Room: room})
}

// Send emits a structured event, fire-and-forget.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(model.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || c.closed {
		return ErrNotConnected
	}
	// Fire-and-forget: never block the caller on a stalled connection.
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down for good; no redial is attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	close(c.send)
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) dial() (Conn, error) {
	if c.Dial != nil {
		return c.Dial()
	}
	header := http.Header{}
	c.mu.RLock()
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	url := c.url
	c.mu.RUnlock()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) current() (Conn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn, c.closed
}

func (c *Client) writePump() {
	for frame := range c.send {
		conn, closed := c.current()
		if closed || conn == nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Log.Warn("channel write failed", "err", err)
		}
	}
}

func (c *Client) readPump() {
	for {
		conn, closed := c.current()
		if closed || conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if _, closed := c.current(); closed {
				return
			}
			if err := c.reconnect(); err != nil {
				logger.Log.Error("channel reconnect gave up", "err", err)
				return
			}
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	telemetry.EventsReceived.WithLabelValues(env.Event).Inc()
	c.mu.RLock()
	h := c.handlers[env.Event]
	c.mu.RUnlock()
	if h != nil {
		h(env.Data)
	}
}

func (c *Client) reconnect() error {
	op := func() error {
		if _, closed := c.current(); closed {
			return backoff.Permanent(errors.New("client closed"))
		}
		conn, err := c.dial()
		if err != nil {
			logger.Log.Warn("channel redial failed", "url", c.url, "err", err)
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	}
	if err := backoff.Retry(op, backoff.NewExponentialBackOff()); err != nil {
		return err
	}
	telemetry.Reconnects.Inc()
	logger.Log.Info("channel reconnected", "url", c.url)

	c.mu.RLock()
	hook := c.onReconnect
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
	return nil
}
