package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func waitBytes(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://example")
	err := c.Send(model.EventSendMessage, model.SendPayload{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestJoinWritesEnvelope(t *testing.T) {
	conn := newFakeConn()
	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return conn, nil }
	require.NoError(t, c.Connect("token"))
	defer c.Close()

	require.NoError(t, c.Join("u1"))

	var env model.Envelope
	require.NoError(t, json.Unmarshal(waitBytes(t, conn.out), &env))
	assert.Equal(t, model.EventJoin, env.Event)

	var jp model.JoinPayload
	require.NoError(t, json.Unmarshal(env.Data, &jp))
	assert.Equal(t, "u1", jp.Room)
}

func TestSendWritesEnvelope(t *testing.T) {
	conn := newFakeConn()
	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return conn, nil }
	require.NoError(t, c.Connect(""))
	defer c.Close()

	payload := model.SendPayload{CorrelationID: "c1", SenderID: "u1", ReceiverID: "u2", Text: "hi", Time: 99}
	require.NoError(t, c.Send(model.EventSendMessage, payload))

	var env model.Envelope
	require.NoError(t, json.Unmarshal(waitBytes(t, conn.out), &env))
	assert.Equal(t, model.EventSendMessage, env.Event)

	var got model.SendPayload
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, payload, got)
}

func TestDispatchToSubscribedHandler(t *testing.T) {
	conn := newFakeConn()
	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return conn, nil }

	received := make(chan model.ReceivePayload, 1)
	c.Subscribe(model.EventReceiveMessage, func(data json.RawMessage) {
		var p model.ReceivePayload
		if json.Unmarshal(data, &p) == nil {
			received <- p
		}
	})
	require.NoError(t, c.Connect(""))
	defer c.Close()

	frame, _ := json.Marshal(model.Envelope{
		Event: model.EventReceiveMessage,
		Data:  json.RawMessage(`{"senderId":"u2","text":"hey","time":42}`),
	})
	conn.in <- frame

	select {
	case p := <-received:
		assert.Equal(t, "u2", p.SenderID)
		assert.Equal(t, "hey", p.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestSubscribeReplacesHandler(t *testing.T) {
	conn := newFakeConn()
	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return conn, nil }

	hits := make(chan string, 2)
	c.Subscribe(model.EventReceiveMessage, func(json.RawMessage) { hits <- "old" })
	c.Subscribe(model.EventReceiveMessage, func(json.RawMessage) { hits <- "new" })
	require.NoError(t, c.Connect(""))
	defer c.Close()

	frame, _ := json.Marshal(model.Envelope{Event: model.EventReceiveMessage, Data: json.RawMessage(`{}`)})
	conn.in <- frame

	select {
	case which := <-hits:
		assert.Equal(t, "new", which)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestReconnectRunsHookAndResumesDispatch(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := make(chan *fakeConn, 2)
	conns <- first
	conns <- second

	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return <-conns, nil }

	reconnected := make(chan struct{}, 1)
	c.OnReconnect(func() { reconnected <- struct{}{} })

	received := make(chan struct{}, 1)
	c.Subscribe(model.EventReceiveMessage, func(json.RawMessage) { received <- struct{}{} })

	require.NoError(t, c.Connect(""))
	defer c.Close()

	// Drop the first connection; the client redials and signals the hook.
	first.Close()
	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect hook never ran")
	}

	frame, _ := json.Marshal(model.Envelope{Event: model.EventReceiveMessage, Data: json.RawMessage(`{}`)})
	second.in <- frame
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch after reconnect")
	}
}

// stalledConn never completes a write, like a TCP connection whose peer
// vanished without a FIN.
type stalledConn struct {
	closed chan struct{}
	once   sync.Once
}

func (c *stalledConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("connection closed")
}

func (c *stalledConn) WriteMessage(int, []byte) error {
	<-c.closed
	return errors.New("connection closed")
}

func (c *stalledConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestSendNeverBlocksOnStalledConnection(t *testing.T) {
	conn := &stalledConn{closed: make(chan struct{})}
	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return conn, nil }
	require.NoError(t, c.Connect(""))
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		var last error
		for i := 0; i < 2*cap(c.send); i++ {
			last = c.Send(model.EventSendMessage, model.SendPayload{Text: "x"})
		}
		done <- last
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSendBufferFull)
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked while the write pump was stalled")
	}
}

func TestCloseStopsClient(t *testing.T) {
	conn := newFakeConn()
	c := NewClient("ws://example")
	c.Dial = func() (Conn, error) { return conn, nil }
	require.NoError(t, c.Connect(""))

	require.NoError(t, c.Close())
	err := c.Send(model.EventSendMessage, model.SendPayload{Text: "late"})
	assert.ErrorIs(t, err, ErrNotConnected)
}
