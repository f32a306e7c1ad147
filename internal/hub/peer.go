package hub

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

// ConnLike is the websocket surface a peer connection needs; tests inject
// in-memory fakes.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Peer is one live channel connection.
type Peer struct {
	ID     string
	UserID string
	Conn   ConnLike
	Send   chan []byte
}

func (p *Peer) ReadPump(h *Hub) {
	for {
		_, data, err := p.Conn.ReadMessage()
		if err != nil {
			h.UnregisterChan <- p
			return
		}
		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		h.InboundChan <- inboundFrame{peer: p, env: env}
	}
}

func (p *Peer) WritePump() {
	for data := range p.Send {
		_ = p.Conn.WriteMessage(websocket.TextMessage, data)
	}
}
