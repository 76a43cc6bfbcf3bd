package server

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Message types on the feed.
const (
	EventFrame   = "frame"
	EventLayout  = "layout"
	EventSummary = "summary"

	ActionSetSpeed = "set_speed"
	ActionPause    = "pause"
	ActionResume   = "resume"
)

// Envelope wraps every websocket message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SpeedPayload is the body of a set_speed action.
type SpeedPayload struct {
	Speed float64 `json:"speed"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans frames out to connected viewers. A viewer that falls behind is
// dropped rather than slowing the simulation.
type hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

func newHub() *hub {
	return &hub{
		clients:    map[*client]bool{},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// publish queues msg for every viewer without blocking the caller.
func (h *hub) publish(msg []byte) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func envelope(kind string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Payload: payload})
}
