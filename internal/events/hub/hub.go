package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func NewConnection(conn *websocket.Conn) *Connection {
	return &Connection{
		conn: conn,
		send: make(chan []byte, 128),
	}
}

// Hub fans record events out to every connected subscriber. There is a
// single global feed; subscribers cannot narrow it.
type Hub struct {
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	conns      map[*Connection]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Connection, 64),
		unregister: make(chan *Connection, 64),
		broadcast:  make(chan []byte, 256),
		conns:      make(map[*Connection]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.conns[c] = struct{}{}

		case c := <-h.unregister:
			if _, ok := h.conns[c]; ok {
				delete(h.conns, c)
				c.CloseSend()
			}

		case payload := <-h.broadcast:
			for c := range h.conns {
				c.Send(payload)
			}
		}
	}
}

func (h *Hub) Register(c *Connection) {
	h.register <- c
}

func (h *Hub) Unregister(c *Connection) {
	h.unregister <- c
}

func (h *Hub) Broadcast(payload []byte) {
	h.broadcast <- payload
}

func (c *Connection) Send(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *Connection) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
