package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aeroswarm/aeroswarm/core/protocol"
)

// conn wraps a websocket connection behind the hub's Conn interface.
// Writes are serialized; gorilla connections support one concurrent writer.
type conn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{id: uuid.NewString(), ws: ws}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *conn) Close() error {
	return c.ws.Close()
}
