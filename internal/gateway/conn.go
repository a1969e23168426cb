package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/minder/internal/actor"
)

// wsHandle adapts a websocket connection to the actor layer's Handle. The
// attachment lives with the connection object itself, which is what lets a
// session outlive the registry's in-memory index.
type wsHandle struct {
	id   string
	tag  string
	conn *websocket.Conn

	mu         sync.Mutex
	attachment []byte
	closed     bool
}

func newWSHandle(conn *websocket.Conn, tag string) *wsHandle {
	return &wsHandle{
		id:   actor.NewConnID(),
		tag:  tag,
		conn: conn,
	}
}

func (h *wsHandle) ID() string  { return h.id }
func (h *wsHandle) Tag() string { return h.tag }

func (h *wsHandle) SetAttachment(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attachment = data
}

func (h *wsHandle) Attachment() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attachment
}

// Send writes a JSON frame. Writes are serialized; gorilla permits only one
// concurrent writer.
func (h *wsHandle) Send(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return websocket.ErrCloseSent
	}
	return h.conn.WriteJSON(v)
}

func (h *wsHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.conn.Close()
}
