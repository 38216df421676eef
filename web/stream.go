package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mogaika/skinned_mesh/animator"
)

const (
	STREAM_PING_PERIOD   = 30 * time.Second
	STREAM_WRITE_TIMEOUT = 40 * time.Second
	STREAM_QUEUE         = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	hub  *frameHub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(STREAM_PING_PERIOD)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(STREAM_WRITE_TIMEOUT))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[web] ws write frame error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(STREAM_WRITE_TIMEOUT))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[web] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump only drains control messages and notices a closed connection.
func (c *client) readPump() {
	defer c.hub.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// frameHub fans every published frame out to websocket clients.
// Slow clients skip frames instead of stalling the animator.
type frameHub struct {
	lock    sync.Mutex
	clients map[*client]bool
	last    []byte
	closed  bool
}

func newFrameHub() *frameHub {
	return &frameHub{clients: make(map[*client]bool)}
}

func (h *frameHub) register(conn *websocket.Conn) *client {
	c := &client{hub: h, conn: conn, send: make(chan []byte, STREAM_QUEUE)}

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		close(c.send)
		return c
	}
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	return c
}

func (h *frameHub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *frameHub) broadcast(frame *animator.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[web] failed to marshal frame %d: %v", frame.Tick, err)
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *frameHub) count() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *frameHub) close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *Server) HandlerFrameStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	c := s.frames.register(conn)
	log.Printf("[web] frame stream client %v connected (%d total)", conn.RemoteAddr(), s.frames.count())
	go c.writePump()
	go c.readPump()
}
