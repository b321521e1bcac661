package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || localOrigin(o)
	},
}

// Hub fans the engine status out to every connected websocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{}), log: log}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends v as JSON to every client. Clients that fail the write
// are dropped.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("encode broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Str("remote", c.RemoteAddr().String()).Msg("dropping websocket client")
			c.Close()
			delete(h.clients, c)
		}
	}
}

// ServeWS upgrades the request, sends the current status and keeps the
// client until it disconnects.
func (h *Hub) ServeWS(current func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade")
			return
		}
		// the server's read timeout would otherwise end the connection
		_ = c.SetReadDeadline(time.Time{})

		h.mu.Lock()
		h.clients[c] = struct{}{}
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		err = c.WriteJSON(current())
		h.mu.Unlock()
		if err != nil {
			h.remove(c)
			return
		}

		// clients only listen; reading detects the close
		go func() {
			for {
				if _, _, err := c.NextReader(); err != nil {
					h.remove(c)
					return
				}
			}
		}()
	}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.Close()
		delete(h.clients, c)
	}
}
