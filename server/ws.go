package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auric/hub"
)

const (
	wsWriteWait = 5 * time.Second
	wsReadLimit = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream is read-only telemetry; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient adapts one websocket connection to the hub's Observer contract.
// gorilla allows a single concurrent writer, hence the mutex.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn}
	id := s.events.Register(client)
	s.log.WithField("client", id).Info("websocket client connected")

	// Greet the new subscriber with the current system status before any
	// broadcast reaches it.
	s.events.SendDirect(id, hub.Status, map[string]interface{}{
		"data_source_connected": s.source.Connected(),
		"agent_running":         s.loop.Enabled(),
	})

	// Inbound frames are ignored; the read loop only detects disconnects.
	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.events.Deregister(id)
	conn.Close()
	s.log.WithField("client", id).Info("websocket client disconnected")
}
