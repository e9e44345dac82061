package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

type wsConnection struct {
	conn      *websocket.Conn
	runID     string
	replay    []Event
	events    <-chan Event
	cancel    func()
	closed    chan struct{}
	closeOnce sync.Once
}

// handleWebSocket streams a run's events, starting with everything that
// already happened. The server closes the socket after the finished event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rn, ok := s.runs.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	replay, events, cancel := rn.subscribe()
	c := &wsConnection{
		conn:   conn,
		runID:  id,
		replay: replay,
		events: events,
		cancel: cancel,
		closed: make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()
}

func (c *wsConnection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.closed)
		c.conn.Close()
	})
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for _, ev := range c.replay {
		if err := c.write(ev); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if err := c.write(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsConnection) write(ev Event) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

func (c *wsConnection) readPump() {
	defer c.close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read error", "run", c.runID, "error", err)
			}
			return
		}
	}
}
