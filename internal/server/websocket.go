package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// Client represents a WebSocket client connection streaming one
	// item's progress events
	Client struct {
		server *Server
		conn   *websocket.Conn
		sub    bus.Subscription
		itemID api.ItemID
		minSeq int64
		once   sync.Once
	}
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades the connection and streams an item's events.
// The first frame is the authoritative snapshot; only events sequenced
// after it follow, so a reconnecting client never sees a stale or
// duplicated transition
func (s *Server) handleWebSocket(c *gin.Context) {
	st, ok := s.loadItem(c)
	if !ok {
		return
	}

	sub, err := s.bus.Subscribe(c.Request.Context(), st.ItemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	// the snapshot may have moved between Load and Subscribe; re-load
	// after subscribing so no transition falls between frame and stream
	if fresh, err := s.store.Load(c.Request.Context(), st.ItemID); err == nil {
		st = fresh
	}

	client := &Client{
		server: s,
		conn:   conn,
		sub:    sub,
		itemID: st.ItemID,
		minSeq: st.Version,
	}
	s.registerWebSocket(client)

	go client.run(st)
}

// Close tears the connection down
func (c *Client) Close() {
	c.once.Do(func() {
		c.sub.Close()
		_ = c.conn.Close()
	})
}

func (c *Client) run(snapshot *api.RunState) {
	defer func() {
		c.server.unregisterWebSocket(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if !c.sendSnapshot(snapshot) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closed := make(chan struct{})
	go c.readUntilClosed(closed)

	for {
		select {
		case <-closed:
			return

		case ev, ok := <-c.sub.Events():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendEvent(ev) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

// readUntilClosed drains control frames so pong handlers fire, and
// reports when the peer goes away
func (c *Client) readUntilClosed(closed chan struct{}) {
	defer close(closed)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) sendSnapshot(st *api.RunState) bool {
	msg := api.SubscribedResult{
		Type:  api.SubscribedType,
		State: st,
		Seq:   st.Version,
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			log.ItemID(c.itemID),
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendEvent(ev *api.Event) bool {
	if ev.Seq <= c.minSeq {
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		slog.Error("WebSocket write failed",
			log.ItemID(c.itemID),
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
