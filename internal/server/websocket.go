package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/danphilibin/relay/internal/stream"
	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

// Client is a WebSocket connection following one run's log. Each frame
// carries one message; persisted messages come first, then live appends
type Client struct {
	server *Server
	conn   *websocket.Conn
	sub    *stream.Subscription
	runID  api.RunID
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	outgoingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	runID, ok := s.runParam(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	// The request context ends when this handler returns, so the client
	// owns its own
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.hub.Subscribe(ctx, runID)
	if err != nil {
		cancel()
		_ = conn.Close()
		slog.Error("WebSocket subscribe failed",
			log.RunID(runID),
			log.Error(err))
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		sub:    sub,
		runID:  runID,
		ctx:    ctx,
		cancel: cancel,
	}
	s.registerWebSocket(client)
	go client.run()
}

// Close ends the subscription and the connection
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.sub.Close()
		_ = c.conn.Close()
		c.server.unregisterWebSocket(c)
	})
}

func (c *Client) run() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	gone := make(chan struct{})
	go c.readMessages(gone)

	outgoing := make(chan *api.Message, outgoingBufferSize)
	go c.pump(outgoing)

	for {
		select {
		case <-gone:
			return

		case msg, ok := <-outgoing:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.send(msg) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

// readMessages drains the connection so control frames are processed.
// Clients have nothing to say on this channel
func (c *Client) readMessages(gone chan struct{}) {
	defer close(gone)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) pump(outgoing chan<- *api.Message) {
	defer close(outgoing)
	for {
		msg, err := c.sub.Next(c.ctx)
		if err != nil {
			return
		}
		select {
		case outgoing <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) send(msg *api.Message) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			log.RunID(c.runID),
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
