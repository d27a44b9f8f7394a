package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/watchparty/config"
	"github.com/mossy-p/watchparty/internal/models"
	"github.com/rs/zerolog"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig
	log  zerolog.Logger

	// closed is only touched on the hub goroutine.
	closed bool
}

func newClient(conn *websocket.Conn, cfg config.WebSocketConfig, logger zerolog.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
		cfg:  cfg,
		log:  logger.With().Str(pkglog.FieldConnID, id).Logger(),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a frame for the write pump. It drops the frame rather than
// block when the buffer is full.
func (c *Client) Send(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func ServeWS(hub *Hub, cfg config.WebSocketConfig, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := newClient(conn, cfg, logger)
		if !hub.Register(client) {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(cfg.WriteWait))
			conn.Close()
			return
		}

		client.log.Debug().Str(pkglog.FieldClientIP, c.ClientIP()).Msg("connection opened")

		go client.writePump()
		go client.readPump(hub)
	}
}

func (c *Client) readPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.conn.Close()
		c.log.Debug().Msg("connection closed")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.log.Warn().Err(err).Msg("ignoring unparsable frame")
			continue
		}

		hub.Submit(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
