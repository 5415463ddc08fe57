// Package signal is the websocket adapter: it admits connections,
// pumps frames and forwards them to the engine.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/app"
	"github.com/sarim-aliii/duet/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Engine *app.Engine
	Secret string
}

func NewController(engine *app.Engine, secret string) *Controller {
	return &Controller{Engine: engine, Secret: secret}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS authenticates and admits one connection. The token is
// checked before the upgrade so a rejected client never sees any room
// state.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	uid, err := ParseIdentity(ctl.Secret, token)
	if err != nil {
		log.Warn().Str("module", "signal").Str("ip", c.ClientIP()).Msg("rejected connection, bad token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	if _, err := ctl.Engine.Join(ctx, sid, uid, conn); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join rejected")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "pairing required",
		})
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
