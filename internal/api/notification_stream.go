package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/TIPA-VN/uxone-sub003/internal/auth"
	"github.com/TIPA-VN/uxone-sub003/internal/notifications"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBuffer     = 32
	streamReadLimit  = 512
)

// EventConnected is the first frame sent on a new stream.
const EventConnected = "connected"

type streamHello struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

// handleNotificationStream handles GET /api/notifications/stream. The
// caller authenticates with a JWT in the token query parameter or a bearer
// header and receives its notifications until the connection closes.
func (r *Router) handleNotificationStream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}
	claims, err := r.tokens.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", claims.UserID).Msg("stream upgrade failed")
		return
	}
	defer conn.Close()

	sink := notifications.NewChanSink(streamBuffer)
	sub := r.registry.Subscribe(claims.UserID, sink)
	defer r.registry.Unsubscribe(sub)

	log := r.logger.With().Int64("user_id", claims.UserID).Str("subscription", string(sub)).Logger()
	log.Debug().Msg("stream subscribed")
	defer log.Debug().Msg("stream closed")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	if err := writeJSON(conn, streamHello{Type: EventConnected, UserID: claims.UserID}); err != nil {
		return
	}
	for {
		select {
		case ev := <-sink:
			if err := writeJSON(conn, ev); err != nil {
				log.Debug().Err(err).Msg("stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(v)
}
