package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"pingpal/backend/internal/registry"
	"pingpal/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the auth token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS godoc
// @Summary      Open the real-time event stream
// @Description  Upgrades to a websocket that delivers presenceUpdated, messageReceived, and invite events. Authenticate with ?token=<jwt>.
// @Tags         realtime
// @Security     BearerAuth
// @Param        token  query  string  true  "Access token"
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Router       /ws [get]
func ServeWS(c *gin.Context) {
	userID, err := jwt.ParseToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed for user %d: %v", userID, err)
		return
	}

	session := registry.NewSession()
	deps.Registry.Register(userID, session)
	deps.Presence.OnConnect(c.Request.Context(), userID)

	go writePump(conn, session)
	go readPump(conn, userID, session)
}

// writePump drains the session channel onto the websocket and keeps the
// connection alive with pings. It exits when the session channel is closed by
// the registry or when a write fails.
func writePump(conn *websocket.Conn, session registry.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-session:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The registry closed the session.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes the client side of the socket. Clients send nothing we act
// on; the read loop exists to notice the disconnect and to answer pings.
func readPump(conn *websocket.Conn, userID uint, session registry.Session) {
	defer func() {
		// The request context is gone by the time the socket closes.
		deps.Presence.OnDisconnect(context.Background(), userID, session)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: unexpected close for user %d: %v", userID, err)
			}
			return
		}
	}
}
