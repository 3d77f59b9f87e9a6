package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"meal-alert-service/internal/logging"
)

// Close codes sent when the handshake is rejected (policy-violation range).
const (
	CloseMissingCredential = 4001
	CloseInvalidCredential = 4002
	CloseRoleNotAllowed    = 4003
)

// Handler upgrades HTTP requests to authenticated realtime connections.
type Handler struct {
	hub      *Hub
	secret   string
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, secret string, logger *logging.Logger) *Handler {
	return &Handler{
		hub:    hub,
		secret: secret,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from a different origin than this API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles the realtime handshake: upgrade, authenticate the bearer
// credential, register with the hub, and start the read loop.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	identity, role, err := Authenticate(bearerToken(c), h.secret)
	if err != nil {
		code, reason := closePolicyFor(err)
		h.logger.Warnf("Rejected connection from %s: %v", c.ClientIP(), err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		_ = conn.Close()
		return
	}

	client, err := h.hub.Register(identity, role, conn)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = conn.Close()
		return
	}

	conn.SetPongHandler(func(string) error {
		h.hub.MarkAlive(client)
		return nil
	})

	if payload, err := json.Marshal(connectedMessage(identity)); err == nil {
		_ = client.write(websocket.TextMessage, payload)
	}

	go h.readLoop(client, conn)
}

// readLoop consumes inbound messages. Clients may only send liveness
// acknowledgments; everything else is logged and ignored.
func (h *Handler) readLoop(client *Client, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("Connection for %s closed: %v", client.Identity(), err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "ping" {
			h.logger.Warnf("Ignoring unexpected message from %s: %s", client.Identity(), data)
			continue
		}

		h.hub.MarkAlive(client)
		if payload, err := json.Marshal(pongMessage()); err == nil {
			_ = client.write(websocket.TextMessage, payload)
		}
	}
}

// bearerToken pulls the credential from the token query parameter or the
// Authorization header.
func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func closePolicyFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingToken):
		return CloseMissingCredential, "missing credential"
	case errors.Is(err, ErrRoleNotAllowed):
		return CloseRoleNotAllowed, "role not allowed"
	default:
		return CloseInvalidCredential, "invalid or expired credential"
	}
}
