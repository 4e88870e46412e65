package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mr1hm/go-outbreak-globe/internal/compose"
	"github.com/mr1hm/go-outbreak-globe/internal/interact"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The renderer is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// interactionMessage is one pick/hover event from the renderer. An empty
// object_id is a miss.
type interactionMessage struct {
	Kind     string `json:"kind"`
	LayerID  string `json:"layer_id"`
	ObjectID string `json:"object_id"`
}

const (
	wsReadLimit    = 4096
	wsReadDeadline = 120 * time.Second
)

// handleWebsocket receives interaction events over a websocket and routes
// them into the scene. Resulting state changes flow back out through the
// frame stream.
func (h *Handler) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	slog.Info("interaction session opened", "session", sessionID, "remote", c.ClientIP())

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	for {
		var msg interactionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("interaction session error", "session", sessionID, "error", err)
			} else {
				slog.Info("interaction session closed", "session", sessionID)
			}
			return
		}

		kind := interact.Kind(msg.Kind)
		if kind != interact.KindClick && kind != interact.KindHover {
			continue
		}
		h.engine.Interact(kind, compose.LayerID(msg.LayerID), msg.ObjectID)
	}
}
