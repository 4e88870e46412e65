package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const keepaliveInterval = 15 * time.Second

// streamFrames serves composed frames over Server-Sent Events.
//
// The first message is always metadata; keep-alive comments (:\n\n) are sent
// while the scene is idle so proxies do not drop the connection.
func (h *Handler) streamFrames(c *gin.Context) {
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, frames := h.engine.Broadcaster().Subscribe()
	defer h.engine.Broadcaster().Unsubscribe(id)
	slog.Debug("frame stream opened", "subscriber", id)

	meta := map[string]any{
		"type": "metadata",
		"axis": h.engine.Controller().Snapshot(),
	}
	if err := writeEvent(w, meta); err != nil {
		return
	}

	// Deliver the current picture immediately rather than waiting for the
	// next recompose.
	if err := writeEvent(w, h.engine.Frame()); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			slog.Debug("frame stream closed by client", "subscriber", id)
			return
		case frame, ok := <-frames:
			if !ok {
				return // broadcaster shut down
			}
			if err := writeEvent(w, frame); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
