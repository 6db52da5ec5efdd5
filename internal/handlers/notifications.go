package handlers

import (
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"mythweaver/api/internal/middleware"
)

// Notifications holds the caller's event socket open until they disconnect.
func (h HandlerSet) Notifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.sockets.Serve(c.Writer, c.Request, userID, h.acceptOptions()); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("websocket accept failed")
	}
}

func (h HandlerSet) acceptOptions() *websocket.AcceptOptions {
	if middleware.AllowsAnyOrigin(h.cfg.AllowCORSOrigins) {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	patterns := make([]string, 0, len(h.cfg.AllowCORSOrigins))
	for _, origin := range h.cfg.AllowCORSOrigins {
		if u, err := url.Parse(strings.TrimSpace(origin)); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}
