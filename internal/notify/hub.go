package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const pingInterval = 30 * time.Second

// Hub tracks the live sockets of each user in this process.
type Hub struct {
	mu           sync.RWMutex
	conns        map[int64]map[*websocket.Conn]struct{}
	writeTimeout time.Duration
	log          zerolog.Logger
}

func NewHub(writeTimeout time.Duration, log zerolog.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		conns:        make(map[int64]map[*websocket.Conn]struct{}),
		writeTimeout: writeTimeout,
		log:          log.With().Str("component", "notify_hub").Logger(),
	}
}

func (h *Hub) Notify(ctx context.Context, userID int64, kind EventKind, payload any) {
	data, err := json.Marshal(Event{Kind: kind, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", string(kind)).Msg("marshal event failed")
		return
	}

	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.log.Debug().Int64("user_id", userID).Str("event", string(kind)).Msg("no live connection, event dropped")
		return
	}

	// the caller's cancellation must not tear down healthy sockets
	base := context.WithoutCancel(ctx)
	for _, conn := range targets {
		wctx, cancel := context.WithTimeout(base, h.writeTimeout)
		err := conn.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.log.Warn().Err(err).Int64("user_id", userID).Str("event", string(kind)).Msg("socket write failed, dropping connection")
			h.remove(userID, conn)
			_ = conn.Close(websocket.StatusInternalError, "write failed")
		}
	}
}

// Serve upgrades the request and keeps the socket registered until the
// client goes away. It blocks for the life of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64, opts *websocket.AcceptOptions) error {
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return err
	}

	h.add(userID, conn)
	defer h.remove(userID, conn)

	h.log.Debug().Int64("user_id", userID).Msg("socket connected")

	// clients only listen; any inbound data message closes the socket
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			h.log.Debug().Int64("user_id", userID).Msg("socket disconnected")
			return nil
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				_ = conn.Close(websocket.StatusGoingAway, "ping failed")
				return nil
			}
		}
	}
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) add(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
}

func (h *Hub) remove(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}
