package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"server/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin policy is enforced by the fronting proxy.
		return true
	},
}

const realtimeWriteTimeout = 10 * time.Second

// Realtime upgrades to a WebSocket subscribed to the caller's
// (agent, user) status channel. Delivery is at-most-once; clients re-poll
// the job status endpoint as their correctness backstop.
func (a *App) Realtime(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "agentId is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("realtime: upgrade failed")
		return
	}
	defer conn.Close()

	sub := a.Hub.Subscribe(notify.ChannelName(agentID, userID))
	defer a.Hub.Unsubscribe(sub)

	// Reader only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case data, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
			if err := conn.WriteJSON(data); err != nil {
				a.Logger.Debug().Err(err).Msg("realtime: write failed, closing")
				return
			}
		}
	}
}
