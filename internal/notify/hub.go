// Package notify carries job change events from the persistent store to
// connected clients: a single LISTEN subscription per process fans low-level
// row-change payloads out to in-process subscribers, and a hub pushes the
// narrowed JobStatusData projection to realtime channels scoped per
// (agent, user) pair.
package notify

import (
	"context"
	"fmt"
	"sync"

	"server/internal/domain"
	"server/internal/infra"
)

// ChannelName returns the deterministic realtime channel for one
// (agent, user) pair, so only the owning user's clients see a job's status.
func ChannelName(agentID, userID string) string {
	return fmt.Sprintf("agent_jobs:agent_%s:user_%s", agentID, userID)
}

// Subscription is one client's handle on a realtime channel. Receive from C;
// delivery is at-most-once and slow consumers lose messages rather than
// block the publisher.
type Subscription struct {
	C       chan domain.JobStatusData
	channel string
}

// Hub routes JobStatusData to the subscribers of its channel. Explicitly
// constructed and injectable; tests run isolated instances.
type Hub struct {
	logger  infra.Logger
	metrics *infra.Metrics

	mu       sync.RWMutex
	channels map[string]map[*Subscription]struct{}
}

func NewHub(logger infra.Logger, metrics *infra.Metrics) *Hub {
	return &Hub{
		logger:   logger,
		metrics:  metrics,
		channels: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription on channel.
func (h *Hub) Subscribe(channel string) *Subscription {
	sub := &Subscription{C: make(chan domain.JobStatusData, 16), channel: channel}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[sub.channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.channels, sub.channel)
	}
	close(sub.C)
}

// PublishJobStatus delivers data to every subscriber of the (agent, user)
// channel. Never blocks; a full subscriber buffer drops the message, since
// clients re-poll the job row as their correctness backstop.
func (h *Hub) PublishJobStatus(agentID, userID string, data domain.JobStatusData) {
	channel := ChannelName(agentID, userID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.channels[channel] {
		select {
		case sub.C <- data:
		default:
			h.logger.Warn().
				Str("channel", channel).
				Str("job_id", data.JobID).
				Msg("notify: subscriber buffer full, dropping status")
			if h.metrics != nil {
				h.metrics.NotificationsDropped.Add(context.Background(), 1)
			}
		}
	}
}

var _ domain.StatusPublisher = (*Hub)(nil)
