package domain

import "context"

// JobReader is the read-only job access the notification pipeline and HTTP
// surface need. Mutation goes through the reconciliation path only.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*Job, error)
}

// StatusPublisher delivers a JobStatusData projection to the realtime channel
// owned by one (agent, user) pair. Delivery is at-most-once.
type StatusPublisher interface {
	PublishJobStatus(agentID, userID string, data JobStatusData)
}
