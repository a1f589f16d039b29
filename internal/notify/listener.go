package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/reconcile"
)

// JobStatusChannel is the store-level notification channel job row changes
// arrive on.
const JobStatusChannel = "job_status_updated"

// ConnState tracks the listener connection lifecycle.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateListening
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	default:
		return "disconnected"
	}
}

// changeEvent is the raw payload on the notification channel: either a row
// change or a heartbeat carrying only Now.
type changeEvent struct {
	JobID          string     `json:"jobId"`
	UserID         string     `json:"userId"`
	AgentID        string     `json:"agentId"`
	AgentJobStatus *string    `json:"agentJobStatus"`
	OnChainStatus  *string    `json:"onChainStatus"`
	Now            *time.Time `json:"now"`
}

// Listener owns this process's single subscription to the store's change
// channel. Raw payloads fan out to registered in-process subscribers; job
// events additionally publish the JobStatusData projection to the realtime
// hub. Explicitly constructed with its own Start/Stop lifecycle.
type Listener struct {
	dsn       string
	channel   string
	jobs      domain.JobReader
	publisher domain.StatusPublisher
	logger    infra.Logger
	metrics   *infra.Metrics

	mu      sync.Mutex
	subs    map[int64]func(payload []byte)
	nextSub int64

	state atomic.Int32
	pql   *pq.Listener
	done  chan struct{}
}

func NewListener(dsn string, jobs domain.JobReader, publisher domain.StatusPublisher, logger infra.Logger, metrics *infra.Metrics) *Listener {
	return &Listener{
		dsn:       dsn,
		channel:   JobStatusChannel,
		jobs:      jobs,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		subs:      make(map[int64]func([]byte)),
	}
}

// State reports the current connection state.
func (l *Listener) State() ConnState {
	return ConnState(l.state.Load())
}

// Subscribe registers fn for every raw payload received. The returned
// function unregisters it; call it when the client connection ends.
func (l *Listener) Subscribe(fn func(payload []byte)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSub++
	id := l.nextSub
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Start opens the LISTEN connection and runs the receive loop until ctx is
// cancelled or Stop is called. lib/pq reconnects on its own; every
// reconnect re-subscribes the channel automatically.
func (l *Listener) Start(ctx context.Context) error {
	if l.pql != nil {
		return fmt.Errorf("notify: listener already started")
	}
	l.state.Store(int32(StateConnecting))

	l.pql = pq.NewListener(l.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected, pq.ListenerEventReconnected:
			l.state.Store(int32(StateListening))
			l.logger.Info().Str("channel", l.channel).Msg("notify: listening")
		case pq.ListenerEventDisconnected:
			l.state.Store(int32(StateDisconnected))
			l.logger.Warn().Err(err).Msg("notify: disconnected, reconnecting")
		case pq.ListenerEventConnectionAttemptFailed:
			l.state.Store(int32(StateConnecting))
			l.logger.Warn().Err(err).Msg("notify: connection attempt failed")
		}
	})

	if err := l.pql.Listen(l.channel); err != nil {
		l.state.Store(int32(StateDisconnected))
		return fmt.Errorf("notify: listen %s: %w", l.channel, err)
	}

	l.done = make(chan struct{})
	go l.run(ctx)
	return nil
}

// Stop closes the subscription connection and waits for the loop to exit.
func (l *Listener) Stop() error {
	if l.pql == nil {
		return nil
	}
	err := l.pql.Close()
	if l.done != nil {
		<-l.done
	}
	l.state.Store(int32(StateDisconnected))
	return err
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	pingEvery := time.NewTicker(90 * time.Second)
	defer pingEvery.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-l.pql.Notify:
			if !ok {
				return
			}
			// lib/pq injects a nil notification after a reconnect; nothing
			// to deliver, consumers re-poll ground truth anyway.
			if n == nil {
				continue
			}
			l.handlePayload(ctx, []byte(n.Extra))
		case <-pingEvery.C:
			go func() {
				if err := l.pql.Ping(); err != nil {
					l.logger.Warn().Err(err).Msg("notify: ping failed")
				}
			}()
		}
	}
}

// handlePayload fans the raw payload out, then republishes the narrowed
// projection for job events. Malformed payloads are logged and dropped; the
// loop must never die on bad input.
func (l *Listener) handlePayload(ctx context.Context, payload []byte) {
	l.fanOut(payload)

	var ev changeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		l.drop(ctx, "unmarshal", err)
		return
	}
	if ev.Now != nil {
		l.logger.Debug().Time("now", *ev.Now).Msg("notify: heartbeat")
		return
	}
	if ev.JobID == "" || ev.UserID == "" || ev.AgentID == "" {
		l.drop(ctx, "missing identifiers", nil)
		return
	}

	job, err := l.jobs.GetByID(ctx, ev.JobID)
	if err != nil {
		l.drop(ctx, "load job", err)
		return
	}

	// Narrowing step: clients get the projection, never the raw row event.
	l.publisher.PublishJobStatus(ev.AgentID, ev.UserID, reconcile.StatusData(job, time.Now()))
}

func (l *Listener) fanOut(payload []byte) {
	l.mu.Lock()
	fns := make([]func([]byte), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

func (l *Listener) drop(ctx context.Context, reason string, err error) {
	l.logger.Warn().Err(err).Str("reason", reason).Msg("notify: dropping payload")
	if l.metrics != nil {
		l.metrics.NotificationsDropped.Add(ctx, 1)
	}
}
