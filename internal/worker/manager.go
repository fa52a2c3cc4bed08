package worker

import (
	"context"
	"errors"
	"time"

	"nyayachat/internal/redis"
)

// ErrDispatcherBusy is returned when the relay queue is full.
var ErrDispatcherBusy = errors.New("dispatcher queue full")

// DispatcherConfig sizes the relay worker pool.
type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

// RelayRequest describes one upstream relay to schedule. Do runs on a
// pooled worker and must honor the context for cancellation.
type RelayRequest struct {
	Context        context.Context
	UserID         int64
	ConversationID int64
	Do             func(ctx context.Context) error
}

type relayTask struct {
	userID   int64
	ctx      context.Context
	do       func(ctx context.Context) error
	resultCh chan error
}

func (t *relayTask) run() {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		t.resultCh <- err
		return
	}
	t.resultCh <- t.do(ctx)
}

func (t *relayTask) abandon() {
	select {
	case t.resultCh <- context.Canceled:
	default:
	}
}

// Manager schedules upstream relays through the dispatcher and exposes
// the shared conversation history cache.
type Manager struct {
	dispatcher *Dispatcher
	cache      *historyCache
}

func NewManager(cfg DispatcherConfig, cacheClient *redis.Client) *Manager {
	m := &Manager{
		dispatcher: NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, cfg.WorkerIdleTimeout),
		cache:      newHistoryCache(cacheClient),
	}
	m.cache.startListener(func(msg invalidateMessage) {
		debugLog("[manager] invalidation for conversation %d", msg.ConversationID)
	})
	return m
}

// Relay queues the request and blocks until a worker has run it.
func (m *Manager) Relay(req RelayRequest) error {
	if req.Do == nil {
		return errors.New("relay request requires a Do func")
	}
	task := &relayTask{
		userID:   req.UserID,
		ctx:      req.Context,
		do:       req.Do,
		resultCh: make(chan error, 1),
	}
	select {
	case m.dispatcher.JobQueue <- Job{Type: Relay, Task: task}:
	default:
		return ErrDispatcherBusy
	}
	return <-task.resultCh
}

// Cache returns the conversation history cache shared across instances.
func (m *Manager) Cache() *ConversationCache {
	return &ConversationCache{inner: m.cache}
}

// ResetUser drops queued work for the user, e.g. on logout or deletion.
func (m *Manager) ResetUser(userID int64) {
	m.dispatcher.CancelUser(userID)
	m.cache.publishInvalidation(invalidateMessage{UserID: userID, Scope: scopeUser})
}

// Purge removes cached state for a conversation and broadcasts the
// invalidation to other instances.
func (m *Manager) Purge(userID, conversationID int64) {
	m.cache.invalidateConversation(conversationID)
	m.cache.publishInvalidation(invalidateMessage{
		UserID:         userID,
		ConversationID: conversationID,
		Scope:          scopeConversation,
	})
}
