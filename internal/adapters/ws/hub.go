// Package ws implements the broadcast hub: best-effort live fan-out of
// rating-change events to subscribed connections.
//
// Delivery is at-most-once with no replay. Durable history belongs to
// the rating store, not here.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	eventqueue "github.com/okian/duelo/internal/adapters/mq/queue"
	"github.com/okian/duelo/internal/adapters/mq/worker"
	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/pkg/logger"
	"github.com/okian/duelo/pkg/metrics"
)

// Filter selects which players a subscription cares about. An empty
// filter matches every player.
type Filter map[string]struct{}

// NewFilter builds a filter from player IDs. The literal "all" (or an
// empty list) yields the match-everything filter.
func NewFilter(playerIDs []string) Filter {
	f := make(Filter)
	for _, id := range playerIDs {
		if id == "all" {
			return Filter{}
		}
		f[id] = struct{}{}
	}
	return f
}

// Matches reports whether the filter admits events for playerID.
func (f Filter) Matches(playerID string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[playerID]
	return ok
}

// Subscription is one live subscriber. Send carries pre-encoded event
// frames; the owner drains it until it is closed.
type Subscription struct {
	ID     string
	send   chan []byte
	filter atomic.Pointer[Filter]
	drops  atomic.Int64

	closeOnce sync.Once
}

// Events returns the channel of encoded rating-change events.
func (s *Subscription) Events() <-chan []byte {
	return s.send
}

// SetFilter replaces the subscription's player filter.
func (s *Subscription) SetFilter(f Filter) {
	s.filter.Store(&f)
}

func (s *Subscription) matches(playerID string) bool {
	f := s.filter.Load()
	if f == nil {
		return true
	}
	return f.Matches(playerID)
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// Hub maintains the live subscriber set and routes events to it.
//
// Publish enqueues and returns immediately; delivery workers drain the
// queue and route each event. A subscriber whose send buffer stays full
// past the drop threshold is disconnected rather than allowed to stall
// anything.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription

	queue eventqueue.Queue
	pool  *worker.Pool

	subscriberBuffer int
	maxDrops         int64
	queueCapacity    int
	workerCount      int

	logger logger.Logger
}

// NewHub creates a broadcast hub with configuration options.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:             make(map[string]*Subscription),
		subscriberBuffer: defaultSubscriberBuffer,
		maxDrops:         defaultMaxDrops,
		queueCapacity:    defaultQueueCapacity,
		workerCount:      defaultWorkerCount,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = logger.Get().Named("hub")
	}
	h.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(h.queueCapacity))

	return h
}

// Start launches the delivery workers.
func (h *Hub) Start(ctx context.Context) {
	h.pool = worker.NewPool(h.workerCount, h.queue, h)
	h.pool.Start(ctx)
}

// Stop shuts down delivery and closes every subscription.
func (h *Hub) Stop() {
	_ = h.queue.Close()
	if h.pool != nil {
		h.pool.Stop()
	}

	h.mu.Lock()
	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
	h.mu.Unlock()
	metrics.UpdateSubscriberCount(0)
}

// Publish hands an event to the delivery pipeline. It never blocks on
// subscribers; a full queue drops the event (best-effort semantics).
func (h *Hub) Publish(ctx context.Context, e model.RatingChangeEvent) {
	metrics.RecordEventPublished()
	if !h.queue.Enqueue(ctx, e) {
		h.logger.Warn(ctx, "event queue full, dropping rating change",
			logger.String("matchID", e.MatchID),
			logger.String("playerID", e.PlayerID),
		)
	}
}

// Route delivers one event to every matching subscription. Implements
// worker.Router.
func (h *Hub) Route(ctx context.Context, e model.RatingChangeEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error(ctx, "encode rating change", logger.Error(err))
		return
	}

	var slow []string

	h.mu.RLock()
	for id, sub := range h.subs {
		if !sub.matches(e.PlayerID) {
			continue
		}
		select {
		case sub.send <- payload:
			metrics.RecordEventDelivered()
		default:
			metrics.RecordEventDropped()
			if sub.drops.Add(1) > h.maxDrops {
				slow = append(slow, id)
			}
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.Warn(ctx, "disconnecting subscriber",
			logger.String("subscriptionID", id),
			logger.Error(ErrSlowConsumer),
		)
		metrics.RecordSlowConsumerDisconnect()
		h.Unsubscribe(id)
	}
}

// Subscribe registers a new subscription with the given filter.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		ID:   uuid.NewString(),
		send: make(chan []byte, h.subscriberBuffer),
	}
	sub.SetFilter(filter)

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	metrics.UpdateSubscriberCount(n)
	return sub
}

// Unsubscribe removes and closes the subscription with the given handle.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		sub.close()
	}
	metrics.UpdateSubscriberCount(n)
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
