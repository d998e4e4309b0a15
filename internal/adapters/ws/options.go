package ws

import (
	"runtime"
	"time"

	"github.com/okian/duelo/pkg/logger"
)

// Default hub and connection tuning.
const (
	defaultSubscriberBuffer = 64
	defaultMaxDrops         = 32
	defaultQueueCapacity    = 65536
	defaultPingInterval     = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

var defaultWorkerCount = runtime.NumCPU()

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithSubscriberBuffer sets the per-subscription send buffer size.
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.subscriberBuffer = n
		}
	}
}

// WithMaxDrops sets how many sends may be dropped before a subscriber
// is disconnected as unresponsive.
func WithMaxDrops(n int64) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxDrops = n
		}
	}
}

// WithQueueCapacity bounds the delivery queue between publishers and
// delivery workers.
func WithQueueCapacity(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueCapacity = n
		}
	}
}

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.workerCount = n
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
