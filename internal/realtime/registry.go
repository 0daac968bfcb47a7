// internal/realtime/registry.go
package realtime

import (
	"sync"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
)

// Session is a live connection able to accept an outbound payload. Deliver
// must not block; it reports whether the payload was accepted.
type Session interface {
	Deliver(payload []byte) bool
}

// bucket holds every live session for one recipient. Lifecycle events for a
// recipient contend only on this bucket, never on other recipients.
type bucket struct {
	mu       sync.Mutex
	sessions map[Session]struct{}
}

// Registry maps recipient identifiers to their live sessions. It is safe for
// concurrent use from connection lifecycles and dispatch fan-out.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	logger  logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		buckets: make(map[string]*bucket),
		logger:  log,
	}
}

// Register adds a session for the recipient.
func (r *Registry) Register(recipientID string, s Session) {
	r.mu.Lock()
	b, ok := r.buckets[recipientID]
	if !ok {
		b = &bucket{sessions: make(map[Session]struct{})}
		r.buckets[recipientID] = b
	}
	r.mu.Unlock()

	b.mu.Lock()
	b.sessions[s] = struct{}{}
	total := len(b.sessions)
	b.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	r.logger.Debug("realtime session registered", map[string]interface{}{
		"recipient_id": recipientID,
		"sessions":     total,
	})
}

// Unregister removes a session for the recipient. Removing a session that is
// not registered is a no-op.
func (r *Registry) Unregister(recipientID string, s Session) {
	r.mu.RLock()
	b, ok := r.buckets[recipientID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	b.mu.Lock()
	_, present := b.sessions[s]
	if present {
		delete(b.sessions, s)
	}
	empty := len(b.sessions) == 0
	b.mu.Unlock()

	if !present {
		return
	}
	metrics.RealtimeConnections.Dec()

	if empty {
		r.mu.Lock()
		// Re-check under the write lock; a register may have raced in.
		b.mu.Lock()
		if len(b.sessions) == 0 {
			delete(r.buckets, recipientID)
		}
		b.mu.Unlock()
		r.mu.Unlock()
	}

	r.logger.Debug("realtime session unregistered", map[string]interface{}{
		"recipient_id": recipientID,
	})
}

// FanOut delivers payload to every live session of the recipient and returns
// the number of sessions that accepted it. Zero means the recipient is not
// currently connected, which is not an error.
func (r *Registry) FanOut(recipientID string, payload []byte) int {
	r.mu.RLock()
	b, ok := r.buckets[recipientID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	// Snapshot under the bucket lock so a concurrent unregister cannot
	// mutate the set mid-iteration. Deliveries happen outside the lock.
	b.mu.Lock()
	snapshot := make([]Session, 0, len(b.sessions))
	for s := range b.sessions {
		snapshot = append(snapshot, s)
	}
	b.mu.Unlock()

	delivered := 0
	for _, s := range snapshot {
		if s.Deliver(payload) {
			delivered++
		}
	}

	if delivered > 0 {
		metrics.RealtimeFanoutDelivered.Add(float64(delivered))
	}
	return delivered
}

// ConnectionCount reports the number of live sessions for a recipient.
func (r *Registry) ConnectionCount(recipientID string) int {
	r.mu.RLock()
	b, ok := r.buckets[recipientID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
