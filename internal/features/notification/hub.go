package notification

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Publisher delivers events to the connections of one session.
type Publisher interface {
	Publish(event Event)
}

// Hub fans events out to subscribers keyed by session id. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: 16,
		logger: logger.Named("notification"),
	}
}

// Subscribe registers a receiver for sessionID. The returned cancel func must be called
// once the receiver stops reading; it closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
}

func (h *Hub) Publish(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.subs[event.SessionID]
	if len(subs) == 0 {
		h.logger.Debug("no subscribers for event", zap.String("session_id", event.SessionID), zap.String("type", string(event.Type)))
		return
	}
	for ch := range subs {
		select {
		case ch <- event:
		default:
			h.logger.Warn("subscriber buffer full, dropping event", zap.String("session_id", event.SessionID))
		}
	}
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
