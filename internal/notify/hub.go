package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Listener receives envelopes published after it subscribed. C is closed
// when the listener is unsubscribed.
type Listener struct {
	ID uuid.UUID
	C  <-chan Envelope

	ch chan Envelope
}

// Hub is an in-process broadcast channel with no replay and no
// acknowledgement. A listener whose buffer is full misses the envelope.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uuid.UUID]*Listener
	buffer    int
	logger    *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		listeners: make(map[uuid.UUID]*Listener),
		buffer:    buffer,
		logger:    logger,
	}
}

func (h *Hub) Subscribe() *Listener {
	ch := make(chan Envelope, h.buffer)
	l := &Listener{ID: uuid.New(), C: ch, ch: ch}

	h.mu.Lock()
	h.listeners[l.ID] = l
	h.mu.Unlock()

	h.logger.Debug("listener connected", "listener", l.ID)
	return l
}

// Unsubscribe drops l and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(l *Listener) {
	h.mu.Lock()
	_, ok := h.listeners[l.ID]
	if ok {
		delete(h.listeners, l.ID)
		close(l.ch)
	}
	h.mu.Unlock()

	if ok {
		h.logger.Debug("listener disconnected", "listener", l.ID)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) Emit(e Event) {
	h.Publish(newEnvelope(EventProcessingUpdate, e))
}

func (h *Hub) EmitError(msg string) {
	h.Publish(newEnvelope(EventError, msg))
}

// Publish delivers env to every current listener without blocking.
func (h *Hub) Publish(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, l := range h.listeners {
		select {
		case l.ch <- env:
		default:
			h.logger.Warn("listener too slow, dropping event", "listener", id, "event", env.Event)
		}
	}
}
