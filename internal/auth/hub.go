package auth

import (
	"sync"
	"time"
)

// SignOutEvent is published once per sign-out. Seq increases by one for every
// sign-out on the same Hub, so listeners can tell repeats from new events.
type SignOutEvent struct {
	Seq  uint64
	Time time.Time
}

// SignOutSource is anything that can notify listeners about sign-outs.
type SignOutSource interface {
	Listen(fn func(SignOutEvent)) (unsubscribe func())
}

// Hub fans sign-out events out to listeners.
type Hub struct {
	mu        sync.Mutex
	seq       uint64
	nextID    uint64
	listeners map[uint64]func(SignOutEvent)
}

// NewHub creates a hub without listeners.
func NewHub() *Hub {
	return &Hub{listeners: make(map[uint64]func(SignOutEvent))}
}

// Listen registers fn for future sign-outs. Listeners are called on the
// goroutine that calls SignOut and must not block.
func (h *Hub) Listen(fn func(SignOutEvent)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// SignOut publishes a new sign-out event to every listener.
func (h *Hub) SignOut() SignOutEvent {
	h.mu.Lock()
	h.seq++
	ev := SignOutEvent{Seq: h.seq, Time: time.Now()}
	fns := make([]func(SignOutEvent), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
