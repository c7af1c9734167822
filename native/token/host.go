package token

import "sync"

// Host serialises access to an engine shared by several goroutines, such as
// the HTTP gateway and a simulation driver. Collaborators called back by the
// engine during a call must use the engine directly, never the host.
type Host struct {
	mu     sync.RWMutex
	engine *Engine
}

func NewHost(engine *Engine) *Host {
	return &Host{engine: engine}
}

// Update runs fn with exclusive access.
func (h *Host) Update(fn func(*Engine) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.engine)
}

// View runs fn with shared access. fn must not mutate the engine.
func (h *Host) View(fn func(*Engine) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.engine)
}
