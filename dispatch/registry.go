// Package dispatch routes decoded transport envelopes to handlers by message type.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/AltairaLabs/PoseKit/logger"
	pkmetrics "github.com/AltairaLabs/PoseKit/metrics/prometheus"
	"github.com/AltairaLabs/PoseKit/types"
)

// Handler receives every envelope of the type it subscribed to.
type Handler func(types.Envelope)

type registration struct {
	id      uint64
	handler Handler
}

// Registry maps message types to ordered handler lists.
//
// Dispatch is synchronous on the caller's goroutine. The handler list is copied
// before fan-out, so handlers may subscribe or unsubscribe from inside a
// callback; registrations added during a fan-out do not see that envelope.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]registration),
	}
}

// Subscribe registers h for msgType and returns a function removing exactly
// this registration. Registering the same function twice yields two
// registrations. The returned function is safe to call more than once.
func (r *Registry) Subscribe(msgType string, h Handler) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[msgType] = append(r.handlers[msgType], registration{id: id, handler: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(msgType, id) })
	}
}

func (r *Registry) remove(msgType string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.handlers[msgType]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, msgType)
		} else {
			r.handlers[msgType] = next
		}
		return
	}
}

// Dispatch delivers env to every handler registered for env.Type, in
// registration order. A panicking handler is logged and skipped.
func (r *Registry) Dispatch(env types.Envelope) {
	r.mu.RLock()
	regs := r.handlers[env.Type]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	r.mu.RUnlock()

	for _, reg := range snapshot {
		safeInvoke(reg.handler, env)
	}
}

// Handlers returns the number of registrations for msgType.
func (r *Registry) Handlers(msgType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[msgType])
}

// Clear removes all registrations.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string][]registration)
}

func safeInvoke(h Handler, env types.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			pkmetrics.RecordHandlerPanic(env.Type)
			logger.Error("dispatch handler panicked", "type", env.Type, "panic", fmt.Sprint(rec))
		}
	}()
	h(env)
}
