package events

import "sync"

// Handler receives the payload passed to Emit.
type Handler func(payload any)

// Emitter is a per-instance subscription registry. Each Show and Recorder
// owns its own Emitter; there is no ambient global dispatch. Handlers run
// synchronously on the goroutine that calls Emit, in subscription order.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id      int
	handler Handler
}

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	name string
	id   int
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string][]subscription)}
}

// On registers handler for the named event and returns a handle for Off.
func (e *Emitter) On(name string, handler Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.subs[name] = append(e.subs[name], subscription{id: e.nextID, handler: handler})
	return Subscription{name: name, id: e.nextID}
}

// Off removes a previously registered handler. Unknown handles are ignored.
func (e *Emitter) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.subs[sub.name]
	for i, s := range list {
		if s.id == sub.id {
			e.subs[sub.name] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered for name with payload. The handler
// list is snapshotted first, so handlers may subscribe or unsubscribe
// without corrupting the iteration.
func (e *Emitter) Emit(name string, payload any) {
	e.mu.Lock()
	list := make([]subscription, len(e.subs[name]))
	copy(list, e.subs[name])
	e.mu.Unlock()

	for _, s := range list {
		s.handler(payload)
	}
}
