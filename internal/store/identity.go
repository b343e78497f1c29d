package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/puppetworks/puppetstage/internal/model"
)

// MemoryIdentity is an IdentityProvider that mints anonymous identities
// locally. Sign-in is synchronous; the callback list still fires so hosts
// wired for a remote provider behave identically.
type MemoryIdentity struct {
	mu        sync.Mutex
	current   model.Identity
	callbacks []func(model.Identity)
}

func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{}
}

func (p *MemoryIdentity) Current() (model.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.current.Valid()
}

func (p *MemoryIdentity) OnChange(cb func(model.Identity)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

func (p *MemoryIdentity) SignInAnonymously(ctx context.Context) (model.Identity, error) {
	p.mu.Lock()
	if p.current.Valid() {
		id := p.current
		p.mu.Unlock()
		return id, nil
	}
	id := model.Identity{ID: uuid.New().String(), Anonymous: true}
	p.current = id
	callbacks := make([]func(model.Identity), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(id)
	}
	return id, nil
}

// SignOut clears the identity. Used by tests exercising creator gates.
func (p *MemoryIdentity) SignOut() {
	p.mu.Lock()
	p.current = model.Identity{}
	callbacks := make([]func(model.Identity), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(model.Identity{})
	}
}

// SetCurrent force-installs an identity. Used by tests to simulate a second
// actor editing a show they did not create.
func (p *MemoryIdentity) SetCurrent(id model.Identity) {
	p.mu.Lock()
	p.current = id
	callbacks := make([]func(model.Identity), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(id)
	}
}
