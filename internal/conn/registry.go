package conn

import (
	"sort"
	"sync"
	"sync/atomic"

	"ionic/internal/protocol"
)

// Registry holds every open connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[ID]*Connection
	next  atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ID]*Connection)}
}

// NextID returns a fresh connection id.
func (r *Registry) NextID() ID {
	return ID(r.next.Add(1))
}

func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	r.conns[c.ID()] = c
	r.mu.Unlock()
}

func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id ID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns every connection ordered by id.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Playing returns connections in the play state ordered by id.
func (r *Registry) Playing() []*Connection {
	all := r.All()
	out := all[:0]
	for _, c := range all {
		if c.State() == protocol.StatePlay {
			out = append(out, c)
		}
	}
	return out
}

// FindByName returns the playing connection with the given username.
func (r *Registry) FindByName(name string) (*Connection, bool) {
	for _, c := range r.Playing() {
		if c.Username() == name {
			return c, true
		}
	}
	return nil, false
}

// CloseAll closes every connection with reason.
func (r *Registry) CloseAll(reason string) {
	for _, c := range r.All() {
		c.Close(reason)
	}
}
