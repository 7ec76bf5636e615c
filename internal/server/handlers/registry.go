package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Client is a registered client as tracked by the activation server.
type Client struct {
	ID        string
	UserAgent string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Registry stores clients and their token expiry in memory. Expired clients
// are dropped on refresh and swept from Create at most once per ttl, so no
// entry outlives two token lifetimes.
type Registry struct {
	mu        sync.Mutex
	clients   map[string]*Client
	ttl       time.Duration
	clock     clockwork.Clock
	lastPrune time.Time
}

// NewRegistry returns an empty registry whose tokens live for ttl.
func NewRegistry(ttl time.Duration, clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{clients: make(map[string]*Client), ttl: ttl, clock: clock, lastPrune: clock.Now()}
}

// Create registers a new client.
func (r *Registry) Create(userAgent, ip string) Client {
	now := r.clock.Now()
	c := &Client{
		ID:        uuid.NewString(),
		UserAgent: userAgent,
		IP:        ip,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.mu.Lock()
	if now.Sub(r.lastPrune) >= r.ttl {
		r.pruneLocked(now)
	}
	r.clients[c.ID] = c
	r.mu.Unlock()
	return *c
}

// Prune drops every expired client and returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked(r.clock.Now())
}

func (r *Registry) pruneLocked(now time.Time) int {
	removed := 0
	for id, c := range r.clients {
		if !now.Before(c.ExpiresAt) {
			delete(r.clients, id)
			removed++
		}
	}
	r.lastPrune = now
	return removed
}

// Refresh extends the token of id. ok is false when the client is unknown or
// its token already expired; expired clients are dropped.
func (r *Registry) Refresh(id string) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return Client{}, false
	}
	now := r.clock.Now()
	if !now.Before(c.ExpiresAt) {
		delete(r.clients, id)
		return Client{}, false
	}
	c.ExpiresAt = now.Add(r.ttl)
	return *c, true
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
