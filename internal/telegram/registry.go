package telegram

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blockedby/chatcount/internal/logger"
)

// registry errors
var (
	ErrSessionUnknown = errors.New("session not registered")
	ErrSessionBusy    = errors.New("session already running a job")
)

// Registry tracks the authenticated sessions available for counting.
// It keeps insertion order (the roster order decides which session is
// probed first) and enforces that a session never drives two jobs at
// the same time.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	order   []string
	busy    map[string]bool
	log     *logger.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		busy:    make(map[string]bool),
		log:     logger.Get(),
	}
}

// Add registers a session client. Re-adding a name replaces the client
// but keeps its original position.
func (r *Registry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := client.Name()
	if _, ok := r.clients[name]; !ok {
		r.order = append(r.order, name)
	}
	r.clients[name] = client
	r.log.Info().Str("session", name).Msg("registry: session added")
}

// Get returns the client for a session name, or nil.
func (r *Registry) Get(name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[name]
}

// First returns the first registered client, or nil when empty.
func (r *Registry) First() *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return nil
	}
	return r.clients[r.order[0]]
}

// Names returns session names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Acquire marks a session busy and returns its client.
// Returns ErrSessionBusy when a job already holds it.
func (r *Registry) Acquire(name string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionUnknown, name)
	}
	if r.busy[name] {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, name)
	}
	r.busy[name] = true
	return client, nil
}

// Release frees a session after its job reported a terminal event.
// Safe to call for a session that is not busy.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, name)
}

// StopAll disconnects every registered client.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		r.clients[name].Stop()
	}
}
