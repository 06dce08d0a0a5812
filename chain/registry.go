package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus is the last observed liveness of one chain endpoint.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency_ms"`
	Block     uint64        `json:"block"`
	LastCheck time.Time     `json:"last_check"`
	Error     string        `json:"error,omitempty"`
}

// Registry holds the configured chain clients keyed by chain name.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	health  map[string]HealthStatus
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		health:  make(map[string]HealthStatus),
	}
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

func (r *Registry) Get(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// MustGet returns a registered client or an error naming the chain.
func (r *Registry) MustGet(name string) (*Client, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("chain %q is not configured", name)
	}
	return c, nil
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll probes every registered chain by asking for the tip and
// caches the result.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	results := make(map[string]HealthStatus, len(clients))
	for _, c := range clients {
		start := time.Now()
		tip, err := c.BlockNumber(ctx)
		status := HealthStatus{
			Healthy:   err == nil,
			Latency:   time.Since(start),
			Block:     tip,
			LastCheck: time.Now().UTC(),
		}
		if err != nil {
			status.Error = err.Error()
		}
		results[c.Name()] = status
	}

	r.mu.Lock()
	for name, status := range results {
		r.health[name] = status
	}
	r.mu.Unlock()

	return results
}

// Health returns the cached status map.
func (r *Registry) Health() map[string]HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]HealthStatus, len(r.health))
	for k, v := range r.health {
		out[k] = v
	}
	return out
}
