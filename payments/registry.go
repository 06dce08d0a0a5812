// Package payments watches the two chains for transfers settling open
// invoices. The in-memory registry accelerates the scanner; the job store
// stays authoritative, so every registry mutation pairs with a store write
// in the same operation.
package payments

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/store"
)

// Registry holds the open (pending) payment jobs keyed by job ID.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*store.PaymentJob
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*store.PaymentJob)}
}

// Load replays all pending jobs from the store, which is how the registry
// survives restarts.
func (r *Registry) Load(ctx context.Context, st JobStore, logger zerolog.Logger) error {
	jobs, err := st.ListJobsByStatus(ctx, store.JobPending)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	logger.Info().Int("jobs", len(jobs)).Msg("payment registry loaded")
	return nil
}

// Add registers an open job.
func (r *Registry) Add(j *store.PaymentJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}

// Remove drops a job from the registry.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Get returns one open job.
func (r *Registry) Get(jobID string) (*store.PaymentJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobID]
	return j, ok
}

// List returns the open jobs in no particular order.
func (r *Registry) List() []*store.PaymentJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*store.PaymentJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}

// SetLastScanned advances a job's in-memory scan watermark.
func (r *Registry) SetLastScanned(jobID string, block uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[jobID]; ok {
		j.LastScannedBlock = block
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
