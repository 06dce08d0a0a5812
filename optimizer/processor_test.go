package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/engine/analytics"
	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/store"
)

type fakeProcStore struct {
	mu      sync.Mutex
	jobs    map[string]*store.PaymentJob
	players map[int64]*store.Player
	reports map[string]json.RawMessage
}

func newFakeProcStore() *fakeProcStore {
	return &fakeProcStore{
		jobs:    make(map[string]*store.PaymentJob),
		players: make(map[int64]*store.Player),
		reports: make(map[string]json.RawMessage),
	}
}

func (f *fakeProcStore) ListJobsByStatus(ctx context.Context, status string) ([]*store.PaymentJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.PaymentJob
	for _, j := range f.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeProcStore) ClaimForProcessing(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[jobID]
	if j.Status != store.JobPaymentVerified {
		return store.ErrJobClaimed
	}
	j.Status = store.JobProcessing
	return nil
}

func (f *fakeProcStore) CompleteJob(ctx context.Context, jobID string, report json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID].Status = store.JobCompleted
	f.reports[jobID] = report
	return nil
}

func (f *fakeProcStore) FailJob(ctx context.Context, jobID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID].Status = store.JobFailed
	f.jobs[jobID].ErrorMessage = message
	return nil
}

func (f *fakeProcStore) GetPlayerByID(ctx context.Context, id int64) (*store.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, store.ErrPlayerNotFound
	}
	return p, nil
}

type fakeHeroSource struct {
	heroes []chain.Hero
	err    error
}

func (f *fakeHeroSource) GetAllHeroesByOwner(ctx context.Context, owner string) ([]chain.Hero, error) {
	return f.heroes, f.err
}

type fakePoolSource struct {
	pools []analytics.Pool
}

func (f *fakePoolSource) WaitForReady(ctx context.Context, onWait func(int)) error { return nil }
func (f *fakePoolSource) GetAll() ([]analytics.Pool, error)                        { return f.pools, nil }

type fakeLedger struct {
	mu      sync.Mutex
	credits []decimal.Decimal
}

func (f *fakeLedger) Credit(ctx context.Context, playerID int64, amount decimal.Decimal) (*store.JewelBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits = append(f.credits, amount)
	return &store.JewelBalance{PlayerID: playerID, Balance: amount}, nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSender) SendDirect(ctx context.Context, user, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func verifiedJob(id string) *store.PaymentJob {
	paidAt := time.Now().UTC()
	return &store.PaymentJob{
		ID:             id,
		PlayerID:       1,
		Status:         store.JobPaymentVerified,
		Chain:          "dfk",
		FromWallet:     "0xabc",
		ExpectedAmount: dec("25"),
		PaidAmount:     dec("25"),
		PaidAt:         &paidAt,
		LPSnapshot:     []byte(`[{"chain":"dfk","pid":0,"pair":"JEWEL-USDC","lpAmount":"10","valueUsd":"4000"}]`),
	}
}

func TestDrainDeliversReportAndCredits(t *testing.T) {
	st := newFakeProcStore()
	st.jobs["job-1"] = verifiedJob("job-1")
	st.players[1] = &store.Player{ID: 1, ChatID: "chat-1"}

	heroes := &fakeHeroSource{heroes: []chain.Hero{hero(1, 150), hero(2, 80)}}
	pools := &fakePoolSource{pools: []analytics.Pool{pool(0, "JEWEL-USDC", "5", "30")}}
	ldg := &fakeLedger{}
	sender := &recordingSender{}

	p := NewProcessor(st, heroes, pools, ldg, sender, 10, time.Second, 0, zerolog.New(io.Discard))
	p.Drain(context.Background())

	assert.Equal(t, store.JobCompleted, st.jobs["job-1"].Status)
	require.Len(t, sender.messages, 3, "report arrives as three chunks")
	assert.Contains(t, sender.messages[0], "where you stand")
	assert.Contains(t, sender.messages[1], "Recommended assignments")
	assert.Contains(t, sender.messages[2], "The math")

	require.Len(t, ldg.credits, 1)
	assert.True(t, ldg.credits[0].Equal(dec("25")))

	var report Report
	require.NoError(t, json.Unmarshal(st.reports["job-1"], &report))
	assert.NotEmpty(t, report.Plan.Assignments)
}

func TestDrainFailureMarksJobFailed(t *testing.T) {
	st := newFakeProcStore()
	st.jobs["job-1"] = verifiedJob("job-1")
	st.players[1] = &store.Player{ID: 1, ChatID: "chat-1"}

	heroes := &fakeHeroSource{err: errors.New("hero api down")}
	pools := &fakePoolSource{}
	sender := &recordingSender{}

	p := NewProcessor(st, heroes, pools, &fakeLedger{}, sender, 10, time.Second, 0, zerolog.New(io.Discard))
	p.Drain(context.Background())

	assert.Equal(t, store.JobFailed, st.jobs["job-1"].Status)
	assert.Contains(t, st.jobs["job-1"].ErrorMessage, "hero api down")
	// The user still hears something.
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "internal error")
}

func TestDrainSkipsJobsClaimedElsewhere(t *testing.T) {
	st := newFakeProcStore()
	job := verifiedJob("job-1")
	st.jobs["job-1"] = job
	st.players[1] = &store.Player{ID: 1, ChatID: "chat-1"}

	sender := &recordingSender{}
	p := NewProcessor(st, &fakeHeroSource{}, &fakePoolSource{}, &fakeLedger{}, sender, 10, time.Second, 0, zerolog.New(io.Discard))

	// Another worker already moved the job to processing.
	job.Status = store.JobProcessing
	p.Drain(context.Background())
	assert.Equal(t, store.JobProcessing, job.Status)
	assert.Empty(t, sender.messages)
}
