package intake

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/engine/chat"
	"github.com/hedgeledger/engine/payments"
	"github.com/hedgeledger/engine/positions"
	"github.com/hedgeledger/engine/pricing"
	"github.com/hedgeledger/engine/store"
)

type fakeIntakeStore struct {
	mu   sync.Mutex
	jobs []*store.PaymentJob
}

func (f *fakeIntakeStore) GetBalance(ctx context.Context, playerID int64) (*store.JewelBalance, error) {
	return &store.JewelBalance{PlayerID: playerID, LifetimeDeposits: decimal.NewFromInt(500), Tier: "silver"}, nil
}

func (f *fakeIntakeStore) CreateJob(ctx context.Context, j *store.PaymentJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, j)
	return nil
}

type fakePositions struct{}

func (fakePositions) ForWallet(ctx context.Context, wallet string) ([]positions.Position, error) {
	return []positions.Position{{Chain: "dfk", PID: 0, Pair: "JEWEL-USDC",
		LPAmount: decimal.NewFromInt(10), ValueUSD: decimal.NewFromInt(4000)}}, nil
}

type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (s *captureSender) SendDirect(ctx context.Context, user, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

type nullConfigStore struct{}

func (nullConfigStore) GetPricingConfig(ctx context.Context, key string) (*store.PricingConfigRow, error) {
	return nil, store.ErrConfigNotFound
}

func TestCreatePaymentRequest(t *testing.T) {
	st := &fakeIntakeStore{}
	registry := payments.NewRegistry()
	sender := &captureSender{}
	log := zerolog.New(io.Discard)

	svc := NewService(st, registry, pricing.NewEngine(nullConfigStore{}, log),
		fakePositions{}, func(ctx context.Context) (uint64, error) { return 5000, nil },
		sender, "dfk", "0xHouse000000000000000000000000000000000001", 2*time.Hour, log)

	player := &store.Player{ID: 1, ChatID: "chat-1", PrimaryWallet: "0xabc"}
	job, err := svc.CreatePaymentRequest(context.Background(), player)
	require.NoError(t, err)

	assert.Equal(t, store.JobPending, job.Status)
	assert.Equal(t, uint64(5000), job.StartBlock)
	// Base rate, or base × peak multiplier when the test runs in the
	// configured peak hours.
	base := decimal.NewFromInt(25)
	peak := decimal.RequireFromString("30")
	assert.True(t, job.ExpectedAmount.Equal(base) || job.ExpectedAmount.Equal(peak),
		"silver player pays base (or peak-adjusted base), got %s", job.ExpectedAmount)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), job.ExpiresAt, time.Minute)
	assert.NotEmpty(t, job.LPSnapshot)

	// The job is open in both the store and the registry.
	require.Len(t, st.jobs, 1)
	_, open := registry.Get(job.ID)
	assert.True(t, open)

	// Instructions went out exactly once with the essentials.
	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], job.ExpectedAmount.StringFixed(2))
	assert.Contains(t, sender.msgs[0], "0xHouse000000000000000000000000000000000001")
	assert.Contains(t, sender.msgs[0], job.ExpiresAt.Format(time.RFC3339))
}

func TestCreatePaymentRequestNeedsWallet(t *testing.T) {
	svc := NewService(&fakeIntakeStore{}, payments.NewRegistry(),
		pricing.NewEngine(nullConfigStore{}, zerolog.New(io.Discard)),
		fakePositions{}, func(ctx context.Context) (uint64, error) { return 0, nil },
		&captureSender{}, "dfk", "0xhouse", time.Hour, zerolog.New(io.Discard))

	_, err := svc.CreatePaymentRequest(context.Background(), &store.Player{ID: 2, ChatID: "chat-2"})
	assert.Error(t, err)
}

var _ chat.Sender = (*captureSender)(nil)
