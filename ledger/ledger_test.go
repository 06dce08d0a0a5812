package ledger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/engine/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeStore mirrors the store's transactional contract in memory.
type fakeStore struct {
	balances map[int64]*store.JewelBalance
	jobs     map[string]*store.PaymentJob
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[int64]*store.JewelBalance),
		jobs:     make(map[string]*store.PaymentJob),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (f *fakeStore) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, playerID int64) (*store.JewelBalance, error) {
	if b, ok := f.balances[playerID]; ok {
		return b, nil
	}
	b := &store.JewelBalance{PlayerID: playerID, Tier: TierFree}
	f.balances[playerID] = b
	return b, nil
}

func (f *fakeStore) WriteBalance(ctx context.Context, tx pgx.Tx, b *store.JewelBalance) error {
	f.balances[b.PlayerID] = b
	return nil
}

func (f *fakeStore) LockJobForDeposit(ctx context.Context, tx pgx.Tx, jobID string) (string, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return "", store.ErrJobNotFound
	}
	return j.Status, nil
}

func (f *fakeStore) SettleJobDeposit(ctx context.Context, tx pgx.Tx, jobID, txHash string, amount decimal.Decimal, paidAt time.Time) error {
	j := f.jobs[jobID]
	j.Status = store.JobCompleted
	j.TxHash = txHash
	j.PaidAmount = amount
	return nil
}

func newTestService() (*Service, *fakeStore) {
	st := newFakeStore()
	return NewService(st, zerolog.New(io.Discard)), st
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		lifetime string
		tier     string
	}{
		{"0", TierFree},
		{"99.99", TierFree},
		{"100", TierBronze},
		{"499.99", TierBronze},
		{"500", TierSilver},
		{"1999.99", TierSilver},
		{"2000", TierGold},
		{"9999.99", TierGold},
		{"10000", TierWhale},
		{"250000", TierWhale},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tier, TierForLifetime(dec(tc.lifetime)), "lifetime %s", tc.lifetime)
	}
}

// Lifetime deposits never decrease and the tier never regresses across a
// sequence of credits and debits.
func TestTierMonotonicity(t *testing.T) {
	s, st := newTestService()
	ctx := context.Background()

	tierRank := map[string]int{TierFree: 0, TierBronze: 1, TierSilver: 2, TierGold: 3, TierWhale: 4}

	amounts := []string{"50", "49.99", "0.01", "400", "1500", "8000", "1"}
	prevLifetime := decimal.Zero
	prevRank := 0
	for _, a := range amounts {
		b, err := s.Credit(ctx, 7, dec(a))
		require.NoError(t, err)
		assert.True(t, b.LifetimeDeposits.GreaterThanOrEqual(prevLifetime))
		assert.GreaterOrEqual(t, tierRank[b.Tier], prevRank)
		prevLifetime = b.LifetimeDeposits
		prevRank = tierRank[b.Tier]

		// Debits never touch lifetime or tier.
		if b.Balance.GreaterThan(dec("10")) {
			_, err := s.Debit(ctx, 7, dec("10"), "report")
			require.NoError(t, err)
			assert.True(t, st.balances[7].LifetimeDeposits.Equal(prevLifetime))
			assert.Equal(t, tierRank[st.balances[7].Tier], prevRank)
		}
	}

	assert.Equal(t, TierWhale, st.balances[7].Tier)
}

func TestDebitInsufficientBalance(t *testing.T) {
	s, st := newTestService()
	ctx := context.Background()

	_, err := s.Credit(ctx, 1, dec("5"))
	require.NoError(t, err)

	_, err = s.Debit(ctx, 1, dec("10"), "report")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, st.balances[1].Balance.Equal(dec("5")), "failed debit must not deduct")
}

func TestRecordDepositIdempotency(t *testing.T) {
	s, st := newTestService()
	ctx := context.Background()

	job := &store.PaymentJob{ID: "job-1", PlayerID: 3, Status: store.JobPending, ExpectedAmount: dec("25")}
	st.jobs["job-1"] = job

	require.NoError(t, s.RecordDeposit(ctx, job, "0xabc", dec("25")))
	assert.Equal(t, store.JobCompleted, st.jobs["job-1"].Status)
	assert.True(t, st.balances[3].LifetimeDeposits.Equal(dec("25")))

	// The second call sees a non-pending job: success, no double credit.
	require.NoError(t, s.RecordDeposit(ctx, job, "0xabc", dec("25")))
	assert.True(t, st.balances[3].LifetimeDeposits.Equal(dec("25")), "deposit must not double-credit")
	assert.True(t, st.balances[3].Balance.Equal(dec("25")))
}
