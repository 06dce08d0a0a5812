package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/config"
	"github.com/hedgeledger/engine/store"
)

// Scanner modes. Both satisfy the same match predicate and perform the same
// atomic state flip; the explorer mode trades block-range scans for one
// wallet-history call per poll.
const (
	ModeRPC      = "rpc"
	ModeExplorer = "explorer"
)

// JobStore is the durable half of the payment pipeline. *store.Store
// satisfies it.
type JobStore interface {
	ListJobsByStatus(ctx context.Context, status string) ([]*store.PaymentJob, error)
	MarkVerified(ctx context.Context, jobID, txHash string, paidAmount decimal.Decimal, paidAt time.Time) error
	UpdateLastScanned(ctx context.Context, jobID string, block uint64) error
	ExpireJobs(ctx context.Context, now time.Time) ([]*store.PaymentJob, error)
}

// ChainSource is the chain surface the scanner reads. *chain.Client
// satisfies it.
type ChainSource interface {
	Config() config.ChainConfig
	BlockNumber(ctx context.Context) (uint64, error)
	QueryTransferEvents(ctx context.Context, token, to common.Address, fromBlock, toBlock uint64) ([]chain.Transfer, error)
	QueryNativeTransfersTo(ctx context.Context, to common.Address, fromBlock, toBlock uint64) ([]chain.Transfer, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	Sender(tx *types.Transaction) (common.Address, error)
}

// WalletHistory is the explorer surface. *chain.Explorer satisfies it.
type WalletHistory interface {
	QueryWalletTransfers(ctx context.Context, chainID int64, wallet string) ([]chain.TxRecord, error)
}

// Tx-hash verification failures, each mapped to a specific user-readable
// reason by the caller.
var (
	ErrTxNotSuccessful  = errors.New("transaction did not succeed on chain")
	ErrWrongRecipient   = errors.New("transaction recipient is not the house wallet")
	ErrWrongSender      = errors.New("transaction sender is not the linked wallet")
	ErrAmountTooLow     = errors.New("transaction value is below the expected amount")
	ErrVerifyInProgress = errors.New("a manual verification is already running")
)

// Scanner matches open jobs against observed transfers and drives the
// guarded state flips.
type Scanner struct {
	registry *Registry
	st       JobStore
	chains   map[string]ChainSource
	explorer WalletHistory
	health   *chain.HealthPoller

	mode        string
	house       common.Address
	epsilon     decimal.Decimal
	chunkBlocks uint64
	lookback    uint64
	logger      zerolog.Logger

	// Guards the manual fast-track path against concurrent duplicate scans.
	manualMu sync.Mutex
}

// NewScanner wires the scanner. health may be nil; chains whose endpoint is
// marked down are skipped for the cycle when it is set.
func NewScanner(cfg *config.Config, registry *Registry, st JobStore, chains map[string]ChainSource,
	explorer WalletHistory, health *chain.HealthPoller, logger zerolog.Logger) (*Scanner, error) {

	epsilon, err := decimal.NewFromString(cfg.PaymentEpsilon)
	if err != nil {
		return nil, fmt.Errorf("parse payment epsilon: %w", err)
	}
	return &Scanner{
		registry:    registry,
		st:          st,
		chains:      chains,
		explorer:    explorer,
		health:      health,
		mode:        cfg.ScannerMode,
		house:       common.HexToAddress(cfg.HouseWallet),
		epsilon:     epsilon,
		chunkBlocks: cfg.ScanChunkBlocks,
		lookback:    cfg.ManualScanLookback,
		logger:      logger.With().Str("component", "payment_scanner").Logger(),
	}, nil
}

// matches applies the match predicate: amount within ±ε of expected and a
// case-insensitive sender match.
func (s *Scanner) matches(job *store.PaymentJob, from string, amount decimal.Decimal) bool {
	if !strings.EqualFold(from, job.FromWallet) {
		return false
	}
	return amount.Sub(job.ExpectedAmount).Abs().LessThanOrEqual(s.epsilon)
}

// Poll runs one scan cycle: every open job is scanned concurrently, then the
// expiry sweep flips jobs past their deadline.
func (s *Scanner) Poll(ctx context.Context) {
	jobs := s.registry.List()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if s.health != nil && !s.health.IsHealthy(job.Chain) {
				s.logger.Debug().Str("job", job.ID).Str("chain", job.Chain).Msg("chain down, skipping job this cycle")
				return nil
			}
			if err := s.scanJob(gctx, job, 0); err != nil {
				s.logger.Warn().Err(err).Str("job", job.ID).Msg("job scan failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	s.sweepExpired(ctx)
}

// sweepExpired flips every pending job past its deadline and purges it from
// the registry.
func (s *Scanner) sweepExpired(ctx context.Context) {
	expired, err := s.st.ExpireJobs(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Warn().Err(err).Msg("expiry sweep failed")
		return
	}
	for _, j := range expired {
		s.registry.Remove(j.ID)
		s.logger.Info().Str("job", j.ID).Msg("payment job expired")
	}
}

// scanJob scans one job. A non-zero lookback rewinds the scan window below
// the job's watermark (the manual fast-track path).
func (s *Scanner) scanJob(ctx context.Context, job *store.PaymentJob, lookback uint64) error {
	if s.mode == ModeExplorer && s.explorer != nil {
		return s.scanJobExplorer(ctx, job)
	}
	return s.scanJobRPC(ctx, job, lookback)
}

func (s *Scanner) scanJobRPC(ctx context.Context, job *store.PaymentJob, lookback uint64) error {
	client, ok := s.chains[job.Chain]
	if !ok {
		return fmt.Errorf("chain %q is not configured", job.Chain)
	}
	tip, err := client.BlockNumber(ctx)
	if err != nil {
		return err
	}

	from := job.StartBlock
	if job.LastScannedBlock >= from {
		from = job.LastScannedBlock + 1
	}
	if lookback > 0 {
		if tip > lookback {
			from = tip - lookback
		} else {
			from = 0
		}
	}
	if from > tip {
		return nil
	}

	token := common.HexToAddress(client.Config().RewardToken)
	for chunkStart := from; chunkStart <= tip; chunkStart += s.chunkBlocks {
		chunkEnd := chunkStart + s.chunkBlocks - 1
		if chunkEnd > tip {
			chunkEnd = tip
		}

		native, err := client.QueryNativeTransfersTo(ctx, s.house, chunkStart, chunkEnd)
		if err != nil {
			return err
		}
		erc20, err := client.QueryTransferEvents(ctx, token, s.house, chunkStart, chunkEnd)
		if err != nil {
			return err
		}

		for _, transfer := range append(native, erc20...) {
			if !s.matches(job, transfer.From.Hex(), transfer.Amount) {
				continue
			}
			return s.settle(ctx, job, transfer.TxHash.Hex(), transfer.Amount, transfer.At)
		}

		// Nothing in this chunk: persist the watermark so future polls
		// never re-scan it.
		if err := s.st.UpdateLastScanned(ctx, job.ID, chunkEnd); err != nil {
			return err
		}
		s.registry.SetLastScanned(job.ID, chunkEnd)
	}
	return nil
}

func (s *Scanner) scanJobExplorer(ctx context.Context, job *store.PaymentJob) error {
	client, ok := s.chains[job.Chain]
	if !ok {
		return fmt.Errorf("chain %q is not configured", job.Chain)
	}
	txs, err := s.explorer.QueryWalletTransfers(ctx, client.Config().ChainID, job.FromWallet)
	if err != nil {
		return err
	}

	houseHex := strings.ToLower(s.house.Hex())
	for _, tx := range txs {
		if tx.To != houseHex || tx.Status != "success" {
			continue
		}
		if tx.At.Before(job.RequestedAt) {
			continue
		}
		if !s.matches(job, tx.From, tx.Value) {
			continue
		}
		return s.settle(ctx, job, tx.Hash, tx.Value, tx.At)
	}
	return nil
}

// settle performs the atomic flip: the store's guarded transition first,
// then the registry removal. A job that already left pending counts as
// settled by someone else.
func (s *Scanner) settle(ctx context.Context, job *store.PaymentJob, txHash string, amount decimal.Decimal, paidAt time.Time) error {
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	err := s.st.MarkVerified(ctx, job.ID, txHash, amount, paidAt)
	if err != nil && !errors.Is(err, store.ErrJobNotPending) {
		return err
	}
	s.registry.Remove(job.ID)
	s.logger.Info().
		Str("job", job.ID).
		Str("tx", txHash).
		Str("amount", amount.String()).
		Msg("payment verified")
	return nil
}

// VerifyNow is the manual fast-track: the user signalled "sent", so one job
// gets an immediate deep scan. A process-wide mutex rejects concurrent
// entries instead of queueing them.
func (s *Scanner) VerifyNow(ctx context.Context, jobID string) error {
	if !s.manualMu.TryLock() {
		return ErrVerifyInProgress
	}
	defer s.manualMu.Unlock()

	job, ok := s.registry.Get(jobID)
	if !ok {
		return store.ErrJobNotPending
	}
	if s.mode == ModeExplorer && s.explorer != nil {
		return s.scanJobExplorer(ctx, job)
	}
	return s.scanJobRPC(ctx, job, s.lookback)
}

// VerifyTxHash checks one specific transaction against a job. Each check
// failure surfaces a specific reason. Returns alreadyProcessed=true without
// error when the job left pending earlier (idempotent re-submission).
func (s *Scanner) VerifyTxHash(ctx context.Context, job *store.PaymentJob, txHash string) (alreadyProcessed bool, err error) {
	client, ok := s.chains[job.Chain]
	if !ok {
		return false, fmt.Errorf("chain %q is not configured", job.Chain)
	}

	hash := common.HexToHash(txHash)
	rcpt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return false, err
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return false, ErrTxNotSuccessful
	}

	tx, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		return false, err
	}
	if tx.To() == nil || !strings.EqualFold(tx.To().Hex(), s.house.Hex()) {
		return false, ErrWrongRecipient
	}
	from, err := client.Sender(tx)
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(from.Hex(), job.FromWallet) {
		return false, ErrWrongSender
	}
	value := decimal.NewFromBigInt(tx.Value(), -18)
	if value.LessThan(job.ExpectedAmount) {
		return false, ErrAmountTooLow
	}

	err = s.st.MarkVerified(ctx, job.ID, hash.Hex(), value, time.Now().UTC())
	if errors.Is(err, store.ErrJobNotPending) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	s.registry.Remove(job.ID)
	return false, nil
}
