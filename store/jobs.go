package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Payment job lifecycle. A job in any state other than pending never matches
// another transfer; expired is a terminal sink for pending.
const (
	JobPending         = "pending"
	JobPaymentVerified = "payment_verified"
	JobProcessing      = "processing"
	JobCompleted       = "completed"
	JobFailed          = "failed"
	JobExpired         = "expired"
)

var (
	ErrJobNotFound   = errors.New("payment job not found")
	ErrJobNotPending = errors.New("payment job is no longer pending")
	ErrJobClaimed    = errors.New("payment job claimed by another worker")
)

// PaymentJob is one tracked invoice expecting a specific on-chain transfer.
type PaymentJob struct {
	ID                string
	PlayerID          int64
	Status            string
	Chain             string
	FromWallet        string
	ExpectedAmount    decimal.Decimal
	RequestedAt       time.Time
	ExpiresAt         time.Time
	PaymentVerifiedAt *time.Time
	StartBlock        uint64
	LastScannedBlock  uint64
	TxHash            string
	PaidAmount        decimal.Decimal
	PaidAt            *time.Time
	ErrorMessage      string
	LPSnapshot        json.RawMessage
	ReportPayload     json.RawMessage
}

const jobColumns = `id, player_id, status, chain, from_wallet, expected_amount::text,
	requested_at, expires_at, payment_verified_at, start_block, last_scanned_block,
	COALESCE(tx_hash, ''), COALESCE(paid_amount, 0)::text, paid_at,
	COALESCE(error_message, ''), lp_snapshot, report_payload`

func scanJob(row pgx.Row) (*PaymentJob, error) {
	var (
		j                 PaymentJob
		expected, paid    string
		startBlock, lastScanned int64
	)
	err := row.Scan(&j.ID, &j.PlayerID, &j.Status, &j.Chain, &j.FromWallet, &expected,
		&j.RequestedAt, &j.ExpiresAt, &j.PaymentVerifiedAt, &startBlock, &lastScanned,
		&j.TxHash, &paid, &j.PaidAt, &j.ErrorMessage, &j.LPSnapshot, &j.ReportPayload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment job: %w", err)
	}
	j.StartBlock = uint64(startBlock)
	j.LastScannedBlock = uint64(lastScanned)
	if j.ExpectedAmount, err = decimal.NewFromString(expected); err != nil {
		return nil, fmt.Errorf("parse expected amount: %w", err)
	}
	if j.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("parse paid amount: %w", err)
	}
	return &j, nil
}

// CreateJob inserts a new pending payment job.
func (s *Store) CreateJob(ctx context.Context, j *PaymentJob) error {
	j.FromWallet = strings.ToLower(j.FromWallet)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_jobs
			(id, player_id, status, chain, from_wallet, expected_amount,
			 requested_at, expires_at, start_block, last_scanned_block, lp_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11)`,
		j.ID, j.PlayerID, JobPending, j.Chain, j.FromWallet, j.ExpectedAmount.String(),
		j.RequestedAt, j.ExpiresAt, int64(j.StartBlock), int64(j.LastScannedBlock), j.LPSnapshot)
	if err != nil {
		return fmt.Errorf("create payment job: %w", err)
	}
	return nil
}

// GetJob fetches one job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*PaymentJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM payment_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListJobsByStatus returns jobs in a given state, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status string) ([]*PaymentJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM payment_jobs WHERE status = $1 ORDER BY requested_at`, status)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*PaymentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateLastScanned persists scan progress so future polls never re-scan a
// chunk. Only meaningful while the job is still pending.
func (s *Store) UpdateLastScanned(ctx context.Context, jobID string, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payment_jobs SET last_scanned_block = $2
		WHERE id = $1 AND status = $3`,
		jobID, int64(block), JobPending)
	if err != nil {
		return fmt.Errorf("update last scanned block: %w", err)
	}
	return nil
}

// MarkVerified performs the guarded pending → payment_verified flip. The row
// is locked and re-checked inside one transaction; a job that already left
// pending returns ErrJobNotPending.
func (s *Store) MarkVerified(ctx context.Context, jobID, txHash string, paidAmount decimal.Decimal, paidAt time.Time) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM payment_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment job: %w", err)
		}
		if status != JobPending {
			return ErrJobNotPending
		}
		_, err = tx.Exec(ctx, `
			UPDATE payment_jobs
			SET status = $2, payment_verified_at = now(),
			    tx_hash = $3, paid_amount = $4::numeric, paid_at = $5
			WHERE id = $1`,
			jobID, JobPaymentVerified, txHash, paidAmount.String(), paidAt)
		if err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		return nil
	})
}

// ClaimForProcessing performs the guarded payment_verified → processing flip.
// Losing the race to another worker returns ErrJobClaimed.
func (s *Store) ClaimForProcessing(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payment_jobs SET status = $2
		WHERE id = $1 AND status = $3`,
		jobID, JobProcessing, JobPaymentVerified)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobClaimed
	}
	return nil
}

// CompleteJob writes the report payload and flips processing → completed.
func (s *Store) CompleteJob(ctx context.Context, jobID string, report json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payment_jobs SET status = $2, report_payload = $3
		WHERE id = $1 AND status = $4`,
		jobID, JobCompleted, report, JobProcessing)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records the error and flips the job to failed. The row stays for
// user inspection; there is no automatic retry.
func (s *Store) FailJob(ctx context.Context, jobID, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payment_jobs SET status = $2, error_message = $3
		WHERE id = $1`,
		jobID, JobFailed, message)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ExpireJobs flips every pending job past its deadline to expired and
// returns the expired jobs.
func (s *Store) ExpireJobs(ctx context.Context, now time.Time) ([]*PaymentJob, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE payment_jobs SET status = $1
		WHERE status = $2 AND expires_at < $3
		RETURNING `+jobColumns,
		JobExpired, JobPending, now)
	if err != nil {
		return nil, fmt.Errorf("expire jobs: %w", err)
	}
	defer rows.Close()

	var out []*PaymentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
