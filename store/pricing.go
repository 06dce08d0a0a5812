package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Pricing config keys.
const (
	PricingBaseRates = "base_rates"
	PricingModifiers = "modifiers"
)

var ErrConfigNotFound = errors.New("pricing config not found")

// PricingConfigRow is one versioned key/value pricing record.
type PricingConfigRow struct {
	Key         string
	Value       json.RawMessage
	Description string
	UpdatedBy   string
	UpdatedAt   time.Time
}

// GetPricingConfig loads one pricing record by key.
func (s *Store) GetPricingConfig(ctx context.Context, key string) (*PricingConfigRow, error) {
	var row PricingConfigRow
	err := s.pool.QueryRow(ctx, `
		SELECT config_key, config_value, description, updated_by, updated_at
		FROM pricing_config WHERE config_key = $1`, key).
		Scan(&row.Key, &row.Value, &row.Description, &row.UpdatedBy, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pricing config: %w", err)
	}
	return &row, nil
}

// UpsertPricingConfig writes one pricing record.
func (s *Store) UpsertPricingConfig(ctx context.Context, key string, value json.RawMessage, description, updatedBy string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricing_config (config_key, config_value, description, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE
		SET config_value = EXCLUDED.config_value,
		    description = EXCLUDED.description,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = now()`,
		key, value, description, updatedBy)
	if err != nil {
		return fmt.Errorf("upsert pricing config: %w", err)
	}
	return nil
}
