package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Explorer is a client for the RouteScan-style explorer API. It returns a
// wallet's recent outgoing transactions in one call, which makes the
// explorer scanning mode O(1) per poll instead of O(block range).
type Explorer struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewExplorer creates an explorer API client.
func NewExplorer(baseURL string, timeout time.Duration, logger zerolog.Logger) *Explorer {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Explorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "explorer").Logger(),
	}
}

// explorerTx matches the explorer wire shape.
type explorerTx struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     string    `json:"value"` // wei, decimal string
	Block     uint64    `json:"blockNumber"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// QueryWalletTransfers returns the wallet's recent transactions on one
// chain, normalized to the same shape the RPC scan path produces.
func (e *Explorer) QueryWalletTransfers(ctx context.Context, chainID int64, wallet string) ([]TxRecord, error) {
	endpoint := fmt.Sprintf("%s/network/mainnet/evm/%d/address/%s/transactions?limit=100",
		e.baseURL, chainID, url.PathEscape(strings.ToLower(wallet)))

	var items []explorerTx
	err := withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("explorer request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("explorer returned status %d: %s", resp.StatusCode, string(body))
		}

		var envelope struct {
			Items []explorerTx `json:"items"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decode explorer response: %w", err)
		}
		items = envelope.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]TxRecord, 0, len(items))
	for _, item := range items {
		wei, ok := new(big.Int).SetString(item.Value, 10)
		if !ok {
			e.logger.Warn().Str("tx", item.Hash).Str("value", item.Value).Msg("skipping unparseable explorer value")
			continue
		}
		out = append(out, TxRecord{
			Hash:   strings.ToLower(item.Hash),
			From:   strings.ToLower(item.From),
			To:     strings.ToLower(item.To),
			Value:  decimal.NewFromBigInt(wei, -18),
			Block:  item.Block,
			At:     item.Timestamp,
			Status: item.Status,
		})
	}
	return out, nil
}
