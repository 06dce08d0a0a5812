// Package chain wraps the read-only on-chain surfaces the engine consumes:
// JSON-RPC (balances, contract reads, event log ranges), the hero GraphQL
// API and the explorer transaction API. Every method returns a typed result;
// transient RPC failures are retried with jittered backoff before surfacing.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/config"
)

// Backend is the RPC surface the client needs. *ethclient.Client satisfies
// it; tests substitute a fake.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Client is a typed read-only wrapper over one chain's JSON-RPC endpoint.
type Client struct {
	cfg     config.ChainConfig
	rpc     Backend
	signer  types.Signer
	staking common.Address
	logger  zerolog.Logger
}

// Dial connects to the chain's RPC endpoint.
func Dial(cfg config.ChainConfig, logger zerolog.Logger) (*Client, error) {
	ec, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Name, err)
	}
	return NewClient(cfg, ec, logger), nil
}

// NewClient wraps an existing backend, which is how tests inject fakes.
func NewClient(cfg config.ChainConfig, backend Backend, logger zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		rpc:     backend,
		signer:  types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		staking: common.HexToAddress(cfg.StakingContract),
		logger:  logger.With().Str("component", "chain").Str("chain", cfg.Name).Logger(),
	}
}

// Name returns the chain's configured name.
func (c *Client) Name() string { return c.cfg.Name }

// Config returns the chain configuration the client was built from.
func (c *Client) Config() config.ChainConfig { return c.cfg }

// BlockNumber returns the current chain tip.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var tip uint64
	err := withRetry(ctx, func() error {
		var err error
		tip, err = c.rpc.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s block number: %w", c.cfg.Name, err)
	}
	return tip, nil
}

// call packs, executes and unpacks one view call against a contract.
func (c *Client) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	var raw []byte
	err = withRetry(ctx, func() error {
		var err error
		raw, err = c.rpc.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s call %s: %w", c.cfg.Name, method, err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// GetPoolLength returns the number of pools in the staking registry.
func (c *Client) GetPoolLength(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, registryABI, c.staking, "getPoolLength")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

// GetPoolInfo returns one pool's registry entry.
func (c *Client) GetPoolInfo(ctx context.Context, pid uint64) (*PoolInfo, error) {
	out, err := c.call(ctx, registryABI, c.staking, "getPoolInfo", new(big.Int).SetUint64(pid))
	if err != nil {
		return nil, err
	}
	return &PoolInfo{
		PID:         pid,
		LPToken:     out[0].(common.Address),
		AllocPoint:  out[1].(*big.Int),
		TotalStaked: out[3].(*big.Int),
	}, nil
}

// GetTotalAllocPoint returns the registry-wide allocation denominator.
func (c *Client) GetTotalAllocPoint(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, registryABI, c.staking, "getTotalAllocPoint")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetPendingRewards returns a wallet's pending emissions in one pool.
func (c *Client) GetPendingRewards(ctx context.Context, pid uint64, wallet common.Address) (*big.Int, error) {
	out, err := c.call(ctx, registryABI, c.staking, "getPendingRewards", new(big.Int).SetUint64(pid), wallet)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetAllPendingRewards returns a wallet's pending emissions across all pools.
func (c *Client) GetAllPendingRewards(ctx context.Context, wallet common.Address) (*big.Int, error) {
	out, err := c.call(ctx, registryABI, c.staking, "getAllPendingRewards", wallet)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetUserInfo returns a wallet's staked amount in one pool.
func (c *Client) GetUserInfo(ctx context.Context, pid uint64, wallet common.Address) (*UserInfo, error) {
	out, err := c.call(ctx, registryABI, c.staking, "getUserInfo", new(big.Int).SetUint64(pid), wallet)
	if err != nil {
		return nil, err
	}
	return &UserInfo{
		Amount:     out[0].(*big.Int),
		RewardDebt: out[1].(*big.Int),
	}, nil
}

// GetLPReserves returns a pair's reserves and LP supply.
func (c *Client) GetLPReserves(ctx context.Context, lpToken common.Address) (r0, r1, totalSupply *big.Int, err error) {
	out, err := c.call(ctx, pairABI, lpToken, "getReserves")
	if err != nil {
		return nil, nil, nil, err
	}
	r0 = out[0].(*big.Int)
	r1 = out[1].(*big.Int)

	sup, err := c.call(ctx, pairABI, lpToken, "totalSupply")
	if err != nil {
		return nil, nil, nil, err
	}
	return r0, r1, sup[0].(*big.Int), nil
}

// GetPairMeta loads the full pair metadata needed by the analytics builder.
func (c *Client) GetPairMeta(ctx context.Context, lpToken common.Address) (*PairMeta, error) {
	t0, err := c.call(ctx, pairABI, lpToken, "token0")
	if err != nil {
		return nil, err
	}
	t1, err := c.call(ctx, pairABI, lpToken, "token1")
	if err != nil {
		return nil, err
	}
	meta := &PairMeta{
		Token0: t0[0].(common.Address),
		Token1: t1[0].(common.Address),
	}
	if meta.Reserve0, meta.Reserve1, meta.TotalSupply, err = c.GetLPReserves(ctx, lpToken); err != nil {
		return nil, err
	}
	if meta.Symbol0, meta.Decimals0, err = c.tokenMeta(ctx, meta.Token0); err != nil {
		return nil, err
	}
	if meta.Symbol1, meta.Decimals1, err = c.tokenMeta(ctx, meta.Token1); err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *Client) tokenMeta(ctx context.Context, token common.Address) (string, uint8, error) {
	sym, err := c.call(ctx, erc20ABI, token, "symbol")
	if err != nil {
		return "", 0, err
	}
	dec, err := c.call(ctx, erc20ABI, token, "decimals")
	if err != nil {
		return "", 0, err
	}
	return sym[0].(string), dec[0].(uint8), nil
}

// GetBalance returns a wallet's native balance in whole units.
func (c *Client) GetBalance(ctx context.Context, wallet common.Address) (decimal.Decimal, error) {
	var wei *big.Int
	err := withRetry(ctx, func() error {
		var err error
		wei, err = c.rpc.BalanceAt(ctx, wallet, nil)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s native balance: %w", c.cfg.Name, err)
	}
	return decimal.NewFromBigInt(wei, -18), nil
}

// GetERC20Balance returns a wallet's token balance in whole units, assuming
// the pack-standard 18 decimals for game tokens.
func (c *Client) GetERC20Balance(ctx context.Context, token, wallet common.Address) (decimal.Decimal, error) {
	out, err := c.call(ctx, erc20ABI, token, "balanceOf", wallet)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(out[0].(*big.Int), -18), nil
}

// TransactionReceipt fetches a receipt with retry.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var rcpt *types.Receipt
	err := withRetry(ctx, func() error {
		var err error
		rcpt, err = c.rpc.TransactionReceipt(ctx, hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s receipt %s: %w", c.cfg.Name, hash, err)
	}
	return rcpt, nil
}

// TransactionByHash fetches a transaction with retry.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var tx *types.Transaction
	err := withRetry(ctx, func() error {
		var err error
		tx, _, err = c.rpc.TransactionByHash(ctx, hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s tx %s: %w", c.cfg.Name, hash, err)
	}
	return tx, nil
}

// Sender recovers a transaction's from address.
func (c *Client) Sender(tx *types.Transaction) (common.Address, error) {
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover sender: %w", err)
	}
	return from, nil
}
