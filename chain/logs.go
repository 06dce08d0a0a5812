package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// filterLogs wraps FilterLogs with retry.
func (c *Client) filterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, func() error {
		var err error
		logs, err = c.rpc.FilterLogs(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s filter logs: %w", c.cfg.Name, err)
	}
	return logs, nil
}

// QueryTransferEvents returns ERC-20 Transfer(_, to, value) events for one
// token over a block range. Amounts are whole units.
func (c *Client) QueryTransferEvents(ctx context.Context, token, to common.Address, fromBlock, toBlock uint64) ([]Transfer, error) {
	logs, err := c.filterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics: [][]common.Hash{
			{transferTopic},
			nil,
			{common.BytesToHash(common.LeftPadBytes(to.Bytes(), 32))},
		},
	})
	if err != nil {
		return nil, err
	}

	out := make([]Transfer, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) != 3 || len(lg.Data) < 32 {
			continue
		}
		value := new(big.Int).SetBytes(lg.Data[:32])
		out = append(out, Transfer{
			From:   common.BytesToAddress(lg.Topics[1].Bytes()),
			To:     common.BytesToAddress(lg.Topics[2].Bytes()),
			Amount: decimal.NewFromBigInt(value, -18),
			Token:  token,
			TxHash: lg.TxHash,
			Block:  lg.BlockNumber,
		})
	}
	return out, nil
}

// QueryNativeTransfersTo walks each block's transaction list over a range
// and keeps successful native transfers into the target address.
func (c *Client) QueryNativeTransfersTo(ctx context.Context, to common.Address, fromBlock, toBlock uint64) ([]Transfer, error) {
	var out []Transfer
	target := strings.ToLower(to.Hex())

	for n := fromBlock; n <= toBlock; n++ {
		var block *types.Block
		err := withRetry(ctx, func() error {
			var err error
			block, err = c.rpc.BlockByNumber(ctx, new(big.Int).SetUint64(n))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%s block %d: %w", c.cfg.Name, n, err)
		}

		for _, tx := range block.Transactions() {
			if tx.To() == nil || tx.Value().Sign() <= 0 {
				continue
			}
			if strings.ToLower(tx.To().Hex()) != target {
				continue
			}
			rcpt, err := c.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				return nil, err
			}
			if rcpt.Status != types.ReceiptStatusSuccessful {
				continue
			}
			from, err := c.Sender(tx)
			if err != nil {
				c.logger.Warn().Err(err).Str("tx", tx.Hash().Hex()).Msg("unrecoverable sender, skipping")
				continue
			}
			out = append(out, Transfer{
				From:   from,
				To:     to,
				Amount: decimal.NewFromBigInt(tx.Value(), -18),
				TxHash: tx.Hash(),
				Block:  n,
				At:     time.Unix(int64(block.Time()), 0).UTC(),
			})
		}
	}
	return out, nil
}

// QuerySwapLogs returns Swap events for one pair over a block range.
func (c *Client) QuerySwapLogs(ctx context.Context, pair common.Address, fromBlock, toBlock uint64) ([]SwapLog, error) {
	logs, err := c.filterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{pair},
		Topics:    [][]common.Hash{{swapTopic}},
	})
	if err != nil {
		return nil, err
	}

	out := make([]SwapLog, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Data) < 128 {
			continue
		}
		out = append(out, SwapLog{
			Pair:       pair,
			Amount0In:  new(big.Int).SetBytes(lg.Data[0:32]),
			Amount1In:  new(big.Int).SetBytes(lg.Data[32:64]),
			Amount0Out: new(big.Int).SetBytes(lg.Data[64:96]),
			Amount1Out: new(big.Int).SetBytes(lg.Data[96:128]),
			Block:      lg.BlockNumber,
		})
	}
	return out, nil
}

// QueryRewardLogs returns emission distribution events from the staking
// registry over a block range, optionally filtered to one pool.
func (c *Client) QueryRewardLogs(ctx context.Context, fromBlock, toBlock uint64, pid *uint64) ([]RewardLog, error) {
	topics := [][]common.Hash{{rewardCollectedTopic}}
	if pid != nil {
		topics = append(topics, nil, []common.Hash{
			common.BigToHash(new(big.Int).SetUint64(*pid)),
		})
	}
	logs, err := c.filterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.staking},
		Topics:    topics,
	})
	if err != nil {
		return nil, err
	}

	out := make([]RewardLog, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) != 3 || len(lg.Data) < 32 {
			continue
		}
		out = append(out, RewardLog{
			User:   common.BytesToAddress(lg.Topics[1].Bytes()),
			PID:    new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64(),
			Amount: new(big.Int).SetBytes(lg.Data[:32]),
			Block:  lg.BlockNumber,
		})
	}
	return out, nil
}
