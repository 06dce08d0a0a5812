package chain

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/engine/config"
)

// fakeBackend answers contract calls by method selector with pre-packed
// return data.
type fakeBackend struct {
	tip     uint64
	returns map[string][]byte // selector hex → abi-encoded outputs
	logs    []types.Log
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) { return f.tip, nil }

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10) // 1.5 native
	return wei, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	selector := common.Bytes2Hex(call.Data[:4])
	out, ok := f.returns[selector]
	if !ok {
		return nil, assert.AnError
	}
	return out, nil
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

func (f *fakeBackend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return nil, assert.AnError
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, assert.AnError
}

func (f *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return nil, false, assert.AnError
}

func testClient(backend Backend) *Client {
	cfg := config.ChainConfig{
		Name:            "dfk",
		ChainID:         53935,
		StakingContract: "0x0000000000000000000000000000000000000077",
		RewardToken:     "0x0000000000000000000000000000000000c0ffee",
	}
	return NewClient(cfg, backend, zerolog.New(io.Discard))
}

func TestGetPoolInfoUnpacksRegistryCall(t *testing.T) {
	lp := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	out, err := registryABI.Methods["getPoolInfo"].Outputs.Pack(
		lp, big.NewInt(300), big.NewInt(0), big.NewInt(42))
	require.NoError(t, err)

	sel := common.Bytes2Hex(registryABI.Methods["getPoolInfo"].ID)
	client := testClient(&fakeBackend{returns: map[string][]byte{sel: out}})

	info, err := client.GetPoolInfo(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.PID)
	assert.Equal(t, lp, info.LPToken)
	assert.Equal(t, int64(300), info.AllocPoint.Int64())
	assert.Equal(t, int64(42), info.TotalStaked.Int64())
}

func TestGetLPReserves(t *testing.T) {
	reserves, err := pairABI.Methods["getReserves"].Outputs.Pack(
		big.NewInt(1000), big.NewInt(2000), uint32(0))
	require.NoError(t, err)
	supply, err := pairABI.Methods["totalSupply"].Outputs.Pack(big.NewInt(500))
	require.NoError(t, err)

	client := testClient(&fakeBackend{returns: map[string][]byte{
		common.Bytes2Hex(pairABI.Methods["getReserves"].ID): reserves,
		common.Bytes2Hex(pairABI.Methods["totalSupply"].ID): supply,
	}})

	r0, r1, total, err := client.GetLPReserves(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r0.Int64())
	assert.Equal(t, int64(2000), r1.Int64())
	assert.Equal(t, int64(500), total.Int64())
}

func TestGetBalanceConvertsWei(t *testing.T) {
	client := testClient(&fakeBackend{})
	bal, err := client.GetBalance(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, "1.5", bal.String())
}

func TestQueryTransferEventsParsesLogs(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	to := common.HexToAddress("0x00000000000000000000000000000000000000f2")
	wei, _ := new(big.Int).SetString("25000000000000000000", 10)

	backend := &fakeBackend{logs: []types.Log{{
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(common.LeftPadBytes(from.Bytes(), 32)),
			common.BytesToHash(common.LeftPadBytes(to.Bytes(), 32)),
		},
		Data:        common.LeftPadBytes(wei.Bytes(), 32),
		BlockNumber: 1234,
		TxHash:      common.HexToHash("0xdead"),
	}}}
	client := testClient(backend)

	transfers, err := client.QueryTransferEvents(context.Background(), common.Address{}, to, 1200, 1300)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, from, transfers[0].From)
	assert.Equal(t, to, transfers[0].To)
	assert.Equal(t, "25", transfers[0].Amount.String())
	assert.Equal(t, uint64(1234), transfers[0].Block)
}

func TestQueryRewardLogsParsesTopics(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	backend := &fakeBackend{logs: []types.Log{{
		Topics: []common.Hash{
			rewardCollectedTopic,
			common.BytesToHash(common.LeftPadBytes(user.Bytes(), 32)),
			common.BigToHash(big.NewInt(7)),
		},
		Data:        common.LeftPadBytes(big.NewInt(999).Bytes(), 32),
		BlockNumber: 50,
	}}}
	client := testClient(backend)

	pid := uint64(7)
	rewards, err := client.QueryRewardLogs(context.Background(), 0, 100, &pid)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, user, rewards[0].User)
	assert.Equal(t, uint64(7), rewards[0].PID)
	assert.Equal(t, int64(999), rewards[0].Amount.Int64())
}
