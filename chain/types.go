package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PoolInfo is one staking-registry pool entry.
type PoolInfo struct {
	PID         uint64
	LPToken     common.Address
	AllocPoint  *big.Int
	TotalStaked *big.Int
}

// PairMeta is the LP pair metadata needed to price and size a pool.
type PairMeta struct {
	Token0      common.Address
	Token1      common.Address
	Symbol0     string
	Symbol1     string
	Decimals0   uint8
	Decimals1   uint8
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalSupply *big.Int
}

// UserInfo is one wallet's stake in one pool.
type UserInfo struct {
	Amount     *big.Int
	RewardDebt *big.Int
}

// Transfer is one observed value movement to the house wallet, from either
// an ERC-20 Transfer log or a native transaction. Amount is in whole token
// units (18 decimals already applied).
type Transfer struct {
	From    common.Address
	To      common.Address
	Amount  decimal.Decimal
	Token   common.Address // zero address for native transfers
	TxHash  common.Hash
	Block   uint64
	At      time.Time
}

// SwapLog is one Swap event from a UniswapV2-compatible pair.
type SwapLog struct {
	Pair       common.Address
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
	Block      uint64
}

// RewardLog is one emission distribution event from the staking registry.
type RewardLog struct {
	User   common.Address
	PID    uint64
	Amount *big.Int
	Block  uint64
}

// Pet is the equipped pet summary carried by the hero API.
type Pet struct {
	ID              int64 `json:"id"`
	ProfessionBonus int   `json:"professionBonus"`
}

// Hero is the subset of the hero API record the engine consumes.
type Hero struct {
	ID           int64  `json:"id"`
	Owner        string `json:"owner"`
	StatGenes    string `json:"statGenes"`
	VisualGenes  string `json:"visualGenes"`
	Generation   int    `json:"generation"`
	Level        int    `json:"level"`
	Stamina      int    `json:"stamina"`
	StaminaFull  int    `json:"staminaFullAt"`
	Gardening    int    `json:"gardening"` // skill x10, API convention
	Profession   string `json:"profession"`
	CurrentQuest string `json:"currentQuest"` // quest contract address, 0x0 when idle
	Pet          *Pet   `json:"pet,omitempty"`
}

// TxRecord is one explorer-API transaction row, normalized to the same
// shape the RPC scan path produces.
type TxRecord struct {
	Hash   string          `json:"hash"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Value  decimal.Decimal `json:"-"`
	Block  uint64          `json:"-"`
	At     time.Time       `json:"-"`
	Status string          `json:"status"`
}
