// Package snapshot builds the dated per-wallet aggregates: balances, LP
// value, hero counts and account age, written idempotently into the
// normalized history table and mirrored into the player's profile blob.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/classify"
	"github.com/hedgeledger/engine/config"
	"github.com/hedgeledger/engine/genes"
	"github.com/hedgeledger/engine/positions"
	"github.com/hedgeledger/engine/store"
)

// Doc is one wallet's snapshot document.
type Doc struct {
	Wallet        string          `json:"wallet"`
	HeroCount     int             `json:"heroCount"`
	Gen0Count     int             `json:"gen0Count"`
	GardenerCount int             `json:"gardenerCount"`
	Influence     decimal.Decimal `json:"influence"`

	TotalLPValueUSD decimal.Decimal `json:"totalLpValueUsd"`

	Jewel   decimal.Decimal `json:"jewel"`
	Crystal decimal.Decimal `json:"crystal"`
	CJewel  decimal.Decimal `json:"cjewel"`

	GovLockDaysRemaining int `json:"govLockDaysRemaining"`
	AccountAgeDays       int `json:"accountAgeDays"`

	PendingRewards decimal.Decimal       `json:"pendingRewards"`
	Positions      []positions.Position  `json:"positions"`
	GeneratedAt    time.Time             `json:"generatedAt"`
}

// Store is the storage surface the pipeline drives. *store.Store
// satisfies it.
type Store interface {
	ListSnapshotTargets(ctx context.Context) ([]*store.Player, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]*store.Player, error)
	HasSnapshot(ctx context.Context, wallet string, asOfDate time.Time) (bool, error)
	UpsertWalletSnapshot(ctx context.Context, snap *store.WalletSnapshot) (bool, error)
	MergeProfileData(ctx context.Context, playerID int64, patch json.RawMessage) error
}

// HeroSource loads a wallet's heroes. *chain.HeroAPI satisfies it.
type HeroSource interface {
	GetAllHeroesByOwner(ctx context.Context, owner string) ([]chain.Hero, error)
}

// PositionSource reads staked LP. *positions.Service satisfies it.
type PositionSource interface {
	ForWallet(ctx context.Context, wallet string) ([]positions.Position, error)
}

// History provides a wallet's transaction history for the account age read.
// *chain.Explorer satisfies it.
type History interface {
	QueryWalletTransfers(ctx context.Context, chainID int64, wallet string) ([]chain.TxRecord, error)
}

// Service builds and persists wallet snapshots.
type Service struct {
	cfg       *config.Config
	st        Store
	chains    map[string]*chain.Client
	heroes    HeroSource
	positions PositionSource
	history   History
	classifier *classify.Engine
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewService wires the snapshot service.
func NewService(cfg *config.Config, st Store, chains map[string]*chain.Client,
	heroes HeroSource, pos PositionSource, history History,
	classifier *classify.Engine, logger zerolog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		st:         st,
		chains:     chains,
		heroes:     heroes,
		positions:  pos,
		history:    history,
		classifier: classifier,
		timeout:    cfg.SnapshotTimeout,
		logger:     logger.With().Str("component", "snapshot").Logger(),
	}
}

// BuildPlayerSnapshot assembles the full snapshot document for one wallet.
func (s *Service) BuildPlayerSnapshot(ctx context.Context, wallet string) (*Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	primary, ok := s.chains[s.cfg.PrimaryChain]
	if !ok {
		return nil, fmt.Errorf("primary chain %q not configured", s.cfg.PrimaryChain)
	}
	addr := common.HexToAddress(wallet)

	doc := &Doc{Wallet: wallet, GeneratedAt: time.Now().UTC()}

	heroes, err := s.heroes.GetAllHeroesByOwner(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("heroes: %w", err)
	}
	doc.HeroCount = len(heroes)
	for _, h := range heroes {
		if h.Generation == 0 {
			doc.Gen0Count++
		}
		if stats, err := genes.DecodeStatGenes(h.StatGenes); err == nil &&
			genes.HasProfessionGene(stats, "Gardening") {
			doc.GardenerCount++
		}
	}

	if doc.Jewel, err = primary.GetBalance(ctx, addr); err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}
	crystal := common.HexToAddress(primary.Config().RewardToken)
	if doc.Crystal, err = primary.GetERC20Balance(ctx, crystal, addr); err != nil {
		return nil, fmt.Errorf("crystal balance: %w", err)
	}
	gov := common.HexToAddress(s.cfg.GovToken)
	if doc.CJewel, err = primary.GetERC20Balance(ctx, gov, addr); err != nil {
		return nil, fmt.Errorf("governance balance: %w", err)
	}
	// Governance weight mirrors the locked balance until a dedicated
	// influence read exists.
	doc.Influence = doc.CJewel

	pending, err := primary.GetAllPendingRewards(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("pending rewards: %w", err)
	}
	doc.PendingRewards = decimal.NewFromBigInt(pending, -18)

	if doc.Positions, err = s.positions.ForWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	doc.TotalLPValueUSD = positions.TotalUSD(doc.Positions)

	doc.AccountAgeDays = s.accountAgeDays(ctx, primary.Config().ChainID, wallet)

	return doc, nil
}

// accountAgeDays derives the wallet age from the explorer's earliest known
// transaction. Failure degrades to zero; age is advisory.
func (s *Service) accountAgeDays(ctx context.Context, chainID int64, wallet string) int {
	if s.history == nil {
		return 0
	}
	txs, err := s.history.QueryWalletTransfers(ctx, chainID, wallet)
	if err != nil || len(txs) == 0 {
		return 0
	}
	earliest := txs[0].At
	for _, tx := range txs[1:] {
		if !tx.At.IsZero() && tx.At.Before(earliest) {
			earliest = tx.At
		}
	}
	if earliest.IsZero() {
		return 0
	}
	return int(time.Since(earliest).Hours() / 24)
}

// SnapshotPlayer snapshots one player's primary wallet for the given date.
// An existing (wallet, date) row makes this a no-op.
func (s *Service) SnapshotPlayer(ctx context.Context, player *store.Player, asOfDate time.Time) error {
	exists, err := s.st.HasSnapshot(ctx, player.PrimaryWallet, asOfDate)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	doc, err := s.BuildPlayerSnapshot(ctx, player.PrimaryWallet)
	if err != nil {
		return err
	}

	if _, err := s.st.UpsertWalletSnapshot(ctx, &store.WalletSnapshot{
		PlayerID: player.ID,
		Wallet:   player.PrimaryWallet,
		AsOfDate: asOfDate,
		Jewel:    doc.Jewel,
		Crystal:  doc.Crystal,
		CJewel:   doc.CJewel,
	}); err != nil {
		return err
	}

	return s.mergeProfile(ctx, player, doc)
}

// mergeProfile writes the snapshot and the reclassified vector into the
// player's profile blob.
func (s *Service) mergeProfile(ctx context.Context, player *store.Player, doc *Doc) error {
	var blob struct {
		Classification classify.Profile `json:"classification"`
	}
	if len(player.ProfileData) > 0 {
		// Unknown fields are tolerated; a corrupt blob starts fresh.
		_ = json.Unmarshal(player.ProfileData, &blob)
	}

	lpValue, _ := doc.TotalLPValueUSD.Float64()
	jewel, _ := doc.Jewel.Float64()
	blob.Classification = s.classifier.ProcessEvent(blob.Classification, classify.Event{
		Type: classify.EventWalletScan,
		At:   doc.GeneratedAt,
		Facts: &classify.WalletFacts{
			HeroCount:      doc.HeroCount,
			Gen0Count:      doc.Gen0Count,
			GardenerCount:  doc.GardenerCount,
			LPPositions:    len(doc.Positions),
			TotalLPValue:   lpValue,
			TotalUSDValue:  lpValue + jewel,
			TokenBalance:   jewel,
			AccountAgeDays: doc.AccountAgeDays,
		},
	})

	patch, err := json.Marshal(map[string]any{
		"classification": blob.Classification,
		"dfkSnapshot":    doc,
	})
	if err != nil {
		return fmt.Errorf("marshal profile patch: %w", err)
	}
	return s.st.MergeProfileData(ctx, player.ID, patch)
}

// RunDaily snapshots every eligible player for today's UTC date. A failed
// player never halts the pass.
func (s *Service) RunDaily(ctx context.Context) {
	asOf := midnightUTC(time.Now().UTC())
	players, err := s.st.ListSnapshotTargets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing snapshot targets failed")
		return
	}

	ok, failed := 0, 0
	for _, player := range players {
		if ctx.Err() != nil {
			return
		}
		if err := s.SnapshotPlayer(ctx, player, asOf); err != nil {
			failed++
			s.logger.Warn().Err(err).Str("wallet", player.PrimaryWallet).Msg("snapshot failed")
			continue
		}
		ok++
	}
	s.logger.Info().Int("ok", ok).Int("failed", failed).Msg("daily snapshot pass complete")
}

// RunIncremental refreshes snapshots for players active since the
// watermark. The dated-row upsert keeps it idempotent within a day.
func (s *Service) RunIncremental(ctx context.Context, since time.Time) {
	asOf := midnightUTC(time.Now().UTC())
	players, err := s.st.ListActiveSince(ctx, since)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing active players failed")
		return
	}
	for _, player := range players {
		if ctx.Err() != nil {
			return
		}
		if err := s.SnapshotPlayer(ctx, player, asOf); err != nil {
			s.logger.Warn().Err(err).Str("wallet", player.PrimaryWallet).Msg("incremental snapshot failed")
		}
	}
	if len(players) > 0 {
		s.logger.Debug().Int("players", len(players)).Msg("incremental etl pass complete")
	}
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
