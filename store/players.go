package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Player statuses. Players are never hard-deleted.
const (
	PlayerActive = "active"
	PlayerBanned = "banned"
)

// Player is one chat identity with its linked wallets.
type Player struct {
	ID            int64
	ChatID        string
	DisplayName   string
	PrimaryWallet string
	Wallets       []string
	FirstSeenAt   time.Time
	LastSeenAt    time.Time
	ProfileData   json.RawMessage
	Status        string
}

var ErrPlayerNotFound = errors.New("player not found")

const playerColumns = `id, chat_id, display_name, COALESCE(primary_wallet, ''), wallets,
	first_seen_at, last_seen_at, profile_data, status`

func scanPlayer(row pgx.Row) (*Player, error) {
	var p Player
	err := row.Scan(&p.ID, &p.ChatID, &p.DisplayName, &p.PrimaryWallet, &p.Wallets,
		&p.FirstSeenAt, &p.LastSeenAt, &p.ProfileData, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}

// GetOrCreatePlayer fetches a player by chat ID, lazily creating the row on
// first interaction and refreshing display name + last seen on every call.
func (s *Store) GetOrCreatePlayer(ctx context.Context, chatID, displayName string) (*Player, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO players (chat_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE
		SET display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE players.display_name END,
		    last_seen_at = now()
		RETURNING `+playerColumns,
		chatID, displayName)
	return scanPlayer(row)
}

// GetPlayerByChatID fetches a player without creating one.
func (s *Store) GetPlayerByChatID(ctx context.Context, chatID string) (*Player, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE chat_id = $1`, chatID)
	return scanPlayer(row)
}

// GetPlayerByID fetches a player by primary key.
func (s *Store) GetPlayerByID(ctx context.Context, id int64) (*Player, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

// LinkWallet adds a lowercased wallet to the player's wallet set and makes it
// primary when the player has none yet.
func (s *Store) LinkWallet(ctx context.Context, playerID int64, wallet string) error {
	wallet = strings.ToLower(wallet)
	_, err := s.pool.Exec(ctx, `
		UPDATE players
		SET wallets = CASE WHEN $2 = ANY(wallets) THEN wallets ELSE array_append(wallets, $2) END,
		    primary_wallet = COALESCE(primary_wallet, $2)
		WHERE id = $1`,
		playerID, wallet)
	if err != nil {
		return fmt.Errorf("link wallet: %w", err)
	}
	return nil
}

// SetPrimaryWallet marks one of the player's linked wallets as primary.
// The wallet must already be a member of the wallet set.
func (s *Store) SetPrimaryWallet(ctx context.Context, playerID int64, wallet string) error {
	wallet = strings.ToLower(wallet)
	tag, err := s.pool.Exec(ctx, `
		UPDATE players SET primary_wallet = $2
		WHERE id = $1 AND $2 = ANY(wallets)`,
		playerID, wallet)
	if err != nil {
		return fmt.Errorf("set primary wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s is not linked to player %d", wallet, playerID)
	}
	return nil
}

// UpdateProfileData replaces the player's opaque profile blob.
func (s *Store) UpdateProfileData(ctx context.Context, playerID int64, data json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE players SET profile_data = $2 WHERE id = $1`, playerID, data)
	if err != nil {
		return fmt.Errorf("update profile data: %w", err)
	}
	return nil
}

// MergeProfileData deep-merges keys into the player's profile blob without
// disturbing fields owned by other writers.
func (s *Store) MergeProfileData(ctx context.Context, playerID int64, patch json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE players SET profile_data = profile_data || $2::jsonb WHERE id = $1`,
		playerID, patch)
	if err != nil {
		return fmt.Errorf("merge profile data: %w", err)
	}
	return nil
}

// SetPlayerStatus marks a player active or banned.
func (s *Store) SetPlayerStatus(ctx context.Context, playerID int64, status string) error {
	_, err := s.pool.Exec(ctx, `UPDATE players SET status = $2 WHERE id = $1`, playerID, status)
	if err != nil {
		return fmt.Errorf("set player status: %w", err)
	}
	return nil
}

// ListSnapshotTargets returns all non-banned players with a primary wallet,
// the population the daily snapshot pipeline walks.
func (s *Store) ListSnapshotTargets(ctx context.Context) ([]*Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE primary_wallet IS NOT NULL AND primary_wallet <> '' AND status <> $1
		ORDER BY id`, PlayerBanned)
	if err != nil {
		return nil, fmt.Errorf("list snapshot targets: %w", err)
	}
	defer rows.Close()

	var out []*Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListActiveSince returns non-banned players with a primary wallet seen after
// the watermark, for the incremental ETL pass.
func (s *Store) ListActiveSince(ctx context.Context, since time.Time) ([]*Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE primary_wallet IS NOT NULL AND primary_wallet <> ''
		  AND status <> $1 AND last_seen_at > $2
		ORDER BY id`, PlayerBanned, since)
	if err != nil {
		return nil, fmt.Errorf("list active players: %w", err)
	}
	defer rows.Close()

	var out []*Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
