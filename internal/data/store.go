package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
	"github.com/feedbridge/twitter-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

var (
	_ repo.AccountRepo  = (*Store)(nil)
	_ repo.CursorRepo   = (*Store)(nil)
	_ repo.FollowerRepo = (*Store)(nil)
)

// Store keeps accounts, cursors and follower snapshots in SQLite
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dbPath
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Poll workers write concurrently; one connection serializes them
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_cursors (
			account_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			item_id INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (account_id, channel)
		)`,
		`CREATE TABLE IF NOT EXISTS timeline_cursors (
			account_id TEXT PRIMARY KEY,
			item_id INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS followers (
			account_id TEXT NOT NULL,
			follower_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (account_id, follower_id)
		)`,
		`CREATE TABLE IF NOT EXISTS follower_snapshots (
			account_id TEXT PRIMARY KEY,
			seeded_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterAccount saves the account, replacing the token of an existing one
func (s *Store) RegisterAccount(ctx context.Context, cred *domain.Credential) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, token, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, cred.AccountID, cred.Token, now, now)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// GetCredential returns the account's credential or domain.ErrUnknownAccount
func (s *Store) GetCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	cred := &domain.Credential{AccountID: accountID}
	err := s.db.QueryRowContext(ctx, `SELECT token FROM accounts WHERE account_id = ?`, accountID).Scan(&cred.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return cred, nil
}

// ListKnownAccounts returns every registered account id, sorted
func (s *Store) ListKnownAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, accountID)
	}
	return accounts, rows.Err()
}

// GetChannelCursor returns the channel cursor and whether one is stored
func (s *Store) GetChannelCursor(ctx context.Context, accountID, channel string) (int64, bool, error) {
	return s.getCursor(ctx, `SELECT item_id FROM channel_cursors WHERE account_id = ? AND channel = ?`, accountID, channel)
}

// SetChannelCursor advances the channel cursor. Lower ids are ignored.
func (s *Store) SetChannelCursor(ctx context.Context, accountID, channel string, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_cursors (account_id, channel, item_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, channel) DO UPDATE SET item_id = excluded.item_id, updated_at = excluded.updated_at
		WHERE excluded.item_id > channel_cursors.item_id
	`, accountID, channel, id, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save channel cursor: %w", err)
	}
	return nil
}

// GetTimelineCursor returns the home timeline cursor and whether one is stored
func (s *Store) GetTimelineCursor(ctx context.Context, accountID string) (int64, bool, error) {
	return s.getCursor(ctx, `SELECT item_id FROM timeline_cursors WHERE account_id = ?`, accountID)
}

// SetTimelineCursor advances the home timeline cursor. Lower ids are ignored.
func (s *Store) SetTimelineCursor(ctx context.Context, accountID string, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timeline_cursors (account_id, item_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET item_id = excluded.item_id, updated_at = excluded.updated_at
		WHERE excluded.item_id > timeline_cursors.item_id
	`, accountID, id, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save timeline cursor: %w", err)
	}
	return nil
}

func (s *Store) getCursor(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query cursor: %w", err)
	}
	return id, true, nil
}

// GetFollowerSnapshot returns the stored follower ids in ascending order
func (s *Store) GetFollowerSnapshot(ctx context.Context, accountID string) ([]domain.FollowerID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT follower_id FROM followers WHERE account_id = ? ORDER BY follower_id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query followers: %w", err)
	}
	defer rows.Close()

	var ids []domain.FollowerID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		ids = append(ids, domain.FollowerID(id))
	}
	return ids, rows.Err()
}

// AddFollower stores one membership row. The account's snapshot counts as
// seeded from then on.
func (s *Store) AddFollower(ctx context.Context, accountID string, id domain.FollowerID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO followers (account_id, follower_id, created_at) VALUES (?, ?, ?)
	`, accountID, int64(id), now); err != nil {
		return fmt.Errorf("failed to add follower: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO follower_snapshots (account_id, seeded_at) VALUES (?, ?)
	`, accountID, now); err != nil {
		return fmt.Errorf("failed to mark snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit follower: %w", err)
	}
	return nil
}

// RemoveFollower deletes one membership row
func (s *Store) RemoveFollower(ctx context.Context, accountID string, id domain.FollowerID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM followers WHERE account_id = ? AND follower_id = ?`, accountID, int64(id))
	if err != nil {
		return fmt.Errorf("failed to remove follower: %w", err)
	}
	return nil
}

// IsSnapshotSeeded reports whether a baseline was ever stored for the account
func (s *Store) IsSnapshotSeeded(ctx context.Context, accountID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follower_snapshots WHERE account_id = ?`, accountID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return count > 0, nil
}

// SeedSnapshot replaces the account's follower rows with ids, as the
// baseline, in one transaction
func (s *Store) SeedSnapshot(ctx context.Context, accountID string, ids []domain.FollowerID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM followers WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to clear followers: %w", err)
	}

	now := time.Now().Unix()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO followers (account_id, follower_id, created_at) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, accountID, int64(id), now); err != nil {
			return fmt.Errorf("failed to seed follower: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO follower_snapshots (account_id, seeded_at) VALUES (?, ?)
	`, accountID, now); err != nil {
		return fmt.Errorf("failed to mark snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}
