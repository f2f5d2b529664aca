package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the SQLite connection and schema. It owns the tracked-user
// registry the poller iterates over and an append-only snapshot archive.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	// Enable WAL mode (Write-Ahead Logging)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracked_users (
		username TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Append-only archive of published snapshots; payload is the full
	-- serialized snapshot.
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		taken_at DATETIME NOT NULL,
		payload JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_user_time ON snapshots(username, taken_at DESC);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// AddUser registers a user for polling, replacing the stored credential if
// the user is already tracked.
func (s *Store) AddUser(ctx context.Context, user TrackedUser) error {
	addedAt := user.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_users (username, token, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET token = excluded.token`,
		user.Username, user.Token, addedAt)
	if err != nil {
		return fmt.Errorf("failed to add user %s: %w", user.Username, err)
	}
	return nil
}

// RemoveUser drops a user from the registry.
func (s *Store) RemoveUser(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracked_users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to remove user %s: %w", username, err)
	}
	return nil
}

// ListUsers returns every tracked user, oldest registration first.
func (s *Store) ListUsers(ctx context.Context) ([]TrackedUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, token, added_at FROM tracked_users ORDER BY added_at, username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []TrackedUser
	for rows.Next() {
		var u TrackedUser
		if err := rows.Scan(&u.Username, &u.Token, &u.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SaveSnapshot appends a published snapshot to the archive.
func (s *Store) SaveSnapshot(ctx context.Context, username string, takenAt time.Time, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (username, taken_at, payload) VALUES (?, ?, ?)`,
		username, takenAt.UTC(), payload)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", username, err)
	}
	return nil
}

// LatestSnapshot returns the most recent archived snapshot for a user, or
// nil when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, username string) (*ArchivedSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, taken_at, payload FROM snapshots
		 WHERE username = ? ORDER BY taken_at DESC, id DESC LIMIT 1`, username)

	var snap ArchivedSnapshot
	if err := row.Scan(&snap.ID, &snap.Username, &snap.TakenAt, &snap.Payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest snapshot for %s: %w", username, err)
	}
	return &snap, nil
}

// PruneSnapshots deletes archive entries older than the cutoff, returning
// the number removed.
func (s *Store) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE taken_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
