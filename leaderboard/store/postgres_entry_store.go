// leaderboard/store/postgres_entry_store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/isabot-go/shared/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresEntryStore persists leaderboard snapshots as JSONB rows. It is the
// alternative to EntryStore selected with ENTRY_STORE_BACKEND=postgres.
type PostgresEntryStore struct {
	db *sql.DB
}

// OpenPostgresEntryStore connects, pings and creates the table if needed.
func OpenPostgresEntryStore(connStr string) (*PostgresEntryStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	s := &PostgresEntryStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresEntryStore) Close() error {
	return s.db.Close()
}

func (s *PostgresEntryStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS leaderboard_entries (
			id UUID PRIMARY KEY,
			date_created BIGINT NOT NULL,
			players JSONB NOT NULL,
			mounts JSONB NOT NULL,
			normal_bg_wins JSONB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_date_created ON leaderboard_entries(date_created DESC);",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresEntryStore) Create(ctx context.Context, entry models.Entry) (string, error) {
	id := uuid.New().String()

	players, err := json.Marshal(entry.Players)
	if err != nil {
		return "", fmt.Errorf("failed to encode players: %w", err)
	}
	mounts, err := json.Marshal(entry.Mounts)
	if err != nil {
		return "", fmt.Errorf("failed to encode mounts: %w", err)
	}
	bg, err := json.Marshal(entry.NormalBGWins)
	if err != nil {
		return "", fmt.Errorf("failed to encode normal_bg_wins: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leaderboard_entries (id, date_created, players, mounts, normal_bg_wins)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, entry.DateCreated, players, mounts, bg)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("leaderboard entry %s already exists: %w", id, err)
		}
		return "", fmt.Errorf("failed to insert leaderboard entry %s: %w", id, err)
	}
	return id, nil
}

const selectEntry = `SELECT id, date_created, players, mounts, normal_bg_wins FROM leaderboard_entries`

func (s *PostgresEntryStore) Latest(ctx context.Context) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+" ORDER BY date_created DESC LIMIT 1")
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest leaderboard entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresEntryStore) List(ctx context.Context, limit int) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntry+" ORDER BY date_created DESC LIMIT $1", normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard entries: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode leaderboard entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		entry                models.Entry
		players, mounts, bgs []byte
	)
	if err := row.Scan(&entry.ID, &entry.DateCreated, &players, &mounts, &bgs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(players, &entry.Players); err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}
	if err := json.Unmarshal(mounts, &entry.Mounts); err != nil {
		return nil, fmt.Errorf("mounts: %w", err)
	}
	if err := json.Unmarshal(bgs, &entry.NormalBGWins); err != nil {
		return nil, fmt.Errorf("normal_bg_wins: %w", err)
	}
	return &entry, nil
}
