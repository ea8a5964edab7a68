package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/kalifa4y/swppr/internal/domain"
)

// historyKey is the metadata key the exchange history lives under. The
// whole list is stored as one JSON document, newest first.
const historyKey = "exchange_history"

// HistoryStore persists the exchange history in SQLite.
type HistoryStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewHistoryStore opens (or creates) the history database with WAL mode
// enabled.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// Load returns the stored history, newest first. A missing key yields an
// empty list; a corrupt document is logged and treated as empty rather
// than blocking startup.
func (s *HistoryStore) Load(ctx context.Context) ([]domain.ExchangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *HistoryStore) loadLocked(ctx context.Context) ([]domain.ExchangeRecord, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", historyKey).Scan(&value)
	if err == sql.ErrNoRows {
		return []domain.ExchangeRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var records []domain.ExchangeRecord
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		slog.Warn("Corrupt exchange history, starting empty", slog.Any("error", err))
		return []domain.ExchangeRecord{}, nil
	}
	return records, nil
}

func (s *HistoryStore) saveLocked(ctx context.Context, records []domain.ExchangeRecord) error {
	value, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		historyKey, string(value), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Append prepends a record so the list stays newest first.
func (s *HistoryStore) Append(ctx context.Context, record domain.ExchangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	records = append([]domain.ExchangeRecord{record}, records...)
	return s.saveLocked(ctx, records)
}

// UpdateStatus rewrites the status of a stored record. Unknown ids are a
// no-op: the order may have been cleared while a refresh was in flight.
func (s *HistoryStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			records[i].Status = status
			return s.saveLocked(ctx, records)
		}
	}
	return nil
}

// Replace overwrites the stored history wholesale. Callers own the
// ordering of the new list.
func (s *HistoryStore) Replace(ctx context.Context, records []domain.ExchangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, records)
}

// Clear wipes the stored history.
func (s *HistoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE key = ?", historyKey)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
