package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"granabot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed chat state store.
func NewSQLite(dbPath string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_contexts (
		chat_id INTEGER PRIMARY KEY,
		exchanges_json TEXT NOT NULL,
		selection_json TEXT,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_contexts_updated ON chat_contexts(updated_at);

	CREATE TABLE IF NOT EXISTS pending_actions (
		chat_id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		matched_event_id INTEGER NOT NULL DEFAULT 0,
		occurrence_month TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pending_actions_created ON pending_actions(created_at);

	CREATE TABLE IF NOT EXISTS ledger_overrides (
		chat_id INTEGER PRIMARY KEY,
		ledger_id INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetContext retrieves the chat context, or nil if absent or expired.
// Expired rows are deleted opportunistically on read.
func (s *SQLiteStore) GetContext(ctx context.Context, chatID int64) (*domain.ChatContext, error) {
	query := `SELECT exchanges_json, selection_json, updated_at FROM chat_contexts WHERE chat_id = ?`

	row := s.db.QueryRowContext(ctx, query, chatID)

	var exchangesJSON string
	var selectionJSON sql.NullString
	var updatedAt int64

	err := row.Scan(&exchangesJSON, &selectionJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat context: %w", err)
	}

	chatCtx := &domain.ChatContext{
		ChatID:    chatID,
		UpdatedAt: time.Unix(updatedAt, 0),
	}
	if chatCtx.Expired(time.Now()) {
		if delErr := s.DeleteContext(ctx, chatID); delErr != nil {
			slog.Warn("failed to delete expired chat context", "chat_id", chatID, "error", delErr)
		}
		return nil, nil
	}

	if err := json.Unmarshal([]byte(exchangesJSON), &chatCtx.Exchanges); err != nil {
		return nil, fmt.Errorf("unmarshal exchanges: %w", err)
	}
	if selectionJSON.Valid && selectionJSON.String != "" {
		var sel domain.Selection
		if err := json.Unmarshal([]byte(selectionJSON.String), &sel); err != nil {
			return nil, fmt.Errorf("unmarshal selection: %w", err)
		}
		chatCtx.Selection = &sel
	}

	return chatCtx, nil
}

// SetContext creates or fully replaces the chat context.
func (s *SQLiteStore) SetContext(ctx context.Context, chatCtx *domain.ChatContext) error {
	exchanges := chatCtx.Exchanges
	if exchanges == nil {
		exchanges = []domain.Exchange{}
	}
	exchangesJSON, err := json.Marshal(exchanges)
	if err != nil {
		return fmt.Errorf("marshal exchanges: %w", err)
	}

	var selectionJSON interface{}
	if chatCtx.Selection != nil {
		data, err := json.Marshal(chatCtx.Selection)
		if err != nil {
			return fmt.Errorf("marshal selection: %w", err)
		}
		selectionJSON = string(data)
	}

	updatedAt := chatCtx.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
	INSERT INTO chat_contexts (chat_id, exchanges_json, selection_json, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		exchanges_json = excluded.exchanges_json,
		selection_json = excluded.selection_json,
		updated_at = excluded.updated_at`

	_, err = s.execRetry(ctx, query, chatCtx.ChatID, string(exchangesJSON), selectionJSON, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert chat context: %w", err)
	}
	return nil
}

// DeleteContext removes the chat context.
func (s *SQLiteStore) DeleteContext(ctx context.Context, chatID int64) error {
	if _, err := s.execRetry(ctx, `DELETE FROM chat_contexts WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat context: %w", err)
	}
	return nil
}

// GetPendingAction retrieves the pending action, or nil if absent or expired.
func (s *SQLiteStore) GetPendingAction(ctx context.Context, chatID int64) (*domain.PendingAction, error) {
	query := `
		SELECT kind, entity_id, label, matched_event_id, occurrence_month, created_at
		FROM pending_actions WHERE chat_id = ?`

	row := s.db.QueryRowContext(ctx, query, chatID)

	var action domain.PendingAction
	var kind string
	var createdAt int64

	err := row.Scan(&kind, &action.EntityID, &action.Label, &action.MatchedEventID, &action.OccurrenceMonth, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan pending action: %w", err)
	}

	action.ChatID = chatID
	action.Kind = domain.ActionKind(kind)
	action.CreatedAt = time.Unix(createdAt, 0)

	if action.Expired(time.Now()) {
		if delErr := s.DeletePendingAction(ctx, chatID); delErr != nil {
			slog.Warn("failed to delete expired pending action", "chat_id", chatID, "error", delErr)
		}
		return nil, nil
	}

	return &action, nil
}

// SetPendingAction creates or fully replaces the single pending action slot.
func (s *SQLiteStore) SetPendingAction(ctx context.Context, action *domain.PendingAction) error {
	createdAt := action.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
	INSERT INTO pending_actions (chat_id, kind, entity_id, label, matched_event_id, occurrence_month, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		kind = excluded.kind,
		entity_id = excluded.entity_id,
		label = excluded.label,
		matched_event_id = excluded.matched_event_id,
		occurrence_month = excluded.occurrence_month,
		created_at = excluded.created_at`

	_, err := s.execRetry(ctx, query,
		action.ChatID, string(action.Kind), action.EntityID, action.Label,
		action.MatchedEventID, action.OccurrenceMonth, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert pending action: %w", err)
	}
	return nil
}

// DeletePendingAction removes the pending action.
func (s *SQLiteStore) DeletePendingAction(ctx context.Context, chatID int64) error {
	if _, err := s.execRetry(ctx, `DELETE FROM pending_actions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete pending action: %w", err)
	}
	return nil
}

// GetLedgerOverride returns the chat's active-ledger override, if set.
func (s *SQLiteStore) GetLedgerOverride(ctx context.Context, chatID int64) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ledger_id FROM ledger_overrides WHERE chat_id = ?`, chatID)

	var ledgerID int64
	err := row.Scan(&ledgerID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("scan ledger override: %w", err)
	}
	return ledgerID, true, nil
}

// SetLedgerOverride sets the chat's active ledger.
func (s *SQLiteStore) SetLedgerOverride(ctx context.Context, chatID int64, ledgerID int64) error {
	query := `
	INSERT INTO ledger_overrides (chat_id, ledger_id, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		ledger_id = excluded.ledger_id,
		updated_at = excluded.updated_at`

	if _, err := s.execRetry(ctx, query, chatID, ledgerID, time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert ledger override: %w", err)
	}
	return nil
}

// SweepExpired removes context and pending-action rows past their TTL.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var total int64

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_contexts WHERE updated_at < ?`, now.Add(-domain.ContextTTL).Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep chat contexts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM pending_actions WHERE created_at < ?`, now.Add(-domain.ActionTTL).Unix())
	if err != nil {
		return total, fmt.Errorf("sweep pending actions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	return total, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
