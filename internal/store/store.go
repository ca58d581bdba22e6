// Package store provides keyed persistence for per-chat conversational
// state: the short-lived chat context, the single-slot pending action, and
// the active-ledger override.
//
// TTL semantics are enforced lazily: a Get whose row is past its TTL behaves
// as if the row were absent, regardless of whether a sweeper has run.
// Concurrent deliveries for the same chat are not serialized; the last
// writer wins.
package store

import (
	"context"

	"granabot/internal/domain"
)

// Store defines keyed get/set/delete-with-expiry persistence for chat state.
type Store interface {
	// GetContext retrieves the chat context, or nil if absent or expired.
	GetContext(ctx context.Context, chatID int64) (*domain.ChatContext, error)

	// SetContext creates or fully replaces the chat context.
	SetContext(ctx context.Context, chatCtx *domain.ChatContext) error

	// DeleteContext removes the chat context. Deleting a missing row is not
	// an error.
	DeleteContext(ctx context.Context, chatID int64) error

	// GetPendingAction retrieves the pending action, or nil if absent or
	// expired.
	GetPendingAction(ctx context.Context, chatID int64) (*domain.PendingAction, error)

	// SetPendingAction creates or fully replaces the single pending action
	// slot for the chat.
	SetPendingAction(ctx context.Context, action *domain.PendingAction) error

	// DeletePendingAction removes the pending action.
	DeletePendingAction(ctx context.Context, chatID int64) error

	// GetLedgerOverride returns the chat's active-ledger override, if set.
	GetLedgerOverride(ctx context.Context, chatID int64) (int64, bool, error)

	// SetLedgerOverride sets the chat's active ledger. No expiry.
	SetLedgerOverride(ctx context.Context, chatID int64, ledgerID int64) error

	// SweepExpired removes rows past their TTL and reports how many were
	// deleted. Read-time lazy expiry remains authoritative either way.
	SweepExpired(ctx context.Context) (int64, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
