package bot

import (
	"context"
	"log/slog"

	"granabot/internal/domain"
)

// activeLedger resolves which ledger the chat is operating against: the
// stored override when one was set via /setledger, otherwise the identity's
// configured default. A store failure falls back to the default rather than
// blocking the turn.
func (d *Dispatcher) activeLedger(ctx context.Context, identity domain.ChatIdentity) int64 {
	ledgerID, ok, err := d.store.GetLedgerOverride(ctx, identity.ChatID)
	if err != nil {
		slog.Warn("Failed to read ledger override, using default",
			"chat_id", identity.ChatID, "error", err)
		return identity.DefaultLedgerID
	}
	if ok {
		return ledgerID
	}
	return identity.DefaultLedgerID
}
