package bot

import (
	"context"
	"fmt"
	"log/slog"

	"granabot/internal/domain"
	"granabot/internal/ledger"
)

// handleUndo consumes the single pending action for the chat. Undo is
// single-shot: once consumed (or expired) a second /undo reports there is
// nothing to undo. Failures are reported, never retried.
func (d *Dispatcher) handleUndo(ctx context.Context, identity domain.ChatIdentity) {
	chatID := identity.ChatID

	action, err := d.store.GetPendingAction(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load pending action", "chat_id", chatID, "error", err)
		d.send(ctx, chatID, replyRetry)
		return
	}
	if action == nil {
		d.send(ctx, chatID, replyNothingToUndo)
		return
	}

	if err := d.compensate(ctx, action); err != nil {
		if rejected, ok := ledger.IsRejected(err); ok {
			d.send(ctx, chatID, fmt.Sprintf("Não consegui desfazer *%s*: %s", action.Label, rejected.Message))
			return
		}
		slog.Error("Undo failed", "chat_id", chatID, "kind", action.Kind, "entity_id", action.EntityID, "error", err)
		d.send(ctx, chatID, replyRetry)
		return
	}

	if err := d.store.DeletePendingAction(ctx, chatID); err != nil {
		slog.Warn("Failed to clear pending action after undo", "chat_id", chatID, "error", err)
	}
	d.send(ctx, chatID, fmt.Sprintf("Desfeito: *%s*.", action.Label))
}

// compensate reverses one recorded action, including the cascade for
// transactions the engine auto-matched against a scheduled event.
func (d *Dispatcher) compensate(ctx context.Context, action *domain.PendingAction) error {
	switch action.Kind {
	case domain.ActionEventCreated:
		return d.gateway.DeleteEvent(ctx, action.EntityID)

	case domain.ActionTransactionRecorded:
		if err := d.gateway.DeleteTransaction(ctx, action.EntityID); err != nil {
			return err
		}
		if action.MatchedEventID == 0 {
			return nil
		}
		return d.unrealizeEvent(ctx, action.MatchedEventID, action.OccurrenceMonth)

	case domain.ActionEventMarkedRealized:
		if action.OccurrenceMonth != "" {
			return d.gateway.ClearOccurrenceRealized(ctx, action.EntityID, action.OccurrenceMonth)
		}
		return d.gateway.ClearEventRealized(ctx, action.EntityID)

	default:
		return fmt.Errorf("unknown pending action kind %q", action.Kind)
	}
}

// unrealizeEvent applies the inverse of "mark realized" to an auto-matched
// event. The event is re-resolved because the compensation path differs:
// one-time events clear their realized flag directly; recurring events
// un-realize only the occurrence the match affected.
func (d *Dispatcher) unrealizeEvent(ctx context.Context, eventID int64, occurrenceMonth string) error {
	event, err := d.gateway.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Recurring() {
		month := occurrenceMonth
		if month == "" {
			month = event.Date.Format("2006-01")
		}
		return d.gateway.ClearOccurrenceRealized(ctx, eventID, month)
	}
	return d.gateway.ClearEventRealized(ctx, eventID)
}
