package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"granabot/internal/classifier"
	"granabot/internal/domain"
	"granabot/internal/intent"
)

// handleFreeText drives one free-text turn: a pending numbered selection
// always takes precedence over intent classification.
func (d *Dispatcher) handleFreeText(ctx context.Context, identity domain.ChatIdentity, text string) {
	chatCtx, err := d.store.GetContext(ctx, identity.ChatID)
	if err != nil {
		slog.Error("Failed to load chat context", "chat_id", identity.ChatID, "error", err)
		d.send(ctx, identity.ChatID, replyRetry)
		return
	}

	if chatCtx != nil && chatCtx.Selection != nil {
		d.handleSelection(ctx, identity, chatCtx, text)
		return
	}

	var history []domain.Exchange
	if chatCtx != nil {
		history = chatCtx.Exchanges
	}

	payload, err := d.classifier.Classify(ctx, classifier.Request{
		Message: text,
		History: history,
		Today:   d.now().In(d.loc),
	})
	if err != nil {
		slog.Error("Classification failed", "chat_id", identity.ChatID, "error", err)
		d.send(ctx, identity.ChatID, replyRetry)
		return
	}

	switch payload.Kind {
	case intent.KindClarify:
		d.handleClarify(ctx, identity, chatCtx, text, payload.Clarify)
	case intent.KindNewEvent:
		d.execNewEvent(ctx, identity, payload.NewEvent)
	case intent.KindRecordTransaction:
		d.execRecordTransaction(ctx, identity, payload.RecordTransaction)
	case intent.KindMarkRealized:
		d.execMarkRealized(ctx, identity, payload.MarkRealized)
	default:
		d.send(ctx, identity.ChatID, replyNotBudget)
	}
}

// handleSelection treats the message as the answer to a pending numbered
// choice. Invalid input re-prompts and leaves the pending state intact.
func (d *Dispatcher) handleSelection(ctx context.Context, identity domain.ChatIdentity, chatCtx *domain.ChatContext, text string) {
	choice, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		d.send(ctx, identity.ChatID, replySelectionInvalid)
		return
	}

	selected, ok := chatCtx.Selection.Options[choice]
	if !ok {
		d.send(ctx, identity.ChatID, replySelectionInvalid)
		return
	}

	if err := d.store.SetLedgerOverride(ctx, identity.ChatID, selected.ID); err != nil {
		slog.Error("Failed to set ledger override", "chat_id", identity.ChatID, "error", err)
		d.send(ctx, identity.ChatID, replyRetry)
		return
	}
	d.clearContext(ctx, identity.ChatID)

	d.send(ctx, identity.ChatID, fmt.Sprintf("Beleza, agora estamos no orçamento *%s*.", selected.Name))
}

// handleClarify appends the turn to the bounded history and relays the
// classifier's single follow-up question. No ledger call happens here.
func (d *Dispatcher) handleClarify(ctx context.Context, identity domain.ChatIdentity, chatCtx *domain.ChatContext, userText, question string) {
	if chatCtx == nil {
		chatCtx = &domain.ChatContext{ChatID: identity.ChatID}
	}
	chatCtx.AppendExchange(userText, question)
	chatCtx.UpdatedAt = d.now()

	if err := d.store.SetContext(ctx, chatCtx); err != nil {
		slog.Error("Failed to persist clarification context", "chat_id", identity.ChatID, "error", err)
	}

	d.send(ctx, identity.ChatID, question)
}
