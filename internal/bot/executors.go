package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"granabot/internal/domain"
	"granabot/internal/intent"
	"granabot/internal/ledger"
)

// markRealizedTopN caps how many substring matches compete for selection.
// Among those, the earliest event date wins; this tie-break is a behavior
// contract, not a side effect of query ordering.
const markRealizedTopN = 3

// replyMissingField names the missing field. History is deliberately not
// extended on this branch: a rejected turn must not poison later
// classification.
func (d *Dispatcher) replyMissingField(ctx context.Context, chatID int64, field string) {
	d.send(ctx, chatID, fmt.Sprintf("Faltou o campo *%s*. Me fala ele que eu registro.", field))
}

// replyGatewayError surfaces domain rejections verbatim and converts
// everything else into the generic retry message. No state is mutated.
func (d *Dispatcher) replyGatewayError(ctx context.Context, chatID int64, op string, err error) {
	if rejected, ok := ledger.IsRejected(err); ok {
		d.send(ctx, chatID, rejected.Message)
		return
	}
	slog.Error("Ledger gateway call failed", "op", op, "chat_id", chatID, "error", err)
	d.send(ctx, chatID, replyRetry)
}

// finishMutation clears the chat context, records the pending action and
// sends the confirmation. A store failure after a successful mutation is
// logged but the confirmation still goes out: the ledger write happened.
func (d *Dispatcher) finishMutation(ctx context.Context, action *domain.PendingAction, confirmation string) {
	d.clearContext(ctx, action.ChatID)

	action.CreatedAt = d.now()
	if err := d.store.SetPendingAction(ctx, action); err != nil {
		slog.Error("Failed to record pending action", "chat_id", action.ChatID, "error", err)
	}

	d.send(ctx, action.ChatID, confirmation)
}

func (d *Dispatcher) execNewEvent(ctx context.Context, identity domain.ChatIdentity, v *intent.NewEvent) {
	chatID := identity.ChatID
	switch {
	case v.Name == "":
		d.replyMissingField(ctx, chatID, "nome")
		return
	case v.AmountMinor <= 0:
		d.replyMissingField(ctx, chatID, "valor")
		return
	case v.Direction != ledger.DirectionIn && v.Direction != ledger.DirectionOut:
		d.replyMissingField(ctx, chatID, "direção (entrada ou saída)")
		return
	case v.Date.IsZero():
		d.replyMissingField(ctx, chatID, "data")
		return
	}
	if v.Frequency == "" {
		v.Frequency = ledger.FrequencyOnce
	}

	event, err := d.gateway.CreateEvent(ctx, ledger.CreateEventParams{
		LedgerID:      d.activeLedger(ctx, identity),
		Name:          v.Name,
		AmountMinor:   v.AmountMinor,
		Direction:     v.Direction,
		Date:          v.Date,
		Frequency:     v.Frequency,
		RecurrenceEnd: v.RecurrenceEnd,
	})
	if err != nil {
		d.replyGatewayError(ctx, chatID, "create_scheduled_event", err)
		return
	}

	confirmation := fmt.Sprintf("Agendado: *%s*\n%s de %s em %s (%s).\n\nSe não era isso, manda /undo.",
		event.Name,
		directionLabel(event.Direction),
		formatBRL(event.AmountMinor),
		formatDate(event.Date),
		frequencyLabel(event.Frequency),
	)
	d.finishMutation(ctx, &domain.PendingAction{
		ChatID:   chatID,
		Kind:     domain.ActionEventCreated,
		EntityID: event.ID,
		Label:    event.Name,
	}, confirmation)
}

func (d *Dispatcher) execRecordTransaction(ctx context.Context, identity domain.ChatIdentity, v *intent.RecordTransaction) {
	chatID := identity.ChatID
	switch {
	case v.Description == "":
		d.replyMissingField(ctx, chatID, "descrição")
		return
	case v.AmountMinor <= 0:
		d.replyMissingField(ctx, chatID, "valor")
		return
	case v.Direction != ledger.DirectionIn && v.Direction != ledger.DirectionOut:
		d.replyMissingField(ctx, chatID, "direção (entrada ou saída)")
		return
	case v.Date.IsZero():
		d.replyMissingField(ctx, chatID, "data")
		return
	}

	accountID, ok := d.accounts.Resolve(v.AccountHint)
	if !ok {
		// No gateway call and no pending action without an account.
		d.send(ctx, chatID, replyNeedAccount)
		return
	}

	result, err := d.gateway.RecordTransaction(ctx, ledger.RecordTransactionParams{
		LedgerID:    d.activeLedger(ctx, identity),
		AccountID:   accountID,
		Description: v.Description,
		AmountMinor: v.AmountMinor,
		Direction:   v.Direction,
		Date:        v.Date,
	})
	if err != nil {
		d.replyGatewayError(ctx, chatID, "record_transaction", err)
		return
	}

	tx := result.Transaction
	var sb strings.Builder
	fmt.Fprintf(&sb, "Registrado: *%s*\n%s de %s em %s.\n",
		tx.Description, directionLabel(tx.Direction), formatBRL(tx.AmountMinor), formatDate(tx.Date))

	action := &domain.PendingAction{
		ChatID:   chatID,
		Kind:     domain.ActionTransactionRecorded,
		EntityID: tx.ID,
		Label:    tx.Description,
	}
	if result.Match != nil {
		action.MatchedEventID = result.Match.EventID
		action.OccurrenceMonth = result.Match.OccurrenceMonth
		fmt.Fprintf(&sb, "Casou com o evento agendado *%s*, que marquei como realizado.\n", result.Match.EventName)
	} else {
		sb.WriteString("Nenhum evento agendado casou com esse lançamento.\n")
	}
	sb.WriteString("\nSe não era isso, manda /undo.")

	d.finishMutation(ctx, action, sb.String())
}

func (d *Dispatcher) execMarkRealized(ctx context.Context, identity domain.ChatIdentity, v *intent.MarkRealized) {
	chatID := identity.ChatID
	if v.Name == "" {
		d.replyMissingField(ctx, chatID, "nome do evento")
		return
	}

	events, err := d.gateway.ListEvents(ctx, ledger.FindEvents{
		LedgerID:   d.activeLedger(ctx, identity),
		Unrealized: true,
		Month:      v.Month,
	})
	if err != nil {
		d.replyGatewayError(ctx, chatID, "list_events", err)
		return
	}

	candidates := matchEvents(events, v.Name, markRealizedTopN)
	if len(candidates) == 0 {
		d.send(ctx, chatID, fmt.Sprintf("Não achei nenhum evento pendente parecido com *%s*.", v.Name))
		return
	}
	target := earliestEvent(candidates)

	// Recurring events realize a specific occurrence; one-time events flip
	// their own flag.
	month := ""
	if target.Recurring() {
		month = v.Month
		if month == "" {
			month = target.Date.Format("2006-01")
		}
	}

	if err := d.gateway.MarkEventRealized(ctx, target.ID, month); err != nil {
		d.replyGatewayError(ctx, chatID, "mark_event_realized", err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Marquei *%s* como realizado: %s de %s em %s.\n",
		target.Name, directionLabel(target.Direction), formatBRL(target.AmountMinor), formatDate(target.Date))
	if len(candidates) > 1 {
		fmt.Fprintf(&sb, "Havia %d candidatos com esse nome; escolhi o de data mais antiga.\n", len(candidates))
	}
	sb.WriteString("\nSe não era isso, manda /undo.")

	d.finishMutation(ctx, &domain.PendingAction{
		ChatID:          chatID,
		Kind:            domain.ActionEventMarkedRealized,
		EntityID:        target.ID,
		Label:           target.Name,
		OccurrenceMonth: month,
	}, sb.String())
}

// matchEvents returns up to topN events whose name contains the fragment,
// case-insensitively, preserving listing order.
func matchEvents(events []*ledger.Event, fragment string, topN int) []*ledger.Event {
	fragment = strings.ToLower(fragment)
	var matched []*ledger.Event
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Name), fragment) {
			matched = append(matched, e)
			if len(matched) == topN {
				break
			}
		}
	}
	return matched
}

// earliestEvent picks the earliest-dated candidate. Sort is stable so equal
// dates keep listing order.
func earliestEvent(candidates []*ledger.Event) *ledger.Event {
	picked := make([]*ledger.Event, len(candidates))
	copy(picked, candidates)
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Date.Before(picked[j].Date)
	})
	return picked[0]
}
