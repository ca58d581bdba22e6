package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"granabot/internal/domain"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	chatCtx := &domain.ChatContext{ChatID: 42}
	chatCtx.AppendExchange("paguei a luz", "quanto foi?")
	if err := s.SetContext(ctx, chatCtx); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	got, err := s.GetContext(ctx, 42)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected context, got nil")
	}
	if len(got.Exchanges) != 1 || got.Exchanges[0].Assistant != "quanto foi?" {
		t.Fatalf("unexpected exchanges: %+v", got.Exchanges)
	}
	if got.Selection != nil {
		t.Fatalf("expected no selection, got %+v", got.Selection)
	}
}

func TestContextExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	chatCtx := &domain.ChatContext{
		ChatID:    7,
		UpdatedAt: time.Now().Add(-domain.ContextTTL - time.Second),
	}
	chatCtx.AppendExchange("oi", "oi!")
	if err := s.SetContext(ctx, chatCtx); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	got, err := s.GetContext(ctx, 7)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired context to read as absent, got %+v", got)
	}
}

func TestContextSelectionRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	chatCtx := &domain.ChatContext{
		ChatID: 9,
		Selection: &domain.Selection{
			Kind: domain.SelectionKindLedger,
			Options: map[int]domain.Ledger{
				1: {ID: 10, Name: "Casa"},
				2: {ID: 20, Name: "Viagem"},
			},
		},
	}
	if err := s.SetContext(ctx, chatCtx); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	got, err := s.GetContext(ctx, 9)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got == nil || got.Selection == nil {
		t.Fatal("expected pending selection to survive the round trip")
	}
	if got.Selection.Options[2].Name != "Viagem" {
		t.Fatalf("unexpected selection options: %+v", got.Selection.Options)
	}
}

func TestPendingActionSingleSlot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.PendingAction{
		ChatID:   5,
		Kind:     domain.ActionEventCreated,
		EntityID: 100,
		Label:    "aluguel",
	}
	if err := s.SetPendingAction(ctx, first); err != nil {
		t.Fatalf("SetPendingAction failed: %v", err)
	}

	second := &domain.PendingAction{
		ChatID:          5,
		Kind:            domain.ActionTransactionRecorded,
		EntityID:        200,
		Label:           "mercado",
		MatchedEventID:  300,
		OccurrenceMonth: "2024-03",
	}
	if err := s.SetPendingAction(ctx, second); err != nil {
		t.Fatalf("SetPendingAction overwrite failed: %v", err)
	}

	got, err := s.GetPendingAction(ctx, 5)
	if err != nil {
		t.Fatalf("GetPendingAction failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected pending action, got nil")
	}
	if got.Kind != domain.ActionTransactionRecorded || got.EntityID != 200 {
		t.Fatalf("expected the new write to fully replace the slot, got %+v", got)
	}
	if got.MatchedEventID != 300 || got.OccurrenceMonth != "2024-03" {
		t.Fatalf("match fields lost: %+v", got)
	}
}

func TestPendingActionExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	action := &domain.PendingAction{
		ChatID:    6,
		Kind:      domain.ActionEventCreated,
		EntityID:  1,
		Label:     "internet",
		CreatedAt: time.Now().Add(-domain.ActionTTL - time.Second),
	}
	if err := s.SetPendingAction(ctx, action); err != nil {
		t.Fatalf("SetPendingAction failed: %v", err)
	}

	got, err := s.GetPendingAction(ctx, 6)
	if err != nil {
		t.Fatalf("GetPendingAction failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired pending action to read as absent, got %+v", got)
	}
}

func TestLedgerOverride(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetLedgerOverride(ctx, 11)
	if err != nil {
		t.Fatalf("GetLedgerOverride failed: %v", err)
	}
	if ok {
		t.Fatal("expected no override initially")
	}

	if err := s.SetLedgerOverride(ctx, 11, 33); err != nil {
		t.Fatalf("SetLedgerOverride failed: %v", err)
	}
	if err := s.SetLedgerOverride(ctx, 11, 44); err != nil {
		t.Fatalf("SetLedgerOverride replace failed: %v", err)
	}

	ledgerID, ok, err := s.GetLedgerOverride(ctx, 11)
	if err != nil {
		t.Fatalf("GetLedgerOverride failed: %v", err)
	}
	if !ok || ledgerID != 44 {
		t.Fatalf("expected override 44, got %d (ok=%v)", ledgerID, ok)
	}
}

func TestSweepExpiredRemovesOnlyExpiredRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	fresh := &domain.ChatContext{ChatID: 1}
	fresh.AppendExchange("a", "b")
	if err := s.SetContext(ctx, fresh); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	stale := &domain.ChatContext{ChatID: 2, UpdatedAt: time.Now().Add(-time.Hour)}
	if err := s.SetContext(ctx, stale); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	oldAction := &domain.PendingAction{
		ChatID: 3, Kind: domain.ActionEventCreated, EntityID: 1, Label: "x",
		CreatedAt: time.Now().Add(-2 * domain.ActionTTL),
	}
	if err := s.SetPendingAction(ctx, oldAction); err != nil {
		t.Fatalf("SetPendingAction failed: %v", err)
	}

	deleted, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 rows swept, got %d", deleted)
	}

	got, err := s.GetContext(ctx, 1)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got == nil {
		t.Fatal("fresh context should survive the sweep")
	}
}
