package bot

import (
	"context"
	"strings"
	"testing"

	"granabot/internal/domain"
	"granabot/internal/telegram"
)

func TestUnknownChatIsDroppedSilently(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.dispatcher.HandleUpdate(context.Background(), telegram.Update{
		Message: &telegram.Message{
			Chat: telegram.Chat{ID: 999},
			Text: "paguei 50 de mercado",
		},
	})

	if len(h.sender.messages) != 0 {
		t.Fatalf("expected no reply to an unknown chat, got %q", h.sender.messages)
	}
	if h.classifier.calls != 0 {
		t.Fatal("classifier must not run for an unknown chat")
	}
}

func TestEmptyUpdateIsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.dispatcher.HandleUpdate(context.Background(), telegram.Update{})
	h.deliver("   ")

	if len(h.sender.messages) != 0 {
		t.Fatalf("expected no reply, got %q", h.sender.messages)
	}
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.deliver("/help")

	if h.sender.last() != helpText {
		t.Fatalf("expected help text, got %q", h.sender.last())
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.deliver("/frobnicate")

	if h.sender.last() != replyUnknownCommand {
		t.Fatalf("expected unknown-command reply, got %q", h.sender.last())
	}
}

func TestCommandWithBotSuffixIsRouted(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.deliver("/help@granabot")

	if h.sender.last() != helpText {
		t.Fatalf("expected help text, got %q", h.sender.last())
	}
}

func TestCommandClearsClarificationContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	chatCtx := &domain.ChatContext{ChatID: testChatID}
	chatCtx.AppendExchange("paguei a luz", "quanto foi?")
	if err := h.store.SetContext(ctx, chatCtx); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	h.deliver("/help")

	got, err := h.store.GetContext(ctx, testChatID)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected context cleared by command, got %+v", got)
	}
}

func TestSetLedgerSelectionFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	h.gateway.ledgers = []domain.Ledger{
		{ID: 10, Name: "Casa"},
		{ID: 20, Name: "Viagem"},
		{ID: 30, Name: "Reserva"},
	}

	h.deliver("/setledger")

	prompt := h.sender.last()
	if !strings.Contains(prompt, "*2* - Viagem") {
		t.Fatalf("expected numbered list, got %q", prompt)
	}

	// Answering with the number applies the override and clears the state.
	h.deliver("2")

	if !strings.Contains(h.sender.last(), "Viagem") {
		t.Fatalf("expected confirmation naming the ledger, got %q", h.sender.last())
	}
	ledgerID, ok, err := h.store.GetLedgerOverride(ctx, testChatID)
	if err != nil {
		t.Fatalf("GetLedgerOverride failed: %v", err)
	}
	if !ok || ledgerID != 20 {
		t.Fatalf("expected override 20, got %d (ok=%v)", ledgerID, ok)
	}
	got, err := h.store.GetContext(ctx, testChatID)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected selection state cleared, got %+v", got)
	}
	if h.classifier.calls != 0 {
		t.Fatal("a pending selection answer must not be classified")
	}
}

func TestSetLedgerInvalidAnswerReprompts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	h.gateway.ledgers = []domain.Ledger{
		{ID: 10, Name: "Casa"},
		{ID: 20, Name: "Viagem"},
	}

	h.deliver("/setledger")
	h.deliver("9")

	if h.sender.last() != replySelectionInvalid {
		t.Fatalf("expected re-prompt, got %q", h.sender.last())
	}
	if _, ok, _ := h.store.GetLedgerOverride(ctx, testChatID); ok {
		t.Fatal("invalid answer must not set an override")
	}

	// The pending selection survives, so a valid answer still works.
	h.deliver("1")
	ledgerID, ok, err := h.store.GetLedgerOverride(ctx, testChatID)
	if err != nil {
		t.Fatalf("GetLedgerOverride failed: %v", err)
	}
	if !ok || ledgerID != 10 {
		t.Fatalf("expected override 10, got %d (ok=%v)", ledgerID, ok)
	}
}

func TestSetLedgerWithNoLedgers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.deliver("/setledger")

	if h.sender.last() != replyNoLedgers {
		t.Fatalf("expected no-ledgers reply, got %q", h.sender.last())
	}
	got, err := h.store.GetContext(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no pending selection, got %+v", got)
	}
}
