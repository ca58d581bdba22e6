// Package bot implements the conversational control layer: command routing,
// intent execution, the single-slot undo protocol, and the account/ledger
// resolvers.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"granabot/internal/classifier"
	"granabot/internal/domain"
	"granabot/internal/ledger"
	"granabot/internal/store"
	"granabot/internal/telegram"
)

const helpText = `Eu registro sua vida financeira por aqui.

Fale comigo normalmente:
- "paguei 45,90 de mercado no nubank"
- "agenda o aluguel de 1800 todo dia 5"
- "o salário caiu"

Comandos:
/setledger - trocar o orçamento ativo
/undo - desfazer a última operação
/help - esta mensagem`

const (
	replyRetry            = "Não consegui processar agora. Tenta de novo em instantes?"
	replyUnknownCommand   = "Não reconheci esse comando. Manda /help para ver o que eu sei fazer."
	replyNotBudget        = "Isso não parece coisa do orçamento. Manda /help se quiser ver o que eu faço."
	replyNothingToUndo    = "Não tem nada para desfazer."
	replyNeedAccount      = "Em qual conta foi isso? Não consegui identificar a conta."
	replyNoLedgers        = "Não encontrei nenhum orçamento para você."
	replySelectionInvalid = "Opção inválida. Responde só com o número de um dos orçamentos da lista."
)

// Dispatcher is the top-level per-message state machine. It is stateless
// between requests: all cross-request state lives in the Store keyed by
// chat id, so concurrent deliveries for the same chat race last-writer-wins
// by design.
type Dispatcher struct {
	store      store.Store
	gateway    ledger.Gateway
	classifier classifier.Classifier
	sender     telegram.Sender
	chats      map[int64]domain.ChatIdentity
	accounts   *AccountResolver
	loc        *time.Location

	now func() time.Time
}

// New creates a dispatcher.
func New(
	st store.Store,
	gateway ledger.Gateway,
	cls classifier.Classifier,
	sender telegram.Sender,
	chats map[int64]domain.ChatIdentity,
	accounts *AccountResolver,
	loc *time.Location,
) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		store:      st,
		gateway:    gateway,
		classifier: cls,
		sender:     sender,
		chats:      chats,
		accounts:   accounts,
		loc:        loc,
		now:        time.Now,
	}
}

// HandleUpdate processes one inbound delivery end to end: at most one reply
// is sent, and messages from chats outside the allow-list are dropped
// silently. Failures never propagate; every branch converts them into a
// user-facing reply or a log line.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	identity, ok := d.chats[chatID]
	if !ok {
		slog.Warn("Dropping message from unknown chat", "chat_id", chatID)
		return
	}

	slog.Info("Handling message", "chat_id", chatID, "identity", identity.Identity, "length", len(text))

	if strings.HasPrefix(text, "/") {
		d.handleCommand(ctx, identity, text)
		return
	}
	d.handleFreeText(ctx, identity, text)
}

// handleCommand routes fixed commands. Every branch except /undo clears the
// chat context first, so stale clarification loops cannot leak into
// unrelated commands.
func (d *Dispatcher) handleCommand(ctx context.Context, identity domain.ChatIdentity, text string) {
	command := strings.ToLower(strings.Fields(text)[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}

	if command != "/undo" {
		d.clearContext(ctx, identity.ChatID)
	}

	switch command {
	case "/start", "/help":
		d.send(ctx, identity.ChatID, helpText)
	case "/setledger":
		d.handleSetLedger(ctx, identity)
	case "/undo":
		d.handleUndo(ctx, identity)
	default:
		d.send(ctx, identity.ChatID, replyUnknownCommand)
	}
}

// handleSetLedger enumerates the identity's ledgers as a numbered list and
// parks that numbering as a pending selection; the next free-text message
// answers it.
func (d *Dispatcher) handleSetLedger(ctx context.Context, identity domain.ChatIdentity) {
	ledgers, err := d.gateway.ListLedgers(ctx, identity.Identity)
	if err != nil {
		slog.Error("ListLedgers failed", "chat_id", identity.ChatID, "error", err)
		d.send(ctx, identity.ChatID, replyRetry)
		return
	}
	if len(ledgers) == 0 {
		d.send(ctx, identity.ChatID, replyNoLedgers)
		return
	}

	options := make(map[int]domain.Ledger, len(ledgers))
	var sb strings.Builder
	sb.WriteString("Qual orçamento você quer usar? Responde com o número:\n")
	for i, l := range ledgers {
		options[i+1] = l
		sb.WriteString("\n")
		sb.WriteString(numberedLine(i+1, l.Name))
	}

	chatCtx := &domain.ChatContext{
		ChatID: identity.ChatID,
		Selection: &domain.Selection{
			Kind:    domain.SelectionKindLedger,
			Options: options,
		},
		UpdatedAt: d.now(),
	}
	if err := d.store.SetContext(ctx, chatCtx); err != nil {
		slog.Error("Failed to persist ledger selection", "chat_id", identity.ChatID, "error", err)
		d.send(ctx, identity.ChatID, replyRetry)
		return
	}

	d.send(ctx, identity.ChatID, sb.String())
}

func (d *Dispatcher) clearContext(ctx context.Context, chatID int64) {
	if err := d.store.DeleteContext(ctx, chatID); err != nil {
		slog.Warn("Failed to clear chat context", "chat_id", chatID, "error", err)
	}
}

// send delivers one reply; delivery failures are logged, never propagated.
func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) {
	if err := d.sender.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("Failed to send reply", "chat_id", chatID, "error", err)
	}
}
