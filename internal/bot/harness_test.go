package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"granabot/internal/classifier"
	"granabot/internal/domain"
	"granabot/internal/intent"
	"granabot/internal/ledger"
	"granabot/internal/store"
	"granabot/internal/telegram"
)

const testChatID int64 = 52031337

var testIdentity = domain.ChatIdentity{
	ChatID:          testChatID,
	Identity:        "felipe",
	DefaultLedgerID: 1,
}

type fakeClassifier struct {
	payload *intent.Payload
	err     error

	calls   int
	lastReq classifier.Request
}

func (f *fakeClassifier) Classify(_ context.Context, req classifier.Request) (*intent.Payload, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type occurrenceCall struct {
	EventID int64
	Month   string
}

// fakeGateway records every mutation so tests can assert on exactly which
// procedures ran.
type fakeGateway struct {
	nextEventID int64
	nextTxID    int64

	ledgers     []domain.Ledger
	events      []*ledger.Event
	eventsByID  map[int64]*ledger.Event
	recordMatch *ledger.Match
	err         error

	createCalls         []ledger.CreateEventParams
	recordCalls         []ledger.RecordTransactionParams
	markCalls           []occurrenceCall
	clearEventCalls     []int64
	clearOccurrenceCall []occurrenceCall
	deletedEvents       []int64
	deletedTransactions []int64
	listCalls           []ledger.FindEvents
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextEventID: 100,
		nextTxID:    500,
		eventsByID:  make(map[int64]*ledger.Event),
	}
}

func (f *fakeGateway) totalCalls() int {
	return len(f.createCalls) + len(f.recordCalls) + len(f.markCalls) +
		len(f.clearEventCalls) + len(f.clearOccurrenceCall) +
		len(f.deletedEvents) + len(f.deletedTransactions) + len(f.listCalls)
}

func (f *fakeGateway) CreateEvent(_ context.Context, params ledger.CreateEventParams) (*ledger.Event, error) {
	f.createCalls = append(f.createCalls, params)
	if f.err != nil {
		return nil, f.err
	}
	f.nextEventID++
	event := &ledger.Event{
		ID:          f.nextEventID,
		LedgerID:    params.LedgerID,
		Name:        params.Name,
		AmountMinor: params.AmountMinor,
		Direction:   params.Direction,
		Date:        params.Date,
		Frequency:   params.Frequency,
	}
	f.eventsByID[event.ID] = event
	return event, nil
}

func (f *fakeGateway) RecordTransaction(_ context.Context, params ledger.RecordTransactionParams) (*ledger.RecordResult, error) {
	f.recordCalls = append(f.recordCalls, params)
	if f.err != nil {
		return nil, f.err
	}
	f.nextTxID++
	return &ledger.RecordResult{
		Transaction: ledger.Transaction{
			ID:          f.nextTxID,
			LedgerID:    params.LedgerID,
			AccountID:   params.AccountID,
			Description: params.Description,
			AmountMinor: params.AmountMinor,
			Direction:   params.Direction,
			Date:        params.Date,
		},
		Match: f.recordMatch,
	}, nil
}

func (f *fakeGateway) MarkEventRealized(_ context.Context, eventID int64, month string) error {
	f.markCalls = append(f.markCalls, occurrenceCall{EventID: eventID, Month: month})
	return f.err
}

func (f *fakeGateway) ClearEventRealized(_ context.Context, eventID int64) error {
	f.clearEventCalls = append(f.clearEventCalls, eventID)
	return f.err
}

func (f *fakeGateway) ClearOccurrenceRealized(_ context.Context, eventID int64, month string) error {
	f.clearOccurrenceCall = append(f.clearOccurrenceCall, occurrenceCall{EventID: eventID, Month: month})
	return f.err
}

func (f *fakeGateway) DeleteEvent(_ context.Context, eventID int64) error {
	f.deletedEvents = append(f.deletedEvents, eventID)
	return f.err
}

func (f *fakeGateway) DeleteTransaction(_ context.Context, transactionID int64) error {
	f.deletedTransactions = append(f.deletedTransactions, transactionID)
	return f.err
}

func (f *fakeGateway) GetEvent(_ context.Context, eventID int64) (*ledger.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	event, ok := f.eventsByID[eventID]
	if !ok {
		return nil, &ledger.RejectedError{Message: "evento não encontrado"}
	}
	return event, nil
}

func (f *fakeGateway) ListEvents(_ context.Context, find ledger.FindEvents) ([]*ledger.Event, error) {
	f.listCalls = append(f.listCalls, find)
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func (f *fakeGateway) ListLedgers(_ context.Context, _ string) ([]domain.Ledger, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ledgers, nil
}

func (f *fakeGateway) Ping(_ context.Context) error { return nil }
func (f *fakeGateway) Close() error                 { return nil }

type fakeSender struct {
	messages []string
}

func (f *fakeSender) SendMessage(_ context.Context, _ int64, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeSender) last() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

type harness struct {
	dispatcher *Dispatcher
	store      store.Store
	gateway    *fakeGateway
	classifier *fakeClassifier
	sender     *fakeSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	gateway := newFakeGateway()
	cls := &fakeClassifier{}
	sender := &fakeSender{}
	accounts := NewAccountResolver(map[string]int64{"nubank": 3, "itau": 5}, 0)
	chats := map[int64]domain.ChatIdentity{testChatID: testIdentity}

	d := New(st, gateway, cls, sender, chats, accounts, time.UTC)
	d.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}

	return &harness{
		dispatcher: d,
		store:      st,
		gateway:    gateway,
		classifier: cls,
		sender:     sender,
	}
}

func (h *harness) deliver(text string) {
	h.dispatcher.HandleUpdate(context.Background(), telegram.Update{
		Message: &telegram.Message{
			Chat: telegram.Chat{ID: testChatID},
			Text: text,
		},
	})
}
