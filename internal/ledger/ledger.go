// Package ledger is the call interface to the budgeting database's ledger
// engine. The engine itself (balance integrity, category enforcement,
// transaction/event auto-matching) lives in database-side procedures and is
// treated as a black box; this package only shapes the calls and the typed
// results.
package ledger

import (
	"context"
	"errors"
	"time"

	"granabot/internal/domain"
)

// Direction tells whether money flows into or out of the ledger.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Frequency is a scheduled event's recurrence rule.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Event is a scheduled financial event (a bill, an expected deposit).
// Amounts are integer minor currency units.
type Event struct {
	ID            int64
	LedgerID      int64
	Name          string
	AmountMinor   int64
	Direction     Direction
	Date          time.Time
	Frequency     Frequency
	RecurrenceEnd *time.Time
	Realized      bool
}

// Recurring reports whether the event repeats.
func (e *Event) Recurring() bool {
	return e.Frequency != FrequencyOnce && e.Frequency != ""
}

// Transaction is a realized ledger movement.
type Transaction struct {
	ID          int64
	LedgerID    int64
	AccountID   int64
	Description string
	AmountMinor int64
	Direction   Direction
	Date        time.Time
}

// Match reports that the engine auto-matched a recorded transaction against
// a previously scheduled event and realized it.
type Match struct {
	EventID         int64
	EventName       string
	Frequency       Frequency
	OccurrenceMonth string // "YYYY-MM" occurrence the match realized
}

// RecordResult is the outcome of recording a transaction.
type RecordResult struct {
	Transaction Transaction
	Match       *Match
}

// CreateEventParams are the inputs to create_scheduled_event.
type CreateEventParams struct {
	LedgerID      int64
	Name          string
	AmountMinor   int64
	Direction     Direction
	Date          time.Time
	Frequency     Frequency
	RecurrenceEnd *time.Time
}

// RecordTransactionParams are the inputs to record_transaction.
type RecordTransactionParams struct {
	LedgerID    int64
	AccountID   int64
	Description string
	AmountMinor int64
	Direction   Direction
	Date        time.Time
}

// FindEvents filters list_events.
type FindEvents struct {
	LedgerID   int64
	Unrealized bool
	Month      string // "YYYY-MM", empty for any
}

// RejectedError is a domain-level rejection raised by a ledger procedure
// (entity not found, already realized, category violation). It is surfaced
// to the user verbatim and is not a system failure.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// IsRejected reports whether err is a domain-level rejection and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}

// Gateway exposes the named ledger procedures. Every call carries a bounded
// timeout and returns either the affected entity or a typed failure.
type Gateway interface {
	// CreateEvent schedules a financial event and returns it.
	CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error)

	// RecordTransaction records a realized movement. The result carries the
	// engine's auto-match marker when the transaction realized a scheduled
	// event.
	RecordTransaction(ctx context.Context, params RecordTransactionParams) (*RecordResult, error)

	// MarkEventRealized marks an event (or, for recurring events, the given
	// "YYYY-MM" occurrence) as realized.
	MarkEventRealized(ctx context.Context, eventID int64, month string) error

	// ClearEventRealized clears a one-time event's realized flag.
	ClearEventRealized(ctx context.Context, eventID int64) error

	// ClearOccurrenceRealized un-realizes one occurrence of a recurring
	// event, leaving other occurrences untouched.
	ClearOccurrenceRealized(ctx context.Context, eventID int64, month string) error

	// DeleteEvent removes an event entirely.
	DeleteEvent(ctx context.Context, eventID int64) error

	// DeleteTransaction removes a transaction entirely.
	DeleteTransaction(ctx context.Context, transactionID int64) error

	// GetEvent fetches a single event by id.
	GetEvent(ctx context.Context, eventID int64) (*Event, error)

	// ListEvents lists events matching the filter.
	ListEvents(ctx context.Context, find FindEvents) ([]*Event, error)

	// ListLedgers lists the ledgers visible to an identity.
	ListLedgers(ctx context.Context, identity string) ([]domain.Ledger, error)

	// Ping verifies connectivity to the budgeting database.
	Ping(ctx context.Context) error

	// Close closes the connection pool.
	Close() error
}
