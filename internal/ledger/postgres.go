package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"granabot/internal/domain"
	"github.com/lib/pq"
)

// callTimeout bounds every procedure call. The budgeting database is local
// to the deployment; anything slower than this is a failure, not latency.
const callTimeout = 5 * time.Second

// PostgresGateway implements Gateway against the budgeting database's
// stored procedures via lib/pq.
type PostgresGateway struct {
	db *sql.DB
}

// NewPostgres opens a connection pool to the budgeting database.
func NewPostgres(dsn string) (Gateway, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresGateway{db: db}, nil
}

// Ping verifies connectivity to the budgeting database.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return g.db.PingContext(ctx)
}

// Close closes the connection pool.
func (g *PostgresGateway) Close() error {
	if err := g.db.Close(); err != nil {
		return fmt.Errorf("close ledger database: %w", err)
	}
	return nil
}

// wrapErr converts plpgsql RAISE errors (SQLSTATE class P0) into typed
// domain rejections; everything else stays a system failure.
func wrapErr(op string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok && strings.HasPrefix(string(pqErr.Code), "P0") {
		return &RejectedError{Message: pqErr.Message}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateEvent calls create_scheduled_event.
func (g *PostgresGateway) CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var recurrenceEnd interface{}
	if params.RecurrenceEnd != nil {
		recurrenceEnd = *params.RecurrenceEnd
	}

	row := g.db.QueryRowContext(ctx,
		`SELECT event_id FROM create_scheduled_event($1, $2, $3, $4, $5, $6, $7)`,
		params.LedgerID, params.Name, params.AmountMinor, string(params.Direction),
		params.Date, string(params.Frequency), recurrenceEnd,
	)

	var eventID int64
	if err := row.Scan(&eventID); err != nil {
		return nil, wrapErr("create_scheduled_event", err)
	}

	event := &Event{
		ID:            eventID,
		LedgerID:      params.LedgerID,
		Name:          params.Name,
		AmountMinor:   params.AmountMinor,
		Direction:     params.Direction,
		Date:          params.Date,
		Frequency:     params.Frequency,
		RecurrenceEnd: params.RecurrenceEnd,
	}
	return event, nil
}

// RecordTransaction calls record_transaction. The procedure returns the new
// transaction id plus the auto-match columns, which are NULL when the engine
// found no scheduled event to realize.
func (g *PostgresGateway) RecordTransaction(ctx context.Context, params RecordTransactionParams) (*RecordResult, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	row := g.db.QueryRowContext(ctx,
		`SELECT transaction_id, matched_event_id, matched_event_name, matched_event_frequency, matched_occurrence_month
		 FROM record_transaction($1, $2, $3, $4, $5, $6)`,
		params.LedgerID, params.AccountID, params.Description, params.AmountMinor,
		string(params.Direction), params.Date,
	)

	var transactionID int64
	var matchedID sql.NullInt64
	var matchedName, matchedFrequency, matchedMonth sql.NullString

	if err := row.Scan(&transactionID, &matchedID, &matchedName, &matchedFrequency, &matchedMonth); err != nil {
		return nil, wrapErr("record_transaction", err)
	}

	result := &RecordResult{
		Transaction: Transaction{
			ID:          transactionID,
			LedgerID:    params.LedgerID,
			AccountID:   params.AccountID,
			Description: params.Description,
			AmountMinor: params.AmountMinor,
			Direction:   params.Direction,
			Date:        params.Date,
		},
	}
	if matchedID.Valid {
		result.Match = &Match{
			EventID:         matchedID.Int64,
			EventName:       matchedName.String,
			Frequency:       Frequency(matchedFrequency.String),
			OccurrenceMonth: matchedMonth.String,
		}
		slog.Info("Ledger auto-matched transaction",
			"transaction_id", transactionID,
			"event_id", matchedID.Int64,
			"occurrence", matchedMonth.String,
		)
	}
	return result, nil
}

// MarkEventRealized calls mark_event_realized.
func (g *PostgresGateway) MarkEventRealized(ctx context.Context, eventID int64, month string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var monthArg interface{}
	if month != "" {
		monthArg = month
	}
	if _, err := g.db.ExecContext(ctx, `SELECT mark_event_realized($1, $2)`, eventID, monthArg); err != nil {
		return wrapErr("mark_event_realized", err)
	}
	return nil
}

// ClearEventRealized calls clear_event_realized.
func (g *PostgresGateway) ClearEventRealized(ctx context.Context, eventID int64) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := g.db.ExecContext(ctx, `SELECT clear_event_realized($1)`, eventID); err != nil {
		return wrapErr("clear_event_realized", err)
	}
	return nil
}

// ClearOccurrenceRealized calls clear_occurrence_realized.
func (g *PostgresGateway) ClearOccurrenceRealized(ctx context.Context, eventID int64, month string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := g.db.ExecContext(ctx, `SELECT clear_occurrence_realized($1, $2)`, eventID, month); err != nil {
		return wrapErr("clear_occurrence_realized", err)
	}
	return nil
}

// DeleteEvent calls delete_event.
func (g *PostgresGateway) DeleteEvent(ctx context.Context, eventID int64) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := g.db.ExecContext(ctx, `SELECT delete_event($1)`, eventID); err != nil {
		return wrapErr("delete_event", err)
	}
	return nil
}

// DeleteTransaction calls delete_transaction.
func (g *PostgresGateway) DeleteTransaction(ctx context.Context, transactionID int64) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := g.db.ExecContext(ctx, `SELECT delete_transaction($1)`, transactionID); err != nil {
		return wrapErr("delete_transaction", err)
	}
	return nil
}

// GetEvent fetches a single event by id.
func (g *PostgresGateway) GetEvent(ctx context.Context, eventID int64) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	row := g.db.QueryRowContext(ctx,
		`SELECT event_id, ledger_id, name, amount_minor, direction, event_date, frequency, recurrence_end, realized
		 FROM get_event($1)`, eventID)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, &RejectedError{Message: fmt.Sprintf("evento %d não encontrado", eventID)}
	}
	if err != nil {
		return nil, wrapErr("get_event", err)
	}
	return event, nil
}

// ListEvents calls list_events.
func (g *PostgresGateway) ListEvents(ctx context.Context, find FindEvents) ([]*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var monthArg interface{}
	if find.Month != "" {
		monthArg = find.Month
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT event_id, ledger_id, name, amount_minor, direction, event_date, frequency, recurrence_end, realized
		 FROM list_events($1, $2, $3)`,
		find.LedgerID, find.Unrealized, monthArg,
	)
	if err != nil {
		return nil, wrapErr("list_events", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close list_events rows", "error", closeErr)
		}
	}()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListLedgers calls list_ledgers.
func (g *PostgresGateway) ListLedgers(ctx context.Context, identity string) ([]domain.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	rows, err := g.db.QueryContext(ctx, `SELECT ledger_id, name FROM list_ledgers($1)`, identity)
	if err != nil {
		return nil, wrapErr("list_ledgers", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close list_ledgers rows", "error", closeErr)
		}
	}()

	var ledgers []domain.Ledger
	for rows.Next() {
		var l domain.Ledger
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledgers: %w", err)
	}
	return ledgers, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var event Event
	var direction, frequency string
	var recurrenceEnd sql.NullTime

	err := row.Scan(
		&event.ID, &event.LedgerID, &event.Name, &event.AmountMinor,
		&direction, &event.Date, &frequency, &recurrenceEnd, &event.Realized,
	)
	if err != nil {
		return nil, err
	}

	event.Direction = Direction(direction)
	event.Frequency = Frequency(frequency)
	if recurrenceEnd.Valid {
		end := recurrenceEnd.Time
		event.RecurrenceEnd = &end
	}
	return &event, nil
}
