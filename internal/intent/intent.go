// Package intent defines the typed result of classifying a free-text
// message. The payload is a discriminated union: exactly one variant is
// populated per classification, enforced at decode time rather than by
// convention.
package intent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"granabot/internal/ledger"
	"github.com/shopspring/decimal"
)

// Kind discriminates the payload variants.
type Kind string

const (
	// KindNewEvent schedules a future financial event.
	KindNewEvent Kind = "new_event"
	// KindRecordTransaction records a completed movement.
	KindRecordTransaction Kind = "record_transaction"
	// KindMarkRealized marks a scheduled event as realized.
	KindMarkRealized Kind = "mark_realized"
	// KindClarify asks the user a single follow-up question. All other
	// fields are dropped: the classifier must never mix a question with a
	// partial extraction.
	KindClarify Kind = "clarify"
	// KindUnknown means the message is not a budgeting request.
	KindUnknown Kind = "unknown"
)

// NewEvent carries the fields for a scheduled-event creation.
type NewEvent struct {
	Name          string
	AmountMinor   int64
	Direction     ledger.Direction
	Date          time.Time
	Frequency     ledger.Frequency
	RecurrenceEnd *time.Time
}

// RecordTransaction carries the fields for recording a movement.
type RecordTransaction struct {
	Description string
	AmountMinor int64
	Direction   ledger.Direction
	Date        time.Time
	AccountHint string
}

// MarkRealized carries a name fragment and an optional "YYYY-MM" scope.
type MarkRealized struct {
	Name  string
	Month string
}

// Payload is the classified intent. Exactly one variant field is set,
// matching Kind.
type Payload struct {
	Kind              Kind
	Clarify           string
	NewEvent          *NewEvent
	RecordTransaction *RecordTransaction
	MarkRealized      *MarkRealized
}

// wirePayload is the exact JSON shape the classifier must return.
type wirePayload struct {
	Intent        string `json:"intent"`
	Clarify       string `json:"clarify"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Direction     string `json:"direction"`
	Date          string `json:"date"`
	Frequency     string `json:"frequency"`
	RecurrenceEnd string `json:"recurrence_end"`
	Account       string `json:"account"`
	Month         string `json:"month"`
}

const dateLayout = "2006-01-02"

// Decode parses a classifier response into a typed payload. Non-JSON input
// or an unrecognized intent tag is a hard error. A non-empty clarify field
// always wins: the result is KindClarify with every extracted field dropped,
// whatever else the response carried.
func Decode(raw []byte) (*Payload, error) {
	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("classifier response is not valid JSON: %w", err)
	}

	if strings.TrimSpace(wire.Clarify) != "" {
		return &Payload{Kind: KindClarify, Clarify: strings.TrimSpace(wire.Clarify)}, nil
	}

	switch Kind(wire.Intent) {
	case KindNewEvent:
		variant, err := decodeNewEvent(wire)
		if err != nil {
			return nil, err
		}
		return &Payload{Kind: KindNewEvent, NewEvent: variant}, nil

	case KindRecordTransaction:
		variant, err := decodeRecordTransaction(wire)
		if err != nil {
			return nil, err
		}
		return &Payload{Kind: KindRecordTransaction, RecordTransaction: variant}, nil

	case KindMarkRealized:
		return &Payload{Kind: KindMarkRealized, MarkRealized: &MarkRealized{
			Name:  strings.TrimSpace(wire.Name),
			Month: strings.TrimSpace(wire.Month),
		}}, nil

	case KindClarify:
		// intent "clarify" with an empty question violates the contract.
		return nil, fmt.Errorf("classifier returned clarify intent without a question")

	case KindUnknown:
		return &Payload{Kind: KindUnknown}, nil

	default:
		return nil, fmt.Errorf("classifier returned unrecognized intent %q", wire.Intent)
	}
}

func decodeNewEvent(wire wirePayload) (*NewEvent, error) {
	amount, err := parseAmount(wire.Amount)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(wire.Date)
	if err != nil {
		return nil, err
	}

	variant := &NewEvent{
		Name:        strings.TrimSpace(wire.Name),
		AmountMinor: amount,
		Direction:   ledger.Direction(wire.Direction),
		Date:        date,
		Frequency:   ledger.Frequency(wire.Frequency),
	}
	if wire.RecurrenceEnd != "" {
		end, err := parseDate(wire.RecurrenceEnd)
		if err != nil {
			return nil, err
		}
		variant.RecurrenceEnd = &end
	}
	return variant, nil
}

func decodeRecordTransaction(wire wirePayload) (*RecordTransaction, error) {
	amount, err := parseAmount(wire.Amount)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(wire.Date)
	if err != nil {
		return nil, err
	}

	return &RecordTransaction{
		Description: strings.TrimSpace(wire.Description),
		AmountMinor: amount,
		Direction:   ledger.Direction(wire.Direction),
		Date:        date,
		AccountHint: strings.TrimSpace(wire.Account),
	}, nil
}

// parseAmount converts a decimal string ("149.90") into integer minor
// currency units. Empty input decodes to zero; executors treat that as a
// missing field.
func parseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("classifier returned unparseable amount %q: %w", raw, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// parseDate parses an ISO date. Empty input decodes to the zero time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("classifier returned unparseable date %q: %w", raw, err)
	}
	return t, nil
}
