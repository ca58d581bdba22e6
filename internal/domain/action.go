package domain

import (
	"time"
)

// ActionTTL is how long a pending action stays undoable.
const ActionTTL = time.Hour

// ActionKind identifies which mutation a pending action compensates.
type ActionKind string

const (
	// ActionEventCreated undoes by deleting the created event.
	ActionEventCreated ActionKind = "event-created"
	// ActionTransactionRecorded undoes by deleting the transaction and,
	// if one was auto-matched, un-realizing the matched event.
	ActionTransactionRecorded ActionKind = "transaction-recorded"
	// ActionEventMarkedRealized undoes by clearing the realized flag.
	ActionEventMarkedRealized ActionKind = "event-marked-realized"
)

// PendingAction is the single most recent mutating action recorded for a
// chat. One slot per chat: a new write fully replaces the previous one.
type PendingAction struct {
	ChatID   int64
	Kind     ActionKind
	EntityID int64
	Label    string

	// Set only for transaction-recorded actions whose transaction was
	// auto-matched against a scheduled event by the ledger engine.
	MatchedEventID int64
	// OccurrenceMonth is the "YYYY-MM" occurrence the match realized,
	// needed to un-realize exactly that occurrence of a recurring event.
	OccurrenceMonth string

	CreatedAt time.Time
}

// Expired reports whether the action is past its undo window.
func (a *PendingAction) Expired(now time.Time) bool {
	return now.Sub(a.CreatedAt) > ActionTTL
}
