// Package domain holds the conversational state types owned by the bot.
// Ledger entities (events, transactions) are owned by the budgeting
// database and appear here only as identifiers.
package domain

import (
	"time"
)

// ContextTTL is how long a chat context stays readable after its last write.
const ContextTTL = 10 * time.Minute

// MaxExchanges bounds the classification history kept per chat.
const MaxExchanges = 2

// Exchange is one user/assistant turn kept for classification context.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Selection is a pending numbered choice presented to the user, mapping
// the number they may reply with to a ledger id.
type Selection struct {
	Kind    string         `json:"kind"`
	Options map[int]Ledger `json:"options"`
}

// SelectionKindLedger marks a pending /setledger choice.
const SelectionKindLedger = "ledger"

// ChatContext is the per-chat ephemeral state between free-text turns:
// at most MaxExchanges prior exchanges plus an optional pending selection.
// Readers must treat entries older than ContextTTL as absent.
type ChatContext struct {
	ChatID    int64
	Exchanges []Exchange
	Selection *Selection
	UpdatedAt time.Time
}

// AppendExchange adds a turn, keeping only the most recent MaxExchanges.
func (c *ChatContext) AppendExchange(user, assistant string) {
	c.Exchanges = append(c.Exchanges, Exchange{User: user, Assistant: assistant})
	if len(c.Exchanges) > MaxExchanges {
		c.Exchanges = c.Exchanges[len(c.Exchanges)-MaxExchanges:]
	}
}

// Expired reports whether the context is past its TTL at the given instant.
func (c *ChatContext) Expired(now time.Time) bool {
	return now.Sub(c.UpdatedAt) > ContextTTL
}

// Ledger identifies one budget ledger the user can operate against.
type Ledger struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ChatIdentity maps an allow-listed chat to its ledger identity and
// statically configured default ledger.
type ChatIdentity struct {
	ChatID          int64
	Identity        string
	DefaultLedgerID int64
}
