package domain

import "time"

// Event types
const (
	EventTypeEntryPosted = "entry.posted"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewEntryPostedEvent builds the outbox event announcing a posted entry.
func NewEntryPostedEvent(id string, entry *LedgerEntry) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   entry.AccountNumber,
		AggregateType: AggregateTypeAccount,
		EventType:     EventTypeEntryPosted,
		Payload: map[string]any{
			"transaction_id":  entry.TransactionID,
			"account_number":  entry.AccountNumber,
			"amount":          entry.Amount.String(),
			"accounting_type": string(entry.AccountingType.Code()),
			"balance":         entry.Balance.String(),
			"created_at":      entry.CreatedAt.Format(time.RFC3339Nano),
		},
		CreatedAt: entry.CreatedAt,
	}
}
