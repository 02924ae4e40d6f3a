package domain

import "time"

type EventType string

const (
	EventTypeTransactionCreated EventType = "transaction.created"
	EventTypeStatusAppended     EventType = "transaction.status_appended"
)

// Event is published after a ledger write has been persisted.
type Event struct {
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id"`
	Sequence      int       `json:"sequence"`
	Status        Status    `json:"status"`
	PrevHash      string    `json:"prev_hash"`
	Hash          string    `json:"hash"`
	Timestamp     time.Time `json:"timestamp"`
	BuyerRef      string    `json:"buyer_id"`
	SellerRef     string    `json:"seller_id"`
}

// NewEntryEvent builds the event for the entry at index seq of txn's history.
func NewEntryEvent(eventType EventType, txn *Transaction, seq int) *Event {
	entry := txn.History[seq]
	return &Event{
		Type:          eventType,
		TransactionID: txn.ID,
		Sequence:      seq,
		Status:        entry.Status,
		PrevHash:      entry.PrevHash,
		Hash:          entry.Hash,
		Timestamp:     entry.Timestamp,
		BuyerRef:      txn.BuyerRef,
		SellerRef:     txn.SellerRef,
	}
}
