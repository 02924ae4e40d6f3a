package storage

import (
	"context"
	"errors"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

var (
	// ErrNotFound is returned when the requested record doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when an append lost the race for the chain tail
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicate is returned when a negotiation already has a transaction
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionRepository handles ledger transaction storage
type TransactionRepository interface {
	// Create persists a new transaction with its genesis history.
	// Returns ErrDuplicate if the negotiation reference is already used.
	Create(ctx context.Context, txn *domain.Transaction) error

	// Get retrieves a transaction by id
	Get(ctx context.Context, id string) (*domain.Transaction, error)

	// GetByNegotiation retrieves the transaction created from a negotiation
	GetByNegotiation(ctx context.Context, negotiationRef string) (*domain.Transaction, error)

	// AppendEntry atomically appends entry to the history if the stored version
	// still equals expectedVersion, and sets the current status to entry.Status.
	// Returns the updated transaction, ErrVersionConflict or ErrNotFound.
	AppendEntry(
		ctx context.Context,
		id string,
		expectedVersion int,
		entry domain.LedgerEntry,
	) (*domain.Transaction, error)

	// List returns transactions ordered by creation time
	List(ctx context.Context, filter ListFilter) ([]*domain.Transaction, error)

	// CountByStatus returns the number of transactions per current status
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

// ListFilter narrows a transaction listing.
type ListFilter struct {
	Status  domain.Status
	PartyID string
	Limit   int
	Offset  int
}

// NegotiationRepository is the read/accept view of the interest store
type NegotiationRepository interface {
	// Get retrieves a negotiation by id
	Get(ctx context.Context, id string) (*domain.Negotiation, error)

	// MarkAccepted flips the negotiation to accepted
	MarkAccepted(ctx context.Context, id string) error
}

// MaterialRepository is the read/sell view of the listing store
type MaterialRepository interface {
	// Get retrieves a listing summary
	Get(ctx context.Context, id string) (*domain.MaterialSummary, error)

	// MarkSold flips the listing to sold
	MarkSold(ctx context.Context, id string) error
}

// PartyRepository resolves user display summaries
type PartyRepository interface {
	Get(ctx context.Context, id string) (*domain.Party, error)
}
