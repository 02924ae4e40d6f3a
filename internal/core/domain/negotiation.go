package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type NegotiationStatus string

const (
	NegotiationPending  NegotiationStatus = "pending"
	NegotiationAccepted NegotiationStatus = "accepted"
	NegotiationRejected NegotiationStatus = "rejected"
)

// Negotiation is the buyer/seller interest record a transaction is created from.
type Negotiation struct {
	ID            string
	MaterialRef   string
	BuyerRef      string
	SellerRef     string
	ProposedPrice decimal.Decimal
	Status        NegotiationStatus
	CreatedAt     time.Time
}
