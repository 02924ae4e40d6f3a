package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as JSON numbers, like the rest of the marketplace API.
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction is the permanent record of one confirmed trade and its delivery history.
type Transaction struct {
	ID             string          `json:"id"`
	NegotiationRef string          `json:"negotiation_ref"`
	MaterialRef    string          `json:"material_id"`
	BuyerRef       string          `json:"buyer_id"`
	SellerRef      string          `json:"seller_id"`
	AgreedPrice    decimal.Decimal `json:"agreed_price"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	CurrentStatus  Status          `json:"status"`
	History        []LedgerEntry   `json:"history"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Tail returns the most recent history entry. ok is false for an empty history.
func (t *Transaction) Tail() (entry LedgerEntry, ok bool) {
	if len(t.History) == 0 {
		return LedgerEntry{}, false
	}
	return t.History[len(t.History)-1], true
}

// HasParty reports whether userID is the buyer or the seller of the trade.
func (t *Transaction) HasParty(userID string) bool {
	return userID != "" && (userID == t.BuyerRef || userID == t.SellerRef)
}

// Clone returns a deep copy so callers can never alias stored history.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.History = append([]LedgerEntry(nil), t.History...)
	return &c
}

// TransactionView is a Transaction with its references resolved for display.
type TransactionView struct {
	*Transaction
	Material *MaterialSummary `json:"material,omitempty"`
	Buyer    *Party           `json:"buyer,omitempty"`
	Seller   *Party           `json:"seller,omitempty"`
}
