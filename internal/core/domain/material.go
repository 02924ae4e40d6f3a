package domain

import "github.com/shopspring/decimal"

type MaterialStatus string

const (
	MaterialAvailable MaterialStatus = "available"
	MaterialReserved  MaterialStatus = "reserved"
	MaterialSold      MaterialStatus = "sold"
)

// MaterialSummary is the listing data shown next to a transaction.
type MaterialSummary struct {
	ID         string          `json:"id"`
	SellerRef  string          `json:"seller_id"`
	Type       string          `json:"type"`
	Quantity   float64         `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Location   string          `json:"location"`
	Status     MaterialStatus  `json:"status"`
}
