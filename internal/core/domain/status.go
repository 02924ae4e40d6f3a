package domain

import "regexp"

// Status is a delivery status recorded on the ledger. The set is open: any
// lower-case identifier is accepted, the constants below are the known ones.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// GenesisStatus is the status of every chain's first entry.
const GenesisStatus = StatusConfirmed

var statusPattern = regexp.MustCompile(`^[a-z][a-z_]{0,31}$`)

// Valid reports whether s is a well-formed status value.
func (s Status) Valid() bool {
	return statusPattern.MatchString(string(s))
}

// KnownStatuses lists the statuses the marketplace UI understands, in pipeline order.
var KnownStatuses = []Status{
	StatusConfirmed,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
	StatusCancelled,
}
