package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// GenesisPrevHash is the prevHash sentinel carried by the first entry of every chain.
const GenesisPrevHash = "0"

// TimestampLayout is the canonical entry timestamp form: UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// CanonicalTime normalizes t to the precision and zone the hash chain is computed over.
func CanonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTimestamp renders t in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return CanonicalTime(t).Format(TimestampLayout)
}

// LedgerEntry is one hash-linked record of a status at a point in time.
type LedgerEntry struct {
	Status    Status
	Timestamp time.Time
	PrevHash  string
	Hash      string
}

type ledgerEntryJSON struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
}

// MarshalJSON writes the timestamp in canonical form so the stored and served
// fields are exactly the ones the digest was computed over.
func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(ledgerEntryJSON{
		Status:    e.Status,
		Timestamp: FormatTimestamp(e.Timestamp),
		PrevHash:  e.PrevHash,
		Hash:      e.Hash,
	})
}

func (e *LedgerEntry) UnmarshalJSON(data []byte) error {
	var raw ledgerEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid entry timestamp %q: %w", raw.Timestamp, err)
	}
	e.Status = raw.Status
	e.Timestamp = ts.UTC()
	e.PrevHash = raw.PrevHash
	e.Hash = raw.Hash
	return nil
}
