package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

// digestInput fixes the field order of the hashed document.
type digestInput struct {
	Status    domain.Status `json:"status"`
	Timestamp string        `json:"timestamp"`
	PrevHash  string        `json:"prevHash"`
}

// Digest returns the lowercase hex SHA-256 of
// {"status":…,"timestamp":…,"prevHash":…} with the timestamp in canonical form.
func Digest(status domain.Status, timestamp time.Time, prevHash string) string {
	data, _ := json.Marshal(digestInput{
		Status:    status,
		Timestamp: domain.FormatTimestamp(timestamp),
		PrevHash:  prevHash,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewEntry builds a sealed entry linked to prevHash.
func NewEntry(status domain.Status, timestamp time.Time, prevHash string) domain.LedgerEntry {
	ts := domain.CanonicalTime(timestamp)
	return domain.LedgerEntry{
		Status:    status,
		Timestamp: ts,
		PrevHash:  prevHash,
		Hash:      Digest(status, ts, prevHash),
	}
}

// GenesisEntry builds the first entry of a new chain.
func GenesisEntry(timestamp time.Time) domain.LedgerEntry {
	return NewEntry(domain.GenesisStatus, timestamp, domain.GenesisPrevHash)
}
