package ledger

import (
	"github.com/vietddude/ecosetu/internal/core/domain"
)

// BreakReason classifies a verification failure.
type BreakReason string

const (
	ReasonHashMismatch     BreakReason = "hash_mismatch"
	ReasonPrevHashMismatch BreakReason = "prev_hash_mismatch"
	ReasonGenesisMismatch  BreakReason = "genesis_mismatch"
	ReasonUpstreamBreak    BreakReason = "upstream_break"
	ReasonEmptyHistory     BreakReason = "empty_history"
)

// Break is one failed check at a history index.
type Break struct {
	Index    int         `json:"index"`
	Reason   BreakReason `json:"reason"`
	Expected string      `json:"expected"`
	Actual   string      `json:"actual"`
}

// VerifyReport is the result of walking a chain.
type VerifyReport struct {
	TransactionID string  `json:"transaction_id,omitempty"`
	Valid         bool    `json:"valid"`
	Entries       int     `json:"entries"`
	Breaks        []Break `json:"breaks"`
	HeadHash      string  `json:"head_hash"`
}

// BrokenIndices returns the distinct indices that failed any check, in order.
func (r VerifyReport) BrokenIndices() []int {
	var out []int
	for _, b := range r.Breaks {
		if len(out) == 0 || out[len(out)-1] != b.Index {
			out = append(out, b.Index)
		}
	}
	return out
}

// VerifyChain recomputes every hash and checks every link. It does not stop at
// the first failure.
//
// Each entry is checked twice: its stored hash against a digest of its own
// stored fields, and its prevHash against the hash the chain should have at
// that point when rebuilt from genesis. A change to any entry therefore shows
// up at that entry and at every later one. Entries whose own checks pass but
// that sit after a break are reported as upstream_break.
func VerifyChain(history []domain.LedgerEntry) VerifyReport {
	report := VerifyReport{
		Entries: len(history),
		Breaks:  []Break{},
	}
	if len(history) == 0 {
		report.Breaks = append(report.Breaks, Break{Index: 0, Reason: ReasonEmptyHistory})
		return report
	}

	rebuilt := domain.GenesisPrevHash
	for i, entry := range history {
		before := len(report.Breaks)

		if entry.PrevHash != rebuilt {
			reason := ReasonPrevHashMismatch
			if i == 0 {
				reason = ReasonGenesisMismatch
			}
			report.Breaks = append(report.Breaks, Break{
				Index:    i,
				Reason:   reason,
				Expected: rebuilt,
				Actual:   entry.PrevHash,
			})
		}

		if sealed := Digest(entry.Status, entry.Timestamp, entry.PrevHash); sealed != entry.Hash {
			report.Breaks = append(report.Breaks, Break{
				Index:    i,
				Reason:   ReasonHashMismatch,
				Expected: sealed,
				Actual:   entry.Hash,
			})
		}

		if len(report.Breaks) == before && before > 0 {
			report.Breaks = append(report.Breaks, Break{Index: i, Reason: ReasonUpstreamBreak})
		}

		rebuilt = Digest(entry.Status, entry.Timestamp, rebuilt)
	}

	report.Valid = len(report.Breaks) == 0
	report.HeadHash = history[len(history)-1].Hash
	return report
}
