package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/core/ledger"
	"github.com/vietddude/ecosetu/internal/infra/storage/memory"
)

func seedChain(t *testing.T, repo *memory.TxRepo, id string, statuses ...domain.Status) {
	t.Helper()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	history := []domain.LedgerEntry{ledger.GenesisEntry(ts)}
	for i, s := range statuses {
		prev := history[len(history)-1].Hash
		history = append(history, ledger.NewEntry(s, ts.Add(time.Duration(i+1)*time.Minute), prev))
	}
	txn := &domain.Transaction{
		ID:             id,
		NegotiationRef: "N-" + id,
		CurrentStatus:  history[len(history)-1].Status,
		History:        history,
		CreatedAt:      ts,
	}
	if err := repo.Create(context.Background(), txn); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestVerifyTransactions(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	seedChain(t, repo, "T1", domain.StatusPickedUp)
	seedChain(t, repo, "T2", domain.StatusPickedUp, domain.StatusDelivered)
	store.Tamper("T2", 1, func(e *domain.LedgerEntry) { e.Status = domain.StatusCancelled })

	tests := []struct {
		name       string
		ids        []string
		wantBroken int
		wantLines  []string
	}{
		{"all", nil, 1, []string{"T1", "T2"}},
		{"named valid", []string{"T1"}, 0, []string{"T1"}},
		{"missing", []string{"T9"}, 1, []string{"missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			broken, err := verifyTransactions(context.Background(), repo, tt.ids, 4, &out)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if broken != tt.wantBroken {
				t.Errorf("expected %d broken, got %d\n%s", tt.wantBroken, broken, out.String())
			}
			for _, want := range tt.wantLines {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to mention %q:\n%s", want, out.String())
				}
			}
		})
	}

	var out bytes.Buffer
	if _, err := verifyTransactions(context.Background(), repo, []string{"T2"}, 1, &out); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out.String(), "1,2") {
		t.Errorf("expected broken indices 1,2 in output:\n%s", out.String())
	}
}

func TestPrintStatusCounts(t *testing.T) {
	repo := memory.NewTxRepo(memory.NewMemoryStorage())
	for i := 0; i < 3; i++ {
		seedChain(t, repo, fmt.Sprintf("C%d", i))
	}
	seedChain(t, repo, "D1", domain.StatusDelivered)
	seedChain(t, repo, "X1", "returned")

	var out bytes.Buffer
	if err := printStatusCounts(context.Background(), repo, &out); err != nil {
		t.Fatalf("status: %v", err)
	}

	for _, want := range []string{"confirmed", "delivered", "returned", "TOTAL"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
	if !strings.Contains(out.String(), "5") {
		t.Errorf("expected total of 5:\n%s", out.String())
	}
}
