package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

func newTxn(id, negotiation, buyer string, created time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:             id,
		NegotiationRef: negotiation,
		BuyerRef:       buyer,
		SellerRef:      "S1",
		CurrentStatus:  domain.StatusConfirmed,
		History: []domain.LedgerEntry{{
			Status:    domain.StatusConfirmed,
			Timestamp: created,
			PrevHash:  domain.GenesisPrevHash,
			Hash:      "h0",
		}},
		CreatedAt: created,
	}
}

func TestTxRepo_CreateEnforcesNegotiationUniqueness(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewTxRepo(store)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Create(ctx, newTxn("T1", "N1", "B1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, newTxn("T2", "N1", "B1", now)); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	got, err := repo.GetByNegotiation(ctx, "N1")
	if err != nil {
		t.Fatalf("get by negotiation: %v", err)
	}
	if got.ID != "T1" || got.Version != 1 {
		t.Errorf("unexpected transaction: id=%s version=%d", got.ID, got.Version)
	}
}

func TestTxRepo_AppendEntryVersionCheck(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewTxRepo(store)
	ctx := context.Background()

	if err := repo.Create(ctx, newTxn("T1", "N1", "B1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	entry := domain.LedgerEntry{Status: domain.StatusPickedUp, Timestamp: time.Now(), PrevHash: "h0", Hash: "h1"}

	updated, err := repo.AppendEntry(ctx, "T1", 1, entry)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if updated.CurrentStatus != domain.StatusPickedUp || len(updated.History) != 2 || updated.Version != 2 {
		t.Errorf("unexpected state after append: %+v", updated)
	}

	if _, err := repo.AppendEntry(ctx, "T1", 1, entry); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	if _, err := repo.AppendEntry(ctx, "missing", 0, entry); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTxRepo_ReadsDoNotAliasHistory(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewTxRepo(store)
	ctx := context.Background()

	if err := repo.Create(ctx, newTxn("T1", "N1", "B1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := repo.Get(ctx, "T1")
	got.History[0].Hash = "forged"

	again, _ := repo.Get(ctx, "T1")
	if again.History[0].Hash != "h0" {
		t.Errorf("stored history was mutated through a read: %s", again.History[0].Hash)
	}
}

func TestTxRepo_List(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewTxRepo(store)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_ = repo.Create(ctx, newTxn("T1", "N1", "B1", base))
	_ = repo.Create(ctx, newTxn("T2", "N2", "B2", base.Add(time.Minute)))
	_ = repo.Create(ctx, newTxn("T3", "N3", "B1", base.Add(2*time.Minute)))
	_, _ = repo.AppendEntry(ctx, "T3", 1, domain.LedgerEntry{Status: domain.StatusDelivered, Timestamp: base})

	tests := []struct {
		name   string
		filter storage.ListFilter
		want   []string
	}{
		{"all", storage.ListFilter{}, []string{"T1", "T2", "T3"}},
		{"by party", storage.ListFilter{PartyID: "B1"}, []string{"T1", "T3"}},
		{"seller matches too", storage.ListFilter{PartyID: "S1", Limit: 2}, []string{"T1", "T2"}},
		{"by status", storage.ListFilter{Status: domain.StatusDelivered}, []string{"T3"}},
		{"offset", storage.ListFilter{Offset: 1, Limit: 1}, []string{"T2"}},
		{"offset past end", storage.ListFilter{Offset: 5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("result %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}

	counts, _ := repo.CountByStatus(ctx)
	if counts[domain.StatusConfirmed] != 2 || counts[domain.StatusDelivered] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestCollaboratorRepos(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	store.PutNegotiation(&domain.Negotiation{ID: "N1", Status: domain.NegotiationPending})
	store.PutMaterial(&domain.MaterialSummary{ID: "M1", Status: domain.MaterialAvailable})

	negotiations := NewNegotiationRepo(store)
	if err := negotiations.MarkAccepted(ctx, "N1"); err != nil {
		t.Fatalf("mark accepted: %v", err)
	}
	n, _ := negotiations.Get(ctx, "N1")
	if n.Status != domain.NegotiationAccepted {
		t.Errorf("expected accepted, got %s", n.Status)
	}

	materials := NewMaterialRepo(store)
	if err := materials.MarkSold(ctx, "M1"); err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	if err := materials.MarkSold(ctx, "M2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := NewPartyRepo(store).Get(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
