package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

type countingSource struct {
	materials int
	parties   int
}

func (s *countingSource) Material(ctx context.Context, id string) (*domain.MaterialSummary, error) {
	s.materials++
	if id == "missing" {
		return nil, storage.ErrNotFound
	}
	return &domain.MaterialSummary{ID: id, Type: "metal", Status: domain.MaterialAvailable}, nil
}

func (s *countingSource) Party(ctx context.Context, id string) (*domain.Party, error) {
	s.parties++
	return &domain.Party{ID: id, Name: "Asha"}, nil
}

func TestCachedDirectory(t *testing.T) {
	src := &countingSource{}
	d := NewCachedDirectory(src, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := d.Party(ctx, "B1"); err != nil {
			t.Fatalf("party: %v", err)
		}
	}
	if src.parties != 1 {
		t.Errorf("expected 1 source lookup, got %d", src.parties)
	}

	m, _ := d.Material(ctx, "M1")
	m.Status = domain.MaterialSold // callers cannot poison the cache
	again, _ := d.Material(ctx, "M1")
	if again.Status != domain.MaterialAvailable {
		t.Errorf("cached summary was mutated through a returned copy")
	}

	d.Invalidate("M1")
	_, _ = d.Material(ctx, "M1")
	if src.materials != 2 {
		t.Errorf("expected lookup after invalidate, got %d lookups", src.materials)
	}

	// Misses are not cached.
	for i := 0; i < 2; i++ {
		if _, err := d.Material(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if src.materials != 4 {
		t.Errorf("expected misses to reach the source, got %d lookups", src.materials)
	}
}

func TestCachedDirectory_Disabled(t *testing.T) {
	src := &countingSource{}
	d := NewCachedDirectory(src, 0)

	_, _ = d.Party(context.Background(), "B1")
	_, _ = d.Party(context.Background(), "B1")
	if src.parties != 2 {
		t.Errorf("expected every lookup to reach the source, got %d", src.parties)
	}
}
