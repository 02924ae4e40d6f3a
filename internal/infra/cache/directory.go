package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

const (
	materialKey = "material:%s"
	partyKey    = "party:%s"
)

// RepoDirectory resolves summaries straight from the repositories.
type RepoDirectory struct {
	materials storage.MaterialRepository
	parties   storage.PartyRepository
}

func NewRepoDirectory(materials storage.MaterialRepository, parties storage.PartyRepository) *RepoDirectory {
	return &RepoDirectory{materials: materials, parties: parties}
}

func (d *RepoDirectory) Material(ctx context.Context, id string) (*domain.MaterialSummary, error) {
	return d.materials.Get(ctx, id)
}

func (d *RepoDirectory) Party(ctx context.Context, id string) (*domain.Party, error) {
	return d.parties.Get(ctx, id)
}

// Source is what CachedDirectory reads through to.
type Source interface {
	Material(ctx context.Context, id string) (*domain.MaterialSummary, error)
	Party(ctx context.Context, id string) (*domain.Party, error)
}

// CachedDirectory keeps resolved summaries for a short TTL. Transaction pages
// are polled by both parties and summaries change rarely.
type CachedDirectory struct {
	source Source
	cache  *gocache.Cache
}

// NewCachedDirectory wraps source. A ttl <= 0 disables caching.
func NewCachedDirectory(source Source, ttl time.Duration) *CachedDirectory {
	d := &CachedDirectory{source: source}
	if ttl > 0 {
		d.cache = gocache.New(ttl, 2*ttl)
	}
	return d
}

func (d *CachedDirectory) Material(ctx context.Context, id string) (*domain.MaterialSummary, error) {
	key := fmt.Sprintf(materialKey, id)
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			m := *v.(*domain.MaterialSummary)
			return &m, nil
		}
	}
	m, err := d.source.Material(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		c := *m
		d.cache.SetDefault(key, &c)
	}
	return m, nil
}

func (d *CachedDirectory) Party(ctx context.Context, id string) (*domain.Party, error) {
	key := fmt.Sprintf(partyKey, id)
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			p := *v.(*domain.Party)
			return &p, nil
		}
	}
	p, err := d.source.Party(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		c := *p
		d.cache.SetDefault(key, &c)
	}
	return p, nil
}

// Invalidate drops a cached material so the next read sees its new status.
func (d *CachedDirectory) Invalidate(materialID string) {
	if d.cache != nil {
		d.cache.Delete(fmt.Sprintf(materialKey, materialID))
	}
}
