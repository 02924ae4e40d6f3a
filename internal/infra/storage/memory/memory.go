package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

// MemoryStorage keeps every collection in process memory. It is used when no
// database URL is configured and as the fixture store in tests.
type MemoryStorage struct {
	txns          map[string]*domain.Transaction
	byNegotiation map[string]string
	negotiations  map[string]*domain.Negotiation
	materials     map[string]*domain.MaterialSummary
	parties       map[string]*domain.Party
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		txns:          make(map[string]*domain.Transaction),
		byNegotiation: make(map[string]string),
		negotiations:  make(map[string]*domain.Negotiation),
		materials:     make(map[string]*domain.MaterialSummary),
		parties:       make(map[string]*domain.Party),
	}
}

// PutNegotiation seeds a negotiation.
func (s *MemoryStorage) PutNegotiation(n *domain.Negotiation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.negotiations[n.ID] = &c
}

// PutMaterial seeds a listing.
func (s *MemoryStorage) PutMaterial(m *domain.MaterialSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	s.materials[m.ID] = &c
}

// PutParty seeds a user summary.
func (s *MemoryStorage) PutParty(p *domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.parties[p.ID] = &c
}

// Tamper overwrites a stored history entry without recomputing anything.
// It exists so tests can simulate out-of-band edits.
func (s *MemoryStorage) Tamper(id string, index int, mutate func(*domain.LedgerEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok || index < 0 || index >= len(txn.History) {
		return false
	}
	mutate(&txn.History[index])
	return true
}

// -----------------------------------------------------------------------------
// Transaction Repository
// -----------------------------------------------------------------------------

type TxRepo struct {
	store *MemoryStorage
}

func NewTxRepo(store *MemoryStorage) *TxRepo {
	return &TxRepo{store: store}
}

func (r *TxRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if txn.NegotiationRef != "" {
		if _, taken := r.store.byNegotiation[txn.NegotiationRef]; taken {
			return storage.ErrDuplicate
		}
	}
	if _, exists := r.store.txns[txn.ID]; exists {
		return storage.ErrDuplicate
	}

	stored := txn.Clone()
	stored.Version = len(stored.History)
	r.store.txns[txn.ID] = stored
	if txn.NegotiationRef != "" {
		r.store.byNegotiation[txn.NegotiationRef] = txn.ID
	}
	txn.Version = stored.Version
	return nil
}

func (r *TxRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	txn, ok := r.store.txns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return txn.Clone(), nil
}

func (r *TxRepo) GetByNegotiation(ctx context.Context, negotiationRef string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.byNegotiation[negotiationRef]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.store.txns[id].Clone(), nil
}

func (r *TxRepo) AppendEntry(
	ctx context.Context,
	id string,
	expectedVersion int,
	entry domain.LedgerEntry,
) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	txn, ok := r.store.txns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if txn.Version != expectedVersion {
		return nil, storage.ErrVersionConflict
	}

	txn.History = append(txn.History, entry)
	txn.CurrentStatus = entry.Status
	txn.Version++
	txn.UpdatedAt = time.Now().UTC()
	return txn.Clone(), nil
}

func (r *TxRepo) List(ctx context.Context, filter storage.ListFilter) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Transaction
	for _, txn := range r.store.txns {
		if filter.Status != "" && txn.CurrentStatus != filter.Status {
			continue
		}
		if filter.PartyID != "" && !txn.HasParty(filter.PartyID) {
			continue
		}
		out = append(out, txn.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *TxRepo) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, txn := range r.store.txns {
		counts[txn.CurrentStatus]++
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Negotiation Repository
// -----------------------------------------------------------------------------

type NegotiationRepo struct {
	store *MemoryStorage
}

func NewNegotiationRepo(store *MemoryStorage) *NegotiationRepo {
	return &NegotiationRepo{store: store}
}

func (r *NegotiationRepo) Get(ctx context.Context, id string) (*domain.Negotiation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n, ok := r.store.negotiations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *n
	return &c, nil
}

func (r *NegotiationRepo) MarkAccepted(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.negotiations[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Status = domain.NegotiationAccepted
	return nil
}

// -----------------------------------------------------------------------------
// Material Repository
// -----------------------------------------------------------------------------

type MaterialRepo struct {
	store *MemoryStorage
}

func NewMaterialRepo(store *MemoryStorage) *MaterialRepo {
	return &MaterialRepo{store: store}
}

func (r *MaterialRepo) Get(ctx context.Context, id string) (*domain.MaterialSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.materials[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (r *MaterialRepo) MarkSold(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.materials[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Status = domain.MaterialSold
	return nil
}

// -----------------------------------------------------------------------------
// Party Repository
// -----------------------------------------------------------------------------

type PartyRepo struct {
	store *MemoryStorage
}

func NewPartyRepo(store *MemoryStorage) *PartyRepo {
	return &PartyRepo{store: store}
}

func (r *PartyRepo) Get(ctx context.Context, id string) (*domain.Party, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.parties[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *p
	return &c, nil
}
