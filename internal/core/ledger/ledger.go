package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
	"github.com/vietddude/ecosetu/internal/tracking/emitter"
	"github.com/vietddude/ecosetu/internal/tracking/metrics"
)

// maxPrice is the first amount that no longer fits NUMERIC(14, 2).
var maxPrice = decimal.New(1, 12)

const (
	maxPaymentMethodLen = 64
	priceScale          = 2
	defaultListLimit    = 20
	maxListLimit        = 100
)

var tracer = otel.Tracer("github.com/vietddude/ecosetu/internal/core/ledger")

// Directory resolves the display summaries shown next to a transaction.
type Directory interface {
	Material(ctx context.Context, id string) (*domain.MaterialSummary, error)
	Party(ctx context.Context, id string) (*domain.Party, error)
}

// invalidator is implemented by directories that cache material summaries.
type invalidator interface {
	Invalidate(materialID string)
}

// Deps are the collaborators of a Service. Transactions, Negotiations and
// Materials are required; the rest fall back to in-process defaults.
type Deps struct {
	Transactions storage.TransactionRepository
	Negotiations storage.NegotiationRepository
	Materials    storage.MaterialRepository
	Directory    Directory
	Locker       Locker
	Emitter      emitter.Emitter
	Clock        func() time.Time
	IDs          func() string
	Logger       *slog.Logger
}

// Options tune ledger behaviour.
type Options struct {
	Policy           Policy
	AuthorizeParties bool
	Backoff          Backoff
}

// Service owns every write to transaction history.
type Service struct {
	txns         storage.TransactionRepository
	negotiations storage.NegotiationRepository
	materials    storage.MaterialRepository
	directory    Directory
	locker       Locker
	emitter      emitter.Emitter
	now          func() time.Time
	newID        func() string
	log          *slog.Logger

	policy    Policy
	authorize bool
	backoff   Backoff
}

func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Transactions == nil || deps.Negotiations == nil || deps.Materials == nil {
		return nil, errors.New("ledger: transaction, negotiation and material repositories are required")
	}

	s := &Service{
		txns:         deps.Transactions,
		negotiations: deps.Negotiations,
		materials:    deps.Materials,
		directory:    deps.Directory,
		locker:       deps.Locker,
		emitter:      deps.Emitter,
		now:          deps.Clock,
		newID:        deps.IDs,
		log:          deps.Logger,
		policy:       opts.Policy,
		authorize:    opts.AuthorizeParties,
		backoff:      opts.Backoff,
	}
	if s.locker == nil {
		s.locker = NewKeyedLocker()
	}
	if s.emitter == nil {
		s.emitter = emitter.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "ledger")
	if s.policy == nil {
		s.policy = Permissive{}
	}
	if s.backoff.MaxAttempts <= 0 {
		s.backoff = DefaultBackoff()
	}
	return s, nil
}

// CreateRequest opens a ledger from a negotiation.
type CreateRequest struct {
	NegotiationRef string
	AgreedPrice    decimal.Decimal
	PaymentMethod  string
}

// Warning describes a create side effect that did not apply. The
// transaction itself is persisted either way.
type Warning struct {
	Effect  string `json:"effect"`
	Message string `json:"message"`
}

// Side effect names reported in warnings.
const (
	EffectMarkSold     = "material.mark_sold"
	EffectMarkAccepted = "negotiation.mark_accepted"
	EffectEmitEvent    = "event.emit"
)

// CreateResult is the persisted transaction plus any partial failures.
type CreateResult struct {
	Transaction *domain.Transaction
	Warnings    []Warning
}

// Create persists a new transaction whose history is the genesis entry, then
// marks the material sold and the negotiation accepted. Those two updates are
// best effort and surface as warnings.
func (s *Service) Create(ctx context.Context, req CreateRequest, caller domain.Caller) (*CreateResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Create",
		trace.WithAttributes(attribute.String("negotiation_ref", req.NegotiationRef)))
	defer span.End()

	result, err := s.create(ctx, req, caller)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction_id", result.Transaction.ID))
	return result, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest, caller domain.Caller) (*CreateResult, error) {
	req.NegotiationRef = strings.TrimSpace(req.NegotiationRef)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)

	if req.NegotiationRef == "" {
		return nil, invalid("negotiation_ref", "is required")
	}
	if err := checkPrice(req.AgreedPrice); err != nil {
		return nil, err
	}
	if len(req.PaymentMethod) > maxPaymentMethodLen {
		return nil, invalid("payment_method", fmt.Sprintf("must be at most %d characters", maxPaymentMethodLen))
	}

	neg, err := s.negotiations.Get(ctx, req.NegotiationRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("negotiation %s: %w", req.NegotiationRef, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load negotiation: %w", err)
	}
	if s.authorize && !caller.IsAdmin() && caller.ID != neg.BuyerRef {
		return nil, fmt.Errorf("only the buyer can confirm negotiation %s: %w", neg.ID, ErrForbidden)
	}
	if neg.Status == domain.NegotiationRejected {
		return nil, invalid("negotiation_ref", "negotiation was rejected")
	}

	price := req.AgreedPrice
	if !price.IsPositive() {
		price = neg.ProposedPrice
	}
	if !price.IsPositive() {
		return nil, invalid("agreed_price", "is required when the negotiation has no proposed price")
	}

	now := s.now()
	genesis := GenesisEntry(now)
	txn := &domain.Transaction{
		ID:             s.newID(),
		NegotiationRef: neg.ID,
		MaterialRef:    neg.MaterialRef,
		BuyerRef:       neg.BuyerRef,
		SellerRef:      neg.SellerRef,
		AgreedPrice:    price,
		TotalAmount:    price,
		PaymentMethod:  req.PaymentMethod,
		CurrentStatus:  genesis.Status,
		History:        []domain.LedgerEntry{genesis},
		CreatedAt:      genesis.Timestamp,
		UpdatedAt:      genesis.Timestamp,
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			if existing, getErr := s.txns.GetByNegotiation(ctx, neg.ID); getErr == nil {
				return nil, fmt.Errorf("negotiation %s already has transaction %s: %w", neg.ID, existing.ID, ErrAlreadyExists)
			}
			return nil, fmt.Errorf("negotiation %s: %w", neg.ID, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to persist transaction: %w", err)
	}

	metrics.TransactionsCreated.Inc()
	s.log.Info("transaction created",
		"transaction_id", txn.ID,
		"negotiation_ref", neg.ID,
		"buyer_id", txn.BuyerRef,
		"seller_id", txn.SellerRef,
		"hash", genesis.Hash,
	)

	result := &CreateResult{Transaction: txn}
	if err := s.materials.MarkSold(ctx, neg.MaterialRef); err != nil {
		result.Warnings = append(result.Warnings, s.partialFailure(txn.ID, EffectMarkSold, err))
	} else if inv, ok := s.directory.(invalidator); ok {
		inv.Invalidate(neg.MaterialRef)
	}
	if err := s.negotiations.MarkAccepted(ctx, neg.ID); err != nil {
		result.Warnings = append(result.Warnings, s.partialFailure(txn.ID, EffectMarkAccepted, err))
	}

	s.emit(ctx, domain.NewEntryEvent(domain.EventTypeTransactionCreated, txn, 0))
	return result, nil
}

// statusLabel bounds metric cardinality: statuses outside the known set
// share one label.
func statusLabel(s domain.Status) string {
	if slices.Contains(domain.KnownStatuses, s) {
		return string(s)
	}
	return "other"
}

// checkPrice rejects amounts storage would round or overflow. The price is
// sealed at creation, so it must round-trip exactly.
func checkPrice(p decimal.Decimal) error {
	switch {
	case p.IsNegative():
		return invalid("agreed_price", "must not be negative")
	case !p.Equal(p.Round(priceScale)):
		return invalid("agreed_price", fmt.Sprintf("must have at most %d decimal places", priceScale))
	case p.GreaterThanOrEqual(maxPrice):
		return invalid("agreed_price", "must be less than "+maxPrice.String())
	}
	return nil
}

func (s *Service) partialFailure(txnID, effect string, err error) Warning {
	metrics.PartialFailures.WithLabelValues(effect).Inc()
	s.log.Warn("side effect failed", "transaction_id", txnID, "effect", effect, "error", err)
	return Warning{Effect: effect, Message: err.Error()}
}

// AppendRequest extends a transaction's chain with a new status.
type AppendRequest struct {
	TransactionID string
	Status        domain.Status
}

// AppendStatus links a new entry to the current tail and persists it. The
// read-link-write cycle is serialized per transaction by the Locker and
// guarded by the repository's version check; a lost race is retried with
// backoff until the attempts run out.
func (s *Service) AppendStatus(ctx context.Context, req AppendRequest, caller domain.Caller) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "ledger.AppendStatus", trace.WithAttributes(
		attribute.String("transaction_id", req.TransactionID),
		attribute.String("status", string(req.Status)),
	))
	defer span.End()

	txn, err := s.appendStatus(ctx, req, caller)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("history_length", len(txn.History)))
	return txn, nil
}

func (s *Service) appendStatus(ctx context.Context, req AppendRequest, caller domain.Caller) (*domain.Transaction, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Status = domain.Status(strings.TrimSpace(string(req.Status)))

	if req.TransactionID == "" {
		return nil, invalid("transaction_id", "is required")
	}
	if !req.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("%q is not a valid status", req.Status))
	}

	unlock, err := s.locker.Lock(ctx, req.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction %s: %w", req.TransactionID, err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		txn, err := s.load(ctx, req.TransactionID)
		if err != nil {
			return nil, err
		}
		if s.authorize && !caller.IsAdmin() && !txn.HasParty(caller.ID) {
			return nil, fmt.Errorf("caller is not a party to transaction %s: %w", txn.ID, ErrForbidden)
		}
		if !s.policy.Allow(txn.CurrentStatus, req.Status) {
			return nil, fmt.Errorf("%s -> %s (%s policy): %w",
				txn.CurrentStatus, req.Status, s.policy.Name(), ErrInvalidTransition)
		}

		tail, ok := txn.Tail()
		if !ok {
			return nil, fmt.Errorf("transaction %s has no history", txn.ID)
		}
		ts := s.now()
		// Entry timestamps never go backwards, even if the clock does.
		if ts.Before(tail.Timestamp) {
			ts = tail.Timestamp
		}
		entry := NewEntry(req.Status, ts, tail.Hash)

		updated, err := s.txns.AppendEntry(ctx, txn.ID, txn.Version, entry)
		if err == nil {
			metrics.StatusAppends.WithLabelValues(statusLabel(entry.Status)).Inc()
			s.log.Info("status appended",
				"transaction_id", updated.ID,
				"status", entry.Status,
				"sequence", len(updated.History)-1,
				"hash", entry.Hash,
			)
			s.emit(ctx, domain.NewEntryEvent(domain.EventTypeStatusAppended, updated, len(updated.History)-1))
			return updated, nil
		}

		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("transaction %s: %w", txn.ID, ErrNotFound)
		case errors.Is(err, storage.ErrVersionConflict):
			metrics.AppendConflicts.Inc()
			if !s.backoff.ShouldRetry(err, attempt) {
				return nil, fmt.Errorf("transaction %s after %d attempts: %w", txn.ID, attempt+1, ErrConflict)
			}
			s.log.Debug("append conflict, retrying", "transaction_id", txn.ID, "attempt", attempt+1)
			if err := s.backoff.Wait(ctx, attempt); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("failed to append entry: %w", err)
		}
	}
}

func (s *Service) load(ctx context.Context, id string) (*domain.Transaction, error) {
	txn, err := s.txns.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return txn, nil
}

// Get returns the transaction with its material and parties resolved.
// Summaries that cannot be resolved are left empty.
func (s *Service) Get(ctx context.Context, id string) (*domain.TransactionView, error) {
	ctx, span := tracer.Start(ctx, "ledger.Get", trace.WithAttributes(attribute.String("transaction_id", id)))
	defer span.End()

	txn, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &domain.TransactionView{Transaction: txn}
	if s.directory == nil {
		return view, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.directory.Material(gctx, txn.MaterialRef)
		s.lookupFailed(txn.ID, "material", err)
		view.Material = m
		return nil
	})
	g.Go(func() error {
		p, err := s.directory.Party(gctx, txn.BuyerRef)
		s.lookupFailed(txn.ID, "buyer", err)
		view.Buyer = p
		return nil
	})
	g.Go(func() error {
		p, err := s.directory.Party(gctx, txn.SellerRef)
		s.lookupFailed(txn.ID, "seller", err)
		view.Seller = p
		return nil
	})
	_ = g.Wait()
	return view, nil
}

func (s *Service) lookupFailed(txnID, kind string, err error) {
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("summary lookup failed", "transaction_id", txnID, "summary", kind, "error", err)
	}
}

// History returns the entries of a transaction's chain.
func (s *Service) History(ctx context.Context, id string) ([]domain.LedgerEntry, error) {
	txn, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return txn.History, nil
}

// Verify walks the stored chain of a transaction. It has no side effects.
func (s *Service) Verify(ctx context.Context, id string) (*VerifyReport, error) {
	ctx, span := tracer.Start(ctx, "ledger.Verify", trace.WithAttributes(attribute.String("transaction_id", id)))
	defer span.End()

	txn, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	report := VerifyChain(txn.History)
	report.TransactionID = txn.ID
	span.SetAttributes(attribute.Bool("valid", report.Valid), attribute.Int("breaks", len(report.Breaks)))
	if !report.Valid {
		s.log.Warn("chain verification failed", "transaction_id", txn.ID, "broken", report.BrokenIndices())
	}
	return &report, nil
}

// List returns transactions visible to caller. Non-admin callers only see
// trades they are a party to.
func (s *Service) List(ctx context.Context, filter storage.ListFilter, caller domain.Caller) ([]*domain.Transaction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("%q is not a valid status", filter.Status))
	}
	if filter.Offset < 0 {
		return nil, invalid("offset", "must not be negative")
	}
	if s.authorize && !caller.IsAdmin() {
		filter.PartyID = caller.ID
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	txns, err := s.txns.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// emit publishes best effort; a failed publish never fails the write.
func (s *Service) emit(ctx context.Context, event *domain.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		metrics.PartialFailures.WithLabelValues(EffectEmitEvent).Inc()
		s.log.Warn("event emit failed", "transaction_id", event.TransactionID, "type", event.Type, "error", err)
	}
}
