package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/core/ledger"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

// Ledger is the service surface the transport needs.
type Ledger interface {
	Create(ctx context.Context, req ledger.CreateRequest, caller domain.Caller) (*ledger.CreateResult, error)
	AppendStatus(ctx context.Context, req ledger.AppendRequest, caller domain.Caller) (*domain.Transaction, error)
	Get(ctx context.Context, id string) (*domain.TransactionView, error)
	History(ctx context.Context, id string) ([]domain.LedgerEntry, error)
	Verify(ctx context.Context, id string) (*ledger.VerifyReport, error)
	List(ctx context.Context, filter storage.ListFilter, caller domain.Caller) ([]*domain.Transaction, error)
}

// Handlers serves the transaction routes.
type Handlers struct {
	ledger Ledger
}

func NewHandlers(l Ledger) *Handlers {
	return &Handlers{ledger: l}
}

type createTransactionRequest struct {
	NegotiationRef string          `json:"negotiation_ref"`
	InterestID     string          `json:"interest_id"` // older clients
	AgreedPrice    decimal.Decimal `json:"agreed_price"`
	PaymentMethod  string          `json:"payment_method"`
}

type createTransactionResponse struct {
	*domain.Transaction
	Warnings []ledger.Warning `json:"warnings"`
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var body createTransactionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	ref := body.NegotiationRef
	if ref == "" {
		ref = body.InterestID
	}
	caller, _ := CallerFrom(r.Context())
	result, err := h.ledger.Create(r.Context(), ledger.CreateRequest{
		NegotiationRef: ref,
		AgreedPrice:    body.AgreedPrice,
		PaymentMethod:  body.PaymentMethod,
	}, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []ledger.Warning{}
	}
	writeJSON(w, http.StatusCreated, createTransactionResponse{
		Transaction: result.Transaction,
		Warnings:    warnings,
	})
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	view, err := h.ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type appendStatusRequest struct {
	Status domain.Status `json:"status"`
}

func (h *Handlers) AppendStatus(w http.ResponseWriter, r *http.Request) {
	var body appendStatusRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	caller, _ := CallerFrom(r.Context())
	txn, err := h.ledger.AppendStatus(r.Context(), ledger.AppendRequest{
		TransactionID: mux.Vars(r)["id"],
		Status:        body.Status,
	}, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	history, err := h.ledger.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": id,
		"history":        history,
	})
}

func (h *Handlers) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Verify(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ListFilter{
		Status:  domain.Status(q.Get("status")),
		PartyID: q.Get("party"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	caller, _ := CallerFrom(r.Context())
	txns, err := h.ledger.List(r.Context(), filter, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []*domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ledger.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}
