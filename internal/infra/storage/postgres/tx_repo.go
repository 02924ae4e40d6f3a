package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

const uniqueViolation = "23505"

const txColumns = `id, negotiation_ref, material_id, buyer_id, seller_id, agreed_price, total_amount,
	payment_method, current_status, history, version, created_at, updated_at`

// TxRepo implements storage.TransactionRepository using PostgreSQL.
type TxRepo struct {
	db *DB
}

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

type txRow struct {
	ID             string          `db:"id"`
	NegotiationRef string          `db:"negotiation_ref"`
	MaterialID     string          `db:"material_id"`
	BuyerID        string          `db:"buyer_id"`
	SellerID       string          `db:"seller_id"`
	AgreedPrice    decimal.Decimal `db:"agreed_price"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	PaymentMethod  string          `db:"payment_method"`
	CurrentStatus  string          `db:"current_status"`
	History        []byte          `db:"history"`
	Version        int             `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r txRow) toDomain() (*domain.Transaction, error) {
	var history []domain.LedgerEntry
	if err := json.Unmarshal(r.History, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history of %s: %w", r.ID, err)
	}
	return &domain.Transaction{
		ID:             r.ID,
		NegotiationRef: r.NegotiationRef,
		MaterialRef:    r.MaterialID,
		BuyerRef:       r.BuyerID,
		SellerRef:      r.SellerID,
		AgreedPrice:    r.AgreedPrice,
		TotalAmount:    r.TotalAmount,
		PaymentMethod:  r.PaymentMethod,
		CurrentStatus:  domain.Status(r.CurrentStatus),
		History:        history,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

// Create inserts a transaction. The version starts at the history length.
func (r *TxRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	history, err := json.Marshal(txn.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, negotiation_ref, material_id, buyer_id, seller_id, agreed_price, total_amount,
			payment_method, current_status, history, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $12)
	`
	version := len(txn.History)
	_, err = r.db.ExecContext(ctx, query,
		txn.ID, txn.NegotiationRef, txn.MaterialRef, txn.BuyerRef, txn.SellerRef,
		txn.AgreedPrice, txn.TotalAmount, txn.PaymentMethod,
		string(txn.CurrentStatus), string(history), version, txn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	txn.Version = version
	return nil
}

// Get retrieves a transaction by id.
func (r *TxRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
}

// GetByNegotiation retrieves the transaction created from a negotiation.
func (r *TxRepo) GetByNegotiation(ctx context.Context, negotiationRef string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+txColumns+` FROM transactions WHERE negotiation_ref = $1`, negotiationRef)
}

func (r *TxRepo) getOne(ctx context.Context, query string, arg string) (*domain.Transaction, error) {
	var row txRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return row.toDomain()
}

// AppendEntry appends in a single conditional UPDATE so the history and the
// status can never be observed out of step.
func (r *TxRepo) AppendEntry(
	ctx context.Context,
	id string,
	expectedVersion int,
	entry domain.LedgerEntry,
) (*domain.Transaction, error) {
	payload, err := json.Marshal([]domain.LedgerEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}

	query := `
		UPDATE transactions SET
			history = history || $3::jsonb,
			current_status = $4,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING ` + txColumns

	var row txRow
	err = r.db.GetContext(ctx, &row, query, id, expectedVersion, string(payload), string(entry.Status))
	if err == nil {
		return row.toDomain()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}

	// Zero rows: either the record is gone or another writer moved the version.
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("failed to check transaction: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}
	return nil, storage.ErrVersionConflict
}

// List returns transactions ordered by creation time.
func (r *TxRepo) List(ctx context.Context, filter storage.ListFilter) ([]*domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("current_status = $%d", len(args)))
	}
	if filter.PartyID != "" {
		args = append(args, filter.PartyID)
		where = append(where, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", len(args), len(args)))
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txn, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

// CountByStatus returns the number of transactions per current status.
func (r *TxRepo) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	var rows []struct {
		Status string `db:"current_status"`
		Count  int    `db:"count"`
	}
	query := `SELECT current_status, COUNT(*) AS count FROM transactions GROUP BY current_status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	counts := make(map[domain.Status]int, len(rows))
	for _, row := range rows {
		counts[domain.Status(row.Status)] = row.Count
	}
	return counts, nil
}
