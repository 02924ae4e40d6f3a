package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

// NegotiationRepo reads and accepts rows of the interests table.
type NegotiationRepo struct {
	db *DB
}

func NewNegotiationRepo(db *DB) *NegotiationRepo {
	return &NegotiationRepo{db: db}
}

type interestRow struct {
	ID            string          `db:"id"`
	MaterialID    string          `db:"material_id"`
	BuyerID       string          `db:"buyer_id"`
	SellerID      string          `db:"seller_id"`
	ProposedPrice decimal.Decimal `db:"proposed_price"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r *NegotiationRepo) Get(ctx context.Context, id string) (*domain.Negotiation, error) {
	var row interestRow
	query := `SELECT id, material_id, buyer_id, seller_id, proposed_price, status, created_at
		FROM interests WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get negotiation: %w", err)
	}
	return &domain.Negotiation{
		ID:            row.ID,
		MaterialRef:   row.MaterialID,
		BuyerRef:      row.BuyerID,
		SellerRef:     row.SellerID,
		ProposedPrice: row.ProposedPrice,
		Status:        domain.NegotiationStatus(row.Status),
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func (r *NegotiationRepo) MarkAccepted(ctx context.Context, id string) error {
	return updateStatus(ctx, r.db, `UPDATE interests SET status = $2 WHERE id = $1`,
		id, string(domain.NegotiationAccepted))
}

// MaterialRepo reads and sells rows of the materials table.
type MaterialRepo struct {
	db *DB
}

func NewMaterialRepo(db *DB) *MaterialRepo {
	return &MaterialRepo{db: db}
}

type materialRow struct {
	ID         string          `db:"id"`
	SellerID   string          `db:"seller_id"`
	Type       string          `db:"type"`
	Quantity   float64         `db:"quantity"`
	TotalPrice decimal.Decimal `db:"total_price"`
	Location   string          `db:"location"`
	Status     string          `db:"status"`
}

func (r *MaterialRepo) Get(ctx context.Context, id string) (*domain.MaterialSummary, error) {
	var row materialRow
	query := `SELECT id, seller_id, type, quantity, total_price, location, status
		FROM materials WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return &domain.MaterialSummary{
		ID:         row.ID,
		SellerRef:  row.SellerID,
		Type:       row.Type,
		Quantity:   row.Quantity,
		TotalPrice: row.TotalPrice,
		Location:   row.Location,
		Status:     domain.MaterialStatus(row.Status),
	}, nil
}

func (r *MaterialRepo) MarkSold(ctx context.Context, id string) error {
	return updateStatus(ctx, r.db, `UPDATE materials SET status = $2 WHERE id = $1`,
		id, string(domain.MaterialSold))
}

// PartyRepo reads display summaries from the users table.
type PartyRepo struct {
	db *DB
}

func NewPartyRepo(db *DB) *PartyRepo {
	return &PartyRepo{db: db}
}

func (r *PartyRepo) Get(ctx context.Context, id string) (*domain.Party, error) {
	var row struct {
		ID    string `db:"id"`
		Name  string `db:"name"`
		Phone string `db:"phone"`
		Role  string `db:"role"`
	}
	if err := r.db.GetContext(ctx, &row, `SELECT id, name, phone, role FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &domain.Party{
		ID:    row.ID,
		Name:  row.Name,
		Phone: row.Phone,
		Role:  domain.Role(row.Role),
	}, nil
}

func updateStatus(ctx context.Context, db *DB, query, id, status string) error {
	res, err := db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
