package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallpoint/stallpulse/internal/domain"
)

type AccountingRepo struct {
	pool *pgxpool.Pool
}

func NewAccountingRepo(pool *pgxpool.Pool) *AccountingRepo {
	return &AccountingRepo{pool: pool}
}

const transactionColumns = `id, brand_id, type, category, amount, description, related_id, related_type, created_at`

func (r *AccountingRepo) Create(ctx context.Context, tx *domain.AccountingTransaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounting_transactions (brand_id, type, category, amount, description, related_id, related_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, tx.BrandID, tx.Type, tx.Category, tx.Amount, tx.Description, tx.RelatedID, tx.RelatedType).
		Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *AccountingRepo) GetByRelated(ctx context.Context, relatedID uuid.UUID, relatedType string) (*domain.AccountingTransaction, error) {
	var tx domain.AccountingTransaction
	err := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM accounting_transactions
		WHERE related_id = $1 AND related_type = $2
	`, relatedID, relatedType).Scan(&tx.ID, &tx.BrandID, &tx.Type, &tx.Category,
		&tx.Amount, &tx.Description, &tx.RelatedID, &tx.RelatedType, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *AccountingRepo) UpdateAmount(ctx context.Context, id uuid.UUID, amount float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounting_transactions
		SET amount = $1
		WHERE id = $2
	`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *AccountingRepo) DeleteByRelated(ctx context.Context, relatedID uuid.UUID, relatedType string) error {
	if _, err := r.pool.Exec(ctx, `
		DELETE FROM accounting_transactions
		WHERE related_id = $1 AND related_type = $2
	`, relatedID, relatedType); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

func (r *AccountingRepo) ListByBrand(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.AccountingTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM accounting_transactions
		WHERE brand_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`, brandID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.AccountingTransaction
	for rows.Next() {
		var tx domain.AccountingTransaction
		if err := rows.Scan(&tx.ID, &tx.BrandID, &tx.Type, &tx.Category,
			&tx.Amount, &tx.Description, &tx.RelatedID, &tx.RelatedType, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
