package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallpoint/stallpulse/internal/domain"
)

type BoothStockRepo struct {
	pool *pgxpool.Pool
}

func NewBoothStockRepo(pool *pgxpool.Pool) *BoothStockRepo {
	return &BoothStockRepo{pool: pool}
}

func (r *BoothStockRepo) Get(ctx context.Context, boothID, ingredientID uuid.UUID) (*domain.BoothStock, error) {
	var entry domain.BoothStock
	err := r.pool.QueryRow(ctx, `
		SELECT booth_id, ingredient_id, allocated, used, remaining, updated_at
		FROM booth_stock
		WHERE booth_id = $1 AND ingredient_id = $2
	`, boothID, ingredientID).Scan(&entry.BoothID, &entry.IngredientID,
		&entry.Allocated, &entry.Used, &entry.Remaining, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBoothStockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booth stock: %w", err)
	}
	return &entry, nil
}

func (r *BoothStockRepo) ListByBooth(ctx context.Context, boothID uuid.UUID) ([]domain.BoothStock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT booth_id, ingredient_id, allocated, used, remaining, updated_at
		FROM booth_stock
		WHERE booth_id = $1
	`, boothID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booth stock: %w", err)
	}
	defer rows.Close()

	var entries []domain.BoothStock
	for rows.Next() {
		var entry domain.BoothStock
		if err := rows.Scan(&entry.BoothID, &entry.IngredientID,
			&entry.Allocated, &entry.Used, &entry.Remaining, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booth stock: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListLowStock returns booth-stock rows at or under their alert
// threshold, which is the larger of 20% of the allocation and the
// ingredient's configured minimum.
func (r *BoothStockRepo) ListLowStock(ctx context.Context, brandID uuid.UUID) ([]domain.LowStockEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT bs.booth_id, bs.ingredient_id, i.name, bs.allocated, bs.used, bs.remaining, i.minimum_stock
		FROM booth_stock bs
		JOIN ingredients i ON i.id = bs.ingredient_id
		JOIN booths b ON b.id = bs.booth_id
		WHERE b.brand_id = $1
		  AND bs.remaining <= GREATEST(0.2 * bs.allocated, i.minimum_stock)
		ORDER BY bs.remaining
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	defer rows.Close()

	var entries []domain.LowStockEntry
	for rows.Next() {
		var entry domain.LowStockEntry
		if err := rows.Scan(&entry.BoothID, &entry.IngredientID, &entry.IngredientName,
			&entry.Allocated, &entry.Used, &entry.Remaining, &entry.MinimumStock); err != nil {
			return nil, fmt.Errorf("failed to scan low stock entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *BoothStockRepo) Upsert(ctx context.Context, entry *domain.BoothStock) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booth_stock (booth_id, ingredient_id, allocated, used, remaining, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (booth_id, ingredient_id) DO UPDATE SET
			allocated = EXCLUDED.allocated,
			used = EXCLUDED.used,
			remaining = EXCLUDED.remaining,
			updated_at = NOW()
	`, entry.BoothID, entry.IngredientID, entry.Allocated, entry.Used, entry.Remaining)
	if err != nil {
		return fmt.Errorf("failed to upsert booth stock: %w", err)
	}
	return nil
}
