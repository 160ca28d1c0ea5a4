package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallpoint/stallpulse/internal/domain"
)

type MovementRepo struct {
	pool *pgxpool.Pool
}

func NewMovementRepo(pool *pgxpool.Pool) *MovementRepo {
	return &MovementRepo{pool: pool}
}

const movementColumns = `id, brand_id, ingredient_id, booth_id, sale_id, type, quantity, note, created_by, created_at`

func (r *MovementRepo) Create(ctx context.Context, movement *domain.StockMovement) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stock_movements (brand_id, ingredient_id, booth_id, sale_id, type, quantity, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, movement.BrandID, movement.IngredientID, movement.BoothID, movement.SaleID,
		movement.Type, movement.Quantity, movement.Note, movement.CreatedBy).
		Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create stock movement: %w", err)
	}
	return nil
}

func (r *MovementRepo) ListByIngredient(ctx context.Context, ingredientID uuid.UUID, limit int) ([]domain.StockMovement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE ingredient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ingredientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

func (r *MovementRepo) ListBySale(ctx context.Context, saleID uuid.UUID) ([]domain.StockMovement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE sale_id = $1
		ORDER BY created_at
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements by sale: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	for rows.Next() {
		var movement domain.StockMovement
		if err := rows.Scan(&movement.ID, &movement.BrandID, &movement.IngredientID,
			&movement.BoothID, &movement.SaleID, &movement.Type, &movement.Quantity,
			&movement.Note, &movement.CreatedBy, &movement.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, movement)
	}
	return movements, rows.Err()
}

func (r *MovementRepo) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM stock_movements WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("failed to delete movements by sale: %w", err)
	}
	return nil
}
