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

type IngredientRepo struct {
	pool *pgxpool.Pool
}

func NewIngredientRepo(pool *pgxpool.Pool) *IngredientRepo {
	return &IngredientRepo{pool: pool}
}

const ingredientColumns = `id, brand_id, name, unit, cost_per_unit, stock, minimum_stock, created_at`

func scanIngredient(row pgx.Row) (*domain.Ingredient, error) {
	var ingredient domain.Ingredient
	err := row.Scan(&ingredient.ID, &ingredient.BrandID, &ingredient.Name, &ingredient.Unit,
		&ingredient.CostPerUnit, &ingredient.Stock, &ingredient.MinimumStock, &ingredient.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *IngredientRepo) Create(ctx context.Context, ingredient *domain.Ingredient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ingredients (brand_id, name, unit, cost_per_unit, stock, minimum_stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, ingredient.BrandID, ingredient.Name, ingredient.Unit, ingredient.CostPerUnit,
		ingredient.Stock, ingredient.MinimumStock).
		Scan(&ingredient.ID, &ingredient.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingredient: %w", err)
	}
	return nil
}

func (r *IngredientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ingredient, error) {
	ingredient, err := scanIngredient(r.pool.QueryRow(ctx,
		`SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIngredientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient by ID: %w", err)
	}
	return ingredient, nil
}

func (r *IngredientRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Ingredient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ingredientColumns+` FROM ingredients WHERE brand_id = $1 ORDER BY name`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []domain.Ingredient
	for rows.Next() {
		ingredient, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, *ingredient)
	}
	return ingredients, rows.Err()
}

func (r *IngredientRepo) Update(ctx context.Context, ingredient *domain.Ingredient) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ingredients
		SET name = $1, unit = $2, cost_per_unit = $3, stock = $4, minimum_stock = $5
		WHERE id = $6
	`, ingredient.Name, ingredient.Unit, ingredient.CostPerUnit, ingredient.Stock,
		ingredient.MinimumStock, ingredient.ID)
	if err != nil {
		return fmt.Errorf("failed to update ingredient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngredientNotFound
	}
	return nil
}

func (r *IngredientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ingredient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngredientNotFound
	}
	return nil
}

// AdjustStock applies a signed delta to the central stock in one
// statement, clamped at zero, and returns the resulting level.
func (r *IngredientRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta float64) (float64, error) {
	var stock float64
	err := r.pool.QueryRow(ctx, `
		UPDATE ingredients
		SET stock = GREATEST(0, stock + $2)
		WHERE id = $1
		RETURNING stock
	`, id, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrIngredientNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust ingredient stock: %w", err)
	}
	return stock, nil
}
