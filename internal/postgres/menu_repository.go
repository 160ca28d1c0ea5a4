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

type MenuRepo struct {
	pool *pgxpool.Pool
}

func NewMenuRepo(pool *pgxpool.Pool) *MenuRepo {
	return &MenuRepo{pool: pool}
}

const menuItemColumns = `id, brand_id, booth_id, name, price, available, ingredients, created_at`

func scanMenuItem(row pgx.Row) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := row.Scan(&item.ID, &item.BrandID, &item.BoothID, &item.Name,
		&item.Price, &item.Available, &item.Ingredients, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *MenuRepo) Create(ctx context.Context, item *domain.MenuItem) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO menu_items (brand_id, booth_id, name, price, available, ingredients)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, item.BrandID, item.BoothID, item.Name, item.Price, item.Available, item.Ingredients).
		Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}
	return nil
}

func (r *MenuRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MenuItem, error) {
	item, err := scanMenuItem(r.pool.QueryRow(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item by ID: %w", err)
	}
	return item, nil
}

func (r *MenuRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE brand_id = $1 ORDER BY name`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	defer rows.Close()
	return collectMenuItems(rows)
}

// ListByBooth returns items pinned to the booth plus brand-wide items
// with no booth restriction.
func (r *MenuRepo) ListByBooth(ctx context.Context, boothID uuid.UUID) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+menuItemColumns+`
		FROM menu_items
		WHERE booth_id = $1
		   OR (booth_id IS NULL AND brand_id = (SELECT brand_id FROM booths WHERE id = $1))
		ORDER BY name
	`, boothID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items by booth: %w", err)
	}
	defer rows.Close()
	return collectMenuItems(rows)
}

func collectMenuItems(rows pgx.Rows) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *MenuRepo) Update(ctx context.Context, item *domain.MenuItem) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE menu_items
		SET booth_id = $1, name = $2, price = $3, available = $4, ingredients = $5
		WHERE id = $6
	`, item.BoothID, item.Name, item.Price, item.Available, item.Ingredients, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMenuItemNotFound
	}
	return nil
}

func (r *MenuRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMenuItemNotFound
	}
	return nil
}
