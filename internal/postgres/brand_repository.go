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

type BrandRepo struct {
	pool *pgxpool.Pool
}

func NewBrandRepo(pool *pgxpool.Pool) *BrandRepo {
	return &BrandRepo{pool: pool}
}

func (r *BrandRepo) Create(ctx context.Context, brand *domain.Brand) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO brands (name)
		VALUES ($1)
		RETURNING id, created_at
	`, brand.Name).Scan(&brand.ID, &brand.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create brand: %w", err)
	}
	return nil
}

func (r *BrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	var brand domain.Brand
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM brands
		WHERE id = $1
	`, id).Scan(&brand.ID, &brand.Name, &brand.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brand by ID: %w", err)
	}
	return &brand, nil
}

func (r *BrandRepo) List(ctx context.Context) ([]domain.Brand, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM brands
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []domain.Brand
	for rows.Next() {
		var brand domain.Brand
		if err := rows.Scan(&brand.ID, &brand.Name, &brand.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, brand)
	}
	return brands, rows.Err()
}
