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

type BoothRepo struct {
	pool *pgxpool.Pool
}

func NewBoothRepo(pool *pgxpool.Pool) *BoothRepo {
	return &BoothRepo{pool: pool}
}

func (r *BoothRepo) Create(ctx context.Context, booth *domain.Booth) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO booths (brand_id, name, location, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, booth.BrandID, booth.Name, booth.Location, booth.Active).
		Scan(&booth.ID, &booth.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booth: %w", err)
	}
	return nil
}

func (r *BoothRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booth, error) {
	var booth domain.Booth
	err := r.pool.QueryRow(ctx, `
		SELECT id, brand_id, name, location, active, created_at
		FROM booths
		WHERE id = $1
	`, id).Scan(&booth.ID, &booth.BrandID, &booth.Name, &booth.Location, &booth.Active, &booth.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBoothNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booth by ID: %w", err)
	}
	return &booth, nil
}

func (r *BoothRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Booth, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, brand_id, name, location, active, created_at
		FROM booths
		WHERE brand_id = $1
		ORDER BY created_at
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booths: %w", err)
	}
	defer rows.Close()

	var booths []domain.Booth
	for rows.Next() {
		var booth domain.Booth
		if err := rows.Scan(&booth.ID, &booth.BrandID, &booth.Name, &booth.Location, &booth.Active, &booth.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booth: %w", err)
		}
		booths = append(booths, booth)
	}
	return booths, rows.Err()
}

func (r *BoothRepo) Update(ctx context.Context, booth *domain.Booth) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE booths
		SET name = $1, location = $2, active = $3
		WHERE id = $4
	`, booth.Name, booth.Location, booth.Active, booth.ID)
	if err != nil {
		return fmt.Errorf("failed to update booth: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBoothNotFound
	}
	return nil
}

func (r *BoothRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM booths WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booth: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBoothNotFound
	}
	return nil
}
