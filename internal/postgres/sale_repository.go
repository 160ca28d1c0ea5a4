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

type SaleRepo struct {
	pool *pgxpool.Pool
}

func NewSaleRepo(pool *pgxpool.Pool) *SaleRepo {
	return &SaleRepo{pool: pool}
}

const saleColumns = `id, brand_id, booth_id, items, total, payment_method, payment_status, created_by, created_at`

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.BrandID, &sale.BoothID, &sale.Items, &sale.Total,
		&sale.PaymentMethod, &sale.PaymentStatus, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *SaleRepo) Create(ctx context.Context, sale *domain.Sale) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sales (brand_id, booth_id, items, total, payment_method, payment_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, sale.BrandID, sale.BoothID, sale.Items, sale.Total,
		sale.PaymentMethod, sale.PaymentStatus, sale.CreatedBy).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale by ID: %w", err)
	}
	return sale, nil
}

func (r *SaleRepo) ListByBrand(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE brand_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`, brandID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales by brand: %w", err)
	}
	defer rows.Close()
	return collectSales(rows)
}

func (r *SaleRepo) ListByBooth(ctx context.Context, boothID uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE booth_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`, boothID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales by booth: %w", err)
	}
	defer rows.Close()
	return collectSales(rows)
}

func collectSales(rows pgx.Rows) ([]domain.Sale, error) {
	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (r *SaleRepo) Update(ctx context.Context, sale *domain.Sale) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales
		SET items = $1, total = $2, payment_method = $3, payment_status = $4
		WHERE id = $5
	`, sale.Items, sale.Total, sale.PaymentMethod, sale.PaymentStatus, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSaleNotFound
	}
	return nil
}

func (r *SaleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSaleNotFound
	}
	return nil
}

func (r *SaleRepo) SummaryByBooth(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.BoothSalesSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.name, COUNT(s.id), COALESCE(SUM(s.total), 0)
		FROM booths b
		LEFT JOIN sales s ON s.booth_id = b.id AND s.created_at >= $2 AND s.created_at < $3
		WHERE b.brand_id = $1
		GROUP BY b.id, b.name
		ORDER BY b.name
	`, brandID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sales: %w", err)
	}
	defer rows.Close()

	var summaries []domain.BoothSalesSummary
	for rows.Next() {
		var summary domain.BoothSalesSummary
		if err := rows.Scan(&summary.BoothID, &summary.BoothName, &summary.SaleCount, &summary.Total); err != nil {
			return nil, fmt.Errorf("failed to scan sales summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
