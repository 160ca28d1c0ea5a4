package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BrandRepository abstracts tenant persistence.
type BrandRepository interface {
	Create(ctx context.Context, brand *Brand) error
	GetByID(ctx context.Context, id uuid.UUID) (*Brand, error)
	List(ctx context.Context) ([]Brand, error)
}

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// BoothRepository abstracts booth persistence.
type BoothRepository interface {
	Create(ctx context.Context, booth *Booth) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booth, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]Booth, error)
	Update(ctx context.Context, booth *Booth) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// IngredientRepository abstracts ingredient persistence. AdjustStock applies
// a signed delta to the central warehouse stock, clamped at zero, and returns
// the resulting stock level.
type IngredientRepository interface {
	Create(ctx context.Context, ingredient *Ingredient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ingredient, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]Ingredient, error)
	Update(ctx context.Context, ingredient *Ingredient) error
	Delete(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta float64) (float64, error)
}

// MenuRepository abstracts menu item persistence.
type MenuRepository interface {
	Create(ctx context.Context, item *MenuItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]MenuItem, error)
	ListByBooth(ctx context.Context, boothID uuid.UUID) ([]MenuItem, error)
	Update(ctx context.Context, item *MenuItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LowStockEntry is a booth-stock row at or under its alert threshold,
// joined with the ingredient it refers to.
type LowStockEntry struct {
	BoothID        uuid.UUID `json:"boothId"`
	IngredientID   uuid.UUID `json:"ingredientId"`
	IngredientName string    `json:"ingredientName"`
	Allocated      float64   `json:"allocated"`
	Used           float64   `json:"used"`
	Remaining      float64   `json:"remaining"`
	MinimumStock   float64   `json:"minimumStock"`
}

// BoothStockRepository abstracts the per-(booth, ingredient) stock triple.
type BoothStockRepository interface {
	Get(ctx context.Context, boothID, ingredientID uuid.UUID) (*BoothStock, error)
	ListByBooth(ctx context.Context, boothID uuid.UUID) ([]BoothStock, error)
	ListLowStock(ctx context.Context, brandID uuid.UUID) ([]LowStockEntry, error)
	Upsert(ctx context.Context, entry *BoothStock) error
}

// BoothSalesSummary aggregates completed sales for one booth over a range.
type BoothSalesSummary struct {
	BoothID   uuid.UUID `json:"boothId"`
	BoothName string    `json:"boothName"`
	SaleCount int       `json:"saleCount"`
	Total     float64   `json:"total"`
}

// SaleRepository abstracts sale persistence.
type SaleRepository interface {
	Create(ctx context.Context, sale *Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]Sale, error)
	ListByBooth(ctx context.Context, boothID uuid.UUID, from, to time.Time) ([]Sale, error)
	Update(ctx context.Context, sale *Sale) error
	Delete(ctx context.Context, id uuid.UUID) error
	SummaryByBooth(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]BoothSalesSummary, error)
}

// StockMovementRepository abstracts the append-only movement ledger.
type StockMovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	ListByIngredient(ctx context.Context, ingredientID uuid.UUID, limit int) ([]StockMovement, error)
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]StockMovement, error)
	DeleteBySale(ctx context.Context, saleID uuid.UUID) error
}

// AccountingRepository abstracts the income/expense ledger.
type AccountingRepository interface {
	Create(ctx context.Context, tx *AccountingTransaction) error
	GetByRelated(ctx context.Context, relatedID uuid.UUID, relatedType string) (*AccountingTransaction, error)
	UpdateAmount(ctx context.Context, id uuid.UUID, amount float64) error
	DeleteByRelated(ctx context.Context, relatedID uuid.UUID, relatedType string) error
	ListByBrand(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]AccountingTransaction, error)
}
