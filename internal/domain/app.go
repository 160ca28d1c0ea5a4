package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SaleItemInput is a line item as submitted by the sales terminal; the unit
// price is resolved server-side from the menu item at sale time.
type SaleItemInput struct {
	MenuItemID uuid.UUID `json:"menuItemId"`
	Quantity   int       `json:"quantity"`
}

// CreateSaleRequest bundles all parameters for a sale creation.
type CreateSaleRequest struct {
	BrandID       uuid.UUID
	BoothID       uuid.UUID
	Items         []SaleItemInput
	PaymentMethod string
	ActorID       uuid.UUID
}

// UpdateSaleRequest bundles all parameters for a sale edit.
type UpdateSaleRequest struct {
	SaleID        uuid.UUID
	Items         []SaleItemInput
	PaymentMethod string
	ActorID       uuid.UUID
}

// PurchaseRequest restocks the central warehouse for one ingredient.
type PurchaseRequest struct {
	BrandID      uuid.UUID
	IngredientID uuid.UUID
	Quantity     float64
	UnitCost     float64
	ActorID      uuid.UUID
}

// AllocationRequest moves ingredient stock from the warehouse to a booth.
type AllocationRequest struct {
	BrandID      uuid.UUID
	BoothID      uuid.UUID
	IngredientID uuid.UUID
	Quantity     float64
	ActorID      uuid.UUID
}

// AppService is the application layer contract — handlers route all
// operations through here.
type AppService interface {
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	CreateBrand(ctx context.Context, name, adminEmail, adminPassword string) (*Brand, error)
	ListBrands(ctx context.Context) ([]Brand, error)

	CreateBooth(ctx context.Context, booth *Booth) error
	GetBooth(ctx context.Context, id uuid.UUID) (*Booth, error)
	ListBooths(ctx context.Context, brandID uuid.UUID) ([]Booth, error)
	UpdateBooth(ctx context.Context, booth *Booth) error
	DeleteBooth(ctx context.Context, id uuid.UUID) error

	CreateIngredient(ctx context.Context, ingredient *Ingredient) error
	GetIngredient(ctx context.Context, id uuid.UUID) (*Ingredient, error)
	ListIngredients(ctx context.Context, brandID uuid.UUID) ([]Ingredient, error)
	UpdateIngredient(ctx context.Context, ingredient *Ingredient) error
	DeleteIngredient(ctx context.Context, id uuid.UUID) error
	PurchaseIngredient(ctx context.Context, req PurchaseRequest) (*Ingredient, error)

	ListBoothStock(ctx context.Context, boothID uuid.UUID) ([]BoothStock, error)
	AllocateStock(ctx context.Context, req AllocationRequest) (*BoothStock, error)

	CreateMenuItem(ctx context.Context, item *MenuItem) error
	GetMenuItem(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	ListMenu(ctx context.Context, brandID uuid.UUID) ([]MenuItem, error)
	ListBoothMenu(ctx context.Context, boothID uuid.UUID) ([]MenuItem, error)
	UpdateMenuItem(ctx context.Context, item *MenuItem) error
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error

	CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	ListSales(ctx context.Context, brandID uuid.UUID, boothID *uuid.UUID, from, to time.Time) ([]Sale, error)
	UpdateSale(ctx context.Context, req UpdateSaleRequest) (*Sale, error)
	DeleteSale(ctx context.Context, saleID, actorID uuid.UUID) error

	SalesSummary(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]BoothSalesSummary, error)
	LowStockReport(ctx context.Context, brandID uuid.UUID) ([]LowStockEntry, error)
}
