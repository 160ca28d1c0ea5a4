package domain

import (
	"time"

	"github.com/google/uuid"
)

// --- Roles ---

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
)

// --- Model types ---

// Brand is a tenant. It owns booths, ingredients, menu items, and accounting data.
type Brand struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type User struct {
	ID           uuid.UUID  `db:"id"`
	BrandID      *uuid.UUID `db:"brand_id"` // nil for superadmin
	BoothID      *uuid.UUID `db:"booth_id"` // set for staff only
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Role         string     `db:"role"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Booth is a temporary point-of-sale location under a brand.
type Booth struct {
	ID        uuid.UUID `db:"id"`
	BrandID   uuid.UUID `db:"brand_id"`
	Name      string    `db:"name"`
	Location  string    `db:"location"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// Ingredient is a raw material owned by a brand. Stock is the central
// warehouse quantity and never goes negative; mutations clamp at zero.
type Ingredient struct {
	ID           uuid.UUID `db:"id"`
	BrandID      uuid.UUID `db:"brand_id"`
	Name         string    `db:"name"`
	Unit         string    `db:"unit"`
	CostPerUnit  float64   `db:"cost_per_unit"`
	Stock        float64   `db:"stock"`
	MinimumStock float64   `db:"minimum_stock"`
	CreatedAt    time.Time `db:"created_at"`
}

// MenuItemIngredient is the quantity of one ingredient consumed per unit sold.
type MenuItemIngredient struct {
	IngredientID uuid.UUID `json:"ingredientId"`
	Quantity     float64   `json:"quantity"`
}

type MenuItem struct {
	ID          uuid.UUID            `db:"id"`
	BrandID     uuid.UUID            `db:"brand_id"`
	BoothID     *uuid.UUID           `db:"booth_id"` // nil = available at all booths
	Name        string               `db:"name"`
	Price       float64              `db:"price"`
	Available   bool                 `db:"available"`
	Ingredients []MenuItemIngredient `db:"ingredients"`
	CreatedAt   time.Time            `db:"created_at"`
}

// BoothStock tracks ingredient quantity moved from the warehouse to one booth.
// Invariant: Remaining = Allocated - Used, with Used and Remaining clamped
// into [0, Allocated] after every write.
type BoothStock struct {
	BoothID      uuid.UUID `db:"booth_id"`
	IngredientID uuid.UUID `db:"ingredient_id"`
	Allocated    float64   `db:"allocated"`
	Used         float64   `db:"used"`
	Remaining    float64   `db:"remaining"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Clamp restores the booth-stock invariant. Out-of-range values saturate
// rather than error; precision loss under concurrent edits is accepted.
func (bs *BoothStock) Clamp() {
	if bs.Used < 0 {
		bs.Used = 0
	}
	if bs.Used > bs.Allocated {
		bs.Used = bs.Allocated
	}
	bs.Remaining = bs.Allocated - bs.Used
	if bs.Remaining < 0 {
		bs.Remaining = 0
	}
}

// SaleItem is a line item with the unit price captured at sale time.
type SaleItem struct {
	MenuItemID uuid.UUID `json:"menuItemId"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unitPrice"`
}

type Sale struct {
	ID            uuid.UUID  `db:"id"`
	BrandID       uuid.UUID  `db:"brand_id"`
	BoothID       uuid.UUID  `db:"booth_id"`
	Items         []SaleItem `db:"items"`
	Total         float64    `db:"total"`
	PaymentMethod string     `db:"payment_method"`
	PaymentStatus string     `db:"payment_status"`
	CreatedBy     uuid.UUID  `db:"created_by"`
	CreatedAt     time.Time  `db:"created_at"`
}

// --- Stock movement ledger ---

const (
	MovementPurchase   = "purchase"
	MovementUse        = "use"
	MovementWaste      = "waste"
	MovementAdjustment = "adjustment"
)

// StockMovement is an append-only ledger entry recording a signed quantity
// change to one ingredient, optionally tied to a sale or booth.
type StockMovement struct {
	ID           uuid.UUID  `db:"id"`
	BrandID      uuid.UUID  `db:"brand_id"`
	IngredientID uuid.UUID  `db:"ingredient_id"`
	BoothID      *uuid.UUID `db:"booth_id"`
	SaleID       *uuid.UUID `db:"sale_id"`
	Type         string     `db:"type"`
	Quantity     float64    `db:"quantity"` // signed
	Note         string     `db:"note"`
	CreatedBy    uuid.UUID  `db:"created_by"`
	CreatedAt    time.Time  `db:"created_at"`
}

// --- Accounting ---

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"

	CategorySaleRevenue   = "sale_revenue"
	CategoryStockPurchase = "stock_purchase"
	CategoryBoothSetup    = "booth_setup"

	RelatedTypeSale     = "sale"
	RelatedTypePurchase = "stock_purchase"
)

// AccountingTransaction is an income or expense ledger entry tied to its
// originating record by RelatedID/RelatedType. Sale-driven rows are kept
// in sync with the sale's current total by the reconciler.
type AccountingTransaction struct {
	ID          uuid.UUID `db:"id"`
	BrandID     uuid.UUID `db:"brand_id"`
	Type        string    `db:"type"`
	Category    string    `db:"category"`
	Amount      float64   `db:"amount"`
	Description string    `db:"description"`
	RelatedID   uuid.UUID `db:"related_id"`
	RelatedType string    `db:"related_type"`
	CreatedAt   time.Time `db:"created_at"`
}
