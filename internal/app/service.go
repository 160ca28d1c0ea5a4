// Package app provides the application service layer.
//
// Orchestrates use cases: authentication, tenant setup, stock and menu
// management, sale writes with background reconciliation. Sits between
// HTTP handlers and domain repositories. Depends on domain interfaces,
// not concrete implementations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/stallpoint/stallpulse/internal/domain"
	apperrors "github.com/stallpoint/stallpulse/internal/errors"
	"github.com/stallpoint/stallpulse/internal/logging"
	"github.com/stallpoint/stallpulse/internal/realtime"
	"github.com/stallpoint/stallpulse/internal/reconcile"
	"github.com/stallpoint/stallpulse/internal/retry"
)

const (
	// reconcileTimeout bounds a single background reconciliation run,
	// retries included.
	reconcileTimeout  = 30 * time.Second
	reconcileAttempts = 3
	reconcileBackoff  = time.Second
)

// Service is the application layer — the only component that references
// multiple domain components. It orchestrates all use cases.
type Service struct {
	brands      domain.BrandRepository
	users       domain.UserRepository
	booths      domain.BoothRepository
	ingredients domain.IngredientRepository
	menu        domain.MenuRepository
	boothStock  domain.BoothStockRepository
	sales       domain.SaleRepository
	movements   domain.StockMovementRepository
	accounting  domain.AccountingRepository

	reconciler *reconcile.Reconciler
	publisher  realtime.Publisher
	menuGroup  singleflight.Group
	clock      clockwork.Clock

	reconcileWg sync.WaitGroup
}

var _ domain.AppService = (*Service)(nil)

func NewService(
	brands domain.BrandRepository,
	users domain.UserRepository,
	booths domain.BoothRepository,
	ingredients domain.IngredientRepository,
	menu domain.MenuRepository,
	boothStock domain.BoothStockRepository,
	sales domain.SaleRepository,
	movements domain.StockMovementRepository,
	accounting domain.AccountingRepository,
	reconciler *reconcile.Reconciler,
	publisher realtime.Publisher,
	clock clockwork.Clock,
) *Service {
	return &Service{
		brands:      brands,
		users:       users,
		booths:      booths,
		ingredients: ingredients,
		menu:        menu,
		boothStock:  boothStock,
		sales:       sales,
		movements:   movements,
		accounting:  accounting,
		reconciler:  reconciler,
		publisher:   publisher,
		clock:       clock,
	}
}

// Wait blocks until all in-flight background reconciliations finish.
// Called during graceful shutdown.
func (s *Service) Wait() {
	s.reconcileWg.Wait()
}

// spawnReconcile runs fn detached from the request context: the sale has
// already been committed and responded to, so reconciliation must not be
// cancelled by the client hanging up. Retryable outcomes get a few more
// attempts with backoff before the run is abandoned; the run itself
// resumes at its first incomplete step, so retries never double-apply.
func (s *Service) spawnReconcile(fn func(ctx context.Context) reconcile.Outcome) {
	s.reconcileWg.Add(1)
	go func() {
		defer s.reconcileWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		policy := retry.Policy{
			MaxAttempts:    reconcileAttempts,
			InitialBackoff: reconcileBackoff,
			OnRetry: func(attempt int, backoff time.Duration) {
				slog.Warn("Retrying reconciliation", "attempt", attempt, "backoff", backoff)
			},
		}
		outcome := retry.Do(ctx, s.clock, policy,
			func(o reconcile.Outcome) bool { return o.Status == reconcile.StatusRetryable },
			fn)
		if outcome.Failed() {
			slog.Error("Reconciliation abandoned", "status", outcome.Status, "error", outcome.Err)
		}
	}()
}

// --- Authentication & users ---

// Authenticate verifies credentials. A missing user and a wrong password
// return the same error to avoid leaking which emails exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// --- Brands ---

// CreateBrand creates a tenant together with its first admin user.
func (s *Service) CreateBrand(ctx context.Context, name, adminEmail, adminPassword string) (*domain.Brand, error) {
	if name == "" || adminEmail == "" {
		return nil, apperrors.ValidationError("brand name and admin email are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	brand := &domain.Brand{Name: name}
	if err := s.brands.Create(ctx, brand); err != nil {
		return nil, err
	}

	brandID := brand.ID
	admin := &domain.User{
		BrandID:      &brandID,
		Email:        adminEmail,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create brand admin: %w", err)
	}

	logging.WithBrand(brand.ID.String()).Info("Brand created", "name", name)
	return brand, nil
}

func (s *Service) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	return s.brands.List(ctx)
}

// --- Booths ---

func (s *Service) CreateBooth(ctx context.Context, booth *domain.Booth) error {
	if booth.Name == "" {
		return apperrors.ValidationError("booth name is required")
	}
	return s.booths.Create(ctx, booth)
}

func (s *Service) GetBooth(ctx context.Context, id uuid.UUID) (*domain.Booth, error) {
	return s.booths.GetByID(ctx, id)
}

func (s *Service) ListBooths(ctx context.Context, brandID uuid.UUID) ([]domain.Booth, error) {
	return s.booths.ListByBrand(ctx, brandID)
}

func (s *Service) UpdateBooth(ctx context.Context, booth *domain.Booth) error {
	return s.booths.Update(ctx, booth)
}

func (s *Service) DeleteBooth(ctx context.Context, id uuid.UUID) error {
	return s.booths.Delete(ctx, id)
}

// --- Ingredients & warehouse stock ---

func (s *Service) CreateIngredient(ctx context.Context, ingredient *domain.Ingredient) error {
	if ingredient.Name == "" || ingredient.Unit == "" {
		return apperrors.ValidationError("ingredient name and unit are required")
	}
	return s.ingredients.Create(ctx, ingredient)
}

func (s *Service) GetIngredient(ctx context.Context, id uuid.UUID) (*domain.Ingredient, error) {
	return s.ingredients.GetByID(ctx, id)
}

func (s *Service) ListIngredients(ctx context.Context, brandID uuid.UUID) ([]domain.Ingredient, error) {
	return s.ingredients.ListByBrand(ctx, brandID)
}

func (s *Service) UpdateIngredient(ctx context.Context, ingredient *domain.Ingredient) error {
	return s.ingredients.Update(ctx, ingredient)
}

func (s *Service) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	return s.ingredients.Delete(ctx, id)
}

// PurchaseIngredient restocks the warehouse, records the purchase
// movement, and books the expense.
func (s *Service) PurchaseIngredient(ctx context.Context, req domain.PurchaseRequest) (*domain.Ingredient, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.ValidationError("purchase quantity must be positive")
	}

	if _, err := s.ingredients.AdjustStock(ctx, req.IngredientID, req.Quantity); err != nil {
		return nil, err
	}

	ingredient, err := s.ingredients.GetByID(ctx, req.IngredientID)
	if err != nil {
		return nil, err
	}

	movement := &domain.StockMovement{
		BrandID:      req.BrandID,
		IngredientID: req.IngredientID,
		Type:         domain.MovementPurchase,
		Quantity:     req.Quantity,
		Note:         fmt.Sprintf("Purchased %.2f %s", req.Quantity, ingredient.Unit),
		CreatedBy:    req.ActorID,
	}
	if err := s.movements.Create(ctx, movement); err != nil {
		return nil, err
	}

	cost := req.Quantity * req.UnitCost
	tx := &domain.AccountingTransaction{
		BrandID:     req.BrandID,
		Type:        domain.TransactionExpense,
		Category:    domain.CategoryStockPurchase,
		Amount:      cost,
		Description: fmt.Sprintf("Purchase of %s", ingredient.Name),
		RelatedID:   movement.ID,
		RelatedType: domain.RelatedTypePurchase,
	}
	if err := s.accounting.Create(ctx, tx); err != nil {
		return nil, err
	}

	return ingredient, nil
}

// --- Booth stock ---

func (s *Service) ListBoothStock(ctx context.Context, boothID uuid.UUID) ([]domain.BoothStock, error) {
	return s.boothStock.ListByBooth(ctx, boothID)
}

// AllocateStock moves ingredient stock from the warehouse to a booth. The
// booth's allocation grows by the quantity; the warehouse shrinks by it.
func (s *Service) AllocateStock(ctx context.Context, req domain.AllocationRequest) (*domain.BoothStock, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.ValidationError("allocation quantity must be positive")
	}

	ingredient, err := s.ingredients.GetByID(ctx, req.IngredientID)
	if err != nil {
		return nil, err
	}
	if ingredient.Stock < req.Quantity {
		return nil, apperrors.ValidationError("insufficient warehouse stock").
			WithContext("available", ingredient.Stock).
			WithContext("requested", req.Quantity)
	}

	if _, err := s.ingredients.AdjustStock(ctx, req.IngredientID, -req.Quantity); err != nil {
		return nil, err
	}

	entry, err := s.boothStock.Get(ctx, req.BoothID, req.IngredientID)
	if errors.Is(err, domain.ErrBoothStockNotFound) {
		entry = &domain.BoothStock{BoothID: req.BoothID, IngredientID: req.IngredientID}
	} else if err != nil {
		return nil, err
	}

	entry.Allocated += req.Quantity
	entry.Clamp()
	if err := s.boothStock.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	boothID := req.BoothID
	movement := &domain.StockMovement{
		BrandID:      req.BrandID,
		IngredientID: req.IngredientID,
		BoothID:      &boothID,
		Type:         domain.MovementAdjustment,
		Quantity:     -req.Quantity,
		Note:         fmt.Sprintf("Allocated %.2f %s to booth", req.Quantity, ingredient.Unit),
		CreatedBy:    req.ActorID,
	}
	if err := s.movements.Create(ctx, movement); err != nil {
		return nil, err
	}

	return entry, nil
}

// --- Menu ---

func (s *Service) CreateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	if item.Name == "" {
		return apperrors.ValidationError("menu item name is required")
	}
	if err := s.menu.Create(ctx, item); err != nil {
		return err
	}
	s.broadcastMenuRefresh(ctx, item.BrandID, item.BoothID)
	return nil
}

func (s *Service) GetMenuItem(ctx context.Context, id uuid.UUID) (*domain.MenuItem, error) {
	return s.menu.GetByID(ctx, id)
}

func (s *Service) ListMenu(ctx context.Context, brandID uuid.UUID) ([]domain.MenuItem, error) {
	return s.menu.ListByBrand(ctx, brandID)
}

func (s *Service) ListBoothMenu(ctx context.Context, boothID uuid.UUID) ([]domain.MenuItem, error) {
	return s.menu.ListByBooth(ctx, boothID)
}

func (s *Service) UpdateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	if err := s.menu.Update(ctx, item); err != nil {
		return err
	}
	s.broadcastMenuRefresh(ctx, item.BrandID, item.BoothID)
	return nil
}

func (s *Service) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.menu.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.menu.Delete(ctx, id); err != nil {
		return err
	}
	s.broadcastMenuRefresh(ctx, item.BrandID, item.BoothID)
	return nil
}

// broadcastMenuRefresh pushes the brand's current menu to its menu
// streams. Concurrent writes to the same brand collapse into one refresh
// through singleflight.
func (s *Service) broadcastMenuRefresh(ctx context.Context, brandID uuid.UUID, boothID *uuid.UUID) {
	_, err, _ := s.menuGroup.Do(brandID.String(), func() (any, error) {
		items, err := s.menu.ListByBrand(ctx, brandID)
		if err != nil {
			return nil, err
		}
		ev := realtime.NewMenuUpdateEvent(boothID, items, s.clock.Now())
		return nil, s.publisher.PublishMenuEvent(ctx, brandID, ev)
	})
	if err != nil {
		logging.WithBrand(brandID.String()).Error("Failed to broadcast menu refresh", "error", err)
	}
}

// --- Sales ---

// CreateSale validates and persists the sale, responds immediately, and
// leaves stock and accounting bookkeeping to the background reconciler.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (*domain.Sale, error) {
	booth, err := s.booths.GetByID(ctx, req.BoothID)
	if err != nil {
		return nil, err
	}
	if booth.BrandID != req.BrandID {
		return nil, apperrors.ForbiddenError("booth belongs to another brand")
	}
	if !booth.Active {
		return nil, apperrors.ValidationError("booth is not active")
	}

	items, total, err := s.resolveItems(ctx, req.BrandID, req.Items)
	if err != nil {
		return nil, err
	}

	sale := &domain.Sale{
		BrandID:       req.BrandID,
		BoothID:       req.BoothID,
		Items:         items,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: "completed",
		CreatedBy:     req.ActorID,
	}
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, err
	}

	// Publish here, not in the reconciler: reconciliation runs may be
	// retried, and the new-sale announcement must go out exactly once.
	recorded := *sale
	if err := s.publisher.PublishEvent(ctx, realtime.NewSaleEvent(&recorded, s.clock.Now())); err != nil {
		logging.WithSale(sale.ID.String()).Error("Failed to publish new-sale event", "error", err)
	}
	s.spawnReconcile(s.reconciler.SaleCreated(&recorded))

	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return s.sales.GetByID(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, brandID uuid.UUID, boothID *uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
	if boothID != nil {
		return s.sales.ListByBooth(ctx, *boothID, from, to)
	}
	return s.sales.ListByBrand(ctx, brandID, from, to)
}

// UpdateSale replaces the sale's items and re-derives the total, then
// hands the stock difference to the reconciler.
func (s *Service) UpdateSale(ctx context.Context, req domain.UpdateSaleRequest) (*domain.Sale, error) {
	sale, err := s.sales.GetByID(ctx, req.SaleID)
	if err != nil {
		return nil, err
	}
	previousItems := sale.Items

	items, total, err := s.resolveItems(ctx, sale.BrandID, req.Items)
	if err != nil {
		return nil, err
	}

	sale.Items = items
	sale.Total = total
	if req.PaymentMethod != "" {
		sale.PaymentMethod = req.PaymentMethod
	}
	if err := s.sales.Update(ctx, sale); err != nil {
		return nil, err
	}

	updated := *sale
	s.spawnReconcile(s.reconciler.SaleEdited(&updated, previousItems))

	return sale, nil
}

// DeleteSale removes the sale row and reverses its side effects in the
// background.
func (s *Service) DeleteSale(ctx context.Context, saleID, actorID uuid.UUID) error {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return err
	}
	if err := s.sales.Delete(ctx, saleID); err != nil {
		return err
	}

	deleted := *sale
	deleted.CreatedBy = actorID
	s.spawnReconcile(s.reconciler.SaleDeleted(&deleted))

	return nil
}

// resolveItems maps submitted line items to priced sale items, rejecting
// cross-brand and unavailable menu items. Prices come from the current
// menu, never from the client.
func (s *Service) resolveItems(ctx context.Context, brandID uuid.UUID, inputs []domain.SaleItemInput) ([]domain.SaleItem, float64, error) {
	if len(inputs) == 0 {
		return nil, 0, apperrors.ValidationError("sale requires at least one item")
	}

	items := make([]domain.SaleItem, 0, len(inputs))
	var total float64
	for _, input := range inputs {
		if input.Quantity <= 0 {
			return nil, 0, apperrors.ValidationError("item quantity must be positive")
		}
		menuItem, err := s.menu.GetByID(ctx, input.MenuItemID)
		if err != nil {
			return nil, 0, err
		}
		if menuItem.BrandID != brandID {
			return nil, 0, apperrors.ForbiddenError("menu item belongs to another brand")
		}
		if !menuItem.Available {
			return nil, 0, apperrors.ValidationError("menu item is not available").
				WithContext("menu_item", menuItem.Name)
		}
		items = append(items, domain.SaleItem{
			MenuItemID: menuItem.ID,
			Quantity:   input.Quantity,
			UnitPrice:  menuItem.Price,
		})
		total += menuItem.Price * float64(input.Quantity)
	}
	return items, total, nil
}

// --- Reporting ---

func (s *Service) SalesSummary(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.BoothSalesSummary, error) {
	return s.sales.SummaryByBooth(ctx, brandID, from, to)
}

func (s *Service) LowStockReport(ctx context.Context, brandID uuid.UUID) ([]domain.LowStockEntry, error) {
	return s.boothStock.ListLowStock(ctx, brandID)
}
