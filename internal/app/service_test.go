package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stallpoint/stallpulse/internal/domain"
	apperrors "github.com/stallpoint/stallpulse/internal/errors"
	"github.com/stallpoint/stallpulse/internal/realtime"
	"github.com/stallpoint/stallpulse/internal/reconcile"
)

// fakeStore implements every domain repository in memory.
type fakeStore struct {
	mu           sync.Mutex
	brands       map[uuid.UUID]*domain.Brand
	users        map[uuid.UUID]*domain.User
	booths       map[uuid.UUID]*domain.Booth
	ingredients  map[uuid.UUID]*domain.Ingredient
	menuItems    map[uuid.UUID]*domain.MenuItem
	boothStock   map[[2]uuid.UUID]*domain.BoothStock
	sales        map[uuid.UUID]*domain.Sale
	movements    []*domain.StockMovement
	transactions []*domain.AccountingTransaction

	// failAccountingCreates makes that many accounting Create calls fail
	// before the store behaves normally again.
	failAccountingCreates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		brands:      map[uuid.UUID]*domain.Brand{},
		users:       map[uuid.UUID]*domain.User{},
		booths:      map[uuid.UUID]*domain.Booth{},
		ingredients: map[uuid.UUID]*domain.Ingredient{},
		menuItems:   map[uuid.UUID]*domain.MenuItem{},
		boothStock:  map[[2]uuid.UUID]*domain.BoothStock{},
		sales:       map[uuid.UUID]*domain.Sale{},
	}
}

type brandRepo struct{ s *fakeStore }

func (r brandRepo) Create(ctx context.Context, brand *domain.Brand) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	brand.ID = uuid.New()
	r.s.brands[brand.ID] = brand
	return nil
}

func (r brandRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	brand, ok := r.s.brands[id]
	if !ok {
		return nil, domain.ErrBrandNotFound
	}
	return brand, nil
}

func (r brandRepo) List(ctx context.Context) ([]domain.Brand, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var brands []domain.Brand
	for _, b := range r.s.brands {
		brands = append(brands, *b)
	}
	return brands, nil
}

type userRepo struct{ s *fakeStore }

func (r userRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = uuid.New()
	r.s.users[user.ID] = user
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type boothRepo struct{ s *fakeStore }

func (r boothRepo) Create(ctx context.Context, booth *domain.Booth) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if booth.ID == uuid.Nil {
		booth.ID = uuid.New()
	}
	r.s.booths[booth.ID] = booth
	return nil
}

func (r boothRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booth, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booth, ok := r.s.booths[id]
	if !ok {
		return nil, domain.ErrBoothNotFound
	}
	return booth, nil
}

func (r boothRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Booth, error) {
	return nil, nil
}
func (r boothRepo) Update(ctx context.Context, booth *domain.Booth) error { return nil }
func (r boothRepo) Delete(ctx context.Context, id uuid.UUID) error        { return nil }

type ingredientRepo struct{ s *fakeStore }

func (r ingredientRepo) Create(ctx context.Context, ingredient *domain.Ingredient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ingredient.ID == uuid.Nil {
		ingredient.ID = uuid.New()
	}
	r.s.ingredients[ingredient.ID] = ingredient
	return nil
}

func (r ingredientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ingredient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ingredient, ok := r.s.ingredients[id]
	if !ok {
		return nil, domain.ErrIngredientNotFound
	}
	copied := *ingredient
	return &copied, nil
}

func (r ingredientRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Ingredient, error) {
	return nil, nil
}
func (r ingredientRepo) Update(ctx context.Context, ingredient *domain.Ingredient) error { return nil }
func (r ingredientRepo) Delete(ctx context.Context, id uuid.UUID) error                  { return nil }

func (r ingredientRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta float64) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ingredient, ok := r.s.ingredients[id]
	if !ok {
		return 0, domain.ErrIngredientNotFound
	}
	ingredient.Stock += delta
	if ingredient.Stock < 0 {
		ingredient.Stock = 0
	}
	return ingredient.Stock, nil
}

type menuRepo struct{ s *fakeStore }

func (r menuRepo) Create(ctx context.Context, item *domain.MenuItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.s.menuItems[item.ID] = item
	return nil
}

func (r menuRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.menuItems[id]
	if !ok {
		return nil, domain.ErrMenuItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (r menuRepo) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []domain.MenuItem
	for _, item := range r.s.menuItems {
		if item.BrandID == brandID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (r menuRepo) ListByBooth(ctx context.Context, boothID uuid.UUID) ([]domain.MenuItem, error) {
	return nil, nil
}
func (r menuRepo) Update(ctx context.Context, item *domain.MenuItem) error { return r.Create(ctx, item) }

func (r menuRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.menuItems, id)
	return nil
}

type boothStockRepo struct{ s *fakeStore }

func (r boothStockRepo) Get(ctx context.Context, boothID, ingredientID uuid.UUID) (*domain.BoothStock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.boothStock[[2]uuid.UUID{boothID, ingredientID}]
	if !ok {
		return nil, domain.ErrBoothStockNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r boothStockRepo) ListByBooth(ctx context.Context, boothID uuid.UUID) ([]domain.BoothStock, error) {
	return nil, nil
}

func (r boothStockRepo) ListLowStock(ctx context.Context, brandID uuid.UUID) ([]domain.LowStockEntry, error) {
	return nil, nil
}

func (r boothStockRepo) Upsert(ctx context.Context, entry *domain.BoothStock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := *entry
	r.s.boothStock[[2]uuid.UUID{entry.BoothID, entry.IngredientID}] = &copied
	return nil
}

type saleRepo struct{ s *fakeStore }

func (r saleRepo) Create(ctx context.Context, sale *domain.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale.ID = uuid.New()
	r.s.sales[sale.ID] = sale
	return nil
}

func (r saleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return nil, domain.ErrSaleNotFound
	}
	copied := *sale
	return &copied, nil
}

func (r saleRepo) ListByBrand(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
	return nil, nil
}

func (r saleRepo) ListByBooth(ctx context.Context, boothID uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
	return nil, nil
}

func (r saleRepo) Update(ctx context.Context, sale *domain.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := *sale
	r.s.sales[sale.ID] = &copied
	return nil
}

func (r saleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sales, id)
	return nil
}

func (r saleRepo) SummaryByBooth(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.BoothSalesSummary, error) {
	return nil, nil
}

type movementRepo struct{ s *fakeStore }

func (r movementRepo) Create(ctx context.Context, movement *domain.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	r.s.movements = append(r.s.movements, movement)
	return nil
}

func (r movementRepo) ListByIngredient(ctx context.Context, ingredientID uuid.UUID, limit int) ([]domain.StockMovement, error) {
	return nil, nil
}

func (r movementRepo) ListBySale(ctx context.Context, saleID uuid.UUID) ([]domain.StockMovement, error) {
	return nil, nil
}

func (r movementRepo) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.movements[:0]
	for _, mv := range r.s.movements {
		if mv.SaleID == nil || *mv.SaleID != saleID {
			kept = append(kept, mv)
		}
	}
	r.s.movements = kept
	return nil
}

type accountingRepo struct{ s *fakeStore }

func (r accountingRepo) Create(ctx context.Context, tx *domain.AccountingTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failAccountingCreates > 0 {
		r.s.failAccountingCreates--
		return errors.New("connection reset by peer")
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	r.s.transactions = append(r.s.transactions, tx)
	return nil
}

func (r accountingRepo) GetByRelated(ctx context.Context, relatedID uuid.UUID, relatedType string) (*domain.AccountingTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tx := range r.s.transactions {
		if tx.RelatedID == relatedID && tx.RelatedType == relatedType {
			return tx, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r accountingRepo) UpdateAmount(ctx context.Context, id uuid.UUID, amount float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tx := range r.s.transactions {
		if tx.ID == id {
			tx.Amount = amount
			return nil
		}
	}
	return domain.ErrTransactionNotFound
}

func (r accountingRepo) DeleteByRelated(ctx context.Context, relatedID uuid.UUID, relatedType string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.transactions[:0]
	for _, tx := range r.s.transactions {
		if tx.RelatedID != relatedID || tx.RelatedType != relatedType {
			kept = append(kept, tx)
		}
	}
	r.s.transactions = kept
	return nil
}

func (r accountingRepo) ListByBrand(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.AccountingTransaction, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	events     []realtime.Event
	brandEvts  []realtime.Event
	menuEvents []realtime.MenuEvent
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) PublishBrandEvent(ctx context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brandEvts = append(p.brandEvts, ev)
	return nil
}

func (p *recordingPublisher) PublishMenuEvent(ctx context.Context, brandID uuid.UUID, ev realtime.MenuEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.menuEvents = append(p.menuEvents, ev)
	return nil
}

func (p *recordingPublisher) eventsOfType(eventType string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []realtime.Event
	for _, ev := range p.events {
		if ev.Type == eventType {
			result = append(result, ev)
		}
	}
	return result
}

// --- Fixture ---

type serviceFixture struct {
	store     *fakeStore
	publisher *recordingPublisher
	service   *Service
	clock     *clockwork.FakeClock

	brandID      uuid.UUID
	boothID      uuid.UUID
	staffID      uuid.UUID
	ingredientID uuid.UUID
	menuItemID   uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		store:        newFakeStore(),
		publisher:    &recordingPublisher{},
		brandID:      uuid.New(),
		boothID:      uuid.New(),
		staffID:      uuid.New(),
		ingredientID: uuid.New(),
		menuItemID:   uuid.New(),
	}

	f.store.brands[f.brandID] = &domain.Brand{ID: f.brandID, Name: "noodle co"}
	f.store.booths[f.boothID] = &domain.Booth{ID: f.boothID, BrandID: f.brandID, Name: "market stand", Active: true}
	f.store.ingredients[f.ingredientID] = &domain.Ingredient{
		ID: f.ingredientID, BrandID: f.brandID, Name: "rice noodles", Unit: "g",
		Stock: 5000, MinimumStock: 100,
	}
	f.store.boothStock[[2]uuid.UUID{f.boothID, f.ingredientID}] = &domain.BoothStock{
		BoothID: f.boothID, IngredientID: f.ingredientID,
		Allocated: 1000, Remaining: 1000,
	}
	f.store.menuItems[f.menuItemID] = &domain.MenuItem{
		ID: f.menuItemID, BrandID: f.brandID, Name: "pad thai", Price: 80, Available: true,
		Ingredients: []domain.MenuItemIngredient{{IngredientID: f.ingredientID, Quantity: 150}},
	}

	f.clock = clockwork.NewFakeClock()
	reconciler := reconcile.New(
		ingredientRepo{f.store}, boothStockRepo{f.store}, menuRepo{f.store},
		movementRepo{f.store}, accountingRepo{f.store}, f.publisher, f.clock,
	)
	f.service = NewService(
		brandRepo{f.store}, userRepo{f.store}, boothRepo{f.store},
		ingredientRepo{f.store}, menuRepo{f.store}, boothStockRepo{f.store},
		saleRepo{f.store}, movementRepo{f.store}, accountingRepo{f.store},
		reconciler, f.publisher, f.clock,
	)
	return f
}

// --- Tests ---

func TestAuthenticate(t *testing.T) {
	f := newServiceFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	brandID := f.brandID
	f.store.users[uuid.New()] = &domain.User{
		ID: uuid.New(), BrandID: &brandID, Email: "admin@noodle.co",
		PasswordHash: string(hash), Role: domain.RoleAdmin,
	}

	t.Run("valid credentials", func(t *testing.T) {
		user, err := f.service.Authenticate(context.Background(), "admin@noodle.co", "secret")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, user.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.service.Authenticate(context.Background(), "admin@noodle.co", "nope")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown email reports the same error", func(t *testing.T) {
		_, err := f.service.Authenticate(context.Background(), "ghost@noodle.co", "secret")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestCreateBrandCreatesAdmin(t *testing.T) {
	f := newServiceFixture(t)

	brand, err := f.service.CreateBrand(context.Background(), "taco corp", "boss@taco.co", "hunter2")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, brand.ID)

	admin, err := userRepo{f.store}.GetByEmail(context.Background(), "boss@taco.co")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	require.NotNil(t, admin.BrandID)
	assert.Equal(t, brand.ID, *admin.BrandID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("hunter2")))
}

func TestCreateSalePricesServerSide(t *testing.T) {
	f := newServiceFixture(t)

	sale, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
		BrandID: f.brandID,
		BoothID: f.boothID,
		Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 2}},
		ActorID: f.staffID,
	})
	require.NoError(t, err)

	assert.Equal(t, 160.0, sale.Total)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 80.0, sale.Items[0].UnitPrice)

	// Background reconciliation deducts booth stock.
	f.service.Wait()
	entry := f.store.boothStock[[2]uuid.UUID{f.boothID, f.ingredientID}]
	assert.Equal(t, 700.0, entry.Remaining)
	require.Len(t, f.store.transactions, 1)
	assert.Equal(t, 160.0, f.store.transactions[0].Amount)
}

func TestCreateSaleValidation(t *testing.T) {
	f := newServiceFixture(t)

	t.Run("empty items", func(t *testing.T) {
		_, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
			BrandID: f.brandID, BoothID: f.boothID, ActorID: f.staffID,
		})
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.TypeValidation, appErr.Type)
	})

	t.Run("inactive booth", func(t *testing.T) {
		f.store.booths[f.boothID].Active = false
		defer func() { f.store.booths[f.boothID].Active = true }()

		_, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
			BrandID: f.brandID, BoothID: f.boothID,
			Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 1}},
			ActorID: f.staffID,
		})
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.TypeValidation, appErr.Type)
	})

	t.Run("cross-brand booth", func(t *testing.T) {
		_, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
			BrandID: uuid.New(), BoothID: f.boothID,
			Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 1}},
			ActorID: f.staffID,
		})
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.TypeForbidden, appErr.Type)
	})
}

func TestUpdateSaleReconcilesDifference(t *testing.T) {
	f := newServiceFixture(t)

	sale, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
		BrandID: f.brandID, BoothID: f.boothID,
		Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 2}},
		ActorID: f.staffID,
	})
	require.NoError(t, err)
	f.service.Wait()

	updated, err := f.service.UpdateSale(context.Background(), domain.UpdateSaleRequest{
		SaleID:  sale.ID,
		Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 1}},
		ActorID: f.staffID,
	})
	require.NoError(t, err)
	f.service.Wait()

	assert.Equal(t, 80.0, updated.Total)
	entry := f.store.boothStock[[2]uuid.UUID{f.boothID, f.ingredientID}]
	assert.Equal(t, 850.0, entry.Remaining)
	assert.Equal(t, 5150.0, f.store.ingredients[f.ingredientID].Stock)

	tx, err := accountingRepo{f.store}.GetByRelated(context.Background(), sale.ID, domain.RelatedTypeSale)
	require.NoError(t, err)
	assert.Equal(t, 80.0, tx.Amount)
}

func TestDeleteSaleReversesBookkeeping(t *testing.T) {
	f := newServiceFixture(t)

	sale, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
		BrandID: f.brandID, BoothID: f.boothID,
		Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 2}},
		ActorID: f.staffID,
	})
	require.NoError(t, err)
	f.service.Wait()

	require.NoError(t, f.service.DeleteSale(context.Background(), sale.ID, f.staffID))
	f.service.Wait()

	_, err = f.service.GetSale(context.Background(), sale.ID)
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)

	entry := f.store.boothStock[[2]uuid.UUID{f.boothID, f.ingredientID}]
	assert.Equal(t, 1000.0, entry.Remaining)
	assert.Empty(t, f.store.transactions)
}

func TestCreateSaleRetriesTransientReconcileFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.store.failAccountingCreates = 1

	_, err := f.service.CreateSale(context.Background(), domain.CreateSaleRequest{
		BrandID: f.brandID, BoothID: f.boothID,
		Items:   []domain.SaleItemInput{{MenuItemID: f.menuItemID, Quantity: 2}},
		ActorID: f.staffID,
	})
	require.NoError(t, err)

	// The first background attempt deducts booth stock but cannot book
	// the revenue. Release the backoff timer and let the retry finish.
	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)
	f.service.Wait()

	entry := f.store.boothStock[[2]uuid.UUID{f.boothID, f.ingredientID}]
	assert.Equal(t, 300.0, entry.Used, "retry must deduct stock exactly once")
	assert.Equal(t, 700.0, entry.Remaining)

	useMovements := 0
	for _, mv := range f.store.movements {
		if mv.Type == domain.MovementUse {
			useMovements++
		}
	}
	assert.Equal(t, 1, useMovements)

	require.Len(t, f.store.transactions, 1)
	assert.Equal(t, 160.0, f.store.transactions[0].Amount)

	assert.Len(t, f.publisher.eventsOfType(realtime.EventNewSale), 1,
		"new-sale announcement goes out once, not per attempt")
}

func TestAllocateStockMovesWarehouseToBooth(t *testing.T) {
	f := newServiceFixture(t)

	entry, err := f.service.AllocateStock(context.Background(), domain.AllocationRequest{
		BrandID: f.brandID, BoothID: f.boothID, IngredientID: f.ingredientID,
		Quantity: 500, ActorID: f.staffID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1500.0, entry.Allocated)
	assert.Equal(t, 1500.0, entry.Remaining)
	assert.Equal(t, 4500.0, f.store.ingredients[f.ingredientID].Stock)

	t.Run("rejects over-allocation", func(t *testing.T) {
		_, err := f.service.AllocateStock(context.Background(), domain.AllocationRequest{
			BrandID: f.brandID, BoothID: f.boothID, IngredientID: f.ingredientID,
			Quantity: 10000, ActorID: f.staffID,
		})
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.TypeValidation, appErr.Type)
	})
}

func TestPurchaseIngredientBooksExpense(t *testing.T) {
	f := newServiceFixture(t)

	ingredient, err := f.service.PurchaseIngredient(context.Background(), domain.PurchaseRequest{
		BrandID: f.brandID, IngredientID: f.ingredientID,
		Quantity: 2000, UnitCost: 0.05, ActorID: f.staffID,
	})
	require.NoError(t, err)
	assert.Equal(t, 7000.0, ingredient.Stock)

	require.Len(t, f.store.movements, 1)
	assert.Equal(t, domain.MovementPurchase, f.store.movements[0].Type)

	require.Len(t, f.store.transactions, 1)
	tx := f.store.transactions[0]
	assert.Equal(t, domain.TransactionExpense, tx.Type)
	assert.Equal(t, domain.CategoryStockPurchase, tx.Category)
	assert.InDelta(t, 100.0, tx.Amount, 0.001)
}

func TestMenuWritesBroadcastRefresh(t *testing.T) {
	f := newServiceFixture(t)

	item := &domain.MenuItem{BrandID: f.brandID, Name: "spring rolls", Price: 40, Available: true}
	require.NoError(t, f.service.CreateMenuItem(context.Background(), item))

	require.Len(t, f.publisher.menuEvents, 1)
	assert.Equal(t, realtime.EventMenuUpdate, f.publisher.menuEvents[0].Type)

	require.NoError(t, f.service.DeleteMenuItem(context.Background(), item.ID))
	assert.Len(t, f.publisher.menuEvents, 2)
}
