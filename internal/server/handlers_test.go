package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/stallpoint/stallpulse/internal/config"
	"github.com/stallpoint/stallpulse/internal/domain"
	"github.com/stallpoint/stallpulse/internal/realtime"
)

// stubApp implements domain.AppService with overridable function fields.
// Unset methods return zero values.
type stubApp struct {
	authenticateFn  func(ctx context.Context, email, password string) (*domain.User, error)
	getUserByIDFn   func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getBoothFn      func(ctx context.Context, id uuid.UUID) (*domain.Booth, error)
	listBoothsFn    func(ctx context.Context, brandID uuid.UUID) ([]domain.Booth, error)
	createSaleFn    func(ctx context.Context, req domain.CreateSaleRequest) (*domain.Sale, error)
	getSaleFn       func(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	listSalesFn     func(ctx context.Context, brandID uuid.UUID, boothID *uuid.UUID, from, to time.Time) ([]domain.Sale, error)
	getIngredientFn func(ctx context.Context, id uuid.UUID) (*domain.Ingredient, error)
}

func (a *stubApp) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if a.authenticateFn != nil {
		return a.authenticateFn(ctx, email, password)
	}
	return nil, domain.ErrInvalidCredentials
}

func (a *stubApp) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if a.getUserByIDFn != nil {
		return a.getUserByIDFn(ctx, id)
	}
	return nil, domain.ErrUserNotFound
}

func (a *stubApp) CreateBrand(ctx context.Context, name, adminEmail, adminPassword string) (*domain.Brand, error) {
	return &domain.Brand{ID: uuid.New(), Name: name}, nil
}

func (a *stubApp) ListBrands(ctx context.Context) ([]domain.Brand, error) { return nil, nil }

func (a *stubApp) CreateBooth(ctx context.Context, booth *domain.Booth) error {
	booth.ID = uuid.New()
	return nil
}

func (a *stubApp) GetBooth(ctx context.Context, id uuid.UUID) (*domain.Booth, error) {
	if a.getBoothFn != nil {
		return a.getBoothFn(ctx, id)
	}
	return nil, domain.ErrBoothNotFound
}

func (a *stubApp) ListBooths(ctx context.Context, brandID uuid.UUID) ([]domain.Booth, error) {
	if a.listBoothsFn != nil {
		return a.listBoothsFn(ctx, brandID)
	}
	return nil, nil
}

func (a *stubApp) UpdateBooth(ctx context.Context, booth *domain.Booth) error { return nil }
func (a *stubApp) DeleteBooth(ctx context.Context, id uuid.UUID) error        { return nil }

func (a *stubApp) CreateIngredient(ctx context.Context, ingredient *domain.Ingredient) error {
	ingredient.ID = uuid.New()
	return nil
}

func (a *stubApp) GetIngredient(ctx context.Context, id uuid.UUID) (*domain.Ingredient, error) {
	if a.getIngredientFn != nil {
		return a.getIngredientFn(ctx, id)
	}
	return nil, domain.ErrIngredientNotFound
}

func (a *stubApp) ListIngredients(ctx context.Context, brandID uuid.UUID) ([]domain.Ingredient, error) {
	return nil, nil
}

func (a *stubApp) UpdateIngredient(ctx context.Context, ingredient *domain.Ingredient) error {
	return nil
}
func (a *stubApp) DeleteIngredient(ctx context.Context, id uuid.UUID) error { return nil }

func (a *stubApp) PurchaseIngredient(ctx context.Context, req domain.PurchaseRequest) (*domain.Ingredient, error) {
	return &domain.Ingredient{ID: req.IngredientID, BrandID: req.BrandID}, nil
}

func (a *stubApp) ListBoothStock(ctx context.Context, boothID uuid.UUID) ([]domain.BoothStock, error) {
	return nil, nil
}

func (a *stubApp) AllocateStock(ctx context.Context, req domain.AllocationRequest) (*domain.BoothStock, error) {
	return &domain.BoothStock{BoothID: req.BoothID, IngredientID: req.IngredientID, Allocated: req.Quantity, Remaining: req.Quantity}, nil
}

func (a *stubApp) CreateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	item.ID = uuid.New()
	return nil
}

func (a *stubApp) GetMenuItem(ctx context.Context, id uuid.UUID) (*domain.MenuItem, error) {
	return nil, domain.ErrMenuItemNotFound
}

func (a *stubApp) ListMenu(ctx context.Context, brandID uuid.UUID) ([]domain.MenuItem, error) {
	return nil, nil
}

func (a *stubApp) ListBoothMenu(ctx context.Context, boothID uuid.UUID) ([]domain.MenuItem, error) {
	return nil, nil
}

func (a *stubApp) UpdateMenuItem(ctx context.Context, item *domain.MenuItem) error { return nil }
func (a *stubApp) DeleteMenuItem(ctx context.Context, id uuid.UUID) error          { return nil }

func (a *stubApp) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (*domain.Sale, error) {
	if a.createSaleFn != nil {
		return a.createSaleFn(ctx, req)
	}
	return &domain.Sale{ID: uuid.New(), BrandID: req.BrandID, BoothID: req.BoothID}, nil
}

func (a *stubApp) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	if a.getSaleFn != nil {
		return a.getSaleFn(ctx, id)
	}
	return nil, domain.ErrSaleNotFound
}

func (a *stubApp) ListSales(ctx context.Context, brandID uuid.UUID, boothID *uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
	if a.listSalesFn != nil {
		return a.listSalesFn(ctx, brandID, boothID, from, to)
	}
	return nil, nil
}

func (a *stubApp) UpdateSale(ctx context.Context, req domain.UpdateSaleRequest) (*domain.Sale, error) {
	return &domain.Sale{ID: req.SaleID}, nil
}

func (a *stubApp) DeleteSale(ctx context.Context, saleID, actorID uuid.UUID) error { return nil }

func (a *stubApp) SalesSummary(ctx context.Context, brandID uuid.UUID, from, to time.Time) ([]domain.BoothSalesSummary, error) {
	return nil, nil
}

func (a *stubApp) LowStockReport(ctx context.Context, brandID uuid.UUID) ([]domain.LowStockEntry, error) {
	return nil, nil
}

// --- Test server plumbing ---

type testServer struct {
	srv    *Server
	app    *stubApp
	events *realtime.Broadcaster
	menu   *realtime.Broadcaster
}

func newTestServer(t *testing.T, app *stubApp) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppEnv:               "test",
		Port:                 "0",
		SessionSecret:        "test-secret",
		HeartbeatInterval:    time.Minute,
		MaxClientsPerChannel: 10,
		MaxStreamConnections: 100,
		StreamRatePerSecond:  1000,
		StreamRateBurst:      1000,
	}

	clock := clockwork.NewFakeClock()
	events := realtime.NewBroadcaster(clock, cfg.MaxClientsPerChannel)
	menu := realtime.NewBroadcaster(clock, cfg.MaxClientsPerChannel)
	t.Cleanup(func() {
		events.Stop()
		menu.Stop()
	})

	srv := NewServer(cfg, app, events, menu, clock, pingOK{}, nil)
	return &testServer{srv: srv, app: app, events: events, menu: menu}
}

type pingOK struct{}

func (pingOK) Ping(ctx context.Context) error { return nil }

// loginAs obtains a session cookie for the given user by driving the real
// login handler against a stub Authenticate.
func (ts *testServer) loginAs(t *testing.T, user *domain.User) []*http.Cookie {
	t.Helper()

	ts.app.authenticateFn = func(ctx context.Context, email, password string) (*domain.User, error) {
		return user, nil
	}
	ts.app.getUserByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
		if id == user.ID {
			return user, nil
		}
		return nil, domain.ErrUserNotFound
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(`{"email":"u@example.com","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (ts *testServer) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.srv.echo.ServeHTTP(rec, req)
	return rec
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func staffUser(brandID, boothID uuid.UUID) *domain.User {
	return &domain.User{ID: uuid.New(), BrandID: &brandID, BoothID: &boothID, Email: "staff@example.com", Role: domain.RoleStaff}
}

func adminUser(brandID uuid.UUID) *domain.User {
	return &domain.User{ID: uuid.New(), BrandID: &brandID, Email: "admin@example.com", Role: domain.RoleAdmin}
}
