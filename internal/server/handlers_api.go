package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stallpoint/stallpulse/internal/domain"
	apperrors "github.com/stallpoint/stallpulse/internal/errors"
)

// mapDomainErr translates domain sentinels into structured errors so the
// error middleware renders the right status instead of a generic 500.
func mapDomainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.UnauthorizedError("invalid email or password")
	case errors.Is(err, domain.ErrBrandNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrBoothNotFound),
		errors.Is(err, domain.ErrIngredientNotFound),
		errors.Is(err, domain.ErrMenuItemNotFound),
		errors.Is(err, domain.ErrBoothStockNotFound),
		errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return apperrors.NotFoundError(err.Error())
	default:
		return err
	}
}

// brandScope resolves the tenant a request operates on. Superadmins select
// one with ?brandId=; everyone else is pinned to their own brand.
func brandScope(c echo.Context) (uuid.UUID, error) {
	user := currentUser(c)

	if user.Role == domain.RoleSuperAdmin {
		raw := c.QueryParam("brandId")
		if raw == "" {
			return uuid.Nil, apperrors.ValidationError("brandId query parameter is required")
		}
		brandID, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, apperrors.ValidationError("brandId must be a UUID")
		}
		return brandID, nil
	}

	if user.BrandID == nil {
		return uuid.Nil, apperrors.ForbiddenError("user has no brand")
	}
	return *user.BrandID, nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError(name + " must be a UUID")
	}
	return id, nil
}

// timeRange parses the optional from/to query parameters. Accepts RFC 3339
// or plain dates; defaults to the last 30 days.
func timeRange(c echo.Context, now time.Time) (time.Time, time.Time, error) {
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.ValidationError("from must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.ValidationError("to must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
		to = parsed
	}
	return from, to, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// --- Brands ---

type createBrandRequest struct {
	Name          string `json:"name"`
	AdminEmail    string `json:"adminEmail"`
	AdminPassword string `json:"adminPassword"`
}

func (s *Server) handleCreateBrand(c echo.Context) error {
	var req createBrandRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	brand, err := s.app.CreateBrand(c.Request().Context(), req.Name, req.AdminEmail, req.AdminPassword)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusCreated, brand)
}

func (s *Server) handleListBrands(c echo.Context) error {
	brands, err := s.app.ListBrands(c.Request().Context())
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, brands)
}

// --- Booths ---

type boothRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Active   *bool  `json:"active"`
}

func (s *Server) handleCreateBooth(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	var req boothRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	booth := &domain.Booth{
		BrandID:  brandID,
		Name:     req.Name,
		Location: req.Location,
		Active:   true,
	}
	if req.Active != nil {
		booth.Active = *req.Active
	}

	if err := s.app.CreateBooth(c.Request().Context(), booth); err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusCreated, booth)
}

func (s *Server) handleListBooths(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	booths, err := s.app.ListBooths(c.Request().Context(), brandID)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, booths)
}

func (s *Server) handleGetBooth(c echo.Context) error {
	booth, err := s.boothInScope(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, booth)
}

func (s *Server) handleUpdateBooth(c echo.Context) error {
	booth, err := s.boothInScope(c)
	if err != nil {
		return err
	}

	var req boothRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if req.Name != "" {
		booth.Name = req.Name
	}
	if req.Location != "" {
		booth.Location = req.Location
	}
	if req.Active != nil {
		booth.Active = *req.Active
	}

	if err := s.app.UpdateBooth(c.Request().Context(), booth); err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, booth)
}

func (s *Server) handleDeleteBooth(c echo.Context) error {
	booth, err := s.boothInScope(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteBooth(c.Request().Context(), booth.ID); err != nil {
		return mapDomainErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// boothInScope loads the booth from the path and verifies the caller's
// brand owns it. A cross-tenant id reads as not found, not forbidden.
func (s *Server) boothInScope(c echo.Context) (*domain.Booth, error) {
	boothID, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	brandID, err := brandScope(c)
	if err != nil {
		return nil, err
	}

	booth, err := s.app.GetBooth(c.Request().Context(), boothID)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	if booth.BrandID != brandID {
		return nil, apperrors.NotFoundError("booth not found")
	}
	return booth, nil
}

// --- Ingredients ---

type ingredientRequest struct {
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	CostPerUnit  *float64 `json:"costPerUnit"`
	Stock        *float64 `json:"stock"`
	MinimumStock *float64 `json:"minimumStock"`
}

func (s *Server) handleCreateIngredient(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	var req ingredientRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	ingredient := &domain.Ingredient{
		BrandID: brandID,
		Name:    req.Name,
		Unit:    req.Unit,
	}
	if req.CostPerUnit != nil {
		ingredient.CostPerUnit = *req.CostPerUnit
	}
	if req.Stock != nil {
		ingredient.Stock = *req.Stock
	}
	if req.MinimumStock != nil {
		ingredient.MinimumStock = *req.MinimumStock
	}

	if err := s.app.CreateIngredient(c.Request().Context(), ingredient); err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusCreated, ingredient)
}

func (s *Server) handleListIngredients(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	ingredients, err := s.app.ListIngredients(c.Request().Context(), brandID)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, ingredients)
}

func (s *Server) handleUpdateIngredient(c echo.Context) error {
	ingredient, err := s.ingredientInScope(c)
	if err != nil {
		return err
	}

	var req ingredientRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if req.Name != "" {
		ingredient.Name = req.Name
	}
	if req.Unit != "" {
		ingredient.Unit = req.Unit
	}
	if req.CostPerUnit != nil {
		ingredient.CostPerUnit = *req.CostPerUnit
	}
	if req.MinimumStock != nil {
		ingredient.MinimumStock = *req.MinimumStock
	}

	if err := s.app.UpdateIngredient(c.Request().Context(), ingredient); err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, ingredient)
}

func (s *Server) handleDeleteIngredient(c echo.Context) error {
	ingredient, err := s.ingredientInScope(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteIngredient(c.Request().Context(), ingredient.ID); err != nil {
		return mapDomainErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type purchaseRequest struct {
	Quantity float64 `json:"quantity"`
	UnitCost float64 `json:"unitCost"`
}

func (s *Server) handlePurchaseIngredient(c echo.Context) error {
	ingredient, err := s.ingredientInScope(c)
	if err != nil {
		return err
	}

	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	updated, err := s.app.PurchaseIngredient(c.Request().Context(), domain.PurchaseRequest{
		BrandID:      ingredient.BrandID,
		IngredientID: ingredient.ID,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		ActorID:      currentUser(c).ID,
	})
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) ingredientInScope(c echo.Context) (*domain.Ingredient, error) {
	ingredientID, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	brandID, err := brandScope(c)
	if err != nil {
		return nil, err
	}

	ingredient, err := s.app.GetIngredient(c.Request().Context(), ingredientID)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	if ingredient.BrandID != brandID {
		return nil, apperrors.NotFoundError("ingredient not found")
	}
	return ingredient, nil
}

// --- Booth stock ---

func (s *Server) handleListBoothStock(c echo.Context) error {
	booth, err := s.boothInScope(c)
	if err != nil {
		return err
	}

	stock, err := s.app.ListBoothStock(c.Request().Context(), booth.ID)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, stock)
}

type allocationRequest struct {
	IngredientID uuid.UUID `json:"ingredientId"`
	Quantity     float64   `json:"quantity"`
}

func (s *Server) handleAllocateStock(c echo.Context) error {
	booth, err := s.boothInScope(c)
	if err != nil {
		return err
	}

	var req allocationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	entry, err := s.app.AllocateStock(c.Request().Context(), domain.AllocationRequest{
		BrandID:      booth.BrandID,
		BoothID:      booth.ID,
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		ActorID:      currentUser(c).ID,
	})
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// --- Menu ---

type menuItemRequest struct {
	Name        string                      `json:"name"`
	Price       *float64                    `json:"price"`
	Available   *bool                       `json:"available"`
	BoothID     *uuid.UUID                  `json:"boothId"`
	Ingredients []domain.MenuItemIngredient `json:"ingredients"`
}

func (s *Server) handleCreateMenuItem(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	var req menuItemRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	item := &domain.MenuItem{
		BrandID:     brandID,
		BoothID:     req.BoothID,
		Name:        req.Name,
		Available:   true,
		Ingredients: req.Ingredients,
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := s.app.CreateMenuItem(c.Request().Context(), item); err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (s *Server) handleListMenu(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	items, err := s.app.ListMenu(c.Request().Context(), brandID)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleListBoothMenu(c echo.Context) error {
	booth, err := s.boothInScope(c)
	if err != nil {
		return err
	}

	items, err := s.app.ListBoothMenu(c.Request().Context(), booth.ID)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleUpdateMenuItem(c echo.Context) error {
	item, err := s.menuItemInScope(c)
	if err != nil {
		return err
	}

	var req menuItemRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Available != nil {
		item.Available = *req.Available
	}
	if req.BoothID != nil {
		item.BoothID = req.BoothID
	}
	if req.Ingredients != nil {
		item.Ingredients = req.Ingredients
	}

	if err := s.app.UpdateMenuItem(c.Request().Context(), item); err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleDeleteMenuItem(c echo.Context) error {
	item, err := s.menuItemInScope(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteMenuItem(c.Request().Context(), item.ID); err != nil {
		return mapDomainErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) menuItemInScope(c echo.Context) (*domain.MenuItem, error) {
	itemID, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	brandID, err := brandScope(c)
	if err != nil {
		return nil, err
	}

	item, err := s.app.GetMenuItem(c.Request().Context(), itemID)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	if item.BrandID != brandID {
		return nil, apperrors.NotFoundError("menu item not found")
	}
	return item, nil
}

// --- Sales ---

type createSaleRequest struct {
	BoothID       uuid.UUID              `json:"boothId"`
	Items         []domain.SaleItemInput `json:"items"`
	PaymentMethod string                 `json:"paymentMethod"`
}

func (s *Server) handleCreateSale(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	var req createSaleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	user := currentUser(c)
	boothID := req.BoothID
	// Staff sell from their own booth; the request cannot redirect them.
	if user.Role == domain.RoleStaff {
		if user.BoothID == nil {
			return apperrors.ForbiddenError("staff user has no booth assignment")
		}
		boothID = *user.BoothID
	}

	sale, err := s.app.CreateSale(c.Request().Context(), domain.CreateSaleRequest{
		BrandID:       brandID,
		BoothID:       boothID,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		ActorID:       user.ID,
	})
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusCreated, sale)
}

func (s *Server) handleGetSale(c echo.Context) error {
	sale, err := s.saleInScope(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sale)
}

func (s *Server) handleListSales(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	from, to, err := timeRange(c, s.clock.Now())
	if err != nil {
		return err
	}

	var boothID *uuid.UUID
	if raw := c.QueryParam("boothId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.ValidationError("boothId must be a UUID")
		}
		boothID = &id
	}

	user := currentUser(c)
	if user.Role == domain.RoleStaff {
		if user.BoothID == nil {
			return apperrors.ForbiddenError("staff user has no booth assignment")
		}
		boothID = user.BoothID
	}

	sales, err := s.app.ListSales(c.Request().Context(), brandID, boothID, from, to)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, sales)
}

type updateSaleRequest struct {
	Items         []domain.SaleItemInput `json:"items"`
	PaymentMethod string                 `json:"paymentMethod"`
}

func (s *Server) handleUpdateSale(c echo.Context) error {
	sale, err := s.saleInScope(c)
	if err != nil {
		return err
	}

	var req updateSaleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	updated, err := s.app.UpdateSale(c.Request().Context(), domain.UpdateSaleRequest{
		SaleID:        sale.ID,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		ActorID:       currentUser(c).ID,
	})
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteSale(c echo.Context) error {
	sale, err := s.saleInScope(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteSale(c.Request().Context(), sale.ID, currentUser(c).ID); err != nil {
		return mapDomainErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) saleInScope(c echo.Context) (*domain.Sale, error) {
	saleID, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	brandID, err := brandScope(c)
	if err != nil {
		return nil, err
	}

	sale, err := s.app.GetSale(c.Request().Context(), saleID)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	if sale.BrandID != brandID {
		return nil, apperrors.NotFoundError("sale not found")
	}

	user := currentUser(c)
	if user.Role == domain.RoleStaff && (user.BoothID == nil || sale.BoothID != *user.BoothID) {
		return nil, apperrors.NotFoundError("sale not found")
	}
	return sale, nil
}

// --- Reports ---

func (s *Server) handleSalesSummary(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	from, to, err := timeRange(c, s.clock.Now())
	if err != nil {
		return err
	}

	summary, err := s.app.SalesSummary(c.Request().Context(), brandID, from, to)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleLowStockReport(c echo.Context) error {
	brandID, err := brandScope(c)
	if err != nil {
		return err
	}

	report, err := s.app.LowStockReport(c.Request().Context(), brandID)
	if err != nil {
		return mapDomainErr(err)
	}
	return c.JSON(http.StatusOK, report)
}
