package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallpoint/stallpulse/internal/domain"
)

func TestCreateSale_StaffPinnedToOwnBooth(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	brandID := uuid.New()
	ownBooth := uuid.New()
	otherBooth := uuid.New()
	cookies := ts.loginAs(t, staffUser(brandID, ownBooth))

	var captured domain.CreateSaleRequest
	ts.app.createSaleFn = func(ctx context.Context, req domain.CreateSaleRequest) (*domain.Sale, error) {
		captured = req
		return &domain.Sale{ID: uuid.New(), BrandID: req.BrandID, BoothID: req.BoothID}, nil
	}

	body := `{"boothId":"` + otherBooth.String() + `","items":[{"menuItemId":"` + uuid.NewString() + `","quantity":1}],"paymentMethod":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req, cookies)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ownBooth, captured.BoothID, "staff request must not redirect to another booth")
	assert.Equal(t, brandID, captured.BrandID)
}

func TestListSales_StaffSeesOnlyOwnBooth(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	brandID := uuid.New()
	ownBooth := uuid.New()
	cookies := ts.loginAs(t, staffUser(brandID, ownBooth))

	var capturedBooth *uuid.UUID
	ts.app.listSalesFn = func(ctx context.Context, gotBrand uuid.UUID, boothID *uuid.UUID, from, to time.Time) ([]domain.Sale, error) {
		capturedBooth = boothID
		return nil, nil
	}

	// The query asks for another booth; the scope overrides it.
	req := httptest.NewRequest(http.MethodGet, "/api/sales?boothId="+uuid.NewString(), nil)
	rec := ts.do(req, cookies)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedBooth)
	assert.Equal(t, ownBooth, *capturedBooth)
}

func TestGetBooth_CrossBrandReadsAsNotFound(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	brandID := uuid.New()
	cookies := ts.loginAs(t, adminUser(brandID))

	foreignBooth := &domain.Booth{ID: uuid.New(), BrandID: uuid.New(), Name: "Foreign"}
	ts.app.getBoothFn = func(ctx context.Context, id uuid.UUID) (*domain.Booth, error) {
		return foreignBooth, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/booths/"+foreignBooth.ID.String(), nil)
	rec := ts.do(req, cookies)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBrandScope_SuperadminRequiresBrandID(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	superadmin := &domain.User{ID: uuid.New(), Email: "root@example.com", Role: domain.RoleSuperAdmin}
	cookies := ts.loginAs(t, superadmin)

	req := httptest.NewRequest(http.MethodGet, "/api/booths", nil)
	rec := ts.do(req, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var listed *uuid.UUID
	ts.app.listBoothsFn = func(ctx context.Context, brandID uuid.UUID) ([]domain.Booth, error) {
		listed = &brandID
		return nil, nil
	}

	brandID := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/api/booths?brandId="+brandID.String(), nil)
	rec = ts.do(req, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, listed)
	assert.Equal(t, brandID, *listed)
}

func TestListSales_InvalidTimeRange(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	cookies := ts.loginAs(t, adminUser(uuid.New()))

	req := httptest.NewRequest(http.MethodGet, "/api/sales?from=yesterday", nil)
	rec := ts.do(req, cookies)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseIngredient_ScopedAndForwarded(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	brandID := uuid.New()
	cookies := ts.loginAs(t, adminUser(brandID))

	ingredient := &domain.Ingredient{ID: uuid.New(), BrandID: brandID, Name: "rice noodles", Unit: "g"}
	ts.app.getIngredientFn = func(ctx context.Context, id uuid.UUID) (*domain.Ingredient, error) {
		if id == ingredient.ID {
			return ingredient, nil
		}
		return nil, domain.ErrIngredientNotFound
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingredients/"+ingredient.ID.String()+"/purchase", jsonBody(`{"quantity":500,"unitCost":0.2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req, cookies)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Ingredient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ingredient.ID, got.ID)
}

func TestDeleteSale_StaffForbidden(t *testing.T) {
	ts := newTestServer(t, &stubApp{})
	brandID := uuid.New()
	boothID := uuid.New()
	cookies := ts.loginAs(t, staffUser(brandID, boothID))

	req := httptest.NewRequest(http.MethodDelete, "/api/sales/"+uuid.NewString(), nil)
	rec := ts.do(req, cookies)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
