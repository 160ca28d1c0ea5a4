package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stallpoint/stallpulse/internal/domain"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth
	s.echo.POST("/api/auth/login", s.handleLogin)
	s.echo.POST("/api/auth/logout", s.handleLogout, s.requireAuth)
	s.echo.GET("/api/auth/me", s.handleMe, s.requireAuth)

	api := s.echo.Group("/api", s.requireAuth)

	adminOnly := s.requireRole(domain.RoleAdmin, domain.RoleSuperAdmin)
	superadminOnly := s.requireRole(domain.RoleSuperAdmin)

	// Tenants
	api.POST("/brands", s.handleCreateBrand, superadminOnly)
	api.GET("/brands", s.handleListBrands, superadminOnly)

	// Booths
	api.POST("/booths", s.handleCreateBooth, adminOnly)
	api.GET("/booths", s.handleListBooths)
	api.GET("/booths/:id", s.handleGetBooth)
	api.PUT("/booths/:id", s.handleUpdateBooth, adminOnly)
	api.DELETE("/booths/:id", s.handleDeleteBooth, adminOnly)
	api.GET("/booths/:id/stock", s.handleListBoothStock)
	api.POST("/booths/:id/stock/allocate", s.handleAllocateStock, adminOnly)
	api.GET("/booths/:id/menu", s.handleListBoothMenu)

	// Ingredients
	api.POST("/ingredients", s.handleCreateIngredient, adminOnly)
	api.GET("/ingredients", s.handleListIngredients)
	api.PUT("/ingredients/:id", s.handleUpdateIngredient, adminOnly)
	api.DELETE("/ingredients/:id", s.handleDeleteIngredient, adminOnly)
	api.POST("/ingredients/:id/purchase", s.handlePurchaseIngredient, adminOnly)

	// Menu
	api.POST("/menu", s.handleCreateMenuItem, adminOnly)
	api.GET("/menu", s.handleListMenu)
	api.PUT("/menu/:id", s.handleUpdateMenuItem, adminOnly)
	api.DELETE("/menu/:id", s.handleDeleteMenuItem, adminOnly)

	// Sales
	api.POST("/sales", s.handleCreateSale)
	api.GET("/sales", s.handleListSales)
	api.GET("/sales/:id", s.handleGetSale)
	api.PUT("/sales/:id", s.handleUpdateSale)
	api.DELETE("/sales/:id", s.handleDeleteSale, adminOnly)

	// Reports
	api.GET("/reports/sales-summary", s.handleSalesSummary, adminOnly)
	api.GET("/reports/low-stock", s.handleLowStockReport, adminOnly)

	// Event streams
	api.GET("/events/stream", s.handleEventStream)
	api.GET("/menu/stream", s.handleMenuStream)
}
