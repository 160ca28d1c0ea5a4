// Package server wires the HTTP layer: routing, session auth, JSON
// handlers, and the event stream endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stallpoint/stallpulse/internal/config"
	"github.com/stallpoint/stallpulse/internal/domain"
	apperrors "github.com/stallpoint/stallpulse/internal/errors"
	"github.com/stallpoint/stallpulse/internal/realtime"
)

const (
	sessionName      = "auth-token"
	sessionKeyUserID = "user_id"
	sessionMaxAge    = 86400 * 7
)

// healthChecker reports readiness of a backing dependency.
type healthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	app          domain.AppService
	events       *realtime.Broadcaster
	menu         *realtime.Broadcaster
	sessionStore *sessions.CookieStore
	limits       *ConnectionLimits
	clock        clockwork.Clock
	db           healthChecker
	cache        healthChecker // nil without Redis
	startTime    time.Time
}

// NewServer assembles the echo instance. db and cache are used by the
// readiness probe; cache may be nil.
func NewServer(
	cfg *config.Config,
	app domain.AppService,
	events, menu *realtime.Broadcaster,
	clock clockwork.Clock,
	db, cache healthChecker,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		events:       events,
		menu:         menu,
		sessionStore: sessionStore,
		limits:       NewConnectionLimits(cfg.MaxStreamConnections, cfg.MaxClientsPerChannel, cfg.StreamRatePerSecond, cfg.StreamRateBurst),
		clock:        clock,
		db:           db,
		cache:        cache,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
