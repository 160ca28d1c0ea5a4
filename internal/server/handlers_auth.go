package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stallpoint/stallpulse/internal/domain"
	apperrors "github.com/stallpoint/stallpulse/internal/errors"
)

const (
	ctxKeyUser   = "user"
	ctxKeyUserID = "userID"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID      uuid.UUID  `json:"id"`
	Email   string     `json:"email"`
	Role    string     `json:"role"`
	BrandID *uuid.UUID `json:"brandId,omitempty"`
	BoothID *uuid.UUID `json:"boothId,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Email:   u.Email,
		Role:    u.Role,
		BrandID: u.BrandID,
		BoothID: u.BoothID,
	}
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}

	user, err := s.app.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapDomainErr(err)
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		// Corrupt or stale cookie: start over with a fresh session.
		slog.Warn("Failed to decode session, issuing a new one", "error", err)
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.InternalError("failed to create session", err)
		}
	}
	session.Values[sessionKeyUserID] = user.ID.String()
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) handleLogout(c echo.Context) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.InternalError("failed to create session", err)
		}
	}
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to clear session", err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMe(c echo.Context) error {
	user := currentUser(c)
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// requireAuth resolves the session cookie to a user and stashes it in the
// echo context. API clients get a JSON 401 rather than a redirect.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.sessionUser(c)
		if err != nil {
			return err
		}

		c.Set(ctxKeyUser, user)
		c.Set(ctxKeyUserID, user.ID)
		return next(c)
	}
}

// requireRole gates a route to the listed roles. Must run after requireAuth.
func (s *Server) requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := currentUser(c)
			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
			}
			return apperrors.ForbiddenError("insufficient role")
		}
	}
}

func (s *Server) sessionUser(c echo.Context) (*domain.User, error) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return nil, apperrors.UnauthorizedError("authentication required")
	}

	raw, ok := session.Values[sessionKeyUserID].(string)
	if !ok {
		return nil, apperrors.UnauthorizedError("authentication required")
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.UnauthorizedError("authentication required")
	}

	user, err := s.app.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return nil, apperrors.UnauthorizedError("authentication required")
	}
	return user, nil
}

func currentUser(c echo.Context) *domain.User {
	user, _ := c.Get(ctxKeyUser).(*domain.User)
	return user
}
