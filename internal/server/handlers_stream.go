package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stallpoint/stallpulse/internal/domain"
	apperrors "github.com/stallpoint/stallpulse/internal/errors"
	"github.com/stallpoint/stallpulse/internal/metrics"
	"github.com/stallpoint/stallpulse/internal/realtime"
)

const outcomeAccepted = "accepted"

func (s *Server) handleEventStream(c echo.Context) error {
	return s.serveStream(c, s.events, false)
}

func (s *Server) handleMenuStream(c echo.Context) error {
	return s.serveStream(c, s.menu, true)
}

// serveStream runs one SSE connection against a broadcaster. The handler
// blocks until the client disconnects, the writer dies, or the server
// shuts down. Only the menu stream reports the client id in its connected
// frame.
func (s *Server) serveStream(c echo.Context, broadcaster *realtime.Broadcaster, withClientID bool) error {
	channel, err := s.streamChannel(c)
	if err != nil {
		return err
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.StreamConnectionsTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("Stream connection rejected", "reason", reason, "ip", ip)
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"error":  "too many connections",
			"reason": string(reason),
		})
	}
	defer s.limits.Release(ip)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering, which would hold frames back indefinitely.
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	client := realtime.NewClient(resp, resp, s.clock, s.config.HeartbeatInterval)

	// The connected frame goes through the writer goroutine like every
	// other frame, queued before registration so the client sees it even
	// if the channel is at capacity a moment later.
	if err := s.sendConnectedFrame(client, channel, withClientID); err != nil {
		client.Stop()
		return nil
	}

	// Headers are already committed; rejection here can only close the stream.
	if err := broadcaster.Register(channel, client); err != nil {
		metrics.StreamConnectionsTotal.WithLabelValues("channel_full").Inc()
		slog.Warn("Stream rejected at registration", "channel", channel.String(), "error", err)
		client.Stop()
		return nil
	}

	metrics.StreamConnectionsTotal.WithLabelValues(outcomeAccepted).Inc()
	metrics.StreamConnectionsCurrent.Inc()
	defer metrics.StreamConnectionsCurrent.Dec()

	slog.Debug("Stream connected", "channel", channel.String(), "client_id", client.ID())

	select {
	case <-c.Request().Context().Done():
	case <-client.Done():
	}

	broadcaster.Unregister(channel, client)
	client.Stop()
	return nil
}

// streamChannel resolves which channel the caller may subscribe to, from
// boothId, then brandId, then the caller's own brand. A brand or booth the
// caller does not belong to is a 403, never a silently different stream.
func (s *Server) streamChannel(c echo.Context) (realtime.Channel, error) {
	user := currentUser(c)

	var brandID uuid.UUID
	if user.Role == domain.RoleSuperAdmin {
		raw := c.QueryParam("brandId")
		if raw == "" {
			return realtime.Channel{}, apperrors.ValidationError("brandId query parameter is required")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return realtime.Channel{}, apperrors.ValidationError("brandId must be a UUID")
		}
		brandID = id
	} else {
		if user.BrandID == nil {
			return realtime.Channel{}, apperrors.ForbiddenError("user has no brand")
		}
		brandID = *user.BrandID
		if raw := c.QueryParam("brandId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return realtime.Channel{}, apperrors.ValidationError("brandId must be a UUID")
			}
			if id != brandID {
				return realtime.Channel{}, apperrors.ForbiddenError("brand mismatch")
			}
		}
	}

	if user.Role == domain.RoleStaff {
		if user.BoothID == nil {
			return realtime.Channel{}, apperrors.ForbiddenError("staff user has no booth assignment")
		}
		if raw := c.QueryParam("boothId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return realtime.Channel{}, apperrors.ValidationError("boothId must be a UUID")
			}
			if id != *user.BoothID {
				return realtime.Channel{}, apperrors.ForbiddenError("booth mismatch")
			}
		}
		return realtime.BoothChannel(brandID, *user.BoothID), nil
	}

	if raw := c.QueryParam("boothId"); raw != "" {
		boothID, err := uuid.Parse(raw)
		if err != nil {
			return realtime.Channel{}, apperrors.ValidationError("boothId must be a UUID")
		}
		return realtime.BoothChannel(brandID, boothID), nil
	}
	return realtime.BrandChannel(brandID), nil
}

func (s *Server) sendConnectedFrame(client *realtime.Client, channel realtime.Channel, withClientID bool) error {
	ev := realtime.Event{
		ID:        uuid.New(),
		Type:      realtime.EventConnected,
		BrandID:   channel.BrandID,
		Timestamp: s.clock.Now().UnixMilli(),
	}
	if withClientID {
		ev.Data = map[string]string{"clientId": client.ID().String()}
	}
	if channel.BoothID != uuid.Nil {
		boothID := channel.BoothID
		ev.BoothID = &boothID
	}

	frame, err := realtime.EncodeFrame(ev)
	if err != nil {
		return err
	}
	if !client.Send(frame) {
		return fmt.Errorf("client writer is not running")
	}
	return nil
}
