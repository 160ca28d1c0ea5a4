package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stallpoint/stallpulse/internal/domain"
)

// Event types carried over the generic realtime channel.
const (
	EventConnected     = "connected"
	EventStockUpdate   = "stock_update"
	EventNewSale       = "new_sale"
	EventLowStockAlert = "low_stock_alert"
	EventMenuUpdate    = "menu_update"
)

// Low-stock alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Event is an ephemeral realtime message. It is never persisted; it exists
// only on the wire between the broadcaster and connected streams.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Data      any        `json:"data"`
	Timestamp int64      `json:"timestamp"` // ms epoch
	BrandID   uuid.UUID  `json:"brandId"`
	BoothID   *uuid.UUID `json:"boothId,omitempty"`
}

// MenuEvent is the frame shape for the menu-specific channel.
type MenuEvent struct {
	Type      string     `json:"type"`
	BoothID   *uuid.UUID `json:"boothId,omitempty"`
	Data      any        `json:"data"`
	Timestamp int64      `json:"timestamp"`
}

// StockUpdateData describes one ingredient quantity change.
type StockUpdateData struct {
	IngredientID   uuid.UUID `json:"ingredientId"`
	IngredientName string    `json:"ingredientName"`
	BoothID        uuid.UUID `json:"boothId"`
	OldQuantity    float64   `json:"oldQuantity"`
	NewQuantity    float64   `json:"newQuantity"`
	Delta          float64   `json:"delta"`
}

// LowStockData describes an ingredient at or under its alert threshold.
type LowStockData struct {
	IngredientID   uuid.UUID `json:"ingredientId"`
	IngredientName string    `json:"ingredientName"`
	BoothID        uuid.UUID `json:"boothId"`
	CurrentStock   float64   `json:"currentStock"`
	MinimumStock   float64   `json:"minimumStock"`
	Severity       string    `json:"severity"`
}

// NewStockUpdateEvent builds a stock-update event for one ingredient.
func NewStockUpdateEvent(brandID, boothID uuid.UUID, data StockUpdateData, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      EventStockUpdate,
		Data:      data,
		Timestamp: at.UnixMilli(),
		BrandID:   brandID,
		BoothID:   &boothID,
	}
}

// NewSaleEvent builds a new-sale event carrying the full sale payload.
func NewSaleEvent(sale *domain.Sale, at time.Time) Event {
	boothID := sale.BoothID
	return Event{
		ID:        uuid.New(),
		Type:      EventNewSale,
		Data:      sale,
		Timestamp: at.UnixMilli(),
		BrandID:   sale.BrandID,
		BoothID:   &boothID,
	}
}

// NewLowStockAlert builds a low-stock alert. Severity is critical when the
// booth has nothing left, warning otherwise.
func NewLowStockAlert(brandID uuid.UUID, data LowStockData, at time.Time) Event {
	if data.CurrentStock == 0 {
		data.Severity = SeverityCritical
	} else {
		data.Severity = SeverityWarning
	}
	return Event{
		ID:        uuid.New(),
		Type:      EventLowStockAlert,
		Data:      data,
		Timestamp: at.UnixMilli(),
		BrandID:   brandID,
	}
}

// NewMenuUpdateEvent builds a menu-update event with the refreshed item list.
func NewMenuUpdateEvent(boothID *uuid.UUID, items []domain.MenuItem, at time.Time) MenuEvent {
	return MenuEvent{
		Type:      EventMenuUpdate,
		BoothID:   boothID,
		Data:      items,
		Timestamp: at.UnixMilli(),
	}
}

// EncodeFrame renders a payload as a text/event-stream data frame.
func EncodeFrame(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event frame: %w", err)
	}
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// heartbeatFrame renders a comment-only keepalive frame.
func heartbeatFrame(at time.Time) []byte {
	return []byte(fmt.Sprintf(": keepalive %d\n\n", at.UnixMilli()))
}
