// Package reconcile keeps stock, movement, and accounting records in
// sync with sales. A sale write succeeds on its own; reconciliation runs
// afterwards as background work, so bookkeeping failures never fail the
// sale itself. Each trigger produces a Run that can be retried: repeated
// invocations skip the steps an earlier attempt already applied.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/stallpoint/stallpulse/internal/domain"
	"github.com/stallpoint/stallpulse/internal/logging"
	"github.com/stallpoint/stallpulse/internal/metrics"
	"github.com/stallpoint/stallpulse/internal/realtime"
)

// Reconciliation triggers, used as metric labels.
const (
	TriggerSaleCreated = "sale_created"
	TriggerSaleEdited  = "sale_edited"
	TriggerSaleDeleted = "sale_deleted"
)

// lowStockFraction is the share of a booth's allocation under which the
// remaining quantity counts as low, unless the ingredient's configured
// minimum is higher.
const lowStockFraction = 0.2

// Reconciler applies the stock and accounting side effects of sale
// writes. Runs for the same booth are serialized through a keyed mutex;
// different booths reconcile concurrently.
type Reconciler struct {
	ingredients domain.IngredientRepository
	boothStock  domain.BoothStockRepository
	menu        domain.MenuRepository
	movements   domain.StockMovementRepository
	accounting  domain.AccountingRepository
	publisher   realtime.Publisher
	locks       *KeyedMutex
	clock       clockwork.Clock
}

func New(
	ingredients domain.IngredientRepository,
	boothStock domain.BoothStockRepository,
	menu domain.MenuRepository,
	movements domain.StockMovementRepository,
	accounting domain.AccountingRepository,
	publisher realtime.Publisher,
	clock clockwork.Clock,
) *Reconciler {
	return &Reconciler{
		ingredients: ingredients,
		boothStock:  boothStock,
		menu:        menu,
		movements:   movements,
		accounting:  accounting,
		publisher:   publisher,
		locks:       NewKeyedMutex(),
		clock:       clock,
	}
}

// SaleCreated deducts booth stock for every ingredient the sale consumed,
// writes use movements, records the income transaction, and broadcasts
// the stock events.
func (r *Reconciler) SaleCreated(sale *domain.Sale) Run {
	prog := newProgress()
	return func(ctx context.Context) Outcome {
		return r.run(ctx, TriggerSaleCreated, sale.BoothID, func(ctx context.Context) Outcome {
			usage, out := r.expandUsage(ctx, sale.Items)
			if out.Failed() {
				return out
			}

			for ingredientID, quantity := range usage {
				if out := r.consumeBoothStock(ctx, prog, sale, ingredientID, quantity); out.Failed() {
					return out
				}
			}

			return prog.step("revenue", func() Outcome {
				tx := &domain.AccountingTransaction{
					ID:          uuid.New(),
					BrandID:     sale.BrandID,
					Type:        domain.TransactionIncome,
					Category:    domain.CategorySaleRevenue,
					Amount:      sale.Total,
					Description: fmt.Sprintf("Revenue from sale %s", sale.ID),
					RelatedID:   sale.ID,
					RelatedType: domain.RelatedTypeSale,
					CreatedAt:   r.clock.Now(),
				}
				if err := r.accounting.Create(ctx, tx); err != nil {
					return Retryable(fmt.Errorf("failed to record sale revenue: %w", err))
				}
				return OK()
			})
		})
	}
}

// SaleEdited applies the net ingredient difference between the sale's
// previous items and its current ones. Central stock absorbs the
// difference, booth stock moves the opposite way, a single consolidated
// adjustment movement is written per changed ingredient, and the linked
// income transaction is updated to the new total.
func (r *Reconciler) SaleEdited(sale *domain.Sale, previousItems []domain.SaleItem) Run {
	prog := newProgress()
	return func(ctx context.Context) Outcome {
		return r.run(ctx, TriggerSaleEdited, sale.BoothID, func(ctx context.Context) Outcome {
			oldUsage, out := r.expandUsage(ctx, previousItems)
			if out.Failed() {
				return out
			}
			newUsage, out := r.expandUsage(ctx, sale.Items)
			if out.Failed() {
				return out
			}

			// Positive change means the edit released stock, negative means
			// it consumed more.
			change := make(map[uuid.UUID]float64, len(oldUsage)+len(newUsage))
			for id, qty := range oldUsage {
				change[id] += qty
			}
			for id, qty := range newUsage {
				change[id] -= qty
			}

			for ingredientID, delta := range change {
				if delta == 0 {
					continue
				}
				if out := r.applyEditDelta(ctx, prog, sale, ingredientID, delta); out.Failed() {
					return out
				}
			}

			return r.syncSaleTransaction(ctx, sale)
		})
	}
}

// SaleDeleted reverses the sale completely: ingredients return to central
// stock, booth usage is rolled back, a restoration movement is written
// per ingredient, and the sale's transactions and movements are removed.
func (r *Reconciler) SaleDeleted(sale *domain.Sale) Run {
	prog := newProgress()
	return func(ctx context.Context) Outcome {
		return r.run(ctx, TriggerSaleDeleted, sale.BoothID, func(ctx context.Context) Outcome {
			usage, out := r.expandUsage(ctx, sale.Items)
			if out.Failed() {
				return out
			}

			for ingredientID, quantity := range usage {
				if out := r.restoreStock(ctx, prog, sale, ingredientID, quantity); out.Failed() {
					return out
				}
			}

			// The purges delete by sale id, so re-running them is harmless.
			if err := r.accounting.DeleteByRelated(ctx, sale.ID, domain.RelatedTypeSale); err != nil {
				return Retryable(fmt.Errorf("failed to delete sale transactions: %w", err))
			}
			if err := r.movements.DeleteBySale(ctx, sale.ID); err != nil {
				return Retryable(fmt.Errorf("failed to delete sale movements: %w", err))
			}

			return OK()
		})
	}
}

func (r *Reconciler) run(ctx context.Context, trigger string, boothID uuid.UUID, fn func(context.Context) Outcome) Outcome {
	start := r.clock.Now()

	unlock := r.locks.Lock(boothID)
	defer unlock()

	out := fn(ctx)

	metrics.ReconciliationDuration.Observe(r.clock.Since(start).Seconds())
	metrics.ReconciliationsTotal.WithLabelValues(trigger, string(out.Status)).Inc()

	logger := logging.WithBooth(boothID.String())
	if out.Failed() {
		logger.Error("Reconciliation failed",
			"trigger", trigger,
			"status", out.Status,
			"error", out.Err)
	} else {
		logger.Debug("Reconciliation complete", "trigger", trigger)
	}
	return out
}

// expandUsage resolves sale items to total ingredient quantities. Items
// sharing an ingredient accumulate into one entry.
func (r *Reconciler) expandUsage(ctx context.Context, items []domain.SaleItem) (map[uuid.UUID]float64, Outcome) {
	usage := make(map[uuid.UUID]float64)
	for _, item := range items {
		menuItem, err := r.menu.GetByID(ctx, item.MenuItemID)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to resolve menu item %s: %w", item.MenuItemID, err))
		}
		for _, mi := range menuItem.Ingredients {
			usage[mi.IngredientID] += mi.Quantity * float64(item.Quantity)
		}
	}
	return usage, OK()
}

// consumeBoothStock deducts quantity from the booth's allocation of one
// ingredient and records the use movement. A booth with no allocation for
// the ingredient is skipped: there is nothing to deduct from, and failing
// the whole run would block the accounting entry behind it.
func (r *Reconciler) consumeBoothStock(ctx context.Context, prog *progress, sale *domain.Sale, ingredientID uuid.UUID, quantity float64) Outcome {
	ingredient, err := r.ingredients.GetByID(ctx, ingredientID)
	if err != nil {
		return classify(fmt.Errorf("failed to load ingredient %s: %w", ingredientID, err))
	}

	entry, err := r.boothStock.Get(ctx, sale.BoothID, ingredientID)
	if errors.Is(err, domain.ErrBoothStockNotFound) {
		slog.Warn("Sale consumed an ingredient with no booth allocation",
			"sale_id", sale.ID,
			"booth_id", sale.BoothID,
			"ingredient_id", ingredientID)
		return OK()
	}
	if err != nil {
		return Retryable(fmt.Errorf("failed to load booth stock: %w", err))
	}

	if out := prog.step("deduct:"+ingredientID.String(), func() Outcome {
		oldRemaining := entry.Remaining
		entry.Used += quantity
		entry.Clamp()
		entry.UpdatedAt = r.clock.Now()
		if err := r.boothStock.Upsert(ctx, entry); err != nil {
			return Retryable(fmt.Errorf("failed to update booth stock: %w", err))
		}
		r.publishStockUpdate(ctx, sale.BrandID, sale.BoothID, ingredient, oldRemaining, entry.Remaining)
		r.checkLowStock(ctx, sale.BrandID, sale.BoothID, ingredient, entry)
		return OK()
	}); out.Failed() {
		return out
	}

	return prog.step("use:"+ingredientID.String(), func() Outcome {
		boothID := sale.BoothID
		saleID := sale.ID
		movement := &domain.StockMovement{
			ID:           uuid.New(),
			BrandID:      sale.BrandID,
			IngredientID: ingredientID,
			BoothID:      &boothID,
			SaleID:       &saleID,
			Type:         domain.MovementUse,
			Quantity:     -quantity,
			Note:         fmt.Sprintf("Used by sale %s", sale.ID),
			CreatedBy:    sale.CreatedBy,
			CreatedAt:    r.clock.Now(),
		}
		if err := r.movements.Create(ctx, movement); err != nil {
			return Retryable(fmt.Errorf("failed to record use movement: %w", err))
		}
		return OK()
	})
}

// applyEditDelta moves the net difference for one ingredient between the
// central warehouse and the booth. delta > 0 returns stock to the
// warehouse, delta < 0 draws more from it.
func (r *Reconciler) applyEditDelta(ctx context.Context, prog *progress, sale *domain.Sale, ingredientID uuid.UUID, delta float64) Outcome {
	ingredient, err := r.ingredients.GetByID(ctx, ingredientID)
	if err != nil {
		return classify(fmt.Errorf("failed to load ingredient %s: %w", ingredientID, err))
	}

	if out := prog.step("central:"+ingredientID.String(), func() Outcome {
		if _, err := r.ingredients.AdjustStock(ctx, ingredientID, delta); err != nil {
			return Retryable(fmt.Errorf("failed to adjust central stock: %w", err))
		}
		return OK()
	}); out.Failed() {
		return out
	}

	if out := prog.step("adjustment:"+ingredientID.String(), func() Outcome {
		boothID := sale.BoothID
		saleID := sale.ID
		movement := &domain.StockMovement{
			ID:           uuid.New(),
			BrandID:      sale.BrandID,
			IngredientID: ingredientID,
			BoothID:      &boothID,
			SaleID:       &saleID,
			Type:         domain.MovementAdjustment,
			Quantity:     delta,
			Note:         fmt.Sprintf("Adjustment from editing sale %s", sale.ID),
			CreatedBy:    sale.CreatedBy,
			CreatedAt:    r.clock.Now(),
		}
		if err := r.movements.Create(ctx, movement); err != nil {
			return Retryable(fmt.Errorf("failed to record adjustment movement: %w", err))
		}
		return OK()
	}); out.Failed() {
		return out
	}

	entry, err := r.boothStock.Get(ctx, sale.BoothID, ingredientID)
	if errors.Is(err, domain.ErrBoothStockNotFound) {
		return OK()
	}
	if err != nil {
		return Retryable(fmt.Errorf("failed to load booth stock: %w", err))
	}

	return prog.step("booth:"+ingredientID.String(), func() Outcome {
		oldRemaining := entry.Remaining
		entry.Used -= delta
		entry.Clamp()
		entry.UpdatedAt = r.clock.Now()
		if err := r.boothStock.Upsert(ctx, entry); err != nil {
			return Retryable(fmt.Errorf("failed to update booth stock: %w", err))
		}

		r.publishStockUpdate(ctx, sale.BrandID, sale.BoothID, ingredient, oldRemaining, entry.Remaining)
		if delta < 0 {
			r.checkLowStock(ctx, sale.BrandID, sale.BoothID, ingredient, entry)
		}
		return OK()
	})
}

// restoreStock returns one ingredient's full sale quantity to the
// warehouse and rolls back the booth's usage. The restoration movement
// is deliberately not tagged with the sale id so the later purge of
// sale-tagged movements leaves it in place.
func (r *Reconciler) restoreStock(ctx context.Context, prog *progress, sale *domain.Sale, ingredientID uuid.UUID, quantity float64) Outcome {
	ingredient, err := r.ingredients.GetByID(ctx, ingredientID)
	if err != nil {
		return classify(fmt.Errorf("failed to load ingredient %s: %w", ingredientID, err))
	}

	if out := prog.step("central:"+ingredientID.String(), func() Outcome {
		if _, err := r.ingredients.AdjustStock(ctx, ingredientID, quantity); err != nil {
			return Retryable(fmt.Errorf("failed to restore central stock: %w", err))
		}
		return OK()
	}); out.Failed() {
		return out
	}

	if out := prog.step("restore:"+ingredientID.String(), func() Outcome {
		boothID := sale.BoothID
		movement := &domain.StockMovement{
			ID:           uuid.New(),
			BrandID:      sale.BrandID,
			IngredientID: ingredientID,
			BoothID:      &boothID,
			Type:         domain.MovementAdjustment,
			Quantity:     quantity,
			Note:         fmt.Sprintf("Restored after deleting sale %s", sale.ID),
			CreatedBy:    sale.CreatedBy,
			CreatedAt:    r.clock.Now(),
		}
		if err := r.movements.Create(ctx, movement); err != nil {
			return Retryable(fmt.Errorf("failed to record restoration movement: %w", err))
		}
		return OK()
	}); out.Failed() {
		return out
	}

	entry, err := r.boothStock.Get(ctx, sale.BoothID, ingredientID)
	if errors.Is(err, domain.ErrBoothStockNotFound) {
		return OK()
	}
	if err != nil {
		return Retryable(fmt.Errorf("failed to load booth stock: %w", err))
	}

	return prog.step("booth:"+ingredientID.String(), func() Outcome {
		oldRemaining := entry.Remaining
		entry.Used -= quantity
		entry.Clamp()
		entry.UpdatedAt = r.clock.Now()
		if err := r.boothStock.Upsert(ctx, entry); err != nil {
			return Retryable(fmt.Errorf("failed to update booth stock: %w", err))
		}

		r.publishStockUpdate(ctx, sale.BrandID, sale.BoothID, ingredient, oldRemaining, entry.Remaining)
		return OK()
	})
}

// syncSaleTransaction brings the sale's income transaction up to the
// sale's current total, creating it if a previous run never got that far.
func (r *Reconciler) syncSaleTransaction(ctx context.Context, sale *domain.Sale) Outcome {
	existing, err := r.accounting.GetByRelated(ctx, sale.ID, domain.RelatedTypeSale)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		tx := &domain.AccountingTransaction{
			ID:          uuid.New(),
			BrandID:     sale.BrandID,
			Type:        domain.TransactionIncome,
			Category:    domain.CategorySaleRevenue,
			Amount:      sale.Total,
			Description: fmt.Sprintf("Revenue from sale %s", sale.ID),
			RelatedID:   sale.ID,
			RelatedType: domain.RelatedTypeSale,
			CreatedAt:   r.clock.Now(),
		}
		if err := r.accounting.Create(ctx, tx); err != nil {
			return Retryable(fmt.Errorf("failed to record sale revenue: %w", err))
		}
		return OK()
	}
	if err != nil {
		return Retryable(fmt.Errorf("failed to load sale transaction: %w", err))
	}

	if existing.Amount != sale.Total {
		if err := r.accounting.UpdateAmount(ctx, existing.ID, sale.Total); err != nil {
			return Retryable(fmt.Errorf("failed to update sale transaction: %w", err))
		}
	}
	return OK()
}

func (r *Reconciler) publishStockUpdate(ctx context.Context, brandID, boothID uuid.UUID, ingredient *domain.Ingredient, oldRemaining, newRemaining float64) {
	ev := realtime.NewStockUpdateEvent(brandID, boothID, realtime.StockUpdateData{
		IngredientID:   ingredient.ID,
		IngredientName: ingredient.Name,
		BoothID:        boothID,
		OldQuantity:    oldRemaining,
		NewQuantity:    newRemaining,
		Delta:          newRemaining - oldRemaining,
	}, r.clock.Now())
	if err := r.publisher.PublishEvent(ctx, ev); err != nil {
		slog.Error("Failed to publish stock update", "ingredient_id", ingredient.ID, "error", err)
	}
}

// checkLowStock broadcasts a brand-wide alert when the booth's remaining
// quantity is at or under the threshold. The threshold is the larger of
// the allocation fraction and the ingredient's configured minimum.
func (r *Reconciler) checkLowStock(ctx context.Context, brandID, boothID uuid.UUID, ingredient *domain.Ingredient, entry *domain.BoothStock) {
	threshold := lowStockFraction * entry.Allocated
	if ingredient.MinimumStock > threshold {
		threshold = ingredient.MinimumStock
	}
	if entry.Remaining > threshold {
		return
	}

	ev := realtime.NewLowStockAlert(brandID, realtime.LowStockData{
		IngredientID:   ingredient.ID,
		IngredientName: ingredient.Name,
		BoothID:        boothID,
		CurrentStock:   entry.Remaining,
		MinimumStock:   ingredient.MinimumStock,
	}, r.clock.Now())

	severity := realtime.SeverityWarning
	if entry.Remaining == 0 {
		severity = realtime.SeverityCritical
	}
	metrics.LowStockAlertsTotal.WithLabelValues(severity).Inc()

	if err := r.publisher.PublishBrandEvent(ctx, ev); err != nil {
		slog.Error("Failed to publish low-stock alert", "ingredient_id", ingredient.ID, "error", err)
	}
}

// classify maps repository errors to outcomes: missing records cannot be
// fixed by retrying, everything else can.
func classify(err error) Outcome {
	switch {
	case errors.Is(err, domain.ErrMenuItemNotFound),
		errors.Is(err, domain.ErrIngredientNotFound),
		errors.Is(err, domain.ErrSaleNotFound):
		return Permanent(err)
	default:
		return Retryable(err)
	}
}
