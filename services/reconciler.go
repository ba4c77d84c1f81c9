package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dealerwatch/models"
	"dealerwatch/storage"
)

// trackedFields are the vehicle attributes compared during
// reconciliation. Values are compared as normalized strings so the
// audit trail stores exactly what it diffed.
var trackedFields = []struct {
	name string
	get  func(*models.Vehicle) string
}{
	{"stock_number", func(v *models.Vehicle) string { return v.StockNumber }},
	{"year", func(v *models.Vehicle) string { return strconv.Itoa(v.Year) }},
	{"make", func(v *models.Vehicle) string { return v.Make }},
	{"model", func(v *models.Vehicle) string { return v.Model }},
	{"trim", func(v *models.Vehicle) string { return v.Trim }},
	{"price", func(v *models.Vehicle) string { return priceString(v) }},
	{"mileage", func(v *models.Vehicle) string { return mileageString(v) }},
	{"exterior_color", func(v *models.Vehicle) string { return v.ExteriorColor }},
	{"interior_color", func(v *models.Vehicle) string { return v.InteriorColor }},
	{"body_style", func(v *models.Vehicle) string { return v.BodyStyle }},
	{"drivetrain", func(v *models.Vehicle) string { return v.Drivetrain }},
	{"engine", func(v *models.Vehicle) string { return v.Engine }},
	{"transmission", func(v *models.Vehicle) string { return v.Transmission }},
	{"detail_url", func(v *models.Vehicle) string { return v.DetailURL }},
}

func priceString(v *models.Vehicle) string {
	if v.Price == nil {
		return ""
	}
	return v.Price.StringFixed(2)
}

func mileageString(v *models.Vehicle) string {
	if v.Mileage == nil {
		return ""
	}
	return strconv.Itoa(*v.Mileage)
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Found       int
	New         int
	Updated     int
	Removed     int
	Reactivated int
}

// Reconciler folds a fresh crawl snapshot into the stored inventory,
// writing the change log and price history as it goes.
type Reconciler struct {
	store storage.Store
}

func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile applies fresh against the database. Vehicles absent from
// fresh are deactivated, never deleted; rerunning with an identical
// snapshot writes nothing new.
func (r *Reconciler) Reconcile(ctx context.Context, fresh []*models.Vehicle, runID string) (*ReconcileResult, error) {
	now := time.Now().UTC()
	result := &ReconcileResult{}
	seen := make(map[string]bool, len(fresh))

	for _, nv := range fresh {
		if nv.VIN == "" || seen[nv.VIN] {
			continue
		}
		seen[nv.VIN] = true
		result.Found++

		existing, err := r.store.GetVehicleByVIN(ctx, nv.VIN)
		if err != nil {
			return result, fmt.Errorf("lookup %s: %w", nv.VIN, err)
		}

		if existing == nil {
			if err := r.insertNew(ctx, nv, runID, now); err != nil {
				return result, err
			}
			result.New++
			continue
		}

		changed, reactivated, err := r.applyUpdate(ctx, existing, nv, runID, now)
		if err != nil {
			return result, err
		}
		if reactivated {
			result.Reactivated++
		}
		if changed || reactivated {
			result.Updated++
		}
	}

	removed, err := r.deactivateMissing(ctx, seen, runID, now)
	if err != nil {
		return result, err
	}
	result.Removed = removed

	return result, nil
}

func (r *Reconciler) insertNew(ctx context.Context, nv *models.Vehicle, runID string, now time.Time) error {
	nv.IsActive = true
	nv.CreatedAt = now
	nv.UpdatedAt = now

	if err := r.store.InsertVehicle(ctx, nv); err != nil {
		return fmt.Errorf("insert %s: %w", nv.VIN, err)
	}

	if err := r.store.AddChangeLog(ctx, &models.ChangeLogEntry{
		VIN:        nv.VIN,
		ChangedAt:  now,
		ChangeType: models.ChangeTypeNew,
		NewValue:   fmt.Sprintf("%d %s %s", nv.Year, nv.Make, nv.Model),
		RunID:      runID,
	}); err != nil {
		return fmt.Errorf("change log %s: %w", nv.VIN, err)
	}

	if nv.Price != nil {
		if err := r.store.AddPriceHistory(ctx, &models.PriceHistoryEntry{
			VIN:        nv.VIN,
			Price:      *nv.Price,
			RecordedAt: now,
			Source:     "scrape",
		}); err != nil {
			return fmt.Errorf("price history %s: %w", nv.VIN, err)
		}
	}
	return nil
}

func (r *Reconciler) applyUpdate(ctx context.Context, existing, nv *models.Vehicle, runID string, now time.Time) (changed, reactivated bool, err error) {
	for _, field := range trackedFields {
		oldVal := field.get(existing)
		newVal := field.get(nv)
		if oldVal == newVal {
			continue
		}
		changed = true

		if err := r.store.AddChangeLog(ctx, &models.ChangeLogEntry{
			VIN:        nv.VIN,
			ChangedAt:  now,
			ChangeType: models.ChangeTypeUpdated,
			FieldName:  field.name,
			OldValue:   oldVal,
			NewValue:   newVal,
			RunID:      runID,
		}); err != nil {
			return false, false, fmt.Errorf("change log %s: %w", nv.VIN, err)
		}

		if field.name == "price" && nv.Price != nil {
			if err := r.store.AddPriceHistory(ctx, &models.PriceHistoryEntry{
				VIN:        nv.VIN,
				Price:      *nv.Price,
				RecordedAt: now,
				Source:     "scrape",
			}); err != nil {
				return false, false, fmt.Errorf("price history %s: %w", nv.VIN, err)
			}
		}
	}

	if !existing.IsActive {
		reactivated = true
		if err := r.store.AddChangeLog(ctx, &models.ChangeLogEntry{
			VIN:        nv.VIN,
			ChangedAt:  now,
			ChangeType: models.ChangeTypeReactivated,
			FieldName:  "is_active",
			OldValue:   "false",
			NewValue:   "true",
			RunID:      runID,
		}); err != nil {
			return false, false, fmt.Errorf("change log %s: %w", nv.VIN, err)
		}
	}

	nv.ID = existing.ID
	nv.CreatedAt = existing.CreatedAt
	nv.UpdatedAt = now
	nv.IsActive = true

	// A failed gallery never wipes the stored photos.
	if len(nv.Photos) == 0 {
		nv.Photos = existing.Photos
	}

	if err := r.store.UpdateVehicle(ctx, nv); err != nil {
		return false, false, fmt.Errorf("update %s: %w", nv.VIN, err)
	}
	return changed, reactivated, nil
}

func (r *Reconciler) deactivateMissing(ctx context.Context, seen map[string]bool, runID string, now time.Time) (int, error) {
	active, err := r.store.ListActiveVehicles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active: %w", err)
	}

	removed := 0
	for i := range active {
		v := &active[i]
		if seen[v.VIN] {
			continue
		}

		v.IsActive = false
		v.UpdatedAt = now
		if err := r.store.UpdateVehicle(ctx, v); err != nil {
			return removed, fmt.Errorf("deactivate %s: %w", v.VIN, err)
		}

		if err := r.store.AddChangeLog(ctx, &models.ChangeLogEntry{
			VIN:        v.VIN,
			ChangedAt:  now,
			ChangeType: models.ChangeTypeRemoved,
			FieldName:  "is_active",
			OldValue:   "true",
			NewValue:   "false",
			RunID:      runID,
		}); err != nil {
			return removed, fmt.Errorf("change log %s: %w", v.VIN, err)
		}
		removed++
	}
	return removed, nil
}
