package services

import (
	"context"
	"fmt"
	"time"

	"dealerwatch/models"
	"dealerwatch/progress"
	"dealerwatch/storage"
)

// InventoryScanner walks listing pages and reports the VINs currently
// on the site. It never visits detail pages; a scan must stay cheap
// enough to run on a timer.
type InventoryScanner interface {
	Scan(ctx context.Context, maxPages int, onPage func(page, found int)) ([]models.RemoteVehicle, error)
}

// Comparer answers "does the database still match the website" by VIN
// set arithmetic.
type Comparer struct {
	store    storage.Store
	scanner  InventoryScanner
	progress *progress.Store
}

func NewComparer(store storage.Store, scanner InventoryScanner, progressStore *progress.Store) *Comparer {
	return &Comparer{store: store, scanner: scanner, progress: progressStore}
}

// Compare scans up to maxPages listing pages (0 = all) and diffs the
// result against active local inventory. With trackProgress set, the
// shared sync snapshot is updated for pollers.
//
// Changed stays 0: listing pages carry too little data to diff
// fields, so drift detection is VIN membership only.
func (c *Comparer) Compare(ctx context.Context, maxPages int, trackProgress bool) (*models.ComparisonResult, error) {
	if trackProgress {
		c.writeSync(&models.ProgressSnapshot{
			Status:  models.ProgressStatusStarting,
			Message: "Connecting to dealer site...",
		})
	}

	pagesChecked := 0
	remote, err := c.scanner.Scan(ctx, maxPages, func(page, found int) {
		pagesChecked = page
		if trackProgress {
			c.writeSync(&models.ProgressSnapshot{
				Status:        models.ProgressStatusRunning,
				Message:       fmt.Sprintf("Scanning inventory page %d...", page),
				CurrentPage:   page,
				VehiclesFound: found,
			})
		}
	})
	if err != nil {
		if trackProgress {
			c.writeSync(&models.ProgressSnapshot{
				Status:  models.ProgressStatusFailed,
				Message: err.Error(),
			})
		}
		return nil, fmt.Errorf("scan inventory: %w", err)
	}

	local, err := c.store.ListActiveVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local inventory: %w", err)
	}

	result := diffInventory(remote, local)
	result.PagesChecked = pagesChecked

	if trackProgress {
		c.writeSync(&models.ProgressSnapshot{
			Status:        models.ProgressStatusCompleted,
			Progress:      100,
			Message:       result.Summary(),
			VehiclesFound: result.WebsiteCount,
		})
	}
	return result, nil
}

func diffInventory(remote []models.RemoteVehicle, local []models.Vehicle) *models.ComparisonResult {
	remoteByVIN := make(map[string]models.RemoteVehicle, len(remote))
	for _, rv := range remote {
		if rv.VIN != "" {
			remoteByVIN[rv.VIN] = rv
		}
	}

	localByVIN := make(map[string]models.Vehicle, len(local))
	for _, lv := range local {
		localByVIN[lv.VIN] = lv
	}

	result := &models.ComparisonResult{
		WebsiteCount: len(remoteByVIN),
		LocalCount:   len(localByVIN),
		CheckedAt:    time.Now().UTC(),
	}

	for vin, rv := range remoteByVIN {
		status := models.CompareStatusMissingLocal
		if _, ok := localByVIN[vin]; ok {
			status = models.CompareStatusMatch
			result.Matched++
		} else {
			result.MissingLocal++
		}
		result.Vehicles = append(result.Vehicles, models.ComparisonVehicle{
			VIN:       vin,
			Year:      rv.Year,
			Make:      rv.Make,
			Model:     rv.Model,
			Price:     rv.Price,
			Status:    status,
			DetailURL: rv.DetailURL,
		})
	}

	for vin, lv := range localByVIN {
		if _, ok := remoteByVIN[vin]; ok {
			continue
		}
		result.ExtraLocal++
		price := ""
		if lv.Price != nil {
			price = lv.Price.StringFixed(2)
		}
		result.Vehicles = append(result.Vehicles, models.ComparisonVehicle{
			VIN:       vin,
			Year:      lv.Year,
			Make:      lv.Make,
			Model:     lv.Model,
			Price:     price,
			Status:    models.CompareStatusMissingRemote,
			DetailURL: lv.DetailURL,
		})
	}

	return result
}

func (c *Comparer) writeSync(snap *models.ProgressSnapshot) {
	if c.progress == nil {
		return
	}
	_ = c.progress.Write(progress.SyncKey, snap)
}
