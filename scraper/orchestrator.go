package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealerwatch/config"
	"dealerwatch/identity"
	"dealerwatch/logging"
	"dealerwatch/media"
	"dealerwatch/models"
	"dealerwatch/progress"
	"dealerwatch/services"
	"dealerwatch/storage"
)

// fetcher is the page-retrieval surface the run drives. Navigator is
// the production implementation.
type fetcher interface {
	Start() error
	Stop()
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Orchestrator drives one full scrape run inside a worker process:
// listing pages, detail pages, photo pipeline, then reconciliation.
type Orchestrator struct {
	cfg        *config.Config
	store      storage.Store
	pipeline   *media.Pipeline
	reconciler *services.Reconciler
	progress   *progress.Store
	recorder   *logging.Recorder
	newFetcher func() fetcher
}

func NewOrchestrator(
	cfg *config.Config,
	store storage.Store,
	pipeline *media.Pipeline,
	reconciler *services.Reconciler,
	progressStore *progress.Store,
	recorder *logging.Recorder,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		pipeline:   pipeline,
		reconciler: reconciler,
		progress:   progressStore,
		recorder:   recorder,
		newFetcher: func() fetcher { return NewNavigator(&cfg.Scraper, cfg.Source) },
	}
}

// Run executes the full crawl for runID. maxPages 0 walks every
// listing page. The run row is normally created by the trigger before
// the worker is spawned; a standalone invocation gets a fresh one.
func (o *Orchestrator) Run(ctx context.Context, runID string, maxPages int) (err error) {
	run, err := o.store.GetRunByRunID(ctx, runID)
	if err != nil {
		return fmt.Errorf("lookup run: %w", err)
	}
	if run == nil {
		run = &models.RunRecord{
			RunID:     runID,
			StartedAt: time.Now().UTC(),
			Status:    models.RunStatusRunning,
		}
		if err := o.store.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
	}

	// A panic in browser interop must still leave a terminal run row,
	// not one stuck on "running" until the next trigger notices.
	defer func() {
		if r := recover(); r != nil {
			err = o.failRun(ctx, run, fmt.Errorf("panic: %v", r))
		}
	}()

	o.writeProgress(run, models.ProgressStatusStarting, 0, "Starting browser...", 0, 0)
	o.recorder.Info(runID, "Scrape run %s started (max pages %d)", runID, maxPages)

	nav := o.newFetcher()
	if err := nav.Start(); err != nil {
		return o.failRun(ctx, run, fmt.Errorf("start browser: %w", err))
	}
	defer nav.Stop()

	stubs, err := o.collectStubs(ctx, nav, run, maxPages)
	if err != nil {
		return o.failRun(ctx, run, err)
	}
	if len(stubs) == 0 {
		// An empty listing is a scrape failure, not an empty lot.
		// Reconciling against it would deactivate the whole catalog.
		return o.failRun(ctx, run, fmt.Errorf("no vehicles found on listing pages"))
	}
	o.recorder.Info(runID, "Listing pass complete: %d vehicles", len(stubs))

	fresh := o.collectDetails(ctx, nav, run, stubs)
	run.VehiclesFound = len(fresh)

	o.writeProgress(run, models.ProgressStatusRunning, 95, "Reconciling inventory...", 0, 0)
	result, err := o.reconciler.Reconcile(ctx, fresh, runID)
	if err != nil {
		return o.failRun(ctx, run, fmt.Errorf("reconcile: %w", err))
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	run.VehiclesNew = result.New
	run.VehiclesUpdated = result.Updated
	run.VehiclesRemoved = result.Removed
	run.Summary = fmt.Sprintf("Found %d | New %d | Updated %d | Removed %d",
		result.Found, result.New, result.Updated, result.Removed)
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}

	snap := o.snapshot(run, models.ProgressStatusCompleted, 100, run.Summary, 0, 0)
	_ = o.progress.Write(run.RunID, snap)
	o.recorder.Info(runID, "Scrape run %s completed: %s", runID, run.Summary)
	return nil
}

// collectStubs walks the listing pages and returns deduped vehicle
// stubs in page order.
func (o *Orchestrator) collectStubs(ctx context.Context, nav fetcher, run *models.RunRecord, maxPages int) ([]Stub, error) {
	var stubs []Stub
	seen := make(map[string]bool)

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		o.writeProgress(run, models.ProgressStatusRunning,
			listingPercent(page, maxPages),
			fmt.Sprintf("Scanning listing page %d...", page), page, maxPages)

		html, err := nav.Fetch(ctx, ListingURL(o.cfg.Source, page))
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("fetch listing page 1: %w", err)
			}
			// A later page failing loses its vehicles but the run can
			// still reconcile what it has.
			o.noteError(run, fmt.Sprintf("listing page %d: %v", page, err))
			break
		}

		pageStubs, hasNext, err := ExtractListing(html, o.cfg.Source.BaseURL, page)
		if err != nil {
			o.noteError(run, fmt.Sprintf("parse listing page %d: %v", page, err))
			break
		}
		if len(pageStubs) == 0 {
			// Dealer sites render an empty terminal page rather than
			// dropping the pagination controls.
			break
		}
		for _, s := range pageStubs {
			if seen[s.DetailURL] {
				continue
			}
			seen[s.DetailURL] = true
			stubs = append(stubs, s)
		}

		if !hasNext || (maxPages > 0 && page >= maxPages) {
			break
		}
		page++
		humanDelay(o.cfg.Scraper.DelayMinMS, o.cfg.Scraper.DelayMaxMS)
	}

	return stubs, nil
}

// collectDetails visits each stub's detail page and builds the fresh
// snapshot. Per-vehicle failures are recorded on the run and skipped.
func (o *Orchestrator) collectDetails(ctx context.Context, nav fetcher, run *models.RunRecord, stubs []Stub) []*models.Vehicle {
	fresh := make([]*models.Vehicle, 0, len(stubs))

	for i, stub := range stubs {
		if ctx.Err() != nil {
			break
		}

		pct := 25 + (70*i)/max(len(stubs), 1)
		o.writeProgress(run, models.ProgressStatusRunning, pct,
			fmt.Sprintf("Fetching vehicle %d of %d...", i+1, len(stubs)), 0, 0)

		humanDelay(o.cfg.Scraper.DelayMinMS, o.cfg.Scraper.DelayMaxMS)

		v := o.fetchVehicle(ctx, nav, run, stub)
		if v != nil {
			fresh = append(fresh, v)
		}
	}

	return fresh
}

func (o *Orchestrator) fetchVehicle(ctx context.Context, nav fetcher, run *models.RunRecord, stub Stub) *models.Vehicle {
	html, err := nav.Fetch(ctx, stub.DetailURL)
	if err != nil {
		o.noteError(run, fmt.Sprintf("detail %s: %v", stub.DetailURL, err))
		// The listing already identified this vehicle. Keeping it in
		// the snapshot stops one flaky page from deactivating it.
		if stub.VIN != "" {
			if v, nerr := Normalize(stub, &DetailData{Fields: fieldMap{}, DetailURL: stub.DetailURL}); nerr == nil {
				return v
			}
		}
		return nil
	}

	detail, err := ExtractDetail(html, stub.DetailURL, o.cfg.Source)
	if err != nil {
		o.noteError(run, fmt.Sprintf("parse detail %s: %v", stub.DetailURL, err))
		return nil
	}

	v, err := Normalize(stub, detail)
	if err != nil {
		if errors.Is(err, ErrNoVIN) {
			o.noteError(run, fmt.Sprintf("no VIN on %s, skipping", stub.DetailURL))
		} else {
			o.noteError(run, fmt.Sprintf("normalize %s: %v", stub.DetailURL, err))
		}
		return nil
	}

	if !identity.ValidCheckDigit(v.VIN) {
		o.recorder.Warn(run.RunID, "VIN %s fails check digit, possible typo on %s", v.VIN, stub.DetailURL)
	}

	v.Photos = o.pipeline.ProcessPhotos(ctx, v.VIN, detail.Photos)
	return v
}

func (o *Orchestrator) failRun(ctx context.Context, run *models.RunRecord, cause error) error {
	msg := truncateError(cause.Error())

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusFailed
	run.Errors = append(run.Errors, msg)
	run.Summary = msg
	_ = o.store.UpdateRun(ctx, run)

	snap := o.snapshot(run, models.ProgressStatusFailed, 0, msg, 0, 0)
	_ = o.progress.Write(run.RunID, snap)
	o.recorder.Error(run.RunID, "Scrape run %s failed: %v", run.RunID, cause)
	return cause
}

// Playwright errors embed whole DOM dumps; cap what lands in the run
// row and the progress file.
const maxErrorLen = 500

func truncateError(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen] + "..."
}

func (o *Orchestrator) noteError(run *models.RunRecord, msg string) {
	run.Errors = append(run.Errors, msg)
	o.recorder.Warn(run.RunID, "%s", msg)
}

func (o *Orchestrator) writeProgress(run *models.RunRecord, status string, pct int, msg string, page, totalPages int) {
	_ = o.progress.Write(run.RunID, o.snapshot(run, status, pct, msg, page, totalPages))
}

func (o *Orchestrator) snapshot(run *models.RunRecord, status string, pct int, msg string, page, totalPages int) *models.ProgressSnapshot {
	return &models.ProgressSnapshot{
		RunID:           run.RunID,
		Status:          status,
		Progress:        pct,
		Message:         msg,
		CurrentPage:     page,
		TotalPages:      totalPages,
		VehiclesFound:   run.VehiclesFound,
		VehiclesNew:     run.VehiclesNew,
		VehiclesUpdated: run.VehiclesUpdated,
		UpdatedAt:       time.Now().UTC(),
	}
}

// listingPercent maps the listing pass onto 5-25% of the bar. With
// unbounded pagination the denominator is a guess that settles as
// pages arrive.
func listingPercent(page, maxPages int) int {
	total := maxPages
	if total <= 0 {
		total = page + 1
	}
	pct := 5 + (20*page)/total
	if pct > 25 {
		pct = 25
	}
	return pct
}
