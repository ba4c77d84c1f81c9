package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealerwatch/models"
	"dealerwatch/proc"
	"dealerwatch/progress"
	"dealerwatch/storage"
)

// ErrRunInProgress rejects a trigger while a live worker still owns
// the running run.
var ErrRunInProgress = errors.New("a scrape run is already in progress")

const staleRunMessage = "Process exited unexpectedly."

// Control is the operations surface: it triggers runs, reports
// progress, and manages monitor configuration. One instance backs
// whatever front end (CLI, RPC, UI) the deployment puts on top.
type Control struct {
	store    storage.Store
	spawner  proc.Spawner
	progress *progress.Store
	comparer *Comparer
}

func NewControl(store storage.Store, spawner proc.Spawner, progressStore *progress.Store, comparer *Comparer) *Control {
	return &Control{
		store:    store,
		spawner:  spawner,
		progress: progressStore,
		comparer: comparer,
	}
}

// TriggerRun starts a full crawl in a worker process. pages limits
// listing pages (0 = all).
func (c *Control) TriggerRun(ctx context.Context, pages int) (string, error) {
	return c.trigger(ctx, pages, "scrape")
}

// TriggerAutoRun is the monitor's entry point; the run prefix records
// who asked.
func (c *Control) TriggerAutoRun(ctx context.Context, pages int) (string, error) {
	return c.trigger(ctx, pages, "auto")
}

func (c *Control) trigger(ctx context.Context, pages int, prefix string) (string, error) {
	running, err := c.store.GetRunningRun(ctx)
	if err != nil {
		return "", fmt.Errorf("check running run: %w", err)
	}
	if running != nil {
		if c.spawner.Alive(running.PID) {
			return "", ErrRunInProgress
		}
		// Worker died without closing its run row. Recover it so one
		// crash can never wedge the scheduler forever.
		if err := c.failStaleRun(ctx, running); err != nil {
			return "", err
		}
	}

	runID := fmt.Sprintf("%s-%s", prefix, shortID())
	now := time.Now().UTC()

	run := &models.RunRecord{
		RunID:     runID,
		StartedAt: now,
		Status:    models.RunStatusRunning,
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	_ = c.progress.Write(runID, &models.ProgressSnapshot{
		RunID:   runID,
		Status:  models.ProgressStatusStarting,
		Message: "Initializing scrape run...",
	})

	pid, err := c.spawner.Spawn(runID, pages)
	if err != nil {
		c.abortRun(ctx, run, err)
		return "", fmt.Errorf("spawn worker: %w", err)
	}

	run.PID = pid
	if err := c.store.UpdateRun(ctx, run); err != nil {
		return "", fmt.Errorf("record worker pid: %w", err)
	}
	return runID, nil
}

func (c *Control) failStaleRun(ctx context.Context, run *models.RunRecord) error {
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.FinishedAt = &now
	run.Errors = append(run.Errors, staleRunMessage)
	run.Summary = staleRunMessage
	if err := c.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("fail stale run %s: %w", run.RunID, err)
	}

	_ = c.progress.Write(run.RunID, &models.ProgressSnapshot{
		RunID:   run.RunID,
		Status:  models.ProgressStatusFailed,
		Message: staleRunMessage,
	})
	return nil
}

func (c *Control) abortRun(ctx context.Context, run *models.RunRecord, cause error) {
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.FinishedAt = &now
	run.Errors = append(run.Errors, cause.Error())
	run.Summary = "Failed to start worker"
	_ = c.store.UpdateRun(ctx, run)

	_ = c.progress.Write(run.RunID, &models.ProgressSnapshot{
		RunID:   run.RunID,
		Status:  models.ProgressStatusFailed,
		Message: cause.Error(),
	})
}

// GetProgress prefers the worker's live snapshot file and falls back
// to the run row once the file is gone.
func (c *Control) GetProgress(ctx context.Context, runID string) (*models.ProgressSnapshot, error) {
	snap, err := c.progress.Read(runID)
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	if snap != nil {
		return snap, nil
	}

	run, err := c.store.GetRunByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("unknown run %q", runID)
	}
	return snapshotFromRun(run), nil
}

func snapshotFromRun(run *models.RunRecord) *models.ProgressSnapshot {
	snap := &models.ProgressSnapshot{
		RunID:           run.RunID,
		Status:          string(run.Status),
		VehiclesFound:   run.VehiclesFound,
		VehiclesNew:     run.VehiclesNew,
		VehiclesUpdated: run.VehiclesUpdated,
		Message:         run.Summary,
		UpdatedAt:       run.StartedAt,
	}
	if run.Status != models.RunStatusRunning {
		snap.Progress = 100
	}
	if run.FinishedAt != nil {
		snap.UpdatedAt = *run.FinishedAt
	}
	return snap
}

// GetRunHistory pages through past runs, newest first.
func (c *Control) GetRunHistory(ctx context.Context, page, perPage int) ([]models.RunRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return c.store.ListRuns(ctx, perPage, (page-1)*perPage)
}

func (c *Control) GetMonitorConfig(ctx context.Context) (*models.MonitorConfig, error) {
	return c.store.GetMonitorConfig(ctx)
}

func (c *Control) SetMonitorConfig(ctx context.Context, cfg *models.MonitorConfig) (*models.MonitorConfig, error) {
	if cfg.IntervalMinutes < 1 {
		cfg.IntervalMinutes = 1
	}
	if cfg.PagesToCheck < 0 {
		cfg.PagesToCheck = 0
	}
	if err := c.store.UpdateMonitorConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update monitor config: %w", err)
	}
	return c.store.GetMonitorConfig(ctx)
}

// CompareInventory runs an on-demand site-vs-DB check with sync
// progress tracking.
func (c *Control) CompareInventory(ctx context.Context, pages int) (*models.ComparisonResult, error) {
	result, err := c.comparer.Compare(ctx, pages, true)
	if err != nil {
		return nil, err
	}
	_ = c.store.TouchMonitorCheck(ctx, result.CheckedAt, result.Summary())
	return result, nil
}

// GetSyncProgress reports the state of the last manual comparison, or
// idle when none has run.
func (c *Control) GetSyncProgress(ctx context.Context) (*models.ProgressSnapshot, error) {
	snap, err := c.progress.Read(progress.SyncKey)
	if err != nil {
		return nil, fmt.Errorf("read sync progress: %w", err)
	}
	if snap == nil {
		return &models.ProgressSnapshot{Status: models.ProgressStatusIdle}, nil
	}
	return snap, nil
}

func (c *Control) GetPriceHistory(ctx context.Context, vin string) ([]models.PriceHistoryEntry, error) {
	return c.store.ListPriceHistory(ctx, vin)
}

func (c *Control) GetChangeLog(ctx context.Context, vin string, page, perPage int) ([]models.ChangeLogEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	return c.store.ListChangeLog(ctx, vin, perPage, (page-1)*perPage)
}

func (c *Control) GetSystemLogs(ctx context.Context, level, source string, page, perPage int) ([]models.SystemLog, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	return c.store.ListSystemLogs(ctx, level, source, perPage, (page-1)*perPage)
}

func (c *Control) ClearSystemLogs(ctx context.Context) error {
	return c.store.ClearSystemLogs(ctx)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
