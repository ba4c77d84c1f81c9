package storage

import (
	"context"
	"time"

	"dealerwatch/models"
)

// Store is the persistence surface shared by the SQLite and Postgres
// backends. Lookups return (nil, nil) when no row exists.
type Store interface {
	// Vehicles
	GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error)
	ListActiveVehicles(ctx context.Context) ([]models.Vehicle, error)
	InsertVehicle(ctx context.Context, v *models.Vehicle) error
	UpdateVehicle(ctx context.Context, v *models.Vehicle) error
	CountVehicles(ctx context.Context, activeOnly bool) (int, error)

	// Runs
	CreateRun(ctx context.Context, run *models.RunRecord) error
	UpdateRun(ctx context.Context, run *models.RunRecord) error
	GetRunByRunID(ctx context.Context, runID string) (*models.RunRecord, error)
	GetRunningRun(ctx context.Context) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.RunRecord, int, error)

	// Audit trail
	AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error
	ListPriceHistory(ctx context.Context, vin string) ([]models.PriceHistoryEntry, error)
	AddChangeLog(ctx context.Context, entry *models.ChangeLogEntry) error
	ListChangeLog(ctx context.Context, vin string, limit, offset int) ([]models.ChangeLogEntry, int, error)

	// Monitor config (single row, seeded at startup)
	EnsureMonitorConfig(ctx context.Context, defaults models.MonitorConfig) error
	GetMonitorConfig(ctx context.Context) (*models.MonitorConfig, error)
	UpdateMonitorConfig(ctx context.Context, cfg *models.MonitorConfig) error
	TouchMonitorCheck(ctx context.Context, at time.Time, result string) error

	// System logs
	AddSystemLog(ctx context.Context, entry *models.SystemLog) error
	ListSystemLogs(ctx context.Context, level, source string, limit, offset int) ([]models.SystemLog, int, error)
	ClearSystemLogs(ctx context.Context) error

	Close() error
}
