package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealerwatch/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestVehicleRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	price := decimal.NewFromInt(8995)
	mileage := 152340
	now := time.Now().UTC().Truncate(time.Second)

	v := &models.Vehicle{
		VIN:           "1HGCM82633A004352",
		StockNumber:   "A4352",
		Year:          2003,
		Make:          "Honda",
		Model:         "Accord",
		Trim:          "EX",
		Price:         &price,
		Mileage:       &mileage,
		ExteriorColor: "Graphite Pearl",
		Photos:        []string{"/media/1HGCM82633A004352/001.jpg", "/media/1HGCM82633A004352/002.jpg"},
		DetailURL:     "https://www.autoavenj.com/details-12345.aspx",
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.InsertVehicle(ctx, v))
	assert.NotZero(t, v.ID)

	got, err := store.GetVehicleByVIN(ctx, "1HGCM82633A004352")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "8995.00", got.Price.StringFixed(2))
	assert.Equal(t, 152340, *got.Mileage)
	assert.Len(t, got.Photos, 2)
	assert.True(t, got.IsActive)

	// Unknown VIN is (nil, nil), not an error
	missing, err := store.GetVehicleByVIN(ctx, "JH4KA7561PC008269")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVehicleNilPrice(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	v := &models.Vehicle{VIN: "JH4KA7561PC008269", IsActive: true}
	require.NoError(t, store.InsertVehicle(ctx, v))

	got, err := store.GetVehicleByVIN(ctx, "JH4KA7561PC008269")
	require.NoError(t, err)
	assert.Nil(t, got.Price)
	assert.Nil(t, got.Mileage)
}

func TestListActiveVehicles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertVehicle(ctx, &models.Vehicle{VIN: "1HGCM82633A004352", IsActive: true}))
	require.NoError(t, store.InsertVehicle(ctx, &models.Vehicle{VIN: "JH4KA7561PC008269", IsActive: false}))

	active, err := store.ListActiveVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "1HGCM82633A004352", active[0].VIN)

	total, err := store.CountVehicles(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	activeCount, err := store.CountVehicles(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, activeCount)
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := &models.RunRecord{
		RunID:     "scrape-abc123def456",
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
		PID:       4242,
	}
	require.NoError(t, store.CreateRun(ctx, run))

	running, err := store.GetRunningRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, "scrape-abc123def456", running.RunID)
	assert.Equal(t, 4242, running.PID)

	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.FinishedAt = &now
	run.VehiclesFound = 12
	run.Errors = []string{"detail https://x: timeout"}
	run.Summary = "Found 12 | New 3 | Updated 1 | Removed 0"
	require.NoError(t, store.UpdateRun(ctx, run))

	running, err = store.GetRunningRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, running)

	got, err := store.GetRunByRunID(ctx, "scrape-abc123def456")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 12, got.VehiclesFound)
	assert.Equal(t, []string{"detail https://x: timeout"}, got.Errors)
	require.NotNil(t, got.FinishedAt)

	runs, total, err := store.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, runs, 1)
}

func TestMonitorConfig(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Seeding twice keeps the first row
	require.NoError(t, store.EnsureMonitorConfig(ctx, models.MonitorConfig{Enabled: true, IntervalMinutes: 30}))
	require.NoError(t, store.EnsureMonitorConfig(ctx, models.MonitorConfig{Enabled: false, IntervalMinutes: 99}))

	cfg, err := store.GetMonitorConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.IntervalMinutes)
	assert.Nil(t, cfg.LastCheckAt)

	cfg.IntervalMinutes = 45
	cfg.PagesToCheck = 3
	require.NoError(t, store.UpdateMonitorConfig(ctx, cfg))

	at := time.Now().UTC()
	require.NoError(t, store.TouchMonitorCheck(ctx, at, "Website: 10 | Local: 10 | Matched: 10 | Missing: 0 | Extra: 0 | Changed: 0"))

	got, err := store.GetMonitorConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, got.IntervalMinutes)
	assert.Equal(t, 3, got.PagesToCheck)
	require.NotNil(t, got.LastCheckAt)
	assert.Contains(t, got.LastCheckResult, "Matched: 10")
}

func TestSystemLogs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, entry := range []models.SystemLog{
		{Timestamp: time.Now().UTC(), Level: models.LogLevelInfo, Source: "scraper", Message: "run started"},
		{Timestamp: time.Now().UTC(), Level: models.LogLevelError, Source: "scraper", Message: "page timeout"},
		{Timestamp: time.Now().UTC(), Level: models.LogLevelInfo, Source: "monitor", Message: "check ok"},
	} {
		e := entry
		require.NoError(t, store.AddSystemLog(ctx, &e))
	}

	all, total, err := store.ListSystemLogs(ctx, "", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	errorsOnly, total, err := store.ListSystemLogs(ctx, "error", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "page timeout", errorsOnly[0].Message)

	monitorOnly, total, err := store.ListSystemLogs(ctx, "", "monitor", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "check ok", monitorOnly[0].Message)

	require.NoError(t, store.ClearSystemLogs(ctx))
	_, total, err = store.ListSystemLogs(ctx, "", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestPriceHistoryAndChangeLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, amount := range []int64{8995, 8495} {
		require.NoError(t, store.AddPriceHistory(ctx, &models.PriceHistoryEntry{
			VIN:        "1HGCM82633A004352",
			Price:      decimal.NewFromInt(amount),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			Source:     "scrape",
		}))
	}

	prices, err := store.ListPriceHistory(ctx, "1HGCM82633A004352")
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "8995.00", prices[0].Price.StringFixed(2))
	assert.Equal(t, "8495.00", prices[1].Price.StringFixed(2))

	require.NoError(t, store.AddChangeLog(ctx, &models.ChangeLogEntry{
		VIN:        "1HGCM82633A004352",
		ChangedAt:  time.Now().UTC(),
		ChangeType: models.ChangeTypeUpdated,
		FieldName:  "price",
		OldValue:   "8995.00",
		NewValue:   "8495.00",
		RunID:      "run-2",
	}))

	changes, total, err := store.ListChangeLog(ctx, "1HGCM82633A004352", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "price", changes[0].FieldName)

	// VIN filter excludes other vehicles
	_, total, err = store.ListChangeLog(ctx, "JH4KA7561PC008269", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
