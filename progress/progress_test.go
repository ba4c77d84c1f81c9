package progress

import (
	"testing"

	"dealerwatch/models"
)

func TestWriteReadClear(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	snap := &models.ProgressSnapshot{
		RunID:         "scrape-abc123def456",
		Status:        models.ProgressStatusRunning,
		Progress:      42,
		Message:       "Fetching vehicle 5 of 12...",
		VehiclesFound: 12,
	}
	if err := store.Write("scrape-abc123def456", snap); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("Write should stamp UpdatedAt")
	}

	got, err := store.Read("scrape-abc123def456")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a snapshot")
	}
	if got.Progress != 42 || got.Status != models.ProgressStatusRunning {
		t.Errorf("unexpected snapshot: %+v", got)
	}

	if err := store.Clear("scrape-abc123def456"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, err = store.Read("scrape-abc123def456")
	if err != nil {
		t.Fatalf("Read after clear failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil after clear")
	}
}

func TestReadMissingIsNil(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	snap, err := store.Read("never-written")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if snap != nil {
		t.Error("expected nil for a missing snapshot")
	}
}

func TestClearMissingIsNoError(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Clear("never-written"); err != nil {
		t.Errorf("Clear of a missing snapshot should succeed: %v", err)
	}
}

func TestOverwrite(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Write(SyncKey, &models.ProgressSnapshot{Status: models.ProgressStatusStarting}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write(SyncKey, &models.ProgressSnapshot{Status: models.ProgressStatusCompleted, Progress: 100}); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := store.Read(SyncKey)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Status != models.ProgressStatusCompleted || got.Progress != 100 {
		t.Errorf("expected the second snapshot, got %+v", got)
	}
}
