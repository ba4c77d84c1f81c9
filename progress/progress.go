// Package progress persists run progress as small JSON files so the
// control process can report on a worker it does not share memory with.
package progress

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dealerwatch/models"
)

// SyncKey names the snapshot file for manual inventory comparisons,
// which run outside any scrape run.
const SyncKey = "sync_progress"

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Write replaces the snapshot for key atomically, rename over the old
// file, so readers never see a torn write.
func (s *Store) Write(key string, snap *models.ProgressSnapshot) error {
	snap.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Read returns (nil, nil) when no snapshot exists for key.
func (s *Store) Read(key string) (*models.ProgressSnapshot, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var snap models.ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) Clear(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
