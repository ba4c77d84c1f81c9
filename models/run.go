package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord tracks one full crawl execution end to end.
type RunRecord struct {
	ID              int64      `json:"id" db:"id"`
	RunID           string     `json:"run_id" db:"run_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	VehiclesFound   int        `json:"vehicles_found" db:"vehicles_found"`
	VehiclesNew     int        `json:"vehicles_new" db:"vehicles_new"`
	VehiclesUpdated int        `json:"vehicles_updated" db:"vehicles_updated"`
	VehiclesRemoved int        `json:"vehicles_removed" db:"vehicles_removed"`
	Errors          []string   `json:"errors" db:"errors"`
	Summary         string     `json:"summary" db:"summary"`
	PID             int        `json:"pid" db:"pid"` // worker process, 0 when in-process
}
