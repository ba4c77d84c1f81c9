package models

import "time"

// Progress statuses
const (
	ProgressStatusIdle      = "idle"
	ProgressStatusStarting  = "starting"
	ProgressStatusRunning   = "running"
	ProgressStatusCompleted = "completed"
	ProgressStatusFailed    = "failed"
)

// ProgressSnapshot is the file-backed view of a run, readable from any
// process while the worker owns the database run row.
type ProgressSnapshot struct {
	RunID           string    `json:"run_id"`
	Status          string    `json:"status"`
	Progress        int       `json:"progress"` // 0-100
	Message         string    `json:"message"`
	CurrentPage     int       `json:"current_page"`
	TotalPages      int       `json:"total_pages"` // estimate until pagination settles
	VehiclesFound   int       `json:"vehicles_found"`
	VehiclesNew     int       `json:"vehicles_new"`
	VehiclesUpdated int       `json:"vehicles_updated"`
	UpdatedAt       time.Time `json:"updated_at"`
}
