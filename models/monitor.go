package models

import (
	"fmt"
	"time"
)

// MonitorConfig is the single-row drift monitor configuration.
type MonitorConfig struct {
	Enabled         bool       `json:"enabled" db:"enabled"`
	IntervalMinutes int        `json:"interval_minutes" db:"interval_minutes"`
	PagesToCheck    int        `json:"pages_to_check" db:"pages_to_check"` // 0 means all pages
	LastCheckAt     *time.Time `json:"last_check_at" db:"last_check_at"`
	LastCheckResult string     `json:"last_check_result" db:"last_check_result"`
}

// Comparison vehicle statuses
const (
	CompareStatusMatch         = "match"
	CompareStatusMissingLocal  = "missing_local"  // on the site, not in the DB
	CompareStatusMissingRemote = "missing_remote" // in the DB, gone from the site
)

type ComparisonVehicle struct {
	VIN       string `json:"vin"`
	Year      int    `json:"year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	DetailURL string `json:"detail_url"`
}

// ComparisonResult is the outcome of one site-vs-DB inventory check.
type ComparisonResult struct {
	WebsiteCount int                 `json:"website_count"`
	LocalCount   int                 `json:"local_count"`
	Matched      int                 `json:"matched"`
	MissingLocal int                 `json:"missing_local"`
	ExtraLocal   int                 `json:"extra_local"`
	Changed      int                 `json:"changed"` // reserved, VIN presence only
	PagesChecked int                 `json:"pages_checked"`
	Vehicles     []ComparisonVehicle `json:"vehicles"`
	CheckedAt    time.Time           `json:"checked_at"`
}

// Summary renders the one-line check result stored on the monitor
// config row.
func (r *ComparisonResult) Summary() string {
	return fmt.Sprintf("Website: %d | Local: %d | Matched: %d | Missing: %d | Extra: %d | Changed: %d",
		r.WebsiteCount, r.LocalCount, r.Matched, r.MissingLocal, r.ExtraLocal, r.Changed)
}

// InSync reports whether the site and the database agree on VIN
// membership.
func (r *ComparisonResult) InSync() bool {
	return r.MissingLocal == 0 && r.ExtraLocal == 0 && r.Changed == 0
}
