package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Change types
const (
	ChangeTypeNew         = "new"
	ChangeTypeUpdated     = "updated"
	ChangeTypeRemoved     = "removed"
	ChangeTypeReactivated = "reactivated"
)

// PriceHistoryEntry records every observed asking price for a VIN.
type PriceHistoryEntry struct {
	ID         int64           `json:"id" db:"id"`
	VIN        string          `json:"vin" db:"vin"`
	Price      decimal.Decimal `json:"price" db:"price"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
	Source     string          `json:"source" db:"source"` // scrape, manual
}

// ChangeLogEntry is one field-level audit event for a VIN.
type ChangeLogEntry struct {
	ID         int64     `json:"id" db:"id"`
	VIN        string    `json:"vin" db:"vin"`
	ChangedAt  time.Time `json:"changed_at" db:"changed_at"`
	ChangeType string    `json:"change_type" db:"change_type"`
	FieldName  string    `json:"field_name" db:"field_name"`
	OldValue   string    `json:"old_value" db:"old_value"`
	NewValue   string    `json:"new_value" db:"new_value"`
	RunID      string    `json:"run_id" db:"run_id"`
}
