package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle is the canonical inventory record, keyed by VIN.
type Vehicle struct {
	ID            int64            `json:"id" db:"id"`
	VIN           string           `json:"vin" db:"vin"`
	StockNumber   string           `json:"stock_number" db:"stock_number"`
	Year          int              `json:"year" db:"year"`
	Make          string           `json:"make" db:"make"`
	Model         string           `json:"model" db:"model"`
	Trim          string           `json:"trim" db:"trim"`
	Price         *decimal.Decimal `json:"price" db:"price"` // nil when unlisted ("Call for price")
	Mileage       *int             `json:"mileage" db:"mileage"`
	ExteriorColor string           `json:"exterior_color" db:"exterior_color"`
	InteriorColor string           `json:"interior_color" db:"interior_color"`
	BodyStyle     string           `json:"body_style" db:"body_style"`
	Drivetrain    string           `json:"drivetrain" db:"drivetrain"`
	Engine        string           `json:"engine" db:"engine"`
	Transmission  string           `json:"transmission" db:"transmission"`
	Photos        []string         `json:"photos" db:"photos"`
	DetailURL     string           `json:"detail_url" db:"detail_url"`
	IsActive      bool             `json:"is_active" db:"is_active"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// RemoteVehicle is the lightweight view of a vehicle as seen on the
// dealer's listing pages, before any detail-page visit.
type RemoteVehicle struct {
	VIN       string `json:"vin"`
	Year      int    `json:"year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Price     string `json:"price"`
	DetailURL string `json:"detail_url"`
}
