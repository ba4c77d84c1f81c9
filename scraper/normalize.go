package scraper

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dealerwatch/identity"
	"dealerwatch/models"
)

// ErrNoVIN marks a detail page that yielded no VIN anywhere; the
// record cannot be keyed and is dropped from the run.
var ErrNoVIN = errors.New("no vin found")

var (
	yearRe     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	nonPriceRe = regexp.MustCompile(`[^\d.]`)
	nonDigitRe = regexp.MustCompile(`\D`)
)

// Normalize merges the listing stub hints with the detail extraction
// into a canonical Vehicle. Detail fields win; stub hints fill gaps.
func Normalize(stub Stub, d *DetailData) (*models.Vehicle, error) {
	f := d.Fields

	vin := identity.Normalize(f[fieldVIN])
	if vin == "" {
		vin = identity.Normalize(stub.VIN)
	}
	if vin == "" {
		return nil, ErrNoVIN
	}

	now := time.Now().UTC()
	v := &models.Vehicle{
		VIN:           vin,
		StockNumber:   strings.TrimSpace(f[fieldStockNumber]),
		Make:          strings.TrimSpace(f[fieldMake]),
		Model:         strings.TrimSpace(f[fieldModel]),
		Trim:          strings.TrimSpace(f[fieldTrim]),
		ExteriorColor: strings.TrimSpace(f[fieldExteriorColor]),
		InteriorColor: strings.TrimSpace(f[fieldInteriorColor]),
		BodyStyle:     strings.TrimSpace(f[fieldBodyStyle]),
		Drivetrain:    strings.TrimSpace(f[fieldDrivetrain]),
		Engine:        strings.TrimSpace(f[fieldEngine]),
		Transmission:  strings.TrimSpace(f[fieldTransmission]),
		Photos:        d.Photos,
		DetailURL:     firstNonEmpty(d.DetailURL, stub.DetailURL),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if y, err := strconv.Atoi(strings.TrimSpace(f[fieldYear])); err == nil {
		v.Year = y
	}

	priceText := f[fieldPrice]
	if priceText == "" {
		priceText = stub.Price
	}
	v.Price = ParsePrice(priceText)
	v.Mileage = ParseMileage(f[fieldMileage])

	// Title carries "2021 Ford Escape Titanium" when structured data
	// came up short.
	year, mk, model, trim := ParseTitle(d.Title)
	if v.Year == 0 {
		v.Year = year
	}
	if v.Make == "" {
		v.Make = mk
	}
	if v.Model == "" {
		v.Model = model
	}
	if v.Trim == "" {
		v.Trim = trim
	}

	if v.Year == 0 {
		v.Year = stub.Year
	}
	if v.Make == "" {
		v.Make = stub.Make
	}
	if v.Model == "" {
		v.Model = stub.Model
	}

	return v, nil
}

// ParsePrice turns "$28,995" into 28995.00. Zero or unparseable
// prices become nil: the dealer is hiding the number, not selling
// for free.
func ParsePrice(text string) *decimal.Decimal {
	cleaned := nonPriceRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

// ParseMileage turns "15,234 miles" into 15234.
func ParseMileage(text string) *int {
	cleaned := nonDigitRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &n
}

// ParseTitle splits "2021 Ford Escape Titanium" positionally: year,
// make, model, then everything left is the trim.
func ParseTitle(title string) (year int, mk, model, trim string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, "", "", ""
	}

	if loc := yearRe.FindStringIndex(title); loc != nil {
		year, _ = strconv.Atoi(title[loc[0]:loc[1]])
		title = strings.TrimSpace(title[loc[1]:])
	}

	parts := strings.Fields(title)
	if len(parts) >= 1 {
		mk = parts[0]
	}
	if len(parts) >= 2 {
		model = parts[1]
	}
	if len(parts) >= 3 {
		trim = strings.Join(parts[2:], " ")
	}
	return year, mk, model, trim
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
