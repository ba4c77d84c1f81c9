package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"dealerwatch/config"
	"dealerwatch/identity"
	"dealerwatch/models"
)

// Scanner walks listing pages only, without visiting detail pages.
// It is the cheap probe the monitor uses to detect inventory drift.
type Scanner struct {
	cfg *config.ScraperConfig
	src *config.SourceConfig
}

func NewScanner(cfg *config.ScraperConfig, src *config.SourceConfig) *Scanner {
	return &Scanner{cfg: cfg, src: src}
}

// Scan collects the remote inventory as seen on listing pages.
// maxPages 0 means follow pagination to the end. onPage, when non-nil,
// is called after each page with the page number and running total.
func (s *Scanner) Scan(ctx context.Context, maxPages int, onPage func(page, found int)) ([]models.RemoteVehicle, error) {
	nav := NewNavigator(s.cfg, s.src)
	if err := nav.Start(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer nav.Stop()

	var remote []models.RemoteVehicle
	seen := make(map[string]bool)

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		html, err := nav.Fetch(ctx, ListingURL(s.src, page))
		if err != nil {
			return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
		}

		stubs, hasNext, err := ExtractListing(html, s.src.BaseURL, page)
		if err != nil {
			return nil, fmt.Errorf("parse listing page %d: %w", page, err)
		}

		for _, stub := range stubs {
			vin := identity.Normalize(stub.VIN)
			key := vin
			if key == "" {
				key = stub.DetailURL
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			remote = append(remote, models.RemoteVehicle{
				VIN:       vin,
				Year:      stub.Year,
				Make:      stub.Make,
				Model:     stub.Model,
				Price:     stub.Price,
				DetailURL: stub.DetailURL,
			})
		}

		if onPage != nil {
			onPage(page, len(remote))
		}

		if !hasNext || (maxPages > 0 && page >= maxPages) {
			break
		}
		page++
		humanDelay(s.cfg.DelayMinMS, s.cfg.DelayMaxMS)
	}

	return remote, nil
}

// ListingURL builds the inventory URL for a given page. Page 1 is the
// bare inventory path; later pages carry the site's page parameter.
func ListingURL(src *config.SourceConfig, page int) string {
	base := strings.TrimSuffix(src.BaseURL, "/") + src.InventoryPath
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + url.QueryEscape(src.PageParam) + "=" + fmt.Sprintf("%d", page)
}
