package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Stub is what a listing page knows about one vehicle before we visit
// its detail page. The JSON-LD payload, when present, carries VIN and
// price hints that survive even a broken detail extraction.
type Stub struct {
	DetailURL string
	VIN       string
	Year      int
	Make      string
	Model     string
	Price     string
}

// ExtractListing parses one inventory page. It returns the vehicle
// stubs found and whether a link to page pageNum+1 exists.
func ExtractListing(html, baseURL string, pageNum int) ([]Stub, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, fmt.Errorf("parse listing page: %w", err)
	}

	byURL := make(map[string]*Stub)
	var order []string

	addStub := func(s Stub) {
		key := strings.TrimSuffix(s.DetailURL, "/")
		if key == "" {
			return
		}
		if existing, ok := byURL[key]; ok {
			// JSON-LD stubs win over bare links
			if existing.VIN == "" && s.VIN != "" {
				*existing = s
			}
			return
		}
		s.DetailURL = key
		byURL[key] = &s
		order = append(order, key)
	}

	// The site publishes one JSON-LD array per inventory page.
	doc.Find("script#application-ld_json-vehicle, script[type='application/ld+json']").Each(func(_ int, sel *goquery.Selection) {
		for _, v := range decodeLDVehicles(sel.Text()) {
			stub := stubFromLD(v, baseURL)
			if stub.DetailURL != "" {
				addStub(stub)
			}
		}
	})

	// Bare detail links catch vehicles the JSON-LD missed.
	doc.Find("a[href*='details-']").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		addStub(Stub{DetailURL: absoluteURL(href, baseURL)})
	})

	hasNext := false
	nextMarker := fmt.Sprintf("_page=%d", pageNum+1)
	doc.Find("a[href*='_page=']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if href, ok := sel.Attr("href"); ok && strings.Contains(href, nextMarker) {
			hasNext = true
			return false
		}
		return true
	})

	stubs := make([]Stub, 0, len(order))
	for _, key := range order {
		stubs = append(stubs, *byURL[key])
	}
	return stubs, hasNext, nil
}

// decodeLDVehicles tolerates both a single Vehicle object and an
// array, and skips non-Vehicle JSON-LD blocks.
func decodeLDVehicles(raw string) []map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var list []map[string]any
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return filterLDVehicles(list)
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return filterLDVehicles([]map[string]any{single})
	}
	return nil
}

func filterLDVehicles(list []map[string]any) []map[string]any {
	var vehicles []map[string]any
	for _, m := range list {
		if ldString(m, "@type") == "Vehicle" {
			vehicles = append(vehicles, m)
		}
	}
	return vehicles
}

func stubFromLD(v map[string]any, baseURL string) Stub {
	return Stub{
		DetailURL: absoluteURL(ldString(v, "url"), baseURL),
		VIN:       strings.ToUpper(strings.TrimSpace(ldString(v, "vehicleIdentificationNumber"))),
		Year:      ldInt(v, "vehicleModelDate"),
		Make:      ldName(v, "brand", "manufacturer"),
		Model:     ldString(v, "model"),
		Price:     ldOfferPrice(v),
	}
}

func absoluteURL(u, baseURL string) string {
	u = strings.TrimSpace(u)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return strings.TrimSuffix(baseURL, "/") + u
	default:
		return u
	}
}
