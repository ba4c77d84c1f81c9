package scraper

import (
	"os"
	"path/filepath"
	"testing"

	"dealerwatch/config"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return string(data)
}

func testSource() *config.SourceConfig {
	src := config.DefaultSource()
	src.BaseURL = "https://www.autoavenj.com"
	return src
}

func TestExtractListing_Basic(t *testing.T) {
	html := loadFixture(t, "listing.html")

	stubs, hasNext, err := ExtractListing(html, "https://www.autoavenj.com", 1)
	if err != nil {
		t.Fatalf("ExtractListing failed: %v", err)
	}

	if len(stubs) != 3 {
		t.Fatalf("expected 3 stubs, got %d", len(stubs))
	}
	if !hasNext {
		t.Error("expected hasNext=true, page 2 link is present")
	}

	accord := stubs[0]
	if accord.VIN != "1HGCM82633A004352" {
		t.Errorf("expected Accord VIN from JSON-LD, got %q", accord.VIN)
	}
	if accord.Year != 2003 {
		t.Errorf("expected year 2003, got %d", accord.Year)
	}
	if accord.Make != "Honda" {
		t.Errorf("expected make Honda, got %q", accord.Make)
	}
	if accord.Price != "8995" {
		t.Errorf("expected price 8995, got %q", accord.Price)
	}
	if accord.DetailURL != "https://www.autoavenj.com/details-2003-honda-accord-12345.aspx" {
		t.Errorf("unexpected detail URL: %q", accord.DetailURL)
	}

	// Offers-as-array variant
	if stubs[1].Price != "6500" {
		t.Errorf("expected Legend price 6500, got %q", stubs[1].Price)
	}

	// Third vehicle only has a bare link, no JSON-LD entry
	premier := stubs[2]
	if premier.VIN != "" {
		t.Errorf("bare-link stub should have no VIN, got %q", premier.VIN)
	}
	if premier.DetailURL != "https://www.autoavenj.com/details-1989-eagle-premier-55555.aspx" {
		t.Errorf("unexpected bare-link URL: %q", premier.DetailURL)
	}
}

func TestExtractListing_TrailingSlashDedupe(t *testing.T) {
	html := loadFixture(t, "listing.html")

	// The Accord appears both in JSON-LD (no slash) and as a bare link
	// with a trailing slash; they must collapse to one stub.
	stubs, _, err := ExtractListing(html, "https://www.autoavenj.com", 1)
	if err != nil {
		t.Fatalf("ExtractListing failed: %v", err)
	}

	count := 0
	for _, s := range stubs {
		if s.DetailURL == "https://www.autoavenj.com/details-2003-honda-accord-12345.aspx" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 Accord stub, got %d", count)
	}
}

func TestExtractListing_LastPage(t *testing.T) {
	html := loadFixture(t, "listing_last_page.html")

	stubs, hasNext, err := ExtractListing(html, "https://www.autoavenj.com", 3)
	if err != nil {
		t.Fatalf("ExtractListing failed: %v", err)
	}
	if hasNext {
		t.Error("expected hasNext=false on the last page")
	}
	if len(stubs) != 1 {
		t.Errorf("expected 1 stub, got %d", len(stubs))
	}
}

func TestListingURL(t *testing.T) {
	src := testSource()

	page1 := ListingURL(src, 1)
	if page1 != "https://www.autoavenj.com/inventory.aspx?_used=true&_dealerid=0" {
		t.Errorf("unexpected page 1 URL: %q", page1)
	}

	page3 := ListingURL(src, 3)
	if page3 != "https://www.autoavenj.com/inventory.aspx?_used=true&_dealerid=0&_page=3" {
		t.Errorf("unexpected page 3 URL: %q", page3)
	}
}
