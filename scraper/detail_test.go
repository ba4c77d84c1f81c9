package scraper

import "testing"

func TestExtractDetail_JSONLD(t *testing.T) {
	html := loadFixture(t, "detail.html")
	src := testSource()

	d, err := ExtractDetail(html, "https://www.autoavenj.com/details-2003-honda-accord-12345.aspx", src)
	if err != nil {
		t.Fatalf("ExtractDetail failed: %v", err)
	}

	if d.Title != "2003 Honda Accord EX" {
		t.Errorf("unexpected title: %q", d.Title)
	}

	expected := map[string]string{
		fieldVIN:           "1HGCM82633A004352",
		fieldStockNumber:   "A4352",
		fieldYear:          "2003",
		fieldMake:          "Honda",
		fieldModel:         "Accord",
		fieldTrim:          "EX",
		fieldExteriorColor: "Graphite Pearl",
		fieldInteriorColor: "Gray",
		fieldBodyStyle:     "Sedan",
		fieldMileage:       "152340",
	}
	for key, want := range expected {
		if got := d.Fields[key]; got != want {
			t.Errorf("field %s: expected %q, got %q", key, want, got)
		}
	}

	// JSON-LD price wins over the spec table's $9,495
	if d.Fields[fieldPrice] != "8995" {
		t.Errorf("expected JSON-LD price 8995, got %q", d.Fields[fieldPrice])
	}

	// Spec table fills fields JSON-LD does not carry
	if d.Fields[fieldEngine] != "2.4L I4" {
		t.Errorf("expected engine from spec table, got %q", d.Fields[fieldEngine])
	}
	if d.Fields[fieldDrivetrain] != "FWD" {
		t.Errorf("expected drivetrain from spec table, got %q", d.Fields[fieldDrivetrain])
	}
}

func TestExtractDetail_Photos(t *testing.T) {
	html := loadFixture(t, "detail.html")

	d, err := ExtractDetail(html, "https://www.autoavenj.com/details-2003-honda-accord-12345.aspx", testSource())
	if err != nil {
		t.Fatalf("ExtractDetail failed: %v", err)
	}

	want := []string{
		"https://cdn-0.ebizautos.media/honda/used-2003-honda-accord-12345678-1-1024.jpg",
		"https://cdn-0.ebizautos.media/honda/used-2003-honda-accord-12345678-2-640.jpg",
		"https://cdn-0.ebizautos.media/honda/used-2003-honda-accord-12345678-3-1024.jpg",
	}
	if len(d.Photos) != len(want) {
		t.Fatalf("expected %d photos, got %d: %v", len(want), len(d.Photos), d.Photos)
	}
	for i, u := range want {
		if d.Photos[i] != u {
			t.Errorf("photo %d: expected %q, got %q", i, u, d.Photos[i])
		}
	}
}

func TestExtractDetail_SpecPairsOnly(t *testing.T) {
	html := loadFixture(t, "detail_table_only.html")
	src := testSource()

	d, err := ExtractDetail(html, "https://www.autoavenj.com/details-1989-eagle-premier-55555.aspx", src)
	if err != nil {
		t.Fatalf("ExtractDetail failed: %v", err)
	}

	if d.Fields[fieldVIN] != "1M8GDM9AXKP042788" {
		t.Errorf("expected VIN from dt/dd pairs, got %q", d.Fields[fieldVIN])
	}
	if d.Fields[fieldStockNumber] != "P042788" {
		t.Errorf("expected stock number, got %q", d.Fields[fieldStockNumber])
	}
	if d.Fields[fieldPrice] != "$3,995" {
		t.Errorf("expected raw price string, got %q", d.Fields[fieldPrice])
	}
	if d.Fields[fieldMileage] != "98,500 miles" {
		t.Errorf("expected odometer value, got %q", d.Fields[fieldMileage])
	}
	if d.Fields[fieldTransmission] != "Automatic" {
		t.Errorf("expected transmission from trans label, got %q", d.Fields[fieldTransmission])
	}

	// No CDN-sequenced photos, so the gallery fallback applies and the
	// spinner gif is filtered by the denylist.
	if len(d.Photos) != 2 {
		t.Fatalf("expected 2 fallback photos, got %d: %v", len(d.Photos), d.Photos)
	}
	if d.Photos[0] != "https://www.autoavenj.com/images/premier-front.jpg" {
		t.Errorf("unexpected first photo: %q", d.Photos[0])
	}
}

func TestExtractDetail_VINScanFallback(t *testing.T) {
	html := `<html><body><h1>2003 Honda Accord</h1>
	<p>Call about VIN 1HGCM82633A004352 today!</p></body></html>`

	d, err := ExtractDetail(html, "https://www.autoavenj.com/details-x.aspx", testSource())
	if err != nil {
		t.Fatalf("ExtractDetail failed: %v", err)
	}
	if d.Fields[fieldVIN] != "1HGCM82633A004352" {
		t.Errorf("expected VIN from text scan, got %q", d.Fields[fieldVIN])
	}
}
