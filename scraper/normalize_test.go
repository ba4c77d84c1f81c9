package scraper

import (
	"errors"
	"testing"
)

func TestNormalize_DetailWinsOverStub(t *testing.T) {
	stub := Stub{
		DetailURL: "https://www.autoavenj.com/details-x.aspx",
		VIN:       "jh4ka7561pc008269",
		Year:      1993,
		Make:      "Acura",
		Model:     "Legend",
		Price:     "6500",
	}
	d := &DetailData{
		Fields: fieldMap{
			fieldVIN:     "1HGCM82633A004352",
			fieldYear:    "2003",
			fieldMake:    "Honda",
			fieldModel:   "Accord",
			fieldTrim:    "EX",
			fieldPrice:   "$8,995",
			fieldMileage: "152,340",
		},
		Title:     "2003 Honda Accord EX",
		DetailURL: "https://www.autoavenj.com/details-x.aspx",
	}

	v, err := Normalize(stub, d)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if v.VIN != "1HGCM82633A004352" {
		t.Errorf("expected detail VIN, got %q", v.VIN)
	}
	if v.Year != 2003 || v.Make != "Honda" || v.Model != "Accord" || v.Trim != "EX" {
		t.Errorf("unexpected vehicle identity: %d %s %s %s", v.Year, v.Make, v.Model, v.Trim)
	}
	if v.Price == nil || v.Price.StringFixed(2) != "8995.00" {
		t.Errorf("expected price 8995.00, got %v", v.Price)
	}
	if v.Mileage == nil || *v.Mileage != 152340 {
		t.Errorf("expected mileage 152340, got %v", v.Mileage)
	}
	if !v.IsActive {
		t.Error("normalized vehicle should be active")
	}
}

func TestNormalize_StubAndTitleFallback(t *testing.T) {
	stub := Stub{
		DetailURL: "https://www.autoavenj.com/details-y.aspx",
		VIN:       "JH4KA7561PC008269",
		Price:     "$6,500",
	}
	d := &DetailData{
		Fields: fieldMap{},
		Title:  "1993 Acura Legend LS Coupe",
	}

	v, err := Normalize(stub, d)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if v.VIN != "JH4KA7561PC008269" {
		t.Errorf("expected stub VIN, got %q", v.VIN)
	}
	if v.Year != 1993 {
		t.Errorf("expected year from title, got %d", v.Year)
	}
	if v.Make != "Acura" || v.Model != "Legend" {
		t.Errorf("expected make/model from title, got %q %q", v.Make, v.Model)
	}
	if v.Trim != "LS Coupe" {
		t.Errorf("expected trim from title remainder, got %q", v.Trim)
	}
	if v.Price == nil || v.Price.StringFixed(2) != "6500.00" {
		t.Errorf("expected stub price 6500.00, got %v", v.Price)
	}
}

func TestNormalize_NoVIN(t *testing.T) {
	_, err := Normalize(Stub{DetailURL: "https://x"}, &DetailData{Fields: fieldMap{}})
	if !errors.Is(err, ErrNoVIN) {
		t.Fatalf("expected ErrNoVIN, got %v", err)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string // "" means nil
	}{
		{"$28,995", "28995.00"},
		{"28995.50", "28995.50"},
		{"$0", ""},
		{"Call for Price", ""},
		{"", ""},
	}
	for _, tc := range cases {
		got := ParsePrice(tc.in)
		if tc.want == "" {
			if got != nil {
				t.Errorf("ParsePrice(%q): expected nil, got %s", tc.in, got.String())
			}
			continue
		}
		if got == nil || got.StringFixed(2) != tc.want {
			t.Errorf("ParsePrice(%q): expected %s, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseMileage(t *testing.T) {
	if m := ParseMileage("15,234 miles"); m == nil || *m != 15234 {
		t.Errorf("expected 15234, got %v", m)
	}
	if m := ParseMileage("n/a"); m != nil {
		t.Errorf("expected nil for non-numeric, got %v", m)
	}
}

func TestParseTitle(t *testing.T) {
	year, mk, model, trim := ParseTitle("2021 Ford Escape Titanium Hybrid")
	if year != 2021 || mk != "Ford" || model != "Escape" || trim != "Titanium Hybrid" {
		t.Errorf("unexpected parse: %d %q %q %q", year, mk, model, trim)
	}

	year, mk, model, trim = ParseTitle("Used 2019 Toyota Camry")
	if year != 2019 || mk != "Toyota" || model != "Camry" || trim != "" {
		t.Errorf("unexpected parse with prefix: %d %q %q %q", year, mk, model, trim)
	}
}
