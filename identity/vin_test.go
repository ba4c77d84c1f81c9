package identity

import "testing"

func TestNormalize(t *testing.T) {
	if got := Normalize("  1hgcm82633a004352 "); got != "1HGCM82633A004352" {
		t.Errorf("unexpected normalization: %q", got)
	}
}

func TestWellFormed(t *testing.T) {
	cases := []struct {
		vin  string
		want bool
	}{
		{"1HGCM82633A004352", true},
		{"1HGCM82633A00435", false},  // 16 chars
		{"1HGCM82633A0043521", false}, // 18 chars
		{"1HGCM82633A00435I", false},  // I is never valid
		{"", false},
	}
	for _, tc := range cases {
		if got := WellFormed(tc.vin); got != tc.want {
			t.Errorf("WellFormed(%q) = %v, want %v", tc.vin, got, tc.want)
		}
	}
}

func TestValidCheckDigit(t *testing.T) {
	valid := []string{
		"1HGCM82633A004352",
		"JH4KA7561PC008269",
		"1M8GDM9AXKP042788", // check digit X
	}
	for _, vin := range valid {
		if !ValidCheckDigit(vin) {
			t.Errorf("ValidCheckDigit(%q) = false, want true", vin)
		}
	}

	// Flip one digit and the check digit no longer matches
	if ValidCheckDigit("1HGCM82633A004353") {
		t.Error("expected corrupted VIN to fail the check digit")
	}
}
