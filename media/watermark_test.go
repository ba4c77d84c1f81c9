package media

import (
	"image"
	"image/color"
	"testing"

	"dealerwatch/config"
)

func frameConfig() config.WatermarkConfig {
	return config.WatermarkConfig{
		TopBandPct:     0.12,
		TopWidthPct:    0.30,
		BottomBandPct:  0.07,
		BottomWidthPct: 0.50,
		BrightnessMin:  230,
		TopWhitePct:    0.40,
		BottomWhitePct: 0.30,
		CropTopPct:     0.13,
		CropBottomPct:  0.07,
	}
}

// framedPhoto paints a dark car photo stand-in with white overlay
// strips across the top and bottom, like the dealer's branded frame.
func framedPhoto(w, h int, withFrame bool) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	dark := color.NRGBA{60, 70, 80, 255}
	white := color.NRGBA{250, 250, 250, 255}

	topBand := int(float64(h) * 0.12)
	bottomBand := int(float64(h) * 0.07)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := dark
			if withFrame && (y < topBand || y >= h-bottomBand) {
				c = white
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestHasDealerFrame(t *testing.T) {
	wm := frameConfig()

	if !HasDealerFrame(framedPhoto(800, 600, true), wm) {
		t.Error("expected frame detection on a framed photo")
	}
	if HasDealerFrame(framedPhoto(800, 600, false), wm) {
		t.Error("expected no detection on a clean photo")
	}
}

func TestHasDealerFrame_TopBandAloneNotEnough(t *testing.T) {
	wm := frameConfig()

	img := image.NewNRGBA(image.Rect(0, 0, 800, 600))
	white := color.NRGBA{255, 255, 255, 255}
	dark := color.NRGBA{40, 40, 40, 255}
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			if y < 72 { // top 12% only
				img.SetNRGBA(x, y, white)
			} else {
				img.SetNRGBA(x, y, dark)
			}
		}
	}

	if HasDealerFrame(img, wm) {
		t.Error("a bright sky alone should not trigger frame removal")
	}
}

func TestHasDealerFrame_SkipsThumbnails(t *testing.T) {
	if HasDealerFrame(framedPhoto(80, 60, true), frameConfig()) {
		t.Error("thumbnails must never be treated as framed")
	}
}

func TestRemoveDealerFrame(t *testing.T) {
	wm := frameConfig()
	img := framedPhoto(800, 600, true)

	cropped := RemoveDealerFrame(img, wm)
	b := cropped.Bounds()

	wantH := 600 - int(600*0.13) - int(600*0.07)
	if b.Dy() != wantH {
		t.Errorf("expected cropped height %d, got %d", wantH, b.Dy())
	}
	if b.Dx() != 800 {
		t.Errorf("width should be untouched, got %d", b.Dx())
	}

	// The white strips must be gone from the cropped result.
	if HasDealerFrame(cropped, wm) {
		t.Error("cropped image still detects as framed")
	}
}

func TestRemoveDealerFrame_SkipsThumbnails(t *testing.T) {
	img := framedPhoto(80, 60, true)
	if got := RemoveDealerFrame(img, frameConfig()); got != img {
		t.Error("thumbnails should be returned unchanged")
	}
}
