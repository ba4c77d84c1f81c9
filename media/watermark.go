package media

import (
	"image"

	"github.com/disintegration/imaging"

	"dealerwatch/config"
)

// minFrameDim guards tiny thumbnails, which the frame heuristics
// misread.
const minFrameDim = 100

// HasDealerFrame reports whether the image carries the dealer's
// branded frame overlay: a near-white logo band in the top-left and a
// near-white URL bar in the bottom-right. Both must fire.
func HasDealerFrame(img image.Image, wm config.WatermarkConfig) bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < minFrameDim || h < minFrameDim {
		return false
	}

	tlH := int(float64(h) * wm.TopBandPct)
	tlW := int(float64(w) * wm.TopWidthPct)
	tlRatio := whiteRatio(img, b.Min.X, b.Min.Y, tlW, tlH, wm.BrightnessMin)

	brH := int(float64(h) * wm.BottomBandPct)
	brW := int(float64(w) * wm.BottomWidthPct)
	brRatio := whiteRatio(img, b.Max.X-brW, b.Max.Y-brH, brW, brH, wm.BrightnessMin)

	return tlRatio > wm.TopWhitePct && brRatio > wm.BottomWhitePct
}

// whiteRatio is the fraction of pixels in the band whose channels all
// exceed threshold.
func whiteRatio(img image.Image, x0, y0, w, h, threshold int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}

	// At() yields 16-bit channels.
	limit := uint32(threshold) * 257
	white := 0
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r > limit && g > limit && b > limit {
				white++
			}
		}
	}
	return float64(white) / float64(w*h)
}

// RemoveDealerFrame crops away the frame strips. Cropping beats
// inpainting here: the overlay spans the full width, and a clean cut
// leaves no smear artifacts.
func RemoveDealerFrame(img image.Image, wm config.WatermarkConfig) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < minFrameDim || h < minFrameDim {
		return img
	}

	topPx := int(float64(h) * wm.CropTopPct)
	botPx := int(float64(h) * wm.CropBottomPct)

	return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y+topPx, b.Max.X, b.Max.Y-botPx))
}
