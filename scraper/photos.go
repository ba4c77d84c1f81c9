package scraper

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealerwatch/config"
)

// Photo CDN filename shape: ...-<listingID>-<seq>-<resolution>.jpg.
// The page repeats each photo at several resolutions.
var photoSeqRe = regexp.MustCompile(`-(\d{7,8})-(\d+)-(\d+)\.jpg`)

var photoAttrs = []string{"src", "data-src", "data-lazy", "data-image"}

// extractPhotos collects candidate photo URLs and reduces them to one
// URL per sequence position, preferring the CDN-sequenced set and
// falling back to generic gallery scraping when the page has none.
func extractPhotos(doc *goquery.Document, src *config.SourceConfig) []string {
	var raw []string
	seen := map[string]bool{}

	doc.Find("img, a[data-src], [data-image]").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range photoAttrs {
			val, ok := sel.Attr(attr)
			if !ok || val == "" {
				continue
			}
			if src.PhotoHostHint != "" && !strings.Contains(val, src.PhotoHostHint) {
				continue
			}
			u := absoluteURL(val, src.BaseURL)
			if !seen[u] {
				seen[u] = true
				raw = append(raw, u)
			}
		}
	})

	if photos := bestPerSequence(raw); len(photos) > 0 {
		return photos
	}
	return galleryFallback(doc, src)
}

// bestPerSequence keeps the highest resolution per sequence position
// for the dominant listing ID, ordered by sequence.
func bestPerSequence(urls []string) []string {
	listingID := ""
	for _, u := range urls {
		if m := photoSeqRe.FindStringSubmatch(u); m != nil {
			listingID = m[1]
			break
		}
	}
	if listingID == "" {
		return nil
	}

	type candidate struct {
		resolution int
		url        string
	}
	best := map[int]candidate{}

	for _, u := range urls {
		m := photoSeqRe.FindStringSubmatch(u)
		if m == nil || m[1] != listingID {
			continue
		}
		seq, _ := strconv.Atoi(m[2])
		resolution, _ := strconv.Atoi(m[3])
		if cur, ok := best[seq]; !ok || resolution > cur.resolution {
			best[seq] = candidate{resolution, u}
		}
	}

	seqs := make([]int, 0, len(best))
	for seq := range best {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	photos := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		photos = append(photos, best[seq].url)
	}
	return photos
}

// galleryFallback scrapes gallery and slider containers, then any img
// at all, filtering site chrome by the configured denylist.
func galleryFallback(doc *goquery.Document, src *config.SourceConfig) []string {
	selectors := []string{
		"[class*='gallery'] img, [class*='slider'] img, [class*='carousel'] img",
		"[class*='photo'] img, [class*='image'] img",
		"img",
	}

	for _, selector := range selectors {
		var photos []string
		seen := map[string]bool{}

		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			for _, attr := range photoAttrs {
				val, ok := sel.Attr(attr)
				if !ok || val == "" {
					continue
				}
				if deniedPhoto(val, src.PhotoDenylist) {
					continue
				}
				u := absoluteURL(val, src.BaseURL)
				if !seen[u] {
					seen[u] = true
					photos = append(photos, u)
				}
				break
			}
		})

		if len(photos) > 0 {
			return photos
		}
	}
	return nil
}

func deniedPhoto(u string, denylist []string) bool {
	lower := strings.ToLower(u)
	for _, skip := range denylist {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}
