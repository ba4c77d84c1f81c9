// Package media downloads vehicle photos, swaps in the highest
// resolution CDN variant, strips the dealer-frame overlay, and stores
// the result locally with an optional object-storage mirror.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"

	"dealerwatch/config"
	"dealerwatch/storage"
)

// CDN photo filenames end in -<resolution>.jpg; 1024 is the largest
// variant the site serves.
var resolutionRe = regexp.MustCompile(`-(\d+)\.jpg$`)

const maxPhotoBytes = 20 << 20

type Pipeline struct {
	client    *http.Client
	dir       string
	wm        config.WatermarkConfig
	uploader  storage.Uploader // nil disables mirroring
	keyPrefix string
}

func NewPipeline(client *http.Client, mediaDir string, wm config.WatermarkConfig, uploader storage.Uploader, keyPrefix string) *Pipeline {
	return &Pipeline{
		client:    client,
		dir:       mediaDir,
		wm:        wm,
		uploader:  uploader,
		keyPrefix: keyPrefix,
	}
}

// ProcessPhotos fetches every photo for vin and returns the local
// references ("/media/<vin>/001.jpg") of the ones that succeeded.
// Individual failures are logged and skipped; one dead CDN link never
// costs the vehicle its gallery.
func (p *Pipeline) ProcessPhotos(ctx context.Context, vin string, urls []string) []string {
	if vin == "" || len(urls) == 0 {
		return nil
	}

	vinDir := filepath.Join(p.dir, vin)
	if err := os.MkdirAll(vinDir, 0755); err != nil {
		log.Printf("Media dir for %s: %v", vin, err)
		return nil
	}

	var localRefs []string
	for idx, u := range urls {
		if ctx.Err() != nil {
			break
		}

		data, contentType, err := p.download(ctx, u)
		if err != nil {
			log.Printf("Photo %d/%d for %s failed: %v", idx+1, len(urls), vin, err)
			continue
		}

		ext := extForContentType(contentType)
		if ext == ".jpg" {
			data = p.stripFrame(data)
		}

		name := fmt.Sprintf("%03d%s", idx+1, ext)
		if err := os.WriteFile(filepath.Join(vinDir, name), data, 0644); err != nil {
			log.Printf("Photo write %s/%s: %v", vin, name, err)
			continue
		}
		localRefs = append(localRefs, "/media/"+vin+"/"+name)

		if p.uploader != nil {
			key := p.keyPrefix + "/" + vin + "/" + name
			if err := p.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
				log.Printf("Photo mirror %s: %v", key, err)
			}
		}
	}
	return localRefs
}

// download tries the hi-res variant first and falls back to the
// original URL.
func (p *Pipeline) download(ctx context.Context, u string) ([]byte, string, error) {
	hiRes := resolutionRe.ReplaceAllString(u, "-1024.jpg")

	data, contentType, err := p.get(ctx, hiRes)
	if err != nil && hiRes != u {
		data, contentType, err = p.get(ctx, u)
	}
	return data, contentType, err
}

func (p *Pipeline) get(ctx context.Context, u string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0.0.0 Safari/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// stripFrame removes the dealer frame when detected. Any decode
// trouble returns the bytes untouched.
func (p *Pipeline) stripFrame(data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	if !HasDealerFrame(img, p.wm) {
		return data
	}

	cropped := RemoveDealerFrame(img, p.wm)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return data
	}
	return buf.Bytes()
}

func extForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
