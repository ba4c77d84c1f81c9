package media

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestProcessPhotos(t *testing.T) {
	framed := encodeJPEG(t, framedPhoto(800, 600, true))
	clean := encodeJPEG(t, framedPhoto(800, 600, false))

	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		switch r.URL.Path {
		case "/car-12345678-1-1024.jpg":
			w.Write(framed)
		case "/car-12345678-2-1024.jpg":
			http.NotFound(w, r)
		case "/car-12345678-2-640.jpg":
			w.Write(clean)
		case "/car-12345678-3-640.jpg":
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewPipeline(srv.Client(), dir, frameConfig(), nil, "")

	refs := p.ProcessPhotos(context.Background(), "1HGCM82633A004352", []string{
		srv.URL + "/car-12345678-1-640.jpg", // hi-res variant exists
		srv.URL + "/car-12345678-2-640.jpg", // hi-res 404s, falls back
		srv.URL + "/car-12345678-3-640.jpg", // both 404, skipped
	})

	want := []string{
		"/media/1HGCM82633A004352/001.jpg",
		"/media/1HGCM82633A004352/002.jpg",
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %d: %v", len(want), len(refs), refs)
	}
	for i, ref := range want {
		if refs[i] != ref {
			t.Errorf("ref %d: expected %q, got %q", i, ref, refs[i])
		}
	}

	// The hi-res variant is tried first for every photo.
	if requested[0] != "/car-12345678-1-1024.jpg" {
		t.Errorf("expected hi-res first, got %q", requested[0])
	}

	// The framed photo comes out cropped; the clean one stays full size.
	first, err := imaging.Open(filepath.Join(dir, "1HGCM82633A004352", "001.jpg"))
	if err != nil {
		t.Fatalf("open processed photo: %v", err)
	}
	if first.Bounds().Dy() >= 600 {
		t.Errorf("expected the dealer frame cropped away, height %d", first.Bounds().Dy())
	}

	second, err := imaging.Open(filepath.Join(dir, "1HGCM82633A004352", "002.jpg"))
	if err != nil {
		t.Fatalf("open clean photo: %v", err)
	}
	if second.Bounds().Dy() != 600 {
		t.Errorf("clean photo should keep its height, got %d", second.Bounds().Dy())
	}
}

func TestProcessPhotos_EmptyInput(t *testing.T) {
	p := NewPipeline(http.DefaultClient, t.TempDir(), frameConfig(), nil, "")

	if refs := p.ProcessPhotos(context.Background(), "", []string{"https://x/1.jpg"}); refs != nil {
		t.Errorf("expected nil refs without a VIN, got %v", refs)
	}
	if refs := p.ProcessPhotos(context.Background(), "1HGCM82633A004352", nil); refs != nil {
		t.Errorf("expected nil refs without URLs, got %v", refs)
	}
}

type recordingUploader struct {
	keys []string
}

func (u *recordingUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	u.keys = append(u.keys, key)
	return nil
}

func TestProcessPhotos_Mirror(t *testing.T) {
	clean := encodeJPEG(t, framedPhoto(800, 600, false))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(clean)
	}))
	defer srv.Close()

	uploader := &recordingUploader{}
	p := NewPipeline(srv.Client(), t.TempDir(), frameConfig(), uploader, "photos")

	refs := p.ProcessPhotos(context.Background(), "1HGCM82633A004352", []string{srv.URL + "/a.jpg"})
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	if len(uploader.keys) != 1 || uploader.keys[0] != "photos/1HGCM82633A004352/001.jpg" {
		t.Errorf("unexpected mirror keys: %v", uploader.keys)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "1HGCM82633A004352", "001.jpg")); err != nil {
		t.Errorf("local copy missing: %v", err)
	}
}
