package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func proxyRequest(h *ImageHandler, src string, extra string) *httptest.ResponseRecorder {
	target := "/api/images?url=" + url.QueryEscape(src) + extra
	rec := httptest.NewRecorder()
	h.Proxy(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestImageProxyResizesAndCaches(t *testing.T) {
	var hits atomic.Int32
	data := pngBytes(t, 400, 600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	h := NewImageHandler(fs, "cache", srv.URL)

	rec := proxyRequest(h, srv.URL+"/poster.png", "&w=200")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected MISS, got %q", rec.Header().Get("X-Cache"))
	}
	img, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 300 {
		t.Fatalf("expected 200x300, got %dx%d", b.Dx(), b.Dy())
	}

	rec = proxyRequest(h, srv.URL+"/poster.png", "&w=200")
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected HIT, got %q", rec.Header().Get("X-Cache"))
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream fetch, got %d", hits.Load())
	}

	if err := h.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	rec = proxyRequest(h, srv.URL+"/poster.png", "&w=200")
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected MISS after clear, got %q", rec.Header().Get("X-Cache"))
	}
}

func TestImageProxyNeverUpscales(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 50, 80))
	}))
	defer srv.Close()

	h := NewImageHandler(afero.NewMemMapFs(), "cache", srv.URL)
	rec := proxyRequest(h, srv.URL+"/small.png", "&w=500")
	img, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 80 {
		t.Fatalf("expected original 50x80, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestImageProxyRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.jpg":
			http.NotFound(w, r)
		default:
			w.Write([]byte("<html>definitely not an image</html>"))
		}
	}))
	defer srv.Close()

	h := NewImageHandler(afero.NewMemMapFs(), "cache", srv.URL, "img.youtube.com")

	tests := []struct {
		name string
		src  string
		want int
	}{
		{"missing url", "", http.StatusBadRequest},
		{"foreign host", "https://evil.example/p.jpg", http.StatusForbidden},
		{"bad scheme", "file:///etc/passwd", http.StatusForbidden},
		{"upstream 404", srv.URL + "/missing.jpg", http.StatusNotFound},
		{"not an image", srv.URL + "/page.html", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := proxyRequest(h, tt.src, "")
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
