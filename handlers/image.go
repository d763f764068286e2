package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	maxImageWidth  = 2000
	maxImageBytes  = 20 << 20
	defaultQuality = 80
)

var errImageUnsupported = errors.New("unsupported image type")

type upstreamStatusError struct{ code int }

func (e upstreamStatusError) Error() string { return fmt.Sprintf("image source returned %d", e.code) }

// ImageHandler proxies remote artwork, downscales it and keeps the re-encoded
// JPEG on disk.
type ImageHandler struct {
	fs           afero.Fs
	cacheDir     string
	httpc        *http.Client
	allowedHosts map[string]struct{}
	group        singleflight.Group
}

// NewImageHandler accepts sources only from allowedHosts. Each entry may be a
// bare host or a URL.
func NewImageHandler(fs afero.Fs, cacheDir string, allowedHosts ...string) *ImageHandler {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	imgCacheDir := filepath.Join(cacheDir, "images")
	if err := fs.MkdirAll(imgCacheDir, 0o755); err != nil {
		log.Printf("[images] could not create cache dir %s: %v", imgCacheDir, err)
	}
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		if u, err := url.Parse(h); err == nil && u.Host != "" {
			h = u.Hostname()
		}
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &ImageHandler{
		fs:           fs,
		cacheDir:     imgCacheDir,
		httpc:        &http.Client{Timeout: 30 * time.Second},
		allowedHosts: hosts,
	}
}

// Proxy serves GET /api/images.
// Query params:
//   - url: source image URL (required)
//   - w: target width, 0 keeps the original
//   - q: JPEG quality 1-100, default 80
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	sourceURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	if !h.allowed(sourceURL) {
		writeError(w, http.StatusForbidden, "url not allowed")
		return
	}

	width := queryInt(r, "w", 0)
	if width > maxImageWidth {
		width = 0
	}
	quality := queryInt(r, "q", defaultQuality)
	if quality < 1 || quality > 100 {
		quality = defaultQuality
	}

	key := h.cacheKey(sourceURL, width, quality)
	cachePath := filepath.Join(h.cacheDir, key+".jpg")
	if data, err := afero.ReadFile(h.fs, cachePath); err == nil {
		h.serve(w, data, "HIT")
		return
	}

	v, err, _ := h.group.Do(key, func() (any, error) {
		return h.fetchAndStore(sourceURL, cachePath, width, quality)
	})
	if err != nil {
		log.Printf("[images] %s: %v", sourceURL, err)
		var statusErr upstreamStatusError
		switch {
		case errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound:
			writeError(w, http.StatusNotFound, "image not found")
		case errors.Is(err, errImageUnsupported):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, http.StatusBadGateway, "failed to load image")
		}
		return
	}
	h.serve(w, v.([]byte), "MISS")
}

func (h *ImageHandler) allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	_, ok := h.allowedHosts[strings.ToLower(u.Hostname())]
	return ok
}

func (h *ImageHandler) fetchAndStore(sourceURL, cachePath string, width, quality int) ([]byte, error) {
	resp, err := h.httpc.Get(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamStatusError{code: resp.StatusCode}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	mt := mimetype.Detect(raw)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") && !mt.Is("image/webp") && !mt.Is("image/gif") {
		return nil, fmt.Errorf("%w: %s", errImageUnsupported, mt.String())
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	img = downscale(img, width)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	data := buf.Bytes()

	tmpPath := cachePath + ".tmp"
	if err := afero.WriteFile(h.fs, tmpPath, data, 0o644); err != nil {
		log.Printf("[images] cache write: %v", err)
		return data, nil
	}
	if err := h.fs.Rename(tmpPath, cachePath); err != nil {
		_ = h.fs.Remove(tmpPath)
		log.Printf("[images] cache rename: %v", err)
	}
	return data, nil
}

// downscale shrinks img to width keeping its aspect ratio. Upscaling is never
// done.
func downscale(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if width <= 0 || width >= bounds.Dx() {
		return img
	}
	height := int(float64(bounds.Dy()) * float64(width) / float64(bounds.Dx()))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func (h *ImageHandler) serve(w http.ResponseWriter, data []byte, cacheState string) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=2592000") // 30 days
	w.Header().Set("X-Cache", cacheState)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (h *ImageHandler) cacheKey(src string, width, quality int) string {
	data := fmt.Sprintf("%s|%d|%d", src, width, quality)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// ClearCache removes all cached images.
func (h *ImageHandler) ClearCache() error {
	entries, err := afero.ReadDir(h.fs, h.cacheDir)
	if err != nil {
		return err
	}
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jpg") {
			if err := h.fs.Remove(filepath.Join(h.cacheDir, entry.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
