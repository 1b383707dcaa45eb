// Package imagery captures the native pixel size of a map image by decoding
// its header. Native dimensions must come from the file itself, never from a
// scaled rendering.
package imagery

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when the image header is not recognized.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Info describes a decoded image header.
type Info struct {
	Width  int
	Height int
	Format string
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Probe reads the dimensions of the image at location, which may be an
// http(s) URL or a local file path.
func Probe(ctx context.Context, location string) (Info, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return probeURL(ctx, location)
	}

	f, err := os.Open(location)
	if err != nil {
		return Info{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads only the image header from r.
func Decode(r io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnsupportedFormat
		}
		return Info{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("image has no size (%dx%d)", cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func probeURL(ctx context.Context, url string) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Info{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return Decode(resp.Body)
}
