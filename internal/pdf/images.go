package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var dataURIPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.+)$`)

// Images above these bounds are dropped before decoding.
const (
	maxImageSide   = 10000
	maxImagePixels = 25_000_000
)

var errImageTooLarge = errors.New("image dimensions too large")

// loadImage resolves a data URI or an http(s) URL from an allowed source to
// PNG bytes gofpdf can embed. Any failure yields nil.
func (r *GofpdfRenderer) loadImage(ctx context.Context, src *string) []byte {
	if src == nil {
		return nil
	}
	s := strings.TrimSpace(*src)
	if s == "" {
		return nil
	}

	var raw []byte
	switch {
	case strings.HasPrefix(s, "data:"):
		m := dataURIPattern.FindStringSubmatch(s)
		if m == nil {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			return nil
		}
		raw = decoded
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		if err != nil || !r.allowedSource(u) {
			r.log.Debug("Skipping invoice image from unlisted source", zap.String("url", s))
			return nil
		}
		u.Path, u.RawPath = path.Clean("/"+u.Path), ""
		fetched, err := r.fetch(ctx, u.String())
		if err != nil {
			r.log.Debug("Skipping invoice image", zap.String("url", s), zap.Error(err))
			return nil
		}
		raw = fetched
	default:
		return nil
	}

	out, err := toPNG(raw)
	if err != nil {
		r.log.Debug("Skipping undecodable invoice image", zap.Error(err))
		return nil
	}
	return out
}

// allowedSource reports whether u lies under one of the configured prefixes.
func (r *GofpdfRenderer) allowedSource(u *url.URL) bool {
	if u == nil || u.User != nil || u.Host == "" {
		return false
	}
	clean := path.Clean("/" + u.Path)
	for _, src := range r.sources {
		if !strings.EqualFold(u.Scheme, src.Scheme) || !strings.EqualFold(u.Host, src.Host) {
			continue
		}
		if src.Path == "/" || strings.HasPrefix(clean+"/", src.Path) {
			return true
		}
	}
	return false
}

func (r *GofpdfRenderer) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.imageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, r.maxImageBytes))
}

// toPNG re-encodes any decodable image as 8-bit non-interlaced PNG, the one
// PNG flavour gofpdf always accepts.
func toPNG(raw []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if cfg.Width > maxImageSide || cfg.Height > maxImageSide || cfg.Width*cfg.Height > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", errImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	nrgba := image.NewNRGBA(img.Bounds())
	draw.Draw(nrgba, nrgba.Bounds(), img, img.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
