package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	maxPreviewWidth  = 800
	maxPreviewHeight = 800

	// DefaultMaxInputPixels caps the canvas a header may declare before the frame is decoded.
	DefaultMaxInputPixels = 50_000_000
)

// ImageBackend decodes raster images and scales them into the preview box.
type ImageBackend struct {
	// MaxPixels overrides DefaultMaxInputPixels when positive.
	MaxPixels int
}

var _ Backend = ImageBackend{}

func (b ImageBackend) Render(ctx context.Context, in Input) ([]byte, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyBuffer
	}
	if err := checkPixels(in.Data, b.MaxPixels); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := encodePNG(fit(img, maxPreviewWidth, maxPreviewHeight))
	if err != nil {
		return nil, fmt.Errorf("%s thumbnail: %w", format, err)
	}
	return out, nil
}

// checkPixels reads only the image header and rejects canvases above limit pixels.
func checkPixels(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxInputPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedDocument, cfg.Width, cfg.Height, limit)
	}
	return nil
}

// fitSize returns the largest size within maxW×maxH with the aspect ratio of w×h.
// Images already inside the box keep their size.
func fitSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}

// fit scales img down to fit within maxW×maxH. It never upscales.
func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
