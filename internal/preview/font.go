package preview

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Parsed fonts are safe for concurrent use; faces are not, so faces are built per render.
var (
	regularFont = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(goregular.TTF) })
	monoFont    = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(gomono.TTF) })
)

type faceKey struct {
	mono bool
	size float64
}

// faceCache hands out faces for a single rasterization.
type faceCache struct {
	faces map[faceKey]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[faceKey]font.Face)}
}

func (fc *faceCache) face(mono bool, size float64) (font.Face, error) {
	key := faceKey{mono: mono, size: size}
	if f, ok := fc.faces[key]; ok {
		return f, nil
	}
	load := regularFont
	if mono {
		load = monoFont
	}
	f, err := load()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	fc.faces[key] = face
	return face, nil
}

func (fc *faceCache) Close() {
	for _, f := range fc.faces {
		_ = f.Close()
	}
}

// measure returns the advance width of s in pixels.
func measure(mono bool, size float64, s string) (int, error) {
	fc := newFaceCache()
	defer fc.Close()
	face, err := fc.face(mono, size)
	if err != nil {
		return 0, err
	}
	return font.MeasureString(face, s).Ceil(), nil
}
