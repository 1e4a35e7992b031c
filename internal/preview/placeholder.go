package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"strings"
)

const (
	placeholderWidth    = 600
	placeholderHeight   = 300
	placeholderFontSize = 16
	placeholderPadding  = 40
)

var (
	errorBackground       = color.RGBA{255, 200, 200, 255}
	unsupportedBackground = color.RGBA{240, 240, 240, 255}
)

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeText makes s safe to embed as SVG character data.
func escapeText(s string) string { return textEscaper.Replace(strings.Map(xmlRune, s)) }

// xmlRune maps runes XML 1.0 forbids in character data to U+FFFD.
func xmlRune(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r < 0x20, r == 0xFFFE, r == 0xFFFF:
		return '\uFFFD'
	}
	return r
}

func placeholderSVG(width, height int, background, foreground, message string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, background)
	fmt.Fprintf(&b, `<text x="50%%" y="50%%" font-family="sans-serif" font-size="%d" fill="%s" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		placeholderFontSize, foreground, escapeText(message))
	b.WriteString(`</svg>`)
	return b.Bytes()
}

func errorMessage(c Category) string {
	return "Failed to generate " + c.Label() + " preview"
}

func unsupportedMessage(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		ext = "UNKNOWN"
	}
	return "No preview available for " + strings.ToUpper(ext) + " files"
}

// errorDescriptor is the SVG for a failed render of category c.
func errorDescriptor(c Category) []byte {
	return placeholderSVG(placeholderWidth, placeholderHeight, "rgb(255,200,200)", "red", errorMessage(c))
}

// unsupportedDescriptor is the SVG for a file nothing can render. The canvas widens
// to fit long extensions.
func unsupportedDescriptor(name string) ([]byte, int) {
	msg := unsupportedMessage(name)
	width := placeholderWidth
	if w, err := measure(false, placeholderFontSize, msg); err == nil {
		width = min(max(width, w+2*placeholderPadding), maxCanvas)
	}
	return placeholderSVG(width, placeholderHeight, "rgb(240,240,240)", "gray", msg), width
}

// ErrorPlaceholder renders the "failed to generate" image for category c.
func ErrorPlaceholder(c Category) []byte {
	return rasterizeOr(errorDescriptor(c), placeholderWidth, placeholderHeight, errorBackground)
}

// UnsupportedPlaceholder renders the "no preview available" image for a file name.
func UnsupportedPlaceholder(name string) []byte {
	svg, width := unsupportedDescriptor(name)
	return rasterizeOr(svg, width, placeholderHeight, unsupportedBackground)
}

// rasterizeOr falls back to a plain image of the same size if svg cannot be drawn.
func rasterizeOr(svg []byte, width, height int, background color.RGBA) []byte {
	if out, err := RasterizeSVG(svg); err == nil {
		return out
	}
	return solidPNG(width, height, background)
}

func solidPNG(width, height int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	out, err := encodePNG(img)
	if err != nil {
		// An in-memory RGBA always encodes.
		panic(err)
	}
	return out
}
