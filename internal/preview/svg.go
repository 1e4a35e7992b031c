package preview

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// maxCanvas caps descriptor dimensions.
const maxCanvas = 4096

// The rasterizer understands the small SVG subset the placeholders and the text
// backend emit: a sized <svg> root holding <rect> and <text> children.
type svgRoot struct {
	XMLName  xml.Name  `xml:"svg"`
	Width    string    `xml:"width,attr"`
	Height   string    `xml:"height,attr"`
	Children []svgNode `xml:",any"`
}

type svgNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
}

func (n svgNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// RasterizeSVG draws an SVG descriptor and encodes it as PNG.
func RasterizeSVG(svg []byte) ([]byte, error) {
	img, err := rasterize(svg)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func rasterize(svg []byte) (*image.RGBA, error) {
	var root svgRoot
	if err := xml.Unmarshal(svg, &root); err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	w, err := parseDimension(root.Width)
	if err != nil {
		return nil, fmt.Errorf("svg width: %w", err)
	}
	h, err := parseDimension(root.Height)
	if err != nil {
		return nil, fmt.Errorf("svg height: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	faces := newFaceCache()
	defer faces.Close()

	for _, n := range root.Children {
		switch n.XMLName.Local {
		case "rect":
			drawRect(img, n)
		case "text":
			if err := drawText(img, faces, n); err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}

func drawRect(img *image.RGBA, n svgNode) {
	b := img.Bounds()
	x := length(n.attr("x"), b.Dx(), 0)
	y := length(n.attr("y"), b.Dy(), 0)
	w := length(n.attr("width"), b.Dx(), 0)
	h := length(n.attr("height"), b.Dy(), 0)
	fill, ok := parseColor(n.attr("fill"))
	if !ok {
		fill = color.RGBA{A: 0xff}
	}
	r := image.Rect(round(x), round(y), round(x+w), round(y+h)).Intersect(b)
	draw.Draw(img, r, image.NewUniform(fill), image.Point{}, draw.Over)
}

func drawText(img *image.RGBA, faces *faceCache, n svgNode) error {
	content := n.Text
	if n.attr("space") == "preserve" {
		content = strings.NewReplacer("\r", "", "\n", "").Replace(content)
	} else {
		content = strings.Join(strings.Fields(content), " ")
	}
	if content == "" {
		return nil
	}

	size := 16.0
	if v, err := strconv.ParseFloat(strings.TrimSuffix(n.attr("font-size"), "px"), 64); err == nil && v > 0 {
		size = v
	}
	face, err := faces.face(isMonospace(n.attr("font-family")), size)
	if err != nil {
		return err
	}
	fill, ok := parseColor(n.attr("fill"))
	if !ok {
		fill = color.RGBA{A: 0xff}
	}

	b := img.Bounds()
	x := length(n.attr("x"), b.Dx(), 0)
	y := length(n.attr("y"), b.Dy(), 0)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(fill), Face: face}
	advance := float64(d.MeasureString(content)) / 64
	switch n.attr("text-anchor") {
	case "middle":
		x -= advance / 2
	case "end":
		x -= advance
	}
	if n.attr("dominant-baseline") == "middle" {
		m := face.Metrics()
		y += float64(m.Ascent-m.Descent) / 64 / 2
	}

	d.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
	d.DrawString(content)
	return nil
}

func isMonospace(family string) bool {
	f := strings.ToLower(family)
	return strings.Contains(f, "mono") || strings.Contains(f, "courier")
}

func parseDimension(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	if err != nil {
		return 0, err
	}
	n := round(v)
	if n <= 0 || n > maxCanvas {
		return 0, fmt.Errorf("dimension %q out of range", s)
	}
	return n, nil
}

// length resolves an absolute or percentage length against ref.
func length(s string, ref int, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return def
		}
		return v / 100 * float64(ref)
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "px"), 64)
	if err != nil {
		return def
	}
	return v
}

func round(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

var namedColors = map[string]color.RGBA{
	"black":     {0, 0, 0, 0xff},
	"white":     {0xff, 0xff, 0xff, 0xff},
	"red":       {0xff, 0, 0, 0xff},
	"green":     {0, 0x80, 0, 0xff},
	"blue":      {0, 0, 0xff, 0xff},
	"gray":      {0x80, 0x80, 0x80, 0xff},
	"grey":      {0x80, 0x80, 0x80, 0xff},
	"lightgray": {0xd3, 0xd3, 0xd3, 0xff},
	"darkgray":  {0xa9, 0xa9, 0xa9, 0xff},
	"none":      {},
}

// parseColor understands #rgb, #rrggbb, rgb(), rgba() and namedColors.
func parseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	var inner string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		inner = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		inner = s[4 : len(s)-1]
	default:
		return color.RGBA{}, false
	}

	parts := strings.Split(inner, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return color.RGBA{}, false
		}
		ch[i] = uint8(v)
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.RGBA{}, false
		}
		alpha = a
	}
	// color.RGBA is alpha-premultiplied.
	a := uint8(alpha*255 + 0.5)
	pm := func(v uint8) uint8 { return uint8(uint32(v) * uint32(a) / 0xff) }
	return color.RGBA{R: pm(ch[0]), G: pm(ch[1]), B: pm(ch[2]), A: a}, true
}

func parseHex(h string) (color.RGBA, bool) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
