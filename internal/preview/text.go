package preview

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

const (
	textMaxRunes   = 2000
	textMargin     = 20
	textLineHeight = 24
	textFontSize   = 16
	textWidth      = 800
	textMaxHeight  = 600
)

// TextBackend draws the beginning of a text file in a monospace font.
type TextBackend struct{}

var _ Backend = TextBackend{}

func (TextBackend) Render(ctx context.Context, in Input) ([]byte, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyBuffer
	}
	svg := textDescriptor(in.Data)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := RasterizeSVG(svg)
	if err != nil {
		return nil, fmt.Errorf("text preview: %w", err)
	}
	return out, nil
}

// textLines decodes data as UTF-8 and returns the lines of its first textMaxRunes runes.
func textLines(data []byte) []string {
	s := strings.ToValidUTF8(string(data), "\uFFFD")
	if r := []rune(s); len(r) > textMaxRunes {
		s = string(r[:textMaxRunes])
	}
	s = strings.Map(xmlRune, strings.NewReplacer("\r", "", "\t", "    ").Replace(s))
	return strings.Split(s, "\n")
}

func textDescriptor(data []byte) []byte {
	lines := textLines(data)
	height := min(textMaxHeight, 2*textMargin+len(lines)*textLineHeight)

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, textWidth, height)
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>`)
	for i, line := range lines {
		y := textMargin + i*textLineHeight
		if y > height {
			break
		}
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, `<text xml:space="preserve" x="%d" y="%d" font-family="monospace" font-size="%d" fill="black">%s</text>`,
			textMargin, y, textFontSize, escapeText(line))
	}
	b.WriteString(`</svg>`)
	return b.Bytes()
}
