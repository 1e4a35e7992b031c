package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Pdftoppm rasterizes the first PDF page with poppler's pdftoppm.
type Pdftoppm struct {
	tool
	dpi int
}

// NewPdftoppm returns a Rasterizer invoking bin at the given resolution.
func NewPdftoppm(bin string, dpi int, runner Runner, slots *Slots) *Pdftoppm {
	if dpi <= 0 {
		dpi = 110
	}
	return &Pdftoppm{tool: tool{name: "pdftoppm", bin: bin, runner: runner, slots: slots}, dpi: dpi}
}

var _ Rasterizer = (*Pdftoppm)(nil)

// Rasterize writes page 1 of pdfPath to outPath, which must end in .png.
func (p *Pdftoppm) Rasterize(ctx context.Context, pdfPath, outPath string) error {
	if !strings.HasSuffix(outPath, ".png") {
		return fmt.Errorf("%w: output %q is not a .png path", ErrConversionFailed, outPath)
	}
	// -singlefile writes <root>.png instead of <root>-1.png.
	root := strings.TrimSuffix(outPath, ".png")
	args := []string{
		"-png",
		"-f", "1", "-l", "1",
		"-singlefile",
		"-r", strconv.Itoa(p.dpi),
		pdfPath, root,
	}
	if err := p.run(ctx, filepath.Dir(outPath), nil, args...); err != nil {
		return err
	}
	if fi, err := os.Stat(outPath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("%w: pdftoppm produced no output", ErrConversionFailed)
	}
	return nil
}
