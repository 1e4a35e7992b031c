package convert

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LibreOffice converts office documents to PDF with a headless soffice.
// Each call uses its own profile directory so concurrent conversions do not collide.
type LibreOffice struct {
	tool
}

// NewLibreOffice returns a Converter invoking bin.
func NewLibreOffice(bin string, runner Runner, slots *Slots) *LibreOffice {
	return &LibreOffice{tool: tool{name: "soffice", bin: bin, runner: runner, slots: slots}}
}

var _ Converter = (*LibreOffice)(nil)

func (l *LibreOffice) ConvertToPDF(ctx context.Context, inPath, outDir string) (string, error) {
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	profile := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(absOut, "profile"))}
	args := []string{
		"-env:UserInstallation=" + profile.String(),
		"--headless",
		"--norestore",
		"--convert-to", "pdf",
		"--outdir", absOut,
		inPath,
	}
	// soffice wants a writable HOME even with a private profile.
	env := append(os.Environ(), "HOME="+absOut)
	if err := l.run(ctx, absOut, env, args...); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	pdfPath := filepath.Join(absOut, base+".pdf")
	if fi, err := os.Stat(pdfPath); err != nil || fi.Size() == 0 {
		return "", fmt.Errorf("%w: soffice produced no output", ErrConversionFailed)
	}
	return pdfPath, nil
}
