// Package convert drives the external tools used to turn documents into rasters:
// pdftoppm for PDF pages and LibreOffice for office formats.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrConversionFailed covers non-zero exits, missing binaries and missing output.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrTimeoutExceeded is returned when the deadline passes while waiting for a slot
	// or while the tool runs.
	ErrTimeoutExceeded = errors.New("conversion timeout exceeded")
)

// Rasterizer renders the first page of a PDF file to a PNG file.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outPath string) error
}

// Converter turns an office document into a PDF inside outDir and returns its path.
type Converter interface {
	ConvertToPDF(ctx context.Context, inPath, outDir string) (string, error)
}

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// Slots bounds how many external conversions run at once.
type Slots struct {
	sem *semaphore.Weighted
}

// NewSlots returns a limiter admitting n concurrent conversions (at least one).
func NewSlots(n int64) *Slots {
	if n < 1 {
		n = 1
	}
	return &Slots{sem: semaphore.NewWeighted(n)}
}

// Acquire waits for a free slot. Waiting counts against ctx's deadline.
func (s *Slots) Acquire(ctx context.Context) (func(), error) {
	if s == nil {
		return func() {}, nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, mapCtxErr(ctx, err)
	}
	return func() { s.sem.Release(1) }, nil
}

// tool runs one external binary through a Runner inside a conversion slot.
type tool struct {
	name   string
	bin    string
	runner Runner
	slots  *Slots
}

func (t tool) run(ctx context.Context, dir string, env []string, args ...string) error {
	release, err := t.slots.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	defer release()

	_, stderr, code, err := t.runner.Run(ctx, t.bin, args, env, dir)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", t.name, mapCtxErr(ctx, ctx.Err()))
	}
	msg := strings.TrimSpace(string(stderr))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg != "" {
		return fmt.Errorf("%w: %s exited with code %d: %s", ErrConversionFailed, t.name, code, msg)
	}
	return fmt.Errorf("%w: %s exited with code %d: %w", ErrConversionFailed, t.name, code, err)
}

func mapCtxErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeoutExceeded, err)
	}
	return err
}
