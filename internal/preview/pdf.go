package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"go.uber.org/zap"

	"docpreview/internal/convert"
	"docpreview/internal/workspace"
)

// PDFBackend rasterizes the first page of a PDF in a private workspace.
type PDFBackend struct {
	workspaces *workspace.Manager
	rasterizer convert.Rasterizer
	pages      convert.PageCounter
	logger     *zap.Logger
	maxPixels  int
}

// NewPDFBackend wires a PDFBackend. pages may be nil to skip the page-count check.
func NewPDFBackend(ws *workspace.Manager, r convert.Rasterizer, pages convert.PageCounter, logger *zap.Logger) *PDFBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFBackend{workspaces: ws, rasterizer: r, pages: pages, logger: logger}
}

var _ Backend = (*PDFBackend)(nil)

func (p *PDFBackend) Render(ctx context.Context, in Input) ([]byte, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyBuffer
	}
	if err := p.checkPages(in.Data); err != nil {
		return nil, err
	}

	ws, err := p.workspaces.Acquire("pdf")
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	pdfPath, err := ws.WriteFile("input.pdf", in.Data)
	if err != nil {
		return nil, err
	}
	return p.renderFile(ctx, ws, pdfPath)
}

func (p *PDFBackend) checkPages(data []byte) error {
	if p.pages == nil {
		return nil
	}
	n, err := p.pages.PageCount(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedDocument, err)
	}
	if n < 1 {
		return fmt.Errorf("%w: pdf has no pages", ErrUnsupportedDocument)
	}
	return nil
}

// renderFile rasterizes pdfPath, which must live inside ws, and fits the page.
func (p *PDFBackend) renderFile(ctx context.Context, ws *workspace.Workspace, pdfPath string) ([]byte, error) {
	if err := p.rasterizer.Rasterize(ctx, pdfPath, ws.Path("page.png")); err != nil {
		return nil, err
	}
	raw, err := ws.ReadFile("page.png")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", convert.ErrConversionFailed, err)
	}
	if err := checkPixels(raw, p.maxPixels); err != nil {
		if errors.Is(err, ErrUnsupportedDocument) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: rasterizer output: %w", ErrMalformedOutput, err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: rasterizer output: %w", ErrMalformedOutput, err)
	}
	return encodePNG(fit(img, maxPreviewWidth, maxPreviewHeight))
}
