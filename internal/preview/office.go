package preview

import (
	"context"
	"fmt"
	"os"

	"docpreview/internal/convert"
	"docpreview/internal/workspace"
)

// OfficeBackend converts office documents to PDF and renders them with a PDFBackend.
// Nothing is cached between calls.
type OfficeBackend struct {
	workspaces *workspace.Manager
	converter  convert.Converter
	pdf        *PDFBackend
}

func NewOfficeBackend(ws *workspace.Manager, c convert.Converter, pdf *PDFBackend) *OfficeBackend {
	return &OfficeBackend{workspaces: ws, converter: c, pdf: pdf}
}

var _ Backend = (*OfficeBackend)(nil)

func (o *OfficeBackend) Render(ctx context.Context, in Input) ([]byte, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyBuffer
	}
	ext := officeTypes[normalizeType(in.ContentType)]
	if ext == "" {
		return nil, fmt.Errorf("%w: %s is not an office type", ErrUnsupportedDocument, in.ContentType)
	}

	ws, err := o.workspaces.Acquire("office")
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	inPath, err := ws.WriteFile("input"+ext, in.Data)
	if err != nil {
		return nil, err
	}
	pdfPath, err := o.converter.ConvertToPDF(ctx, inPath, ws.Dir())
	if err != nil {
		return nil, err
	}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", convert.ErrConversionFailed, err)
	}
	if err := o.pdf.checkPages(pdf); err != nil {
		return nil, err
	}
	return o.pdf.renderFile(ctx, ws, pdfPath)
}
