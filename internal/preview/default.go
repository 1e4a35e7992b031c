package preview

import (
	"go.uber.org/zap"

	"docpreview/internal/config"
	"docpreview/internal/convert"
	"docpreview/internal/workspace"
)

// NewDefault wires a Dispatcher with every backend, using pdftoppm, pdfcpu and
// LibreOffice as configured in cfg. The PDF and office backends share one pool of
// conversion slots. opts are applied after the configured ones.
func NewDefault(cfg config.PreviewConfig, ws *workspace.Manager, logger *zap.Logger, opts ...Option) *Dispatcher {
	slots := convert.NewSlots(cfg.MaxConcurrency)
	runner := convert.ExecRunner{}

	pdf := NewPDFBackend(ws, convert.NewPdftoppm(cfg.PdftoppmBin, cfg.RasterDPI, runner, slots), convert.NewPDFCPU(), logger)
	pdf.maxPixels = cfg.MaxInputPixels
	office := NewOfficeBackend(ws, convert.NewLibreOffice(cfg.SofficeBin, runner, slots), pdf)

	return NewDispatcher(append([]Option{
		WithBackend(CategoryImage, ImageBackend{MaxPixels: cfg.MaxInputPixels}),
		WithBackend(CategoryPDF, pdf),
		WithBackend(CategoryOffice, office),
		WithTimeout(cfg.Timeout),
		WithLogger(logger),
	}, opts...)...)
}
