package preview

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpreview/internal/config"
)

func TestNewDefault(t *testing.T) {
	cfg := config.PreviewConfig{
		Timeout:        7 * time.Second,
		MaxConcurrency: 2,
		PdftoppmBin:    "pdftoppm",
		SofficeBin:     "soffice",
		RasterDPI:      110,
		MaxInputPixels: 1000,
	}
	d := NewDefault(cfg, newManager(t), nil, WithTimeout(3*time.Second))

	assert.Equal(t, 3*time.Second, d.timeout, "caller options win")
	require.IsType(t, &PDFBackend{}, d.backends[CategoryPDF])
	assert.Equal(t, 1000, d.backends[CategoryPDF].(*PDFBackend).maxPixels)
	assert.IsType(t, &OfficeBackend{}, d.backends[CategoryOffice])
	assert.Equal(t, ImageBackend{MaxPixels: 1000}, d.backends[CategoryImage])
	assert.IsType(t, TextBackend{}, d.backends[CategoryText])

	res := d.Render(context.Background(), Input{Data: pngOf(t, 40, 40, color.White), ContentType: "image/png"})
	assert.Equal(t, StateFallback, res.State)
	assert.ErrorIs(t, res.Err, ErrUnsupportedDocument)
}
