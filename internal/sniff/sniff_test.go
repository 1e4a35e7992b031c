package sniff

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		buf         func(t *testing.T) []byte
		declared    string
		wantMIME    string
		wantExt     string
		wantLogical string
		wantSpoofed bool
		wantErr     error
	}{
		{
			name:        "png renamed to jpg",
			buf:         pngBytes,
			declared:    "photo.jpg",
			wantMIME:    "image/png",
			wantExt:     ".png",
			wantLogical: "photo.png",
			wantSpoofed: true,
		},
		{
			name:        "plain text without extension",
			buf:         func(*testing.T) []byte { return []byte("hello world\nsecond line\n") },
			declared:    "notes",
			wantMIME:    "text/plain",
			wantExt:     ".txt",
			wantLogical: "notes.txt",
			wantSpoofed: true,
		},
		{
			name:        "json",
			buf:         func(*testing.T) []byte { return []byte(`{"name": "report", "pages": 3}`) },
			declared:    "data.json",
			wantMIME:    "application/json",
			wantExt:     ".json",
			wantLogical: "data.json",
		},
		{
			name:        "pdf with directories and upper-case extension",
			buf:         func(*testing.T) []byte { return []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n") },
			declared:    "../../etc/report.PDF",
			wantMIME:    "application/pdf",
			wantExt:     ".pdf",
			wantLogical: "report.pdf",
		},
		{
			name:        "empty base name",
			buf:         pngBytes,
			declared:    ".png",
			wantMIME:    "image/png",
			wantExt:     ".png",
			wantLogical: "document.png",
		},
		{
			name:     "empty buffer",
			buf:      func(*testing.T) []byte { return nil },
			declared: "empty.txt",
			wantErr:  ErrUnrecognizedType,
		},
		{
			name:     "binary without signature",
			buf:      func(*testing.T) []byte { return []byte{0x00, 0x9f, 0x92, 0x96, 0x00, 0xff, 0x10, 0x80, 0x00, 0x07} },
			declared: "payload.jpg",
			wantErr:  ErrUnrecognizedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Detect(tt.buf(t), tt.declared)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, res.MIME)
			assert.Equal(t, tt.wantExt, res.Extension)
			assert.Equal(t, tt.wantLogical, res.LogicalName())
			assert.Equal(t, tt.wantSpoofed, res.Spoofed())
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", ExtensionFor("image/png"))
	assert.Equal(t, ".docx", ExtensionFor("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, ".txt", ExtensionFor("text/plain; charset=utf-8"))
	assert.Equal(t, "", ExtensionFor("application/x-not-a-real-type"))
}
