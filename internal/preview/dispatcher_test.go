package preview

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpreview/internal/convert"
)

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *Metrics) {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return NewDispatcher(append([]Option{WithMetrics(m)}, opts...)...), m
}

func TestDispatcher_RendersImage(t *testing.T) {
	d, m := newTestDispatcher(t)

	res := d.Render(context.Background(), Input{Data: pngOf(t, 2000, 1000, color.White), ContentType: "image/png", Name: "a.png"})

	assert.Equal(t, StateRendered, res.State)
	assert.Equal(t, CategoryImage, res.Category)
	assert.Equal(t, ContentTypePNG, res.ContentType)
	assert.NoError(t, res.Err)
	img := decodePNG(t, res.PNG)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("image", "rendered")))
}

func TestDispatcher_Unsupported(t *testing.T) {
	d, m := newTestDispatcher(t)

	res := d.Render(context.Background(), Input{Data: []byte("PK\x03\x04"), ContentType: "application/zip", Name: "bundle_v1.zip"})

	assert.Equal(t, StateFallback, res.State)
	assert.Equal(t, CategoryUnknown, res.Category)
	assert.NoError(t, res.Err)
	img := decodePNG(t, res.PNG)
	assert.Equal(t, unsupportedBackground, rgbaAt(img, 0, 0))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("unknown", "unsupported")))
}

func TestDispatcher_MissingBackendIsUnsupported(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res := d.Render(context.Background(), Input{Data: []byte("%PDF"), ContentType: "application/pdf", Name: "a.pdf"})

	assert.Equal(t, StateFallback, res.State)
	assert.Equal(t, CategoryPDF, res.Category)
	assert.NoError(t, res.Err)
}

func TestDispatcher_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		timeout time.Duration
		wantErr error
	}{
		{
			name: "backend error",
			backend: BackendFunc(func(context.Context, Input) ([]byte, error) {
				return nil, convert.ErrConversionFailed
			}),
			wantErr: convert.ErrConversionFailed,
		},
		{
			name: "malformed output",
			backend: BackendFunc(func(context.Context, Input) ([]byte, error) {
				return []byte("GIF89a"), nil
			}),
			wantErr: ErrMalformedOutput,
		},
		{
			name: "backend ignores its context",
			backend: BackendFunc(func(context.Context, Input) ([]byte, error) {
				time.Sleep(200 * time.Millisecond)
				return nil, nil
			}),
			timeout: 20 * time.Millisecond,
			wantErr: convert.ErrTimeoutExceeded,
		},
		{
			name: "backend honours its context",
			backend: BackendFunc(func(ctx context.Context, _ Input) ([]byte, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
			timeout: 20 * time.Millisecond,
			wantErr: convert.ErrTimeoutExceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, m := newTestDispatcher(t, WithBackend(CategoryPDF, tt.backend), WithTimeout(tt.timeout))

			res := d.Render(context.Background(), Input{Data: []byte("%PDF"), ContentType: "application/pdf"})

			assert.Equal(t, StateFallback, res.State)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			img := decodePNG(t, res.PNG)
			assert.Equal(t, placeholderWidth, img.Bounds().Dx())
			assert.Equal(t, errorBackground, rgbaAt(img, 0, 0))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("pdf", "error")))
		})
	}
}

// stuckRasterizer blocks until its context ends, then takes teardown to exit.
type stuckRasterizer struct{ teardown time.Duration }

func (s stuckRasterizer) Rasterize(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	time.Sleep(s.teardown)
	return ctx.Err()
}

func TestDispatcher_TimeoutReleasesWorkspaceBeforeFallback(t *testing.T) {
	ws := newManager(t)
	d, _ := newTestDispatcher(t,
		WithBackend(CategoryPDF, NewPDFBackend(ws, stuckRasterizer{teardown: 150 * time.Millisecond}, nil, nil)),
		WithTimeout(20*time.Millisecond),
	)

	res := d.Render(context.Background(), Input{Data: []byte("%PDF-1.7"), ContentType: "application/pdf"})

	assert.Equal(t, StateFallback, res.State)
	assert.ErrorIs(t, res.Err, convert.ErrTimeoutExceeded)
	assertNoWorkspaces(t, ws)
}

func TestDispatcher_AbandonsBackendAfterGrace(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	d, _ := newTestDispatcher(t,
		WithBackend(CategoryPDF, BackendFunc(func(context.Context, Input) ([]byte, error) {
			<-release
			return nil, nil
		})),
		WithTimeout(10*time.Millisecond),
		WithGrace(10*time.Millisecond),
	)

	start := time.Now()
	res := d.Render(context.Background(), Input{Data: []byte("%PDF"), ContentType: "application/pdf"})

	assert.Equal(t, StateFallback, res.State)
	assert.ErrorIs(t, res.Err, convert.ErrTimeoutExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d, _ := newTestDispatcher(t, WithBackend(CategoryText, BackendFunc(func(context.Context, Input) ([]byte, error) {
		panic("boom")
	})))

	res := d.Render(context.Background(), Input{Data: []byte("hello"), ContentType: "text/plain"})

	assert.Equal(t, StateFallback, res.State)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
}

func TestDispatcher_EmptyBufferFallsBack(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res := d.Render(context.Background(), Input{ContentType: "image/png"})

	assert.Equal(t, StateFallback, res.State)
	assert.True(t, errors.Is(res.Err, ErrEmptyBuffer))
	assert.NotEmpty(t, res.PNG)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestDispatcher_NilMetrics(t *testing.T) {
	d := NewDispatcher()
	res := d.Render(context.Background(), Input{Data: []byte("hi"), ContentType: "text/plain"})
	assert.Equal(t, StateRendered, res.State)
	assert.Equal(t, 800, decodePNG(t, res.PNG).Bounds().Dx())
}
