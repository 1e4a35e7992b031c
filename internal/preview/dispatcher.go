package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"docpreview/internal/convert"
)

const (
	defaultTimeout = 30 * time.Second
	// defaultGrace bounds how long a timed-out backend gets to release its workspace.
	defaultGrace = 5 * time.Second
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Dispatcher routes inputs to the Backend registered for their category.
type Dispatcher struct {
	backends map[Category]Backend
	timeout  time.Duration
	grace    time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithBackend registers b for category c, replacing any previous backend.
func WithBackend(c Category, b Backend) Option {
	return func(d *Dispatcher) { d.backends[c] = b }
}

// WithTimeout bounds each backend call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithGrace bounds the wait for a timed-out backend to tear down.
func WithGrace(g time.Duration) Option {
	return func(d *Dispatcher) {
		if g > 0 {
			d.grace = g
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher returns a Dispatcher with the in-process Image and Text backends
// registered. PDF and office backends need external tools and are added with WithBackend.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backends: map[Category]Backend{
			CategoryImage: ImageBackend{},
			CategoryText:  TextBackend{},
		},
		timeout: defaultTimeout,
		grace:   defaultGrace,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("docpreview/internal/preview"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Render always returns a PNG: the backend's output, or a placeholder describing why
// there is none.
func (d *Dispatcher) Render(ctx context.Context, in Input) Result {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "preview.Render", trace.WithAttributes(
		attribute.String("preview.content_type", in.ContentType),
		attribute.Int("preview.input_bytes", len(in.Data)),
	))
	defer span.End()

	res := Result{ContentType: ContentTypePNG, State: StateReceived}

	res.Category = Classify(in.ContentType)
	res.State = StateClassified
	span.SetAttributes(attribute.String("preview.category", res.Category.metricLabel()))

	backend, ok := d.backends[res.Category]
	if res.Category == CategoryUnknown || !ok {
		res.State = StateFallback
		res.PNG = UnsupportedPlaceholder(in.Name)
		d.finish(span, &res, "unsupported", start)
		return res
	}

	res.State = StateRendering
	out, err := d.invoke(ctx, backend, in)
	if err == nil && !bytes.HasPrefix(out, pngSignature) {
		err = ErrMalformedOutput
	}
	if err != nil {
		res.State = StateFallback
		res.Err = err
		res.PNG = ErrorPlaceholder(res.Category)
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		d.logger.Warn("preview_fallback",
			zap.String("component", "preview"),
			zap.String("category", string(res.Category)),
			zap.String("content_type", in.ContentType),
			zap.Error(err),
		)
		d.finish(span, &res, "error", start)
		return res
	}

	res.State = StateRendered
	res.PNG = out
	d.finish(span, &res, "rendered", start)
	return res
}

func (d *Dispatcher) finish(span trace.Span, res *Result, outcome string, start time.Time) {
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("preview.state", string(res.State)),
		attribute.String("preview.outcome", outcome),
	)
	d.metrics.observe(res.Category, outcome, elapsed)
	d.logger.Debug("preview_rendered",
		zap.String("component", "preview"),
		zap.String("category", res.Category.metricLabel()),
		zap.String("outcome", outcome),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
}

type backendResult struct {
	out []byte
	err error
}

// invoke runs b under the dispatcher timeout. On expiry it waits up to the grace period
// for the backend to stop its subprocess and release its workspace; a backend that
// ignores its context past that is abandoned.
func (d *Dispatcher) invoke(ctx context.Context, b Backend, in Input) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan backendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("preview_backend_panic",
					zap.String("component", "preview"),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				done <- backendResult{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		out, err := b.Render(ctx, in)
		done <- backendResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(r.err, convert.ErrTimeoutExceeded) {
			return nil, fmt.Errorf("%w: %w", convert.ErrTimeoutExceeded, r.err)
		}
		return r.out, r.err
	case <-ctx.Done():
	}

	grace := time.NewTimer(d.grace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		d.logger.Warn("preview_backend_abandoned",
			zap.String("component", "preview"),
			zap.Duration("grace", d.grace),
		)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: after %s", convert.ErrTimeoutExceeded, d.timeout)
	}
	return nil, ctx.Err()
}
