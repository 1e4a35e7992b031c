package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"docpreview/internal/ledger"
	"docpreview/internal/model"
	"docpreview/internal/preview"
	"docpreview/internal/repository"
	"docpreview/internal/sniff"
	"docpreview/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("document not found")
	ErrReaderNil  = errors.New("reader is nil")
	ErrTooLarge   = errors.New("file exceeds upload limit")
)

const (
	defaultMaxUploadBytes = 50 << 20
	defaultPresignExpiry  = 15 * time.Minute
	storagePrefix         = "documents/"
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// PresignedURL is a time-limited download link for one version.
type PresignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Renderer produces a PNG preview for a document payload.
type Renderer interface {
	Render(ctx context.Context, in preview.Input) preview.Result
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload sniffs the payload, stores it and records it as the next version of its
	// logical name. declaredName only contributes the base name.
	Upload(ctx context.Context, r io.Reader, declaredName string) (*model.UploadResult, error)

	// List returns documents using limit/offset and a total count, newest first.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// ListVersions returns every version of logicalName, newest first.
	ListVersions(ctx context.Context, logicalName string) (*model.VersionList, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Preview renders the document. A missing payload yields an error placeholder,
	// not an error.
	Preview(ctx context.Context, id string) (*preview.Result, error)

	// Download streams the raw payload. The caller closes the reader.
	Download(ctx context.Context, id string) (io.ReadCloser, *model.Document, error)

	// Delete removes one version from storage and the catalog.
	Delete(ctx context.Context, id string) error

	// PresignURL returns a temporary direct download link.
	PresignURL(ctx context.Context, id string) (*PresignedURL, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store          storage.Storage
	repo           repository.DocumentRepository
	ledger         *ledger.Ledger
	renderer       Renderer
	logger         *zap.Logger
	tracer         trace.Tracer
	maxUploadBytes int64
	presignExpiry  time.Duration
	now            func() time.Time
}

// Option customizes the service.
type Option func(*documentService)

func WithLogger(l *zap.Logger) Option {
	return func(s *documentService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxUploadBytes caps the payload size accepted by Upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *documentService) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func WithPresignExpiry(d time.Duration) Option {
	return func(s *documentService) {
		if d > 0 {
			s.presignExpiry = d
		}
	}
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, led *ledger.Ledger, renderer Renderer, opts ...Option) DocumentService {
	s := &documentService{
		store:          store,
		repo:           repo,
		ledger:         led,
		renderer:       renderer,
		logger:         zap.NewNop(),
		tracer:         otel.Tracer("docpreview/internal/service"),
		maxUploadBytes: defaultMaxUploadBytes,
		presignExpiry:  defaultPresignExpiry,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, declaredName string) (*model.UploadResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	ctx, span := s.tracer.Start(ctx, "DocumentService.Upload")
	defer span.End()

	// Read one byte past the limit so an oversized payload is detectable.
	data, err := io.ReadAll(io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrTooLarge
	}

	det, err := sniff.Detect(data, declaredName)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.content_type", det.MIME),
		attribute.String("document.logical_name", det.LogicalName()),
	)

	id := uuid.NewString()
	key := storagePrefix + id + det.Extension
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: det.MIME,
		Metadata: map[string]string{
			"original-filename": declaredName,
		},
	}); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:          id,
		LogicalName: det.LogicalName(),
		StorageKey:  key,
		Size:        int64(len(data)),
		ContentType: det.MIME,
		Extension:   det.Extension,
		CreatedAt:   s.now().UTC(),
	}
	stored, info, err := s.ledger.Append(ctx, doc)
	if err != nil {
		// Best effort; an orphaned blob is harmless.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("upload_rollback_failed",
				zap.String("component", "service"),
				zap.String("storage_key", key),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("record version: %w", err)
	}

	if det.Spoofed() {
		s.logger.Info("extension_corrected",
			zap.String("component", "service"),
			zap.String("declared_name", declaredName),
			zap.String("detected_type", det.MIME),
			zap.String("logical_name", stored.LogicalName),
		)
	}
	return &model.UploadResult{Document: *stored, VersionInfo: info, Spoofed: det.Spoofed()}, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) ListVersions(ctx context.Context, logicalName string) (*model.VersionList, error) {
	if logicalName == "" {
		return nil, ErrNotFound
	}
	docs, err := s.repo.Find(ctx, repository.DocumentFilter{LogicalName: logicalName})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &model.VersionList{LogicalName: logicalName, TotalVersions: len(docs), Versions: docs}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Preview(ctx context.Context, id string) (*preview.Result, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "DocumentService.Preview", trace.WithAttributes(
		attribute.String("document.id", doc.ID),
		attribute.String("document.content_type", doc.ContentType),
	))
	defer span.End()

	data, _, err := storage.ReadAll(ctx, s.store, doc.StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		// The record outlived its blob; show that rendering failed instead of a 404.
		s.logger.Warn("preview_payload_missing",
			zap.String("component", "service"),
			zap.String("document_id", doc.ID),
			zap.String("storage_key", doc.StorageKey),
		)
		cat := preview.Classify(doc.ContentType)
		return &preview.Result{
			PNG:         preview.ErrorPlaceholder(cat),
			ContentType: preview.ContentTypePNG,
			Category:    cat,
			State:       preview.StateFallback,
			Err:         err,
		}, nil
	}

	res := s.renderer.Render(ctx, preview.Input{Data: data, ContentType: doc.ContentType, Name: doc.Filename})
	return &res, nil
}

func (s *documentService) Download(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("read payload: %w", err)
	}
	return rc, doc, nil
}

// Delete removes a document from storage, then deletes its record and hands the
// current flag to the newest surviving version if needed.
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// Delete from storage first; if this fails, keep DB row to avoid orphaned storage reference loss
	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// The row is already gone; a failed promotion leaves the name without a current
	// version until the next upload or delete under it.
	if err := s.ledger.Retire(ctx, doc); err != nil {
		s.logger.Error("version_promotion_failed",
			zap.String("component", "service"),
			zap.String("logical_name", doc.LogicalName),
			zap.Error(err),
		)
		return fmt.Errorf("%w: promote after delete: %w", ledger.ErrVersionCommitFailed, err)
	}
	return nil
}

func (s *documentService) PresignURL(ctx context.Context, id string) (*PresignedURL, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, err := s.store.PresignGet(ctx, doc.StorageKey, s.presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign: %w", err)
	}
	return &PresignedURL{URL: u, ExpiresAt: s.now().UTC().Add(s.presignExpiry)}, nil
}
