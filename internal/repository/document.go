package repository

import (
	"context"
	"errors"

	"docpreview/internal/model"
)

var (
	// ErrRecordNotFound is returned when no document matches the requested ID.
	ErrRecordNotFound = errors.New("record not found")
	// ErrCatalogUnavailable wraps any failure talking to the catalog backend.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrVersionConflict is returned when a version insert collides with an existing
	// (logical name, version) pair or a second current record.
	ErrVersionConflict = errors.New("version conflict")
)

// DocumentRepository defines data access for document records.
// No business logic here, only persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or ErrRecordNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// Find returns all documents matching the filter ordered by version, newest first.
	Find(ctx context.Context, f DocumentFilter) ([]model.Document, error)

	// UpdateMany applies patch to every document matching the filter and returns the
	// number of rows changed.
	UpdateMany(ctx context.Context, f DocumentFilter, patch DocumentPatch) (int64, error)

	// CommitVersion demotes every record sharing doc.LogicalName and inserts doc as the
	// current version, atomically.
	CommitVersion(ctx context.Context, doc *model.Document) (*model.Document, error)

	// List returns a paginated list of documents and total rows count, newest first.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// DocumentFilter selects documents. Zero-valued fields do not constrain the query.
type DocumentFilter struct {
	ID          string
	LogicalName string
	CurrentOnly bool
}

// DocumentPatch describes fields to change in UpdateMany. Nil fields are left as-is.
type DocumentPatch struct {
	IsCurrent *bool
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
