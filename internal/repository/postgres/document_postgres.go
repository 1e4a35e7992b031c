package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"docpreview/internal/model"
	"docpreview/internal/repository"
)

const uniqueViolation = "23505"

const documentColumns = `id, logical_name, filename, storage_key, version, size, content_type, extension, is_current, created_at`

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.Document, error) {
	var d model.Document
	if err := s.Scan(
		&d.ID,
		&d.LogicalName,
		&d.Filename,
		&d.StorageKey,
		&d.Version,
		&d.Size,
		&d.ContentType,
		&d.Extension,
		&d.IsCurrent,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// mapErr translates driver errors into the repository's error vocabulary.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrVersionConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %v", repository.ErrCatalogUnavailable, err)
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	return insert(ctx, r.db, doc)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insert(ctx context.Context, q queryRower, doc *model.Document) (*model.Document, error) {
	const stmt = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + documentColumns
	row := q.QueryRowContext(ctx, stmt,
		doc.ID,
		doc.LogicalName,
		doc.Filename,
		doc.StorageKey,
		doc.Version,
		doc.Size,
		doc.ContentType,
		doc.Extension,
		doc.IsCurrent,
		doc.CreatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

// whereClause renders the filter as a WHERE clause whose placeholders start at $next.
func whereClause(f repository.DocumentFilter, next int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ID != "" {
		args = append(args, f.ID)
		conds = append(conds, "id = $"+strconv.Itoa(next+len(args)-1))
	}
	if f.LogicalName != "" {
		args = append(args, f.LogicalName)
		conds = append(conds, "logical_name = $"+strconv.Itoa(next+len(args)-1))
	}
	if f.CurrentOnly {
		conds = append(conds, "is_current")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Find returns every document matching the filter, highest version first.
func (r *DocumentPostgres) Find(ctx context.Context, f repository.DocumentFilter) ([]model.Document, error) {
	where, args := whereClause(f, 1)
	q := `SELECT ` + documentColumns + ` FROM documents` + where + ` ORDER BY version DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

// UpdateMany applies the patch to all matching rows.
func (r *DocumentPostgres) UpdateMany(ctx context.Context, f repository.DocumentFilter, patch repository.DocumentPatch) (int64, error) {
	if patch.IsCurrent == nil {
		return 0, nil
	}
	where, args := whereClause(f, 2)
	args = append([]any{*patch.IsCurrent}, args...)

	res, err := r.db.ExecContext(ctx, `UPDATE documents SET is_current = $1`+where, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

// CommitVersion demotes the previous versions and inserts doc as current in one transaction.
func (r *DocumentPostgres) CommitVersion(ctx context.Context, doc *model.Document) (*model.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	const demote = `UPDATE documents SET is_current = false WHERE logical_name = $1 AND is_current`
	if _, err := tx.ExecContext(ctx, demote, doc.LogicalName); err != nil {
		return nil, mapErr(err)
	}

	in := *doc
	in.IsCurrent = true
	out, err := insert(ctx, tx, &in)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, mapErr(err)
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return mapErr(err)
	}
	return nil
}
