// Package ledger assigns version numbers within a logical name and keeps exactly one
// version current.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"docpreview/internal/model"
	"docpreview/internal/repository"
)

// ErrVersionCommitFailed is returned when a new version could not be recorded.
var ErrVersionCommitFailed = errors.New("version commit failed")

const defaultLockWait = 5 * time.Second

// Ledger computes and records document versions on top of the catalog.
type Ledger struct {
	repo     repository.DocumentRepository
	locker   Locker
	lockWait time.Duration
	logger   *zap.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithLockWait bounds how long Append and Retire wait for the per-name lock.
func WithLockWait(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.lockWait = d
		}
	}
}

// New returns a Ledger. A nil locker falls back to an in-process LocalLocker.
func New(repo repository.DocumentRepository, locker Locker, logger *zap.Logger, opts ...Option) *Ledger {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{repo: repo, locker: locker, lockWait: defaultLockWait, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// VersionedFilename renders the display name of a version, e.g. report_v3.pdf.
func VersionedFilename(logicalName, ext string, version int) string {
	base := strings.TrimSuffix(logicalName, ext)
	return base + "_v" + strconv.Itoa(version) + ext
}

// NextVersion returns the number the next version of logicalName will get and how
// many versions currently exist. Without deletions the two always differ by one;
// after a deletion the next number continues from the highest survivor.
func (l *Ledger) NextVersion(ctx context.Context, logicalName string) (version, priorCount int, err error) {
	docs, err := l.repo.Find(ctx, repository.DocumentFilter{LogicalName: logicalName})
	if err != nil {
		return 0, 0, fmt.Errorf("find versions of %q: %w", logicalName, err)
	}
	highest := 0
	for _, d := range docs {
		highest = max(highest, d.Version)
	}
	return highest + 1, len(docs), nil
}

// Commit demotes every existing version of doc.LogicalName and inserts doc as current.
// Callers are expected to hold the logical name's lock; Append does this for them.
func (l *Ledger) Commit(ctx context.Context, doc *model.Document) (*model.Document, error) {
	out, err := l.repo.CommitVersion(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVersionCommitFailed, err)
	}
	return out, nil
}

// Append assigns the next version to doc and commits it while holding the
// logical name's lock. doc.Version, doc.Filename and doc.IsCurrent are overwritten.
func (l *Ledger) Append(ctx context.Context, doc *model.Document) (*model.Document, model.VersionInfo, error) {
	unlock, err := l.lock(ctx, doc.LogicalName)
	if err != nil {
		return nil, model.VersionInfo{}, fmt.Errorf("%w: %w", ErrVersionCommitFailed, err)
	}
	defer unlock()

	version, prior, err := l.NextVersion(ctx, doc.LogicalName)
	if err != nil {
		return nil, model.VersionInfo{}, fmt.Errorf("%w: %w", ErrVersionCommitFailed, err)
	}

	in := *doc
	in.Version = version
	in.Filename = VersionedFilename(in.LogicalName, in.Extension, version)
	in.IsCurrent = true

	out, err := l.Commit(ctx, &in)
	if err != nil {
		return nil, model.VersionInfo{}, err
	}

	l.logger.Info("version_committed",
		zap.String("component", "ledger"),
		zap.String("logical_name", out.LogicalName),
		zap.Int("version", out.Version),
		zap.Int("prior_count", prior),
	)
	return out, model.VersionInfo{Current: out.Version, Total: prior + 1}, nil
}

// Retire restores the current-version invariant after removed has been deleted from
// the catalog: if it was current, the highest surviving version becomes current.
func (l *Ledger) Retire(ctx context.Context, removed *model.Document) error {
	if !removed.IsCurrent {
		return nil
	}
	unlock, err := l.lock(ctx, removed.LogicalName)
	if err != nil {
		return err
	}
	defer unlock()

	survivors, err := l.repo.Find(ctx, repository.DocumentFilter{LogicalName: removed.LogicalName})
	if err != nil {
		return fmt.Errorf("find survivors of %q: %w", removed.LogicalName, err)
	}
	if len(survivors) == 0 {
		return nil
	}
	for _, d := range survivors {
		if d.IsCurrent {
			return nil
		}
	}

	// Find orders by version descending.
	next := survivors[0]
	if _, err := l.repo.UpdateMany(ctx,
		repository.DocumentFilter{ID: next.ID, LogicalName: next.LogicalName},
		repository.DocumentPatch{IsCurrent: repository.Bool(true)},
	); err != nil {
		return fmt.Errorf("promote version %d of %q: %w", next.Version, next.LogicalName, err)
	}

	l.logger.Info("version_promoted",
		zap.String("component", "ledger"),
		zap.String("logical_name", next.LogicalName),
		zap.Int("version", next.Version),
	)
	return nil
}

func (l *Ledger) lock(ctx context.Context, logicalName string) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, l.lockWait)
	defer cancel()
	unlock, err := l.locker.Lock(lctx, logicalName)
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", logicalName, err)
	}
	return unlock, nil
}
