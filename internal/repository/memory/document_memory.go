// Package memory is an in-process catalog used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"docpreview/internal/model"
	"docpreview/internal/repository"
)

// DocumentMemory keeps document records in a map guarded by a RWMutex.
// It enforces the same uniqueness rules as the PostgreSQL schema.
type DocumentMemory struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

// NewDocumentMemory returns an empty catalog.
func NewDocumentMemory() *DocumentMemory {
	return &DocumentMemory{docs: make(map[string]model.Document)}
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

func matches(d model.Document, f repository.DocumentFilter) bool {
	if f.ID != "" && d.ID != f.ID {
		return false
	}
	if f.LogicalName != "" && d.LogicalName != f.LogicalName {
		return false
	}
	if f.CurrentOnly && !d.IsCurrent {
		return false
	}
	return true
}

// conflictLocked reports whether doc would break (logical_name, version) uniqueness
// or the single-current rule.
func (m *DocumentMemory) conflictLocked(doc *model.Document) bool {
	for id, d := range m.docs {
		if id == doc.ID {
			return true
		}
		if d.LogicalName != doc.LogicalName {
			continue
		}
		if d.Version == doc.Version || (d.IsCurrent && doc.IsCurrent) {
			return true
		}
	}
	return false
}

func (m *DocumentMemory) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictLocked(doc) {
		return nil, repository.ErrVersionConflict
	}
	m.docs[doc.ID] = *doc
	out := *doc
	return &out, nil
}

func (m *DocumentMemory) FindByID(_ context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &d, nil
}

func (m *DocumentMemory) Find(_ context.Context, f repository.DocumentFilter) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]model.Document, 0)
	for _, d := range m.docs {
		if matches(d, f) {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Version != items[j].Version {
			return items[i].Version > items[j].Version
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *DocumentMemory) UpdateMany(_ context.Context, f repository.DocumentFilter, patch repository.DocumentPatch) (int64, error) {
	if patch.IsCurrent == nil {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, d := range m.docs {
		if !matches(d, f) {
			continue
		}
		d.IsCurrent = *patch.IsCurrent
		m.docs[id] = d
		n++
	}
	return n, nil
}

func (m *DocumentMemory) CommitVersion(_ context.Context, doc *model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := *doc
	in.IsCurrent = true

	// Validate against the post-demotion state before touching anything so a
	// conflict leaves the catalog unchanged.
	for id, d := range m.docs {
		if id == in.ID || (d.LogicalName == in.LogicalName && d.Version == in.Version) {
			return nil, repository.ErrVersionConflict
		}
	}
	for id, d := range m.docs {
		if d.LogicalName == in.LogicalName && d.IsCurrent {
			d.IsCurrent = false
			m.docs[id] = d
		}
	}
	m.docs[in.ID] = in
	out := in
	return &out, nil
}

func (m *DocumentMemory) List(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]model.Document, 0, len(m.docs))
	for _, d := range m.docs {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	items := make([]model.Document, end-start)
	copy(items, all[start:end])
	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

func (m *DocumentMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, id)
	return nil
}
