// Package workspace hands out private scratch directories for external conversions
// and sweeps the ones a crashed process left behind.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const dirPrefix = "ws-"

// Manager owns the temp root every workspace is created under.
type Manager struct {
	root   string
	logger *zap.Logger
}

// NewManager prepares root (mode 0700). An empty root means <os temp dir>/docpreview.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "docpreview")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create temp root %q: %w", root, err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Root returns the directory workspaces are created in.
func (m *Manager) Root() string { return m.root }

// Acquire creates a fresh, uniquely named directory. The caller must Release it.
func (m *Manager) Acquire(prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp(m.root, dirPrefix+sanitize(prefix)+"-")
	if err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}
	return &Workspace{dir: dir, logger: m.logger}, nil
}

// Sweep removes workspaces last modified before now-olderThan and returns how many
// were removed. Entries that fail to delete are logged and skipped.
func (m *Manager) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("read temp root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("workspace_sweep_failed",
				zap.String("component", "workspace"),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	return removed, nil
}

// Workspace is a private directory for one conversion.
type Workspace struct {
	dir    string
	logger *zap.Logger
	once   sync.Once
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory. Directory components in name are dropped.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// WriteFile writes data to name inside the workspace and returns its full path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	p := w.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(p), err)
	}
	return p, nil
}

// ReadFile reads name from the workspace.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	b, err := os.ReadFile(w.Path(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(name), err)
	}
	return b, nil
}

// Release deletes the workspace and everything in it. It is safe to call more than
// once; failures are logged, never returned.
func (w *Workspace) Release() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.logger.Warn("workspace_release_failed",
				zap.String("component", "workspace"),
				zap.String("path", w.dir),
				zap.Error(err),
			)
		}
	})
}

func sanitize(prefix string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, prefix)
}
