package workspace

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManager_AcquireRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	m, err := NewManager(root, nil)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	ws, err := m.Acquire("pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir()), "ws-pdf-"))

	p, err := ws.WriteFile("input.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(), "input.pdf"), p)

	got, err := ws.ReadFile("input.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), got)

	ws.Release()
	ws.Release()
	_, err = os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestManager_AcquireIsolated(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	a, err := m.Acquire("office")
	require.NoError(t, err)
	defer a.Release()
	b, err := m.Acquire("office")
	require.NoError(t, err)
	defer b.Release()

	assert.NotEqual(t, a.Dir(), b.Dir())
}

func TestWorkspace_PathDropsDirectories(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	ws, err := m.Acquire("x/../y")
	require.NoError(t, err)
	defer ws.Release()

	assert.Equal(t, m.Root(), filepath.Dir(ws.Dir()))
	assert.Equal(t, filepath.Join(ws.Dir(), "passwd"), ws.Path("../../etc/passwd"))
}

func TestWorkspace_ReadMissing(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	ws, err := m.Acquire("t")
	require.NoError(t, err)
	defer ws.Release()

	_, err = ws.ReadFile("page.png")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManager_Sweep(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, nil)
	require.NoError(t, err)

	stale, err := m.Acquire("stale")
	require.NoError(t, err)
	fresh, err := m.Acquire("fresh")
	require.NoError(t, err)
	defer fresh.Release()

	unrelated := filepath.Join(root, "keep-me")
	require.NoError(t, os.Mkdir(unrelated, 0o700))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Dir(), old, old))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	n, err := m.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(stale.Dir())
	assert.True(t, os.IsNotExist(err))
	assert.DirExists(t, fresh.Dir())
	assert.DirExists(t, unrelated)
}

func TestJanitor(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, nil)
	require.NoError(t, err)

	_, err = NewJanitor(m, "not a schedule", time.Hour, nil)
	assert.Error(t, err)

	var buf bytes.Buffer
	logger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf), zapcore.InfoLevel))

	j, err := NewJanitor(m, "@every 1h", time.Minute, logger)
	require.NoError(t, err)

	ws, err := m.Acquire("old")
	require.NoError(t, err)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(ws.Dir(), old, old))

	j.RunOnce()
	_, err = os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, buf.String(), `"removed":1`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
