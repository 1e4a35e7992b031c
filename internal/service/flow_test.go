package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpreview/internal/ledger"
	"docpreview/internal/preview"
	"docpreview/internal/repository"
	"docpreview/internal/repository/memory"
	"docpreview/internal/storage"
)

type stack struct {
	svc   DocumentService
	repo  *memory.DocumentMemory
	store *storage.Memory
}

func newStack(t *testing.T) stack {
	t.Helper()
	repo := memory.NewDocumentMemory()
	store := storage.NewMemory("documents")
	svc := NewDocumentService(store, repo, ledger.New(repo, ledger.NewLocalLocker(), nil), preview.NewDispatcher())
	return stack{svc: svc, repo: repo, store: store}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFlow_SequentialUploadsVersionOneCurrent(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	for want := 1; want <= 3; want++ {
		res, err := s.svc.Upload(ctx, strings.NewReader("revision text"), "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, want, res.Version)
		assert.Equal(t, want, res.VersionInfo.Total)
	}

	versions, err := s.svc.ListVersions(ctx, "notes.txt")
	require.NoError(t, err)
	require.Equal(t, 3, versions.TotalVersions)

	current := 0
	for _, v := range versions.Versions {
		if v.IsCurrent {
			current++
			assert.Equal(t, 3, v.Version)
		}
	}
	assert.Equal(t, 1, current)
	assert.Equal(t, "notes_v3.txt", versions.Versions[0].Filename)
}

func TestFlow_SpoofedExtensionIsCorrected(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	res, err := s.svc.Upload(ctx, bytes.NewReader(testPNG(t, 4, 4)), "holiday.jpg")
	require.NoError(t, err)

	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, "holiday.png", res.LogicalName)
	assert.True(t, strings.HasSuffix(res.StorageKey, ".png"))
	assert.True(t, res.Spoofed)
}

func TestFlow_ImagePreviewFitsBox(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	big, err := s.svc.Upload(ctx, bytes.NewReader(testPNG(t, 1200, 900)), "big.png")
	require.NoError(t, err)
	small, err := s.svc.Upload(ctx, bytes.NewReader(testPNG(t, 120, 90)), "small.png")
	require.NoError(t, err)

	res, err := s.svc.Preview(ctx, big.ID)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())

	res, err = s.svc.Preview(ctx, small.ID)
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 90, img.Bounds().Dy())
}

func TestFlow_MissingBlobGivesPlaceholder(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	up, err := s.svc.Upload(ctx, strings.NewReader("hello"), "gone.txt")
	require.NoError(t, err)
	require.NoError(t, s.store.Delete(ctx, up.StorageKey))

	res, err := s.svc.Preview(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, preview.StateFallback, res.State)
	assert.Equal(t, "image/png", res.ContentType)
	_, err = png.Decode(bytes.NewReader(res.PNG))
	assert.NoError(t, err)

	_, _, err = s.svc.Download(ctx, up.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlow_UnknownIDIsNotFound(t *testing.T) {
	s := newStack(t)
	_, err := s.svc.Preview(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlow_EmptyUploadRejected(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, err := s.svc.Upload(ctx, strings.NewReader(""), "empty.txt")
	assert.Error(t, err)

	docs, err := s.repo.Find(ctx, repository.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFlow_DeleteRemovesRecordAndBlob(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	v1, err := s.svc.Upload(ctx, strings.NewReader("first"), "doc.txt")
	require.NoError(t, err)
	v2, err := s.svc.Upload(ctx, strings.NewReader("second"), "doc.txt")
	require.NoError(t, err)

	require.NoError(t, s.svc.Delete(ctx, v2.ID))
	assert.False(t, s.store.Has(v2.StorageKey))

	_, err = s.svc.Preview(ctx, v2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.svc.Download(ctx, v2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.svc.Delete(ctx, v2.ID), ErrNotFound)

	survivor, err := s.svc.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.True(t, survivor.IsCurrent)

	v3, err := s.svc.Upload(ctx, strings.NewReader("third"), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, v3.Version, "numbering continues from the highest survivor")
}

func TestFlow_TextPreview(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	up, err := s.svc.Upload(ctx, strings.NewReader("line one\nline two <script>\n"), "readme.txt")
	require.NoError(t, err)

	res, err := s.svc.Preview(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, preview.StateRendered, res.State)
	img, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
}
