package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexa-labs/ragserve/internal/blobstore"
	"github.com/cortexa-labs/ragserve/internal/model"
	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
)

type fakeCatalog struct {
	rows map[string]model.DocumentFile
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{rows: make(map[string]model.DocumentFile)}
}

func (f *fakeCatalog) Upsert(_ context.Context, file *model.DocumentFile) error {
	f.rows[file.Filename] = *file
	return nil
}

func (f *fakeCatalog) ListByUser(_ context.Context, _ string) ([]model.DocumentFile, error) {
	out := make([]model.DocumentFile, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeCatalog) Delete(_ context.Context, _, filename string) error {
	delete(f.rows, filename)
	return nil
}

func newTestDocuments(store blobstore.Store, index VectorIndex) *DocumentService {
	return NewDocumentService(store, index, newFakeCatalog())
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	svc := newTestDocuments(blobstore.NewMemoryStore(), newFakeIndex())
	err := svc.Upload(context.Background(), "u1", "big.txt", make([]byte, maxUploadBytes+1))
	require.ErrorIs(t, err, appErr.ErrFileTooLarge)
}

func TestUpload_RejectsDisallowedType(t *testing.T) {
	svc := newTestDocuments(blobstore.NewMemoryStore(), newFakeIndex())
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	err := svc.Upload(context.Background(), "u1", "image.png", png)
	require.ErrorIs(t, err, appErr.ErrFileType)
}

func TestUpload_RejectsPathTraversalNames(t *testing.T) {
	svc := newTestDocuments(blobstore.NewMemoryStore(), newFakeIndex())
	err := svc.Upload(context.Background(), "u1", "../../etc/passwd", []byte("plain text"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUpload_RejectsEmptyFile(t *testing.T) {
	svc := newTestDocuments(blobstore.NewMemoryStore(), newFakeIndex())
	err := svc.Upload(context.Background(), "u1", "empty.txt", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUpload_StoresFileAndMarksPending(t *testing.T) {
	store := blobstore.NewMemoryStore()
	catalog := newFakeCatalog()
	svc := NewDocumentService(store, newFakeIndex(), catalog)

	require.NoError(t, svc.Upload(context.Background(), "u1", "notes.txt", []byte("plain text body")))

	files, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Contains(t, files, "notes.txt")
	require.Equal(t, model.FileStatusPending, catalog.rows["notes.txt"].Status)
}

func TestDelete_RemovesEverywhere(t *testing.T) {
	store := blobstore.NewMemoryStore()
	index := newFakeIndex()
	catalog := newFakeCatalog()
	svc := NewDocumentService(store, index, catalog)

	require.NoError(t, svc.Upload(context.Background(), "u1", "notes.txt", []byte("plain text body")))
	index.files["notes.txt"] = "fp"

	require.NoError(t, svc.Delete(context.Background(), "u1", "notes.txt"))
	files, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	require.NotContains(t, files, "notes.txt")
	require.NotContains(t, index.files, "notes.txt")
	require.NotContains(t, catalog.rows, "notes.txt")
}

func TestMimeAllowed_CoversSupportedTypes(t *testing.T) {
	require.True(t, mimeAllowed("application/pdf"))
	require.True(t, mimeAllowed("text/plain; charset=utf-8"))
	require.True(t, mimeAllowed("text/markdown"))
	require.True(t, mimeAllowed("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	require.False(t, mimeAllowed("application/zip"))
	require.False(t, mimeAllowed("image/png"))
}

func TestMemoryStore_FingerprintTracksContent(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "u1", "a.txt", bytes.NewReader([]byte("v1")), 2))
	before, err := store.List(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, store.Upload(ctx, "u1", "a.txt", bytes.NewReader([]byte("v2")), 2))
	after, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.NotEqual(t, before["a.txt"], after["a.txt"])
}
