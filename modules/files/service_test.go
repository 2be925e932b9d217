package files

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(t.TempDir())
	require.NoError(t, err)
	return service
}

func TestSaveStoresFileOnDisk(t *testing.T) {
	service := newTestService(t)
	data := []byte("hello upload")

	stored, err := service.Save(context.Background(), "notes.txt", data, "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", stored.OriginalName)
	assert.Equal(t, int64(len(data)), stored.Size)
	assert.Equal(t, "text/plain", stored.MimeType)
	assert.True(t, strings.HasSuffix(stored.Filename, ".txt"))

	onDisk, err := os.ReadFile(filepath.Join(service.Dir(), stored.Filename))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, onDisk))
}

func TestSaveGeneratesUniqueStorageNames(t *testing.T) {
	service := newTestService(t)

	first, err := service.Save(context.Background(), "a.png", []byte{1}, "image/png")
	require.NoError(t, err)
	second, err := service.Save(context.Background(), "a.png", []byte{2}, "image/png")
	require.NoError(t, err)

	assert.NotEqual(t, first.Filename, second.Filename)
}

func TestSaveRejectsEmptyUpload(t *testing.T) {
	service := newTestService(t)

	_, err := service.Save(context.Background(), "empty.txt", nil, "text/plain")
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	service := newTestService(t)
	data := make([]byte, MaxFileSize+1)

	_, err := service.Save(context.Background(), "big.pdf", data, "application/pdf")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestSaveRejectsDisallowedTypes(t *testing.T) {
	service := newTestService(t)

	cases := []string{
		"application/zip",
		"text/html",
		"application/octet-stream",
		"",
	}
	for _, contentType := range cases {
		_, err := service.Save(context.Background(), "file.bin", []byte{1}, contentType)
		assert.ErrorIs(t, err, ErrTypeNotAllowed, "content type %q", contentType)
	}
}

func TestSaveAllowsEveryPermittedType(t *testing.T) {
	service := newTestService(t)

	cases := []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"application/pdf",
		"text/plain",
	}
	for _, contentType := range cases {
		_, err := service.Save(context.Background(), "file", []byte{1}, contentType)
		assert.NoError(t, err, "content type %q", contentType)
	}
}

func TestSaveSanitizesOriginalName(t *testing.T) {
	service := newTestService(t)

	stored, err := service.Save(context.Background(), "../../etc/passwd.txt", []byte{1}, "text/plain")
	require.NoError(t, err)

	assert.NotContains(t, stored.Filename, "..")
	assert.NotContains(t, stored.Filename, "/")

	_, err = os.Stat(filepath.Join(service.Dir(), stored.Filename))
	assert.NoError(t, err)
}
