package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaevor/go-nanoid"
)

const storageIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const storageIDLength = 16

// sanitizeFilename removes path separators and dangerous characters from a
// client-supplied filename.
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(filename))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.ReplaceAll(clean, "\\", "_")
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}

// Service stores uploads on local disk. Stored files are served back as
// static assets by the transport layer; the coordination core only ever
// carries their metadata.
type Service struct {
	dir          string
	newStorageID func() string
}

// NewService creates the upload directory if needed and returns a service
// writing into it.
func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	gen, err := nanoid.CustomASCII(storageIDAlphabet, storageIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage id generator: %w", err)
	}
	return &Service{dir: dir, newStorageID: gen}, nil
}

// Dir returns the upload directory.
func (s *Service) Dir() string {
	return s.dir
}

// Save validates and writes an upload, returning its metadata. The storage
// name is generated; the original name survives only in the metadata, so a
// hostile filename can never influence the path written to.
func (s *Service) Save(_ context.Context, name string, data []byte, contentType string) (*StoredFile, error) {
	if len(data) == 0 {
		return nil, ErrNoFile
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if !allowedMimeTypes[contentType] {
		return nil, ErrTypeNotAllowed
	}

	original := sanitizeFilename(name)
	storageName := s.newStorageID() + strings.ToLower(filepath.Ext(original))

	path := filepath.Join(s.dir, storageName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	return &StoredFile{
		Filename:     storageName,
		OriginalName: original,
		Size:         int64(len(data)),
		MimeType:     contentType,
	}, nil
}
