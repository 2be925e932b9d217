package files

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// FilesPort is the interface other modules use to store uploads.
type FilesPort interface {
	SaveFile(ctx context.Context, name string, data []byte, contentType string) (*StoredFile, error)
}

type filesAdapter struct {
	container mono.ServiceContainer
}

// NewFilesAdapter creates a FilesPort backed by the service container.
func NewFilesAdapter(container mono.ServiceContainer) FilesPort {
	if container == nil {
		panic("files adapter requires a service container")
	}
	return &filesAdapter{container: container}
}

var wellKnownErrors = []error{ErrNoFile, ErrFileTooLarge, ErrTypeNotAllowed}

func mapServiceError(msg string) error {
	for _, known := range wellKnownErrors {
		if known.Error() == msg {
			return known
		}
	}
	return errors.New(msg)
}

func (a *filesAdapter) SaveFile(ctx context.Context, name string, data []byte, contentType string) (*StoredFile, error) {
	req := SaveFileRequest{Name: name, Data: data, ContentType: contentType}
	var resp SaveFileResponse
	err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSaveFile, json.Marshal, json.Unmarshal, &req, &resp,
	)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, mapServiceError(resp.Error)
	}
	return &resp.File, nil
}
