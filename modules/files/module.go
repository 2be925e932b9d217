package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module provides disk-backed upload storage as a request-reply service.
type Module struct {
	service *Service
	dir     string
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the files module. The upload directory comes from
// UPLOAD_DIR, defaulting to ./public/uploads so stored files are served by
// the static file route.
func NewModule(logger types.Logger) *Module {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "./public/uploads"
	}
	return &Module{dir: dir, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "files"
}

// RegisterServices registers the save-file request-reply service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSaveFile, json.Unmarshal, json.Marshal, m.saveFile,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSaveFile, err)
	}
	m.logger.Info("Registered files services", "services", []string{ServiceSaveFile})
	return nil
}

// Start initializes the storage directory.
func (m *Module) Start(_ context.Context) error {
	service, err := NewService(m.dir)
	if err != nil {
		return err
	}
	m.service = service
	m.logger.Info("Files module started", "dir", m.dir)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Files module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	healthy := m.service != nil
	message := "operational"
	if !healthy {
		message = "storage not initialized"
	}
	return mono.HealthStatus{
		Healthy: healthy,
		Message: message,
		Details: map[string]any{"dir": m.dir},
	}
}

func (m *Module) saveFile(ctx context.Context, req SaveFileRequest, _ *mono.Msg) (SaveFileResponse, error) {
	stored, err := m.service.Save(ctx, req.Name, req.Data, req.ContentType)
	if err != nil {
		if errors.Is(err, ErrNoFile) || errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrTypeNotAllowed) {
			return SaveFileResponse{Error: err.Error()}, nil
		}
		return SaveFileResponse{}, err
	}
	m.logger.Info("File stored",
		"filename", stored.Filename, "size", stored.Size, "mimetype", stored.MimeType)
	return SaveFileResponse{File: *stored}, nil
}
