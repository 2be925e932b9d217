package broadcast

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/airbridge/events"
)

// Wire frame types pushed to clients. Field names follow the client
// protocol, not Go conventions.

type userCountFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type userJoinedFrame struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

type userLeftFrame struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

type textUpdateFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatMessageFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

type userListFrame struct {
	Type  string            `json:"type"`
	Users []events.UserName `json:"users"`
}

type usernameChangedFrame struct {
	Type        string `json:"type"`
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
	Timestamp   int64  `json:"timestamp"`
}

type fileReceivedFrame struct {
	Type         string `json:"type"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	UploadedBy   string `json:"uploadedBy"`
}

// Module consumes collab events and fans the corresponding wire frames out
// to the room's WebSocket clients.
type Module struct {
	hub       *Hub
	logger    types.Logger
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broadcast module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start launches the hub run loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop shuts down the hub and closes all client connections.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast module stopped", "clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// GetHub returns the WebSocket hub for the API module to use.
func (m *Module) GetHub() *Hub {
	return m.hub
}

// RegisterEventConsumers subscribes to the collab broadcast events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserCountV1, m.handleUserCount, m,
	); err != nil {
		return fmt.Errorf("failed to register UserCount consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.TextUpdatedV1, m.handleTextUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register TextUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatMessageV1, m.handleChatMessage, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatMessage consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserListV1, m.handleUserList, m,
	); err != nil {
		return fmt.Errorf("failed to register UserList consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UsernameChangedV1, m.handleUsernameChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register UsernameChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.FileSharedV1, m.handleFileShared, m,
	); err != nil {
		return fmt.Errorf("failed to register FileShared consumer: %w", err)
	}

	m.logger.Info("Registered broadcast event consumers")
	return nil
}

// Event handlers. Each maps one collab event to its wire frame.

func (m *Module) handleUserCount(_ context.Context, event events.UserCountEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, userCountFrame{Type: "user-count", Count: event.Count})
	return nil
}

func (m *Module) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, userJoinedFrame{
		Type:      "user-joined",
		Username:  event.Username,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, userLeftFrame{
		Type:      "user-left",
		Username:  event.Username,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) handleTextUpdated(_ context.Context, event events.TextUpdatedEvent, _ *mono.Msg) error {
	// The sender already holds this text locally.
	m.hub.BroadcastExcept(event.RoomID, event.SenderID, textUpdateFrame{
		Type: "text-update",
		Text: event.Text,
	})
	return nil
}

func (m *Module) handleChatMessage(_ context.Context, event events.ChatMessageEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, chatMessageFrame{
		Type:      "chat-message",
		Text:      event.Message.Text,
		Username:  event.Message.Username,
		Timestamp: event.Message.Timestamp,
	})
	return nil
}

func (m *Module) handleUserList(_ context.Context, event events.UserListEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, userListFrame{Type: "user-list", Users: event.Users})
	return nil
}

func (m *Module) handleUsernameChanged(_ context.Context, event events.UsernameChangedEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, usernameChangedFrame{
		Type:        "username-changed",
		OldUsername: event.OldUsername,
		NewUsername: event.NewUsername,
		Timestamp:   event.Timestamp,
	})
	return nil
}

func (m *Module) handleFileShared(_ context.Context, event events.FileSharedEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.RoomID, fileReceivedFrame{
		Type:         "file-received",
		Filename:     event.File.Filename,
		OriginalName: event.File.OriginalName,
		Size:         event.File.Size,
		MimeType:     event.File.MimeType,
		UploadedBy:   event.UploadedBy,
	})
	return nil
}
