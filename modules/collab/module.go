package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/airbridge/events"
)

// Module exposes the room coordinator as request-reply services and
// publishes its broadcast events on the EventBus. It also hosts the reaper
// goroutine that evicts idle rooms.
type Module struct {
	service  *Service
	eventBus mono.EventBus
	logger   types.Logger

	stopReaper chan struct{}
	reaperDone chan struct{}
	stopOnce   sync.Once
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ EventSink                  = (*Module)(nil)
)

// NewModule creates the collab module.
func NewModule(logger types.Logger) *Module {
	m := &Module{logger: logger}
	m.service = NewService(m)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "collab"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserCountV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.TextUpdatedV1.ToBase(),
		events.ChatMessageV1.ToBase(),
		events.UserListV1.ToBase(),
		events.UsernameChangedV1.ToBase(),
		events.FileSharedV1.ToBase(),
	}
}

// Emit publishes a coordinator broadcast event on the EventBus. Publish
// failures are logged and swallowed: broadcast delivery is best-effort and
// must never fail the operation that triggered it.
func (m *Module) Emit(event any) {
	if m.eventBus == nil {
		return
	}

	var err error
	switch e := event.(type) {
	case events.UserCountEvent:
		err = events.UserCountV1.Publish(m.eventBus, e, nil)
	case events.UserJoinedEvent:
		err = events.UserJoinedV1.Publish(m.eventBus, e, nil)
	case events.UserLeftEvent:
		err = events.UserLeftV1.Publish(m.eventBus, e, nil)
	case events.TextUpdatedEvent:
		err = events.TextUpdatedV1.Publish(m.eventBus, e, nil)
	case events.ChatMessageEvent:
		err = events.ChatMessageV1.Publish(m.eventBus, e, nil)
	case events.UserListEvent:
		err = events.UserListV1.Publish(m.eventBus, e, nil)
	case events.UsernameChangedEvent:
		err = events.UsernameChangedV1.Publish(m.eventBus, e, nil)
	case events.FileSharedEvent:
		err = events.FileSharedV1.Publish(m.eventBus, e, nil)
	default:
		m.logger.Error("Unhandled broadcast event type", "event", fmt.Sprintf("%T", event))
		return
	}
	if err != nil {
		m.logger.Warn("Failed to publish broadcast event",
			"event", fmt.Sprintf("%T", event), "error", err)
	}
}

// RegisterServices registers the coordinator's request-reply services.
// Domain failures travel in the response's error field so the exact wire
// message reaches the client; transport failures use the error return.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRegisterConn, json.Unmarshal, json.Marshal, m.registerConn,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRegisterConn, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceJoinRoom, json.Unmarshal, json.Marshal, m.joinRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceJoinRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSyncText, json.Unmarshal, json.Marshal, m.syncText,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSyncText, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceChatMessage, json.Unmarshal, json.Marshal, m.chatMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceChatMessage, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSetUsername, json.Unmarshal, json.Marshal, m.setUsername,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSetUsername, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceFileShare, json.Unmarshal, json.Marshal, m.fileShare,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceFileShare, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDisconnect, json.Unmarshal, json.Marshal, m.disconnect,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDisconnect, err)
	}

	m.logger.Info("Registered collab services",
		"services", []string{
			ServiceRegisterConn, ServiceCreateRoom, ServiceJoinRoom, ServiceSyncText,
			ServiceChatMessage, ServiceSetUsername, ServiceFileShare, ServiceDisconnect,
		})
	return nil
}

// Start launches the reaper.
func (m *Module) Start(_ context.Context) error {
	m.stopReaper = make(chan struct{})
	m.reaperDone = make(chan struct{})
	go m.runReaper()

	m.logger.Info("Collab module started",
		"maxRooms", MaxRooms, "sweepInterval", SweepInterval.String())
	return nil
}

// Stop shuts down the reaper.
func (m *Module) Stop(ctx context.Context) error {
	if m.stopReaper == nil {
		return nil
	}
	m.stopOnce.Do(func() {
		close(m.stopReaper)
	})

	select {
	case <-m.reaperDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.logger.Info("Collab module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":       m.service.RoomCount(),
			"connections": m.service.ConnCount(),
		},
	}
}

// Service returns the coordinator, for direct use in tests.
func (m *Module) Service() *Service {
	return m.service
}

// runReaper sweeps idle rooms on a fixed interval.
func (m *Module) runReaper() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	defer close(m.reaperDone)

	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			if reaped := m.service.ReapIdle(); reaped > 0 {
				m.logger.Info("Reaped idle rooms", "count", reaped)
			}
		}
	}
}

// Service handlers.

func (m *Module) registerConn(_ context.Context, req RegisterConnRequest, _ *mono.Msg) (RegisterConnResponse, error) {
	username := m.service.RegisterConn(req.ConnID)
	m.logger.Debug("Connection registered", "connID", req.ConnID, "username", username)
	return RegisterConnResponse{Username: username}, nil
}

func (m *Module) createRoom(_ context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	snap, err := m.service.CreateRoom(req.ConnID)
	if err != nil {
		return CreateRoomResponse{Error: err.Error()}, nil
	}
	m.logger.Info("Room created", "roomID", snap.RoomID, "connID", req.ConnID)
	return CreateRoomResponse{RoomID: snap.RoomID, Text: snap.Text, Messages: snap.Messages}, nil
}

func (m *Module) joinRoom(_ context.Context, req JoinRoomRequest, _ *mono.Msg) (JoinRoomResponse, error) {
	snap, err := m.service.JoinRoom(req.ConnID, req.RoomID)
	if err != nil {
		return JoinRoomResponse{Error: err.Error()}, nil
	}
	m.logger.Info("Connection joined room", "roomID", req.RoomID, "connID", req.ConnID)
	return JoinRoomResponse{Text: snap.Text, Messages: snap.Messages}, nil
}

func (m *Module) syncText(_ context.Context, req SyncTextRequest, _ *mono.Msg) (SyncTextResponse, error) {
	if err := m.service.SyncText(req.ConnID, req.Text); err != nil {
		return SyncTextResponse{Error: err.Error()}, nil
	}
	return SyncTextResponse{}, nil
}

func (m *Module) chatMessage(_ context.Context, req ChatMessageRequest, _ *mono.Msg) (ChatMessageResponse, error) {
	if err := m.service.PostMessage(req.ConnID, req.Text, req.Timestamp); err != nil {
		return ChatMessageResponse{Error: err.Error()}, nil
	}
	return ChatMessageResponse{}, nil
}

func (m *Module) setUsername(_ context.Context, req SetUsernameRequest, _ *mono.Msg) (SetUsernameResponse, error) {
	if err := m.service.SetUsername(req.ConnID, req.Username); err != nil {
		return SetUsernameResponse{Error: err.Error()}, nil
	}
	return SetUsernameResponse{}, nil
}

func (m *Module) fileShare(_ context.Context, req FileShareRequest, _ *mono.Msg) (FileShareResponse, error) {
	if err := m.service.ShareFile(req.ConnID, req.File); err != nil {
		return FileShareResponse{Error: err.Error()}, nil
	}
	return FileShareResponse{}, nil
}

func (m *Module) disconnect(_ context.Context, req DisconnectRequest, _ *mono.Msg) (DisconnectResponse, error) {
	m.service.Disconnect(req.ConnID)
	m.logger.Debug("Connection disconnected", "connID", req.ConnID)
	return DisconnectResponse{}, nil
}
