package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/airbridge/domain/collab"
)

// CollabPort defines the interface for coordinator operations used by the
// transport layer.
type CollabPort interface {
	RegisterConn(ctx context.Context, connID string) (string, error)
	CreateRoom(ctx context.Context, connID string) (*RoomSnapshot, error)
	JoinRoom(ctx context.Context, connID, roomID string) (*RoomSnapshot, error)
	SyncText(ctx context.Context, connID, text string) error
	PostMessage(ctx context.Context, connID, text string, timestamp int64) error
	SetUsername(ctx context.Context, connID, username string) error
	ShareFile(ctx context.Context, connID string, file domain.FileRef) error
	Disconnect(ctx context.Context, connID string) error
}

// collabAdapter implements CollabPort using the service container.
type collabAdapter struct {
	container mono.ServiceContainer
}

// NewCollabAdapter creates a new adapter for the collab services.
func NewCollabAdapter(container mono.ServiceContainer) CollabPort {
	if container == nil {
		panic("collab: ServiceContainer is nil")
	}
	return &collabAdapter{container: container}
}

// wellKnownErrors lets the adapter map wire error strings back to the
// package sentinels so callers can use errors.Is.
var wellKnownErrors = []error{
	ErrRoomIDRequired, ErrRoomIDTooLong, ErrRoomIDInvalid,
	ErrRoomNotFound, ErrRoomFull, ErrTooManyRooms, ErrNotInRoom,
	ErrInvalidText, ErrTextTooLong, ErrInvalidUsername, ErrUsernameTooLong,
	ErrUnknownConn,
}

func mapServiceError(msg string) error {
	for _, known := range wellKnownErrors {
		if msg == known.Error() {
			return known
		}
	}
	return errors.New(msg)
}

func (a *collabAdapter) RegisterConn(ctx context.Context, connID string) (string, error) {
	req := RegisterConnRequest{ConnID: connID}
	var resp RegisterConnResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceRegisterConn,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return "", fmt.Errorf("failed to register connection: %w", err)
	}
	if resp.Error != "" {
		return "", mapServiceError(resp.Error)
	}
	return resp.Username, nil
}

func (a *collabAdapter) CreateRoom(ctx context.Context, connID string) (*RoomSnapshot, error) {
	req := CreateRoomRequest{ConnID: connID}
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceCreateRoom,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if resp.Error != "" {
		return nil, mapServiceError(resp.Error)
	}
	return &RoomSnapshot{RoomID: resp.RoomID, Text: resp.Text, Messages: resp.Messages}, nil
}

func (a *collabAdapter) JoinRoom(ctx context.Context, connID, roomID string) (*RoomSnapshot, error) {
	req := JoinRoomRequest{ConnID: connID, RoomID: roomID}
	var resp JoinRoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceJoinRoom,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	if resp.Error != "" {
		return nil, mapServiceError(resp.Error)
	}
	return &RoomSnapshot{RoomID: roomID, Text: resp.Text, Messages: resp.Messages}, nil
}

func (a *collabAdapter) SyncText(ctx context.Context, connID, text string) error {
	req := SyncTextRequest{ConnID: connID, Text: text}
	var resp SyncTextResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSyncText,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return fmt.Errorf("failed to sync text: %w", err)
	}
	if resp.Error != "" {
		return mapServiceError(resp.Error)
	}
	return nil
}

func (a *collabAdapter) PostMessage(ctx context.Context, connID, text string, timestamp int64) error {
	req := ChatMessageRequest{ConnID: connID, Text: text, Timestamp: timestamp}
	var resp ChatMessageResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceChatMessage,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	if resp.Error != "" {
		return mapServiceError(resp.Error)
	}
	return nil
}

func (a *collabAdapter) SetUsername(ctx context.Context, connID, username string) error {
	req := SetUsernameRequest{ConnID: connID, Username: username}
	var resp SetUsernameResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSetUsername,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return fmt.Errorf("failed to set username: %w", err)
	}
	if resp.Error != "" {
		return mapServiceError(resp.Error)
	}
	return nil
}

func (a *collabAdapter) ShareFile(ctx context.Context, connID string, file domain.FileRef) error {
	req := FileShareRequest{ConnID: connID, File: file}
	var resp FileShareResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceFileShare,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return fmt.Errorf("failed to share file: %w", err)
	}
	if resp.Error != "" {
		return mapServiceError(resp.Error)
	}
	return nil
}

func (a *collabAdapter) Disconnect(ctx context.Context, connID string) error {
	req := DisconnectRequest{ConnID: connID}
	var resp DisconnectResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceDisconnect,
		json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
