package events

import (
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/airbridge/domain/collab"
)

// UserCountEvent is emitted whenever a room's member count changes.
type UserCountEvent struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}

// UserJoinedEvent is emitted when a connection joins a room.
type UserJoinedEvent struct {
	RoomID    string `json:"room_id"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// UserLeftEvent is emitted when a connection leaves a room that still has
// members.
type UserLeftEvent struct {
	RoomID    string `json:"room_id"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// TextUpdatedEvent is emitted when a member replaces the room text. Fan-out
// excludes SenderID: the sender already holds the value locally.
type TextUpdatedEvent struct {
	RoomID   string `json:"room_id"`
	Text     string `json:"text"`
	SenderID string `json:"sender_id"`
}

// ChatMessageEvent is emitted for every posted chat message, sender included.
type ChatMessageEvent struct {
	RoomID  string             `json:"room_id"`
	Message domain.ChatMessage `json:"message"`
}

// UserName is the name-only projection used by UserListEvent.
type UserName struct {
	Name string `json:"name"`
}

// UserListEvent carries the full member list of a room after a rename.
type UserListEvent struct {
	RoomID string     `json:"room_id"`
	Users  []UserName `json:"users"`
}

// UsernameChangedEvent is emitted when a room member changes display name.
type UsernameChangedEvent struct {
	RoomID      string `json:"room_id"`
	OldUsername string `json:"old_username"`
	NewUsername string `json:"new_username"`
	Timestamp   int64  `json:"timestamp"`
}

// FileSharedEvent carries file metadata to every member of a room.
type FileSharedEvent struct {
	RoomID     string         `json:"room_id"`
	File       domain.FileRef `json:"file"`
	UploadedBy string         `json:"uploaded_by"`
}

// Event definitions for the collab domain.
var (
	UserCountV1 = helper.EventDefinition[UserCountEvent](
		"collab",
		"UserCount",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"collab",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"collab",
		"UserLeft",
		"v1",
	)

	TextUpdatedV1 = helper.EventDefinition[TextUpdatedEvent](
		"collab",
		"TextUpdated",
		"v1",
	)

	ChatMessageV1 = helper.EventDefinition[ChatMessageEvent](
		"collab",
		"ChatMessage",
		"v1",
	)

	UserListV1 = helper.EventDefinition[UserListEvent](
		"collab",
		"UserList",
		"v1",
	)

	UsernameChangedV1 = helper.EventDefinition[UsernameChangedEvent](
		"collab",
		"UsernameChanged",
		"v1",
	)

	FileSharedV1 = helper.EventDefinition[FileSharedEvent](
		"collab",
		"FileShared",
		"v1",
	)
)
