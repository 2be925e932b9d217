package collab

import (
	domain "github.com/example/airbridge/domain/collab"
	"github.com/example/airbridge/events"
)

// Constructors for the broadcast events handed to the EventSink. Kept
// together so the coordinator reads as state transitions only.

func userCountEvent(roomID string, count int) events.UserCountEvent {
	return events.UserCountEvent{RoomID: roomID, Count: count}
}

func userJoinedEvent(roomID, username string, ts int64) events.UserJoinedEvent {
	return events.UserJoinedEvent{RoomID: roomID, Username: username, Timestamp: ts}
}

func userLeftEvent(roomID, username string, ts int64) events.UserLeftEvent {
	return events.UserLeftEvent{RoomID: roomID, Username: username, Timestamp: ts}
}

func textUpdatedEvent(roomID, text, senderID string) events.TextUpdatedEvent {
	return events.TextUpdatedEvent{RoomID: roomID, Text: text, SenderID: senderID}
}

func chatMessageEvent(roomID string, msg domain.ChatMessage) events.ChatMessageEvent {
	return events.ChatMessageEvent{RoomID: roomID, Message: msg}
}

func userListEvent(roomID string, members map[string]string) events.UserListEvent {
	users := make([]events.UserName, 0, len(members))
	for _, name := range members {
		users = append(users, events.UserName{Name: name})
	}
	return events.UserListEvent{RoomID: roomID, Users: users}
}

func usernameChangedEvent(roomID, oldName, newName string, ts int64) events.UsernameChangedEvent {
	return events.UsernameChangedEvent{
		RoomID:      roomID,
		OldUsername: oldName,
		NewUsername: newName,
		Timestamp:   ts,
	}
}

func fileSharedEvent(roomID string, file domain.FileRef, uploadedBy string) events.FileSharedEvent {
	return events.FileSharedEvent{RoomID: roomID, File: file, UploadedBy: uploadedBy}
}
