package collab

import (
	"errors"
	"regexp"
	"time"
	"unicode/utf8"

	domain "github.com/example/airbridge/domain/collab"
)

// Coordination limits.
const (
	MaxRooms          = 100
	MaxRoomMembers    = 10
	MaxTextLength     = 50000
	MaxRoomIDLength   = 50
	MaxChatHistory    = 50
	MaxUsernameLength = 20
	RoomIDLength      = 8

	// InactivityTimeout is how long a room may sit without member activity
	// before the reaper evicts it.
	InactivityTimeout = 24 * time.Hour
	// SweepInterval is how often the reaper runs.
	SweepInterval = time.Hour
)

// Validation and coordination errors. The error text doubles as the wire
// error payload sent back to clients, so these strings are part of the
// protocol and must not change casually.
var (
	ErrRoomIDRequired  = errors.New("Room ID is required")
	ErrRoomIDTooLong   = errors.New("Room ID too long")
	ErrRoomIDInvalid   = errors.New("Room ID contains invalid characters")
	ErrRoomNotFound    = errors.New("Room not found")
	ErrRoomFull        = errors.New("Room is full")
	ErrTooManyRooms    = errors.New("Too many active rooms")
	ErrNotInRoom       = errors.New("Not in a room")
	ErrInvalidText     = errors.New("Invalid text format")
	ErrTextTooLong     = errors.New("Text too long")
	ErrInvalidUsername = errors.New("Invalid username")
	ErrUsernameTooLong = errors.New("Username must be less than 20 characters")
	ErrUnknownConn     = errors.New("User not found")
)

var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateRoomID checks a client-supplied room id: non-empty, bounded
// length, alphanumerics plus hyphen and underscore only.
func ValidateRoomID(id string) error {
	if id == "" {
		return ErrRoomIDRequired
	}
	if len(id) > MaxRoomIDLength {
		return ErrRoomIDTooLong
	}
	if !roomIDPattern.MatchString(id) {
		return ErrRoomIDInvalid
	}
	return nil
}

// ValidateText checks shared-text content before it replaces room state.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidText
	}
	if len(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}

// ValidateUsername checks a display name.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrInvalidUsername
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// RoomSnapshot is the room view returned to a caller entering a room, used
// to initialize its local text and chat state.
type RoomSnapshot struct {
	RoomID   string               `json:"roomId"`
	Text     string               `json:"text"`
	Messages []domain.ChatMessage `json:"messages"`
}

// Request-reply service names registered by the collab module.
const (
	ServiceRegisterConn = "register-conn"
	ServiceCreateRoom   = "create-room"
	ServiceJoinRoom     = "join-room"
	ServiceSyncText     = "sync-text"
	ServiceChatMessage  = "chat-message"
	ServiceSetUsername  = "set-username"
	ServiceFileShare    = "file-share"
	ServiceDisconnect   = "disconnect"
)

// RegisterConnRequest registers a new connection with the identity registry.
type RegisterConnRequest struct {
	ConnID string `json:"conn_id"`
}

// RegisterConnResponse returns the generated display name.
type RegisterConnResponse struct {
	Username string `json:"username"`
	Error    string `json:"error,omitempty"`
}

// CreateRoomRequest asks the coordinator to allocate a fresh room.
type CreateRoomRequest struct {
	ConnID string `json:"conn_id"`
}

// CreateRoomResponse carries the new room id and its (empty) initial state.
type CreateRoomResponse struct {
	RoomID   string               `json:"roomId"`
	Text     string               `json:"text"`
	Messages []domain.ChatMessage `json:"messages"`
	Error    string               `json:"error,omitempty"`
}

// JoinRoomRequest asks the coordinator to move a connection into a room.
type JoinRoomRequest struct {
	ConnID string `json:"conn_id"`
	RoomID string `json:"roomId"`
}

// JoinRoomResponse carries the joined room's current state.
type JoinRoomResponse struct {
	Text     string               `json:"text"`
	Messages []domain.ChatMessage `json:"messages"`
	Error    string               `json:"error,omitempty"`
}

// SyncTextRequest replaces the shared text of the sender's room.
type SyncTextRequest struct {
	ConnID string `json:"conn_id"`
	Text   string `json:"text"`
}

// SyncTextResponse acknowledges a text sync.
type SyncTextResponse struct {
	Error string `json:"error,omitempty"`
}

// ChatMessageRequest posts a chat message to the sender's room. Timestamp is
// optional unix milliseconds; zero means "use server time".
type ChatMessageRequest struct {
	ConnID    string `json:"conn_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ChatMessageResponse acknowledges a chat message.
type ChatMessageResponse struct {
	Error string `json:"error,omitempty"`
}

// SetUsernameRequest changes a connection's display name.
type SetUsernameRequest struct {
	ConnID   string `json:"conn_id"`
	Username string `json:"username"`
}

// SetUsernameResponse acknowledges a rename.
type SetUsernameResponse struct {
	Error string `json:"error,omitempty"`
}

// FileShareRequest broadcasts file metadata to the sender's room.
type FileShareRequest struct {
	ConnID string         `json:"conn_id"`
	File   domain.FileRef `json:"file"`
}

// FileShareResponse acknowledges a file share.
type FileShareResponse struct {
	Error string `json:"error,omitempty"`
}

// DisconnectRequest tears down a connection: leave semantics plus identity
// removal.
type DisconnectRequest struct {
	ConnID string `json:"conn_id"`
}

// DisconnectResponse acknowledges a disconnect.
type DisconnectResponse struct {
	Error string `json:"error,omitempty"`
}
