package collab

import (
	"sync"
	"time"

	domain "github.com/example/airbridge/domain/collab"
)

// EventSink receives the broadcast events produced by coordinator
// operations. Emit is called while the coordinator lock is held, so for any
// room the order of Emit calls matches the order in which the mutating
// operations were serialized. Implementations must not call back into the
// Service.
type EventSink interface {
	Emit(event any)
}

// Service is the room coordinator. It owns all process-wide shared state —
// rooms, shared text, chat history, identities, membership — behind a
// single mutex, which is the serialization point required for per-room
// ordering. No other component mutates these maps.
type Service struct {
	mu sync.Mutex

	rooms  map[string]*roomState
	text   map[string]string
	chat   map[string][]domain.ChatMessage
	names  map[string]string // connID -> display name
	inRoom map[string]string // connID -> roomID, at most one room per connection

	sink EventSink

	// Test seams; production values are set by NewService.
	now        func() time.Time
	generateID func() string
}

// roomState tracks a live room's membership and activity. Shared text and
// chat history live in the coordinator's sibling maps and share the room's
// lifetime.
type roomState struct {
	createdAt    time.Time
	lastActivity time.Time
	members      map[string]string // connID -> display name snapshot
}

// NewService creates an empty coordinator that emits broadcasts to sink.
func NewService(sink EventSink) *Service {
	return &Service{
		rooms:      make(map[string]*roomState),
		text:       make(map[string]string),
		chat:       make(map[string][]domain.ChatMessage),
		names:      make(map[string]string),
		inRoom:     make(map[string]string),
		sink:       sink,
		now:        time.Now,
		generateID: newRoomID,
	}
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// RegisterConn records a fresh connection in the identity registry under a
// generated display name and returns that name.
func (s *Service) RegisterConn(connID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := GenerateUsername()
	s.names[connID] = name
	return name
}

// Username returns the current display name for a connection.
func (s *Service) Username(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[connID]
	return name, ok
}

// CreateRoom allocates a fresh room with the caller as sole member and
// returns its (empty) snapshot. A caller already in a room leaves it first,
// with the usual leave broadcasts.
func (s *Service) CreateRoom(connID string) (*RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rooms) >= MaxRooms {
		return nil, ErrTooManyRooms
	}

	s.leaveLocked(connID)

	roomID := s.generateID()
	for s.rooms[roomID] != nil {
		roomID = s.generateID()
	}

	now := s.now()
	s.rooms[roomID] = &roomState{
		createdAt:    now,
		lastActivity: now,
		members:      map[string]string{connID: s.displayName(connID)},
	}
	s.text[roomID] = ""
	s.chat[roomID] = nil
	s.inRoom[connID] = roomID

	s.sink.Emit(userCountEvent(roomID, 1))

	return &RoomSnapshot{RoomID: roomID, Text: "", Messages: []domain.ChatMessage{}}, nil
}

// JoinRoom moves a connection into an existing room and returns the room's
// current state. Validation failures have no side effects; once validation
// passes, any current room is left first (with its broadcasts), so a failed
// existence or capacity check leaves the connection unjoined.
func (s *Service) JoinRoom(connID, roomID string) (*RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateRoomID(roomID); err != nil {
		return nil, err
	}

	s.leaveLocked(connID)

	room := s.rooms[roomID]
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if len(room.members) >= MaxRoomMembers {
		return nil, ErrRoomFull
	}

	name := s.displayName(connID)
	room.members[connID] = name
	room.lastActivity = s.now()
	s.inRoom[connID] = roomID

	s.sink.Emit(userCountEvent(roomID, len(room.members)))
	s.sink.Emit(userJoinedEvent(roomID, name, s.nowMillis()))

	return s.snapshotLocked(roomID), nil
}

// SyncText replaces the room's shared text, last writer wins, and notifies
// every other member.
func (s *Service) SyncText(connID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok := s.inRoom[connID]
	if !ok {
		return ErrNotInRoom
	}
	if err := ValidateText(text); err != nil {
		return err
	}

	s.text[roomID] = text
	s.rooms[roomID].lastActivity = s.now()

	s.sink.Emit(textUpdatedEvent(roomID, text, connID))
	return nil
}

// PostMessage appends a chat message to the room history, evicting the
// oldest entry past the cap, and broadcasts it to all members including the
// sender. A zero timestamp means the server observes one.
func (s *Service) PostMessage(connID, text string, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok := s.inRoom[connID]
	if !ok {
		return ErrNotInRoom
	}

	if timestamp == 0 {
		timestamp = s.nowMillis()
	}
	msg := domain.ChatMessage{
		Text:      text,
		Username:  s.displayName(connID),
		Timestamp: timestamp,
	}

	history := append(s.chat[roomID], msg)
	if len(history) > MaxChatHistory {
		history = history[len(history)-MaxChatHistory:]
	}
	s.chat[roomID] = history
	s.rooms[roomID].lastActivity = s.now()

	s.sink.Emit(chatMessageEvent(roomID, msg))
	return nil
}

// SetUsername updates the identity registry entry for a connection. If the
// connection is in a room, the member snapshot is refreshed and the room is
// told about the rename.
func (s *Service) SetUsername(connID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateUsername(username); err != nil {
		return err
	}
	old, ok := s.names[connID]
	if !ok {
		return ErrUnknownConn
	}
	s.names[connID] = username

	roomID, joined := s.inRoom[connID]
	if !joined {
		return nil
	}
	room := s.rooms[roomID]
	room.members[connID] = username
	room.lastActivity = s.now()

	s.sink.Emit(userListEvent(roomID, room.members))
	s.sink.Emit(usernameChangedEvent(roomID, old, username, s.nowMillis()))
	return nil
}

// ShareFile broadcasts file metadata to every member of the sender's room,
// sender included. Nothing is retained.
func (s *Service) ShareFile(connID string, file domain.FileRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok := s.inRoom[connID]
	if !ok {
		return ErrNotInRoom
	}
	s.rooms[roomID].lastActivity = s.now()

	s.sink.Emit(fileSharedEvent(roomID, file, connID))
	return nil
}

// Disconnect runs leave semantics and removes the connection from the
// identity registry and membership index.
func (s *Service) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaveLocked(connID)
	delete(s.names, connID)
}

// ReapIdle deletes every room whose last activity is older than
// InactivityTimeout, clearing any remaining membership entries. It returns
// the number of rooms evicted.
func (s *Service) ReapIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	reaped := 0
	for roomID, room := range s.rooms {
		if now.Sub(room.lastActivity) <= InactivityTimeout {
			continue
		}
		for connID := range room.members {
			delete(s.inRoom, connID)
		}
		s.deleteRoomLocked(roomID)
		reaped++
	}
	return reaped
}

// RoomCount returns the number of active rooms.
func (s *Service) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// ConnCount returns the number of registered connections.
func (s *Service) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// leaveLocked removes a connection from its current room, if any. The room
// is deleted outright when it empties; otherwise the remaining members get
// the updated count and a user-left notice under the leaver's last-known
// name.
func (s *Service) leaveLocked(connID string) {
	roomID, ok := s.inRoom[connID]
	if !ok {
		return
	}
	delete(s.inRoom, connID)

	room := s.rooms[roomID]
	if room == nil {
		return
	}
	name, wasMember := room.members[connID]
	if !wasMember {
		return
	}
	delete(room.members, connID)

	if len(room.members) == 0 {
		s.deleteRoomLocked(roomID)
		return
	}

	s.sink.Emit(userCountEvent(roomID, len(room.members)))
	s.sink.Emit(userLeftEvent(roomID, name, s.nowMillis()))
}

// deleteRoomLocked removes a room together with its text and chat state.
// Idempotent.
func (s *Service) deleteRoomLocked(roomID string) {
	delete(s.rooms, roomID)
	delete(s.text, roomID)
	delete(s.chat, roomID)
}

func (s *Service) snapshotLocked(roomID string) *RoomSnapshot {
	messages := make([]domain.ChatMessage, len(s.chat[roomID]))
	copy(messages, s.chat[roomID])
	return &RoomSnapshot{
		RoomID:   roomID,
		Text:     s.text[roomID],
		Messages: messages,
	}
}

func (s *Service) displayName(connID string) string {
	if name, ok := s.names[connID]; ok {
		return name
	}
	return "Anonymous"
}
