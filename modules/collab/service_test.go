package collab

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/example/airbridge/domain/collab"
	"github.com/example/airbridge/events"
)

// recordingSink captures emitted events in order.
type recordingSink struct {
	emitted []any
}

func (s *recordingSink) Emit(event any) {
	s.emitted = append(s.emitted, event)
}

func (s *recordingSink) reset() {
	s.emitted = nil
}

func newTestService() (*Service, *recordingSink) {
	sink := &recordingSink{}
	return NewService(sink), sink
}

func register(t *testing.T, s *Service, connID string) {
	t.Helper()
	name := s.RegisterConn(connID)
	require.NotEmpty(t, name)
}

func TestCreateRoomReturnsEmptySnapshot(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "c1")

	snapshot, err := s.CreateRoom("c1")
	require.NoError(t, err)

	assert.Len(t, snapshot.RoomID, RoomIDLength)
	assert.Equal(t, "", snapshot.Text)
	assert.NotNil(t, snapshot.Messages)
	assert.Empty(t, snapshot.Messages)

	require.Len(t, sink.emitted, 1)
	assert.Equal(t, events.UserCountEvent{RoomID: snapshot.RoomID, Count: 1}, sink.emitted[0])
}

func TestJoinRoomReturnsCurrentState(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "creator")
	register(t, s, "joiner")

	snapshot, err := s.CreateRoom("creator")
	require.NoError(t, err)
	require.NoError(t, s.SyncText("creator", "hello"))
	require.NoError(t, s.PostMessage("creator", "first", 1234))
	sink.reset()

	joined, err := s.JoinRoom("joiner", snapshot.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "hello", joined.Text)
	require.Len(t, joined.Messages, 1)
	assert.Equal(t, "first", joined.Messages[0].Text)
	assert.Equal(t, int64(1234), joined.Messages[0].Timestamp)

	// Count update first, then the join notice, in serialization order.
	require.Len(t, sink.emitted, 2)
	assert.Equal(t, events.UserCountEvent{RoomID: snapshot.RoomID, Count: 2}, sink.emitted[0])
	joinedEvt, ok := sink.emitted[1].(events.UserJoinedEvent)
	require.True(t, ok)
	assert.Equal(t, snapshot.RoomID, joinedEvt.RoomID)
	assert.NotEmpty(t, joinedEvt.Username)
}

func TestJoinRoomValidation(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "c1")

	cases := []struct {
		name   string
		roomID string
		want   error
	}{
		{"empty", "", ErrRoomIDRequired},
		{"too long", strings.Repeat("a", MaxRoomIDLength+10), ErrRoomIDTooLong},
		{"bad characters", "room!$%", ErrRoomIDInvalid},
		{"missing", "does-not-exist", ErrRoomNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.JoinRoom("c1", tc.roomID)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestJoinRoomValidationFailureKeepsCurrentRoom(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "c1")

	_, err := s.CreateRoom("c1")
	require.NoError(t, err)

	_, err = s.JoinRoom("c1", "bad id!")
	assert.ErrorIs(t, err, ErrRoomIDInvalid)

	// Still a member: mutating the room must succeed.
	assert.NoError(t, s.SyncText("c1", "still here"))
	assert.Equal(t, 1, s.RoomCount())
}

func TestJoinRoomFull(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "creator")

	snapshot, err := s.CreateRoom("creator")
	require.NoError(t, err)

	for i := 1; i < MaxRoomMembers; i++ {
		connID := fmt.Sprintf("member-%d", i)
		register(t, s, connID)
		_, err := s.JoinRoom(connID, snapshot.RoomID)
		require.NoError(t, err)
	}

	register(t, s, "late")
	_, err = s.JoinRoom("late", snapshot.RoomID)
	assert.ErrorIs(t, err, ErrRoomFull)

	// The failed join left the connection unjoined.
	assert.ErrorIs(t, s.SyncText("late", "x"), ErrNotInRoom)
}

func TestCreateRoomCapacity(t *testing.T) {
	s, _ := newTestService()

	for i := 0; i < MaxRooms; i++ {
		connID := fmt.Sprintf("c%d", i)
		register(t, s, connID)
		_, err := s.CreateRoom(connID)
		require.NoError(t, err)
	}

	register(t, s, "overflow")
	_, err := s.CreateRoom("overflow")
	assert.ErrorIs(t, err, ErrTooManyRooms)
	assert.Equal(t, MaxRooms, s.RoomCount())
}

func TestCreateRoomCapacityCheckPrecedesImplicitLeave(t *testing.T) {
	s, _ := newTestService()

	for i := 0; i < MaxRooms; i++ {
		connID := fmt.Sprintf("c%d", i)
		register(t, s, connID)
		_, err := s.CreateRoom(connID)
		require.NoError(t, err)
	}

	// A member of a full registry asking for a fresh room is refused without
	// being ejected from its current room.
	_, err := s.CreateRoom("c0")
	assert.ErrorIs(t, err, ErrTooManyRooms)
	assert.NoError(t, s.SyncText("c0", "still joined"))
}

func TestSyncTextLastWriterWins(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")
	register(t, s, "b")

	snapshot, err := s.CreateRoom("a")
	require.NoError(t, err)
	_, err = s.JoinRoom("b", snapshot.RoomID)
	require.NoError(t, err)
	sink.reset()

	require.NoError(t, s.SyncText("a", "one"))
	require.NoError(t, s.SyncText("b", "two"))

	require.Len(t, sink.emitted, 2)
	assert.Equal(t, events.TextUpdatedEvent{RoomID: snapshot.RoomID, Text: "one", SenderID: "a"}, sink.emitted[0])
	assert.Equal(t, events.TextUpdatedEvent{RoomID: snapshot.RoomID, Text: "two", SenderID: "b"}, sink.emitted[1])

	register(t, s, "c")
	joined, err := s.JoinRoom("c", snapshot.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "two", joined.Text)
}

func TestSyncTextValidation(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "a")

	assert.ErrorIs(t, s.SyncText("a", "text"), ErrNotInRoom)

	_, err := s.CreateRoom("a")
	require.NoError(t, err)

	long := make([]byte, MaxTextLength+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, s.SyncText("a", string(long)), ErrTextTooLong)
	assert.ErrorIs(t, s.SyncText("a", string([]byte{0xff, 0xfe})), ErrInvalidText)

	// Exactly at the limit is fine.
	assert.NoError(t, s.SyncText("a", string(long[:MaxTextLength])))
}

func TestPostMessageHistoryEviction(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "a")

	snapshot, err := s.CreateRoom("a")
	require.NoError(t, err)

	for i := 0; i < MaxChatHistory+1; i++ {
		require.NoError(t, s.PostMessage("a", fmt.Sprintf("msg-%d", i), int64(i+1)))
	}

	register(t, s, "b")
	joined, err := s.JoinRoom("b", snapshot.RoomID)
	require.NoError(t, err)

	require.Len(t, joined.Messages, MaxChatHistory)
	assert.Equal(t, "msg-1", joined.Messages[0].Text, "oldest message evicted")
	assert.Equal(t, fmt.Sprintf("msg-%d", MaxChatHistory), joined.Messages[MaxChatHistory-1].Text)
}

func TestPostMessageServerTimestampFallback(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")
	_, err := s.CreateRoom("a")
	require.NoError(t, err)

	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }
	sink.reset()

	require.NoError(t, s.PostMessage("a", "hi", 0))

	require.Len(t, sink.emitted, 1)
	evt, ok := sink.emitted[0].(events.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, fixed.UnixMilli(), evt.Message.Timestamp)
}

func TestSetUsername(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")

	assert.ErrorIs(t, s.SetUsername("a", ""), ErrInvalidUsername)
	assert.ErrorIs(t, s.SetUsername("a", "abcdefghijklmnopqrstu"), ErrUsernameTooLong)
	assert.ErrorIs(t, s.SetUsername("ghost", "Name"), ErrUnknownConn)

	// Outside a room the rename is silent.
	require.NoError(t, s.SetUsername("a", "Solo"))
	assert.Empty(t, sink.emitted)

	snapshot, err := s.CreateRoom("a")
	require.NoError(t, err)
	sink.reset()

	require.NoError(t, s.SetUsername("a", "Renamed"))
	require.Len(t, sink.emitted, 2)

	list, ok := sink.emitted[0].(events.UserListEvent)
	require.True(t, ok)
	assert.Equal(t, snapshot.RoomID, list.RoomID)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "Renamed", list.Users[0].Name)

	changed, ok := sink.emitted[1].(events.UsernameChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "Solo", changed.OldUsername)
	assert.Equal(t, "Renamed", changed.NewUsername)
}

func TestShareFileBroadcastsMetadata(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")

	file := domain.FileRef{
		Filename:     "abc123.png",
		OriginalName: "screenshot.png",
		Size:         2048,
		MimeType:     "image/png",
	}
	assert.ErrorIs(t, s.ShareFile("a", file), ErrNotInRoom)

	snapshot, err := s.CreateRoom("a")
	require.NoError(t, err)
	sink.reset()

	require.NoError(t, s.ShareFile("a", file))
	require.Len(t, sink.emitted, 1)
	assert.Equal(t, events.FileSharedEvent{
		RoomID:     snapshot.RoomID,
		File:       file,
		UploadedBy: "a",
	}, sink.emitted[0])
}

func TestLeaveBroadcastsToRemainingMembers(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")
	register(t, s, "b")

	snapshot, err := s.CreateRoom("a")
	require.NoError(t, err)
	_, err = s.JoinRoom("b", snapshot.RoomID)
	require.NoError(t, err)
	require.NoError(t, s.SetUsername("b", "Bob"))
	sink.reset()

	s.Disconnect("b")

	require.Len(t, sink.emitted, 2)
	assert.Equal(t, events.UserCountEvent{RoomID: snapshot.RoomID, Count: 1}, sink.emitted[0])
	left, ok := sink.emitted[1].(events.UserLeftEvent)
	require.True(t, ok)
	assert.Equal(t, "Bob", left.Username)
	assert.NotZero(t, left.Timestamp)
}

func TestRoomDeletedWhenLastMemberLeaves(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")
	register(t, s, "b")

	snapshot, err := s.CreateRoom("a")
	require.NoError(t, err)
	require.NoError(t, s.SyncText("a", "ephemeral"))
	sink.reset()

	s.Disconnect("a")

	// Nobody is left to hear about it.
	assert.Empty(t, sink.emitted)
	assert.Equal(t, 0, s.RoomCount())

	// State does not survive the room.
	_, err = s.JoinRoom("b", snapshot.RoomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoiningAnotherRoomLeavesTheFirst(t *testing.T) {
	s, sink := newTestService()
	register(t, s, "a")
	register(t, s, "b")

	first, err := s.CreateRoom("a")
	require.NoError(t, err)
	second, err := s.CreateRoom("b")
	require.NoError(t, err)
	require.NotEqual(t, first.RoomID, second.RoomID)

	// b creating its own room left nothing behind; now a hops over.
	sink.reset()
	_, err = s.JoinRoom("a", second.RoomID)
	require.NoError(t, err)

	// First room emptied and vanished.
	assert.Equal(t, 1, s.RoomCount())
	_, err = s.JoinRoom("b", first.RoomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDisconnectRemovesIdentity(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "a")
	require.Equal(t, 1, s.ConnCount())

	s.Disconnect("a")
	assert.Equal(t, 0, s.ConnCount())
	_, ok := s.Username("a")
	assert.False(t, ok)

	// Disconnecting an unknown connection is a no-op.
	s.Disconnect("never-seen")
}

func TestReapIdleEvictsStaleRooms(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "fresh")
	register(t, s, "stale")

	base := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return base }

	_, err := s.CreateRoom("stale")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(InactivityTimeout) }
	_, err = s.CreateRoom("fresh")
	require.NoError(t, err)

	// The stale room is exactly at the timeout: not yet evictable.
	assert.Equal(t, 0, s.ReapIdle())

	s.now = func() time.Time { return base.Add(InactivityTimeout + time.Minute) }
	assert.Equal(t, 1, s.ReapIdle())
	assert.Equal(t, 1, s.RoomCount())

	// The evicted member's room binding is gone too.
	assert.ErrorIs(t, s.SyncText("stale", "x"), ErrNotInRoom)
}

func TestActivityRefreshKeepsRoomAlive(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "a")

	base := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return base }
	_, err := s.CreateRoom("a")
	require.NoError(t, err)

	// Half the timeout passes, then the member writes.
	s.now = func() time.Time { return base.Add(InactivityTimeout / 2) }
	require.NoError(t, s.SyncText("a", "ping"))

	// A full timeout after creation, but only half since the write.
	s.now = func() time.Time { return base.Add(InactivityTimeout + time.Minute) }
	assert.Equal(t, 0, s.ReapIdle())
	assert.Equal(t, 1, s.RoomCount())
}

func TestRoomIDCollisionRetries(t *testing.T) {
	s, _ := newTestService()
	register(t, s, "a")
	register(t, s, "b")

	ids := []string{"same-id", "same-id", "other-id"}
	s.generateID = func() string {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}

	first, err := s.CreateRoom("a")
	require.NoError(t, err)
	assert.Equal(t, "same-id", first.RoomID)

	second, err := s.CreateRoom("b")
	require.NoError(t, err)
	assert.Equal(t, "other-id", second.RoomID)
}
