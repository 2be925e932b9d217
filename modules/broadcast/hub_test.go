package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// fakeConn records written frames and can be told to fail.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	failed bool
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed {
		return errors.New("write on closed connection")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) lastFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

type testFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub
}

func registerClient(t *testing.T, hub *Hub, id string) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	client := NewClient(id, conn)
	hub.Register(client)
	waitFor(t, func() bool { return hub.ClientCount() > 0 })
	return client, conn
}

// waitFor polls until cond holds; the hub loop is asynchronous.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBroadcastReachesAllRoomClients(t *testing.T) {
	hub := startHub(t)
	_, connA := registerClient(t, hub, "a")
	_, connB := registerClient(t, hub, "b")
	_, connC := registerClient(t, hub, "c")
	waitFor(t, func() bool { return hub.ClientCount() == 3 })

	hub.JoinRoom("a", "room1")
	hub.JoinRoom("b", "room1")
	hub.JoinRoom("c", "room2")

	hub.Broadcast("room1", testFrame{Type: "text-update", Text: "hello"})

	waitFor(t, func() bool { return connA.frameCount() == 1 && connB.frameCount() == 1 })

	var got testFrame
	require.NoError(t, json.Unmarshal(connA.lastFrame(), &got))
	assert.Equal(t, testFrame{Type: "text-update", Text: "hello"}, got)

	// Different room stays silent.
	assert.Equal(t, 0, connC.frameCount())
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := startHub(t)
	_, connA := registerClient(t, hub, "a")
	_, connB := registerClient(t, hub, "b")
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.JoinRoom("a", "room1")
	hub.JoinRoom("b", "room1")

	hub.BroadcastExcept("room1", "a", testFrame{Type: "text-update", Text: "from a"})

	waitFor(t, func() bool { return connB.frameCount() == 1 })
	assert.Equal(t, 0, connA.frameCount())
}

func TestFailedWriteDoesNotAbortDelivery(t *testing.T) {
	hub := startHub(t)
	_, connA := registerClient(t, hub, "a")
	_, connB := registerClient(t, hub, "b")
	_, connC := registerClient(t, hub, "c")
	waitFor(t, func() bool { return hub.ClientCount() == 3 })

	hub.JoinRoom("a", "room1")
	hub.JoinRoom("b", "room1")
	hub.JoinRoom("c", "room1")

	connB.mu.Lock()
	connB.failed = true
	connB.mu.Unlock()

	hub.Broadcast("room1", testFrame{Type: "chat-message", Text: "hi"})

	waitFor(t, func() bool { return connA.frameCount() == 1 && connC.frameCount() == 1 })
	assert.Equal(t, 0, connB.frameCount())
}

func TestJoinRoomLeavesPreviousRoom(t *testing.T) {
	hub := startHub(t)
	registerClient(t, hub, "a")

	hub.JoinRoom("a", "room1")
	assert.Equal(t, 1, hub.RoomClientCount("room1"))

	hub.JoinRoom("a", "room2")
	assert.Equal(t, 0, hub.RoomClientCount("room1"))
	assert.Equal(t, 1, hub.RoomClientCount("room2"))
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	hub := startHub(t)
	_, connA := registerClient(t, hub, "a")
	_, connB := registerClient(t, hub, "b")
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.JoinRoom("a", "room1")
	hub.JoinRoom("b", "room1")
	hub.LeaveRoom("b")

	hub.Broadcast("room1", testFrame{Type: "user-count"})

	waitFor(t, func() bool { return connA.frameCount() == 1 })
	assert.Equal(t, 0, connB.frameCount())
}

func TestUnregisterRemovesClientFromRoom(t *testing.T) {
	hub := startHub(t)
	clientA, _ := registerClient(t, hub, "a")

	hub.JoinRoom("a", "room1")
	require.Equal(t, 1, hub.RoomClientCount("room1"))

	hub.Unregister(clientA)
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	assert.Equal(t, 0, hub.RoomClientCount("room1"))
}

func TestShutdownClosesClients(t *testing.T) {
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn := &fakeConn{}
	hub.Register(NewClient("a", conn))
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	hub.Wait()

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	assert.True(t, closed)
	assert.Equal(t, 0, hub.ClientCount())
}
