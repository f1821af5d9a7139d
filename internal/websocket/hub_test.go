package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundlens/pkg/contracts/events"
)

// fakeConn is an in-memory Connection for hub and pump tests
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	types  []int
	closed bool
	readCh chan readFrame
}

type readFrame struct {
	messageType int
	data        []byte
	err         error
}

func newFakeConn() *fakeConn {
	return &fakeConn{readCh: make(chan readFrame, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	fr, ok := <-f.readCh
	if !ok {
		return 0, nil, io.EOF
	}
	if fr.err != nil {
		return 0, nil, fr.err
	}
	return fr.messageType, fr.data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	f.types = append(f.types, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.readCh)
	}
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) writtenTypes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.types))
	copy(out, f.types)
	return out
}

func (f *fakeConn) SetReadLimit(int64)                 {}
func (f *fakeConn) SetReadDeadline(time.Time) error    { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetPongHandler(func(string) error)  {}
func (f *fakeConn) RemoteAddr() string                 { return "fake:0" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(discardLogger())
	go hub.Run()
	t.Cleanup(func() {
		close(hub.quit)
	})
	return hub
}

// readEvent pulls the next envelope off a client's send buffer
func readEvent(t *testing.T, client *Client) events.WebSocketMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg events.WebSocketMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return events.WebSocketMessage{}
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(client)

	// the hub greets every new client
	hello := readEvent(t, client)
	assert.Equal(t, events.MessageTypeConnect, hello.Type)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestHubPublishesTypedEvents(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(client)
	readEvent(t, client) // drain hello

	hub.PublishBatchQueued("batch-1", "job-1", 3)
	hub.PublishFileProcessing("batch-1", "funds.xlsx")
	hub.PublishFileDone("batch-1", "funds.xlsx", "processed", 42, []string{"Domicile"}, "")
	hub.PublishBatchProgress("batch-1", 1, 4)
	hub.PublishBatchCompleted("batch-1", 3, 120, "")
	hub.PublishBatchFailed("batch-2", "disk full")

	msg := readEvent(t, client)
	assert.Equal(t, events.MessageTypeBatchQueued, msg.Type)

	msg = readEvent(t, client)
	assert.Equal(t, events.MessageTypeFileProcessing, msg.Type)

	msg = readEvent(t, client)
	require.Equal(t, events.MessageTypeFileDone, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "processed", data["status"])
	assert.Equal(t, float64(42), data["row_count"])

	msg = readEvent(t, client)
	require.Equal(t, events.MessageTypeBatchProgress, msg.Type)
	data, ok = msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(25), data["percent"])

	msg = readEvent(t, client)
	assert.Equal(t, events.MessageTypeBatchCompleted, msg.Type)

	msg = readEvent(t, client)
	require.Equal(t, events.MessageTypeBatchFailed, msg.Type)
	data, ok = msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "disk full", data["error"])
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := newRunningHub(t)

	first := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	second := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(first)
	hub.Register(second)
	readEvent(t, first)
	readEvent(t, second)

	hub.PublishBatchProgress("batch-1", 2, 2)

	assert.Equal(t, events.MessageTypeBatchProgress, readEvent(t, first).Type)
	assert.Equal(t, events.MessageTypeBatchProgress, readEvent(t, second).Type)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := newRunningHub(t)

	slow := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(slow)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	// fill the send buffer so the next broadcast cannot be delivered
	for len(slow.send) < cap(slow.send) {
		slow.send <- []byte("{}")
	}

	hub.PublishBatchProgress("batch-1", 1, 2)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestHubStartAndStop(t *testing.T) {
	hub := NewHub(discardLogger())
	hub.Start()
	hub.Start() // second start is a no-op

	client := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(client)
	readEvent(t, client)

	hub.Stop()
	hub.Stop() // second stop is a no-op

	assert.Equal(t, 0, hub.ClientCount())

	// the client's channel was closed by Stop
	_, open := <-client.send
	assert.False(t, open)
}

func TestHubPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(discardLogger())
	hub.Start()

	client := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(client)
	readEvent(t, client)

	hub.Stop()

	// The run loop is gone; these must return instead of blocking on
	// the unbuffered channels.
	done := make(chan struct{})
	go func() {
		hub.PublishBatchProgress("batch-1", 1, 2)
		hub.Unregister(client)
		hub.Register(NewClientWithConnection(hub, newFakeConn(), discardLogger()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub operations blocked after Stop")
	}
}

func TestHubMetricsSnapshot(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClientWithConnection(hub, newFakeConn(), discardLogger())
	hub.Register(client)
	readEvent(t, client)

	hub.PublishBatchProgress("batch-1", 1, 2)
	readEvent(t, client)

	snapshot := hub.GetHubMetrics()
	assert.Equal(t, 1, snapshot["active_clients"])
	assert.Equal(t, int64(1), snapshot["total_connections"])
}
