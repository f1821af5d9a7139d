package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordConnection(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordConnection()

	assert.EqualValues(t, 3, m.TotalConnections)
	assert.EqualValues(t, 3, m.ActiveConnections)
	assert.EqualValues(t, 3, m.MaxConcurrent)
}

func TestMetricsMaxConcurrentSurvivesDisconnects(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordDisconnection(time.Second)
	m.RecordConnection()

	assert.EqualValues(t, 3, m.TotalConnections)
	assert.EqualValues(t, 2, m.ActiveConnections)
	assert.EqualValues(t, 2, m.MaxConcurrent)
}

func TestMetricsAverageConnectionTime(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordDisconnection(10 * time.Second)
	m.RecordDisconnection(20 * time.Second)

	assert.Equal(t, 15*time.Second, m.AvgConnectionTime)
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	assert.EqualValues(t, 10, m.AvgQueueDepth)
	assert.EqualValues(t, 10, m.MaxQueueDepth)

	m.RecordQueueDepth(30)
	assert.EqualValues(t, 12, m.AvgQueueDepth)
	assert.EqualValues(t, 30, m.MaxQueueDepth)
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordDroppedMessage()
	m.RecordQueueDepth(5)

	snapshot := m.GetSnapshot()

	connections, ok := snapshot["connections"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, connections["total"])
	assert.EqualValues(t, 1, connections["active"])

	messages, ok := snapshot["messages"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, messages["dropped"])

	performance, ok := snapshot["performance"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 5, performance["max_queue_depth"])
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordDisconnection(time.Second)
	m.RecordDroppedMessage()
	m.RecordQueueDepth(42)

	m.Reset()

	assert.EqualValues(t, 0, m.TotalConnections)
	assert.EqualValues(t, 0, m.ActiveConnections)
	assert.EqualValues(t, 0, m.DroppedMessages)
	assert.EqualValues(t, 0, m.MaxQueueDepth)
	assert.Equal(t, time.Duration(0), m.AvgConnectionTime)
}

func TestGetMetricsReturnsSingleton(t *testing.T) {
	assert.Same(t, GetMetrics(), GetMetrics())
}
