package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"fundlens/internal/infrastructure"
	"fundlens/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts ingest events
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to fan out
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex

	logger *slog.Logger

	// Counters
	totalConnections int64
	messagesSent     int64
	droppedClients   int64

	// Control
	quit        chan struct{}
	metricsQuit chan struct{}
	running     bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		broadcast:   make(chan []byte),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		logger:      logger,
		quit:        make(chan struct{}),
		metricsQuit: make(chan struct{}),
	}
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportMetrics()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := context.Background()
			if client.traceID != "" {
				ctx = infrastructure.WithTraceID(ctx, client.traceID)
			}

			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			GetMetrics().RecordConnection()

			// Greet the new client so the frontend can confirm the stream
			hello := events.NewMessage(events.MessageTypeConnect, map[string]interface{}{
				"status":    "connected",
				"message":   "Connected to FundLens",
				"client_id": client.id,
			})
			hello.TraceID = client.traceID

			if jsonData, err := json.Marshal(hello); err == nil {
				select {
				case client.send <- jsonData:
				default:
					h.logger.WarnContext(ctx, "Failed to send connect message - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()

				ctx := context.Background()
				if client.traceID != "" {
					ctx = infrastructure.WithTraceID(ctx, client.traceID)
				}

				h.logger.InfoContext(ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))

				GetMetrics().RecordDisconnection(time.Since(client.connectedAt))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			sent := int64(0)
			for _, client := range clients {
				select {
				case client.send <- message:
					sent++
				default:
					// Slow client: drop it so the broadcast never blocks
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.droppedClients++
					h.mu.Unlock()

					GetMetrics().RecordDroppedMessage()
					h.logger.Warn("Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}

			h.mu.Lock()
			h.messagesSent += sent
			h.mu.Unlock()
		}
	}
}

// Publish marshals an event envelope and fans it out to every client.
// Publishing after Stop is a no-op; the run loop is gone by then.
func (h *Hub) Publish(msg events.WebSocketMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(msg.Type)))
		return
	}

	select {
	case h.broadcast <- jsonData:
	case <-h.quit:
	}
}

// PublishBatchQueued announces a staged batch and its ingest job
func (h *Hub) PublishBatchQueued(batchID, jobID string, totalFiles int) {
	h.Publish(events.NewMessage(events.MessageTypeBatchQueued, events.BatchQueued{
		BatchID:    batchID,
		JobID:      jobID,
		TotalFiles: totalFiles,
	}))
}

// PublishFileProcessing announces that a workbook started parsing
func (h *Hub) PublishFileProcessing(batchID, fileName string) {
	h.Publish(events.NewMessage(events.MessageTypeFileProcessing, events.FileProcessing{
		BatchID:  batchID,
		FileName: fileName,
	}))
}

// PublishFileDone reports one workbook's ingest outcome
func (h *Hub) PublishFileDone(batchID, fileName, status string, rowCount int, headers []string, errMsg string) {
	h.Publish(events.NewMessage(events.MessageTypeFileDone, events.FileDone{
		BatchID:  batchID,
		FileName: fileName,
		Status:   status,
		RowCount: rowCount,
		Headers:  headers,
		Error:    errMsg,
	}))
}

// PublishBatchProgress reports files completed out of total
func (h *Hub) PublishBatchProgress(batchID string, completed, total int) {
	percent := 0.0
	if total > 0 {
		percent = float64(completed) * 100 / float64(total)
	}
	h.Publish(events.NewMessage(events.MessageTypeBatchProgress, events.BatchProgress{
		BatchID:   batchID,
		Completed: completed,
		Total:     total,
		Percent:   percent,
	}))
}

// PublishBatchCompleted closes a batch's event stream
func (h *Hub) PublishBatchCompleted(batchID string, processedFiles, totalRows int, warning string) {
	h.Publish(events.NewMessage(events.MessageTypeBatchCompleted, events.BatchCompleted{
		BatchID:        batchID,
		ProcessedFiles: processedFiles,
		TotalRows:      totalRows,
		Warning:        warning,
	}))
}

// PublishBatchFailed reports a batch-level failure
func (h *Hub) PublishBatchFailed(batchID, errMsg string) {
	h.Publish(events.NewMessage(events.MessageTypeBatchFailed, events.BatchFailed{
		BatchID: batchID,
		Error:   errMsg,
	}))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. Registration after Stop is dropped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub. Safe to call after Stop, which
// has already closed every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Stop gracefully stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	close(h.metricsQuit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// reportMetrics periodically logs hub health
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.metricsQuit:
			return

		case <-ticker.C:
			h.mu.RLock()
			activeClients := len(h.clients)
			sent := h.messagesSent
			total := h.totalConnections
			dropped := h.droppedClients
			h.mu.RUnlock()

			GetMetrics().RecordQueueDepth(int64(len(h.broadcast)))

			h.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", activeClients),
				slog.Int64("total_connections", total),
				slog.Int64("messages_sent", sent),
				slog.Int64("dropped_clients", dropped))
		}
	}
}

// GetHubMetrics returns current hub counters for the health endpoint
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"dropped_clients":   h.droppedClients,
	}
}
