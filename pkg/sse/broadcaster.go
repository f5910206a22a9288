package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/api/jsonrpcx"
	"github.com/danghamo/groupwatch/pkg/logger"
)

const (
	heartbeatInterval = 30 * time.Second
	staleAfter        = 90 * time.Second
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time
	mutex    sync.Mutex // Protects concurrent writes to this client
	once     sync.Once
}

// NewSSEClient creates a client for a response stream
func NewSSEClient(w http.ResponseWriter, flusher http.Flusher) *SSEClient {
	return &SSEClient{
		ID:       uuid.New().String(),
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}
}

func (c *SSEClient) close() {
	c.once.Do(func() { close(c.Done) })
}

// SSEBroadcaster manages SSE connections and broadcasts
type SSEBroadcaster struct {
	logger    *logger.Logger
	clients   map[string]*SSEClient
	mutex     sync.RWMutex
	broadcast chan []byte
	cleanup   *time.Ticker
	shutdown  chan struct{}
	closeOnce sync.Once

	// latest state notification, replayed to new clients
	stateMu sync.RWMutex
	state   []byte
}

// NewSSEBroadcaster creates a new SSE broadcaster
func NewSSEBroadcaster(logger *logger.Logger) *SSEBroadcaster {
	broadcaster := &SSEBroadcaster{
		logger:    logger.WithComponent("sse-broadcaster"),
		clients:   make(map[string]*SSEClient),
		broadcast: make(chan []byte, 1000),
		cleanup:   time.NewTicker(30 * time.Second),
		shutdown:  make(chan struct{}),
	}

	go broadcaster.broadcastLoop()
	go broadcaster.cleanupLoop()

	return broadcaster
}

// AddClient adds a new SSE client
func (b *SSEBroadcaster) AddClient(client *SSEClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.clients[client.ID] = client
	b.logger.Debug("SSE client connected", zap.String("clientId", client.ID))
}

// RemoveClient removes an SSE client
func (b *SSEBroadcaster) RemoveClient(clientID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if client, exists := b.clients[clientID]; exists {
		client.close()
		delete(b.clients, clientID)
		b.logger.Debug("SSE client disconnected", zap.String("clientId", clientID))
	}
}

// BroadcastToAll sends a JSON-RPC notification to all connected clients
func (b *SSEBroadcaster) BroadcastToAll(notification jsonrpcx.Notification) {
	data, err := notification.Marshal()
	if err != nil {
		b.logger.Error("Failed to marshal JSON-RPC notification", zap.Error(err))
		return
	}

	select {
	case <-b.shutdown:
		return
	default:
	}

	select {
	case b.broadcast <- data:
	default:
		b.logger.Warn("Broadcast channel full, dropping message",
			zap.String("method", notification.Method))
	}
}

// SetState replaces the notification sent to clients when they connect
func (b *SSEBroadcaster) SetState(notification jsonrpcx.Notification) {
	data, err := notification.Marshal()
	if err != nil {
		b.logger.Error("Failed to marshal state notification", zap.Error(err))
		return
	}

	b.stateMu.Lock()
	b.state = data
	b.stateMu.Unlock()
}

func (b *SSEBroadcaster) currentState() []byte {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// broadcastLoop handles broadcasting messages to all connected clients
func (b *SSEBroadcaster) broadcastLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in broadcastLoop", zap.Any("panic", r))
			go b.broadcastLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			b.logger.Debug("Broadcast loop shutting down")
			return
		case data := <-b.broadcast:
			b.mutex.RLock()
			clients := make([]*SSEClient, 0, len(b.clients))
			for _, client := range b.clients {
				clients = append(clients, client)
			}
			b.mutex.RUnlock()

			for _, client := range clients {
				if err := b.sendToClient(client, data); err != nil {
					b.logger.Warn("Failed to send to client",
						zap.String("clientId", client.ID),
						zap.Error(err))
					b.RemoveClient(client.ID)
				}
			}
		}
	}
}

// sendToClient sends data to a specific SSE client
func (b *SSEBroadcaster) sendToClient(client *SSEClient, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in sendToClient", zap.Any("panic", r))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	if client == nil {
		return fmt.Errorf("client is nil")
	}
	if client.Writer == nil || client.Flusher == nil {
		return fmt.Errorf("client stream is not writable")
	}

	// Use client-specific mutex to prevent concurrent writes
	client.mutex.Lock()
	defer client.mutex.Unlock()

	select {
	case <-client.Done:
		return fmt.Errorf("client connection closed")
	default:
	}

	// Single write per event to reduce chunking issues
	sseData := fmt.Sprintf("data: %s\n\n", data)
	n, err := client.Writer.Write([]byte(sseData))
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(sseData) {
		return fmt.Errorf("incomplete write: wrote %d/%d bytes", n, len(sseData))
	}

	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

// cleanupLoop removes stale connections
func (b *SSEBroadcaster) cleanupLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in cleanupLoop", zap.Any("panic", r))
			go b.cleanupLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			return
		case <-b.cleanup.C:
			b.removeStale(time.Now())
		}
	}
}

func (b *SSEBroadcaster) removeStale(now time.Time) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for clientID, client := range b.clients {
		client.mutex.Lock()
		lastSeen := client.LastSeen
		client.mutex.Unlock()

		if now.Sub(lastSeen) > staleAfter {
			b.logger.Debug("Removing stale SSE client", zap.String("clientId", clientID))
			client.close()
			delete(b.clients, clientID)
		}
	}
}

// GetClientCount returns the number of connected clients
func (b *SSEBroadcaster) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// Close shuts down the broadcaster and disconnects every client
func (b *SSEBroadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.shutdown)
		b.cleanup.Stop()

		b.mutex.Lock()
		defer b.mutex.Unlock()

		for _, client := range b.clients {
			client.close()
		}
		b.clients = make(map[string]*SSEClient)

		b.logger.Debug("SSE broadcaster shutdown complete")
	})
}

// HandleSSE streams view notifications to a mapping widget
func (b *SSEBroadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		b.logger.Error("SSE: Client does not support flusher interface")
		http.Error(w, "Server-Sent Events not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := NewSSEClient(w, flusher)

	connected, _ := jsonrpcx.NewNotification(jsonrpcx.MethodConnected, map[string]string{
		"client_id": client.ID,
	}).Marshal()
	if err := b.sendToClient(client, connected); err != nil {
		b.logger.Warn("SSE: Failed to send connected message", zap.Error(err))
		return
	}
	if state := b.currentState(); state != nil {
		if err := b.sendToClient(client, state); err != nil {
			b.logger.Warn("SSE: Failed to send initial state", zap.Error(err))
			return
		}
	}

	b.AddClient(client)
	defer func() {
		b.RemoveClient(client.ID)
		// wait out a broadcast write still holding the stream
		client.mutex.Lock()
		client.mutex.Unlock()
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-client.Done:
			return
		case <-r.Context().Done():
			b.logger.Debug("SSE request context cancelled", zap.String("clientId", client.ID))
			return
		case <-b.shutdown:
			return
		case now := <-heartbeat.C:
			data, _ := jsonrpcx.NewNotification(jsonrpcx.MethodHeartbeat, map[string]string{
				"timestamp": now.Format(time.RFC3339),
			}).Marshal()
			if err := b.sendToClient(client, data); err != nil {
				b.logger.Warn("Failed to send heartbeat",
					zap.String("clientId", client.ID),
					zap.Error(err))
				return
			}
		}
	}
}
