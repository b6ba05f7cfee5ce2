package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

// Stream fans triggered-alert events out to connected SSE clients.
// Events arrive over Redis pub/sub, published by the notifier service,
// so every API instance sees every trigger.
type Stream struct {
	cache *cache.Cache

	mu      sync.Mutex
	clients map[chan models.TriggeredEvent]bool
}

func NewStream(c *cache.Cache) *Stream {
	return &Stream{
		cache:   c,
		clients: make(map[chan models.TriggeredEvent]bool),
	}
}

// Start subscribes to the Redis channel and begins broadcasting.
func (s *Stream) Start() error {
	sub, err := s.cache.Subscribe(cache.TriggeredChannel)
	if err != nil {
		return err
	}

	go s.listenForAlerts(sub)
	return nil
}

// listenForAlerts continuously listens for events from Redis and broadcasts to clients
func (s *Stream) listenForAlerts(sub *cache.Subscriber) {
	logger.Log.Info("Starting to listen for triggered alerts from Redis")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		msg, err := sub.ReceiveMessage(ctx)
		cancel()

		if err != nil {
			logger.Log.Error("Error receiving message from Redis", zap.Error(err))
			time.Sleep(1 * time.Second) // Wait before retry
			continue
		}

		var event models.TriggeredEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Log.Error("Error unmarshaling triggered event", zap.Error(err))
			continue
		}

		logger.Log.Info("Received triggered alert from Redis",
			zap.String("coin_id", event.CoinID),
			zap.String("alert_id", event.AlertID))

		s.broadcastToClients(event)
	}
}

// StreamAlertsHandler handles SSE connections
func (s *Stream) StreamAlertsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan models.TriggeredEvent, 10)

	s.mu.Lock()
	s.clients[clientChan] = true
	clientCount := len(s.clients)
	s.mu.Unlock()

	logger.Log.Info("New SSE client connected", zap.Int("total_clients", clientCount))

	defer func() {
		s.mu.Lock()
		delete(s.clients, clientChan)
		clientCount := len(s.clients)
		s.mu.Unlock()
		close(clientChan)
		logger.Log.Info("SSE client disconnected", zap.Int("total_clients", clientCount))
	}()

	// Send heartbeats to keep connection alive
	go func() {
		heartbeatTicker := time.NewTicker(15 * time.Second)
		defer heartbeatTicker.Stop()

		for {
			select {
			case <-heartbeatTicker.C:
				select {
				case clientChan <- models.TriggeredEvent{TriggeredAt: time.Now()}:
					// Heartbeat sent successfully
				default:
					// Channel is blocked or closed, exit goroutine
					return
				}
			case <-r.Context().Done():
				// Request context done, exit goroutine
				return
			}
		}
	}()

	// Stream events to client
	for event := range clientChan {
		eventData, err := json.Marshal(event)
		if err != nil {
			logger.Log.Error("Failed to marshal event data", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// broadcastToClients sends the event to all connected SSE clients
func (s *Stream) broadcastToClients(event models.TriggeredEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}

	logger.Log.Info("Broadcasting triggered alert to clients",
		zap.Int("client_count", len(s.clients)),
		zap.String("coin_id", event.CoinID))

	for clientChan := range s.clients {
		select {
		case clientChan <- event:
			// Event sent successfully
		default:
			logger.Log.Warn("Event dropped due to slow client")
		}
	}
}
