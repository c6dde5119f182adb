package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"mediamod-server/pkg/analysis"
)

// ProgressMessage represents a real-time pipeline progress update
type ProgressMessage struct {
	UploadID  string                 `json:"upload_id"`
	Stage     string                 `json:"stage"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	hub      *AnalysisHub
	conn     *websocket.Conn
	send     chan []byte
	logger   *logrus.Logger
	uploadID string // If client subscribes to a specific upload
}

// AnalysisHub manages WebSocket clients and broadcasts pipeline progress.
// It implements analysis.EventSink.
type AnalysisHub struct {
	logger            *logrus.Logger
	clients           map[*Client]bool
	uploadSubscribers map[string]map[*Client]bool
	broadcast         chan *ProgressMessage
	register          chan *Client
	unregister        chan *Client
	mutex             sync.RWMutex
}

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all connections
		return true
	},
}

// NewAnalysisHub creates a new analysis progress hub
func NewAnalysisHub(logger *logrus.Logger) *AnalysisHub {
	return &AnalysisHub{
		logger:            logger,
		clients:           make(map[*Client]bool),
		uploadSubscribers: make(map[string]map[*Client]bool),
		broadcast:         make(chan *ProgressMessage, 64),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
	}
}

// Run starts the analysis hub
func (h *AnalysisHub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket analysis hub")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Shutting down WebSocket analysis hub")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true

			if client.uploadID != "" {
				if _, exists := h.uploadSubscribers[client.uploadID]; !exists {
					h.uploadSubscribers[client.uploadID] = make(map[*Client]bool)
				}
				h.uploadSubscribers[client.uploadID][client] = true
				h.logger.WithField("upload_id", client.uploadID).Info("Client subscribed to specific upload")
			}

			h.mutex.Unlock()
			h.logger.Info("Client connected to WebSocket")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				if client.uploadID != "" {
					if subscribers, exists := h.uploadSubscribers[client.uploadID]; exists {
						delete(subscribers, client)
						if len(subscribers) == 0 {
							delete(h.uploadSubscribers, client.uploadID)
						}
					}
				}

				h.logger.Info("Client disconnected from WebSocket")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal progress message")
				continue
			}

			h.mutex.Lock()

			// Send to subscribers of this specific upload
			if subscribers, exists := h.uploadSubscribers[message.UploadID]; exists && len(subscribers) > 0 {
				for client := range subscribers {
					select {
					case client.send <- data:
					default:
						close(client.send)
						delete(h.clients, client)
						delete(subscribers, client)
					}
				}
			}

			// Also broadcast to clients that want all uploads
			for client := range h.clients {
				if client.uploadID != "" {
					continue
				}

				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}

			h.mutex.Unlock()
		}
	}
}

// Publish forwards a pipeline event to connected clients. Events are dropped
// rather than blocking the pipeline when the hub is saturated or not running.
func (h *AnalysisHub) Publish(event analysis.Event) {
	message := &ProgressMessage{
		UploadID:  event.UploadID,
		Stage:     event.Stage,
		Timestamp: event.Timestamp,
		Metadata:  event.Metadata,
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.WithFields(logrus.Fields{
			"upload_id": event.UploadID,
			"stage":     event.Stage,
		}).Debug("Dropped progress message, hub saturated")
	}
}

// ServeWs handles WebSocket requests from clients
func (h *AnalysisHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}

	// Optional subscription to a single upload
	uploadID := r.URL.Query().Get("upload_id")

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		logger:   h.logger,
		uploadID: uploadID,
	}

	client.hub.register <- client

	go client.writePump()
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		select {
		case c.hub.unregister <- c:
		default:
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// IsRunning reports whether the hub has been created and can accept clients.
func (h *AnalysisHub) IsRunning() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients != nil
}
