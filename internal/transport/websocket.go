// Package transport broadcasts live telemetry to display clients over
// WebSocket.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pemalang/roadsense/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local display clients only
	},
}

// TelemetryServer pushes aggregated telemetry snapshots to WebSocket
// clients. Recording never waits on a client: a slow connection just gets
// its writes dropped along with the connection.
type TelemetryServer struct {
	host    string
	port    int
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	server  *http.Server
}

// NewTelemetryServer creates a server bound to host:port.
func NewTelemetryServer(host string, port int) *TelemetryServer {
	return &TelemetryServer{
		host:    host,
		port:    port,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Start serves until ctx is cancelled.
func (s *TelemetryServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", s.handleWebSocket)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	go func() {
		log.Printf("telemetry server listening on %s", s.GetAddress())
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("telemetry server error: %v", err)
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

func (s *TelemetryServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "roadsense live telemetry\n\n")
	fmt.Fprintf(w, "WebSocket endpoint: %s\n", s.GetAddress())
	fmt.Fprintf(w, "Connected clients: %d\n", s.GetClientCount())
}

func (s *TelemetryServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade connection: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.mu.Unlock()
	log.Printf("telemetry client connected from %s (total: %d)", r.RemoteAddr, count)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		count := len(s.clients)
		s.mu.Unlock()
		conn.Close()
		log.Printf("telemetry client disconnected (total: %d)", count)
	}()

	// Drain client messages; the stream is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends one snapshot to all connected clients. Write failures
// are logged; the failed client is cleaned up by its connection handler.
func (s *TelemetryServer) Broadcast(snap telemetry.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("failed to send to telemetry client: %v", err)
		}
	}
	return nil
}

// BroadcastFromChannel pumps snapshots from a channel until it closes or
// ctx is cancelled.
func (s *TelemetryServer) BroadcastFromChannel(ctx context.Context, snaps <-chan telemetry.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			if err := s.Broadcast(snap); err != nil {
				log.Printf("broadcast error: %v", err)
			}
		}
	}
}

// GetClientCount returns the number of connected clients.
func (s *TelemetryServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// GetAddress returns the WebSocket endpoint URL.
func (s *TelemetryServer) GetAddress() string {
	return fmt.Sprintf("ws://%s:%d/live", s.host, s.port)
}

// Shutdown closes all client connections and stops the server.
func (s *TelemetryServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
