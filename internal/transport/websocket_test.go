package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pemalang/roadsense/internal/telemetry"
)

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

func TestTelemetryServerAddress(t *testing.T) {
	server := NewTelemetryServer("127.0.0.1", 8787)
	if addr := server.GetAddress(); addr != "ws://127.0.0.1:8787/live" {
		t.Errorf("unexpected address %q", addr)
	}
	if server.GetClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", server.GetClientCount())
	}
	// Broadcasting with no clients is a no-op, not an error.
	if err := server.Broadcast(telemetry.Snapshot{}); err != nil {
		t.Errorf("broadcast failed: %v", err)
	}
}

func TestTelemetryServerBroadcast(t *testing.T) {
	port := freePort(t)
	server := NewTelemetryServer("127.0.0.1", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Start(ctx)

	// Wait for the listener to come up.
	url := fmt.Sprintf("ws://127.0.0.1:%d/live", port)
	var conn *websocket.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && server.GetClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if server.GetClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", server.GetClientCount())
	}

	sent := telemetry.Snapshot{
		Magnitude:  []float32{1.0, 1.2, 3.5},
		Distance:   432.1,
		Recording:  true,
		EventCount: 2,
		GPSActive:  true,
	}
	if err := server.Broadcast(sent); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got telemetry.Snapshot
	if err := json.Unmarshal(message, &got); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if got.Distance != 432.1 || !got.Recording || got.EventCount != 2 {
		t.Errorf("unexpected snapshot %+v", got)
	}
	if len(got.Magnitude) != 3 || got.Magnitude[2] != 3.5 {
		t.Errorf("unexpected magnitudes %v", got.Magnitude)
	}
}

func TestBroadcastFromChannel(t *testing.T) {
	server := NewTelemetryServer("127.0.0.1", freePort(t))

	snaps := make(chan telemetry.Snapshot)
	done := make(chan error, 1)
	go func() {
		done <- server.BroadcastFromChannel(context.Background(), snaps)
	}()

	snaps <- telemetry.Snapshot{Distance: 1}
	close(snaps)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil after channel close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast pump did not exit on channel close")
	}
}
