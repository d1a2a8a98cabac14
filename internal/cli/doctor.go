package cli

import (
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and print connection info",
	Long:  `Validates the local data directory, checks port availability, and provides connection examples for the live telemetry stream.`,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("🏥 Roadsense Environment Check")

	// Check Go version
	fmt.Printf("Go Version:        %s\n", runtime.Version())
	fmt.Printf("OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	// Check data directory
	if _, err := os.Stat(dataDir); err == nil {
		fmt.Printf("✅ Data directory found: %s\n", dataDir)
	} else {
		fmt.Printf("ℹ️  Data directory not created yet: %s\n", dataDir)
		fmt.Printf("   It is created on the first 'roadsense record'\n")
	}

	// Check trip database
	if _, err := os.Stat(dbPath()); err == nil {
		_, store, err := openStores()
		if err != nil {
			fmt.Printf("❌ Trip database unreadable: %v\n\n", err)
		} else {
			count, _ := store.Count()
			total, _ := store.TotalDistance()
			store.Close()
			fmt.Printf("✅ Trip database: %d trips, %.1f m total\n\n", count, total)
		}
	} else {
		fmt.Printf("ℹ️  No trip database yet: %s\n\n", dbPath())
	}

	// Check default port availability
	for _, check := range []struct {
		name string
		port int
	}{
		{"telemetry", 8787},
		{"ingest", 8788},
	} {
		if isPortAvailable(check.port) {
			fmt.Printf("✅ Default %s port %d is available\n", check.name, check.port)
		} else {
			fmt.Printf("⚠️  Default %s port %d is in use\n", check.name, check.port)
		}
	}
	fmt.Println()

	// Print connection examples
	fmt.Println("📡 Live Telemetry Examples:")
	fmt.Println()

	fmt.Println("JavaScript/Node.js:")
	fmt.Println("  const ws = new WebSocket('ws://localhost:8787/live');")
	fmt.Println("  ws.onmessage = (event) => {")
	fmt.Println("    const snapshot = JSON.parse(event.data);")
	fmt.Println("    console.log(snapshot.distance_m, snapshot.event_count);")
	fmt.Println("  };")
	fmt.Println()

	fmt.Println("Python:")
	fmt.Println("  import websocket")
	fmt.Println("  import json")
	fmt.Println("  ws = websocket.WebSocket()")
	fmt.Println("  ws.connect('ws://localhost:8787/live')")
	fmt.Println("  while True:")
	fmt.Println("    snapshot = json.loads(ws.recv())")
	fmt.Println("    print(snapshot['distance_m'])")
	fmt.Println()

	fmt.Println("Go:")
	fmt.Println("  conn, _, err := websocket.DefaultDialer.Dial(\"ws://localhost:8787/live\", nil)")
	fmt.Println("  for {")
	fmt.Println("    _, message, err := conn.ReadMessage()")
	fmt.Println("    var snapshot Snapshot")
	fmt.Println("    json.Unmarshal(message, &snapshot)")
	fmt.Println("  }")
	fmt.Println()

	fmt.Println("✅ Environment check complete")
	return nil
}

func isPortAvailable(port int) bool {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
