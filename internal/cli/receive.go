package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pemalang/roadsense/internal/receiver"
)

var (
	receiveHost  string
	receivePort  int
	receiveToken string
	receiveOut   string
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Run the trip ingest backend",
	Long: `Starts a blocking HTTP server that accepts trip uploads from devices and
archives them under the output directory, one folder per trip. Duplicate
uploads of the same trip are acknowledged without re-archiving.`,
	RunE: runReceive,
}

func init() {
	receiveCmd.Flags().StringVar(&receiveHost, "host", "0.0.0.0", "Host address to bind to")
	receiveCmd.Flags().IntVar(&receivePort, "port", 8788, "Port to listen on")
	receiveCmd.Flags().StringVar(&receiveToken, "token", "", "Static bearer token (auto-generated if not provided)")
	receiveCmd.Flags().StringVar(&receiveOut, "out", "received-trips", "Directory to archive uploads into")
}

func runReceive(cmd *cobra.Command, args []string) error {
	token := receiveToken
	if token == "" {
		generated, err := generateToken()
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		token = generated
	}

	archive, err := receiver.NewDirArchive(receiveOut)
	if err != nil {
		return err
	}

	server := receiver.NewServer(receiver.Config{
		Host:  receiveHost,
		Port:  receivePort,
		Token: token,
	}, archive)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Roadsense ingest backend\n\n")
	fmt.Printf("Endpoint:  %s/api/trips/upload\n", server.GetAddress())
	fmt.Printf("Archive:   %s\n", receiveOut)
	fmt.Printf("Token:     %s\n\n", token)
	fmt.Println("Press Ctrl-C to stop")

	if err := server.Start(ctx); err != nil {
		return err
	}

	stats := server.GetStats()
	fmt.Printf("\nReceived %d uploads (%d duplicates, %d errors)\n",
		stats.TotalReceived, stats.TotalDuplicates, stats.TotalErrors)
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
