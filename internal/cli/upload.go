package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pemalang/roadsense/internal/models"
	"github.com/pemalang/roadsense/internal/uploader"
)

var (
	uploadServer string
	uploadToken  string
	uploadAll    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [trip-id]",
	Short: "Upload a recorded trip to the backend",
	Long: `Uploads a trip's metadata, sensor log and capture images. With --all,
every pending or failed trip is uploaded in turn.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadServer, "server", "http://127.0.0.1:8788", "Backend base URL")
	uploadCmd.Flags().StringVar(&uploadToken, "token", "", "Bearer token for the backend")
	uploadCmd.Flags().BoolVar(&uploadAll, "all", false, "Upload all pending and failed trips")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if !uploadAll && len(args) != 1 {
		return fmt.Errorf("pass a trip id or --all")
	}

	_, store, err := openStores()
	if err != nil {
		return err
	}
	defer store.Close()

	client := uploader.New(uploadServer, uploadToken, store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !uploadAll {
		if err := client.UploadTrip(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Uploaded trip %s\n", args[0])
		return nil
	}

	trips, err := store.GetAll()
	if err != nil {
		return err
	}
	uploaded, failed := 0, 0
	for _, t := range trips {
		if t.UploadStatus != models.StatusPending && t.UploadStatus != models.StatusFailed {
			continue
		}
		if err := client.UploadTrip(ctx, t.TripID); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed++
			continue
		}
		fmt.Printf("Uploaded trip %s\n", t.TripID)
		uploaded++
	}
	fmt.Printf("\n%d uploaded, %d failed\n", uploaded, failed)
	if failed > 0 {
		return fmt.Errorf("%d trips failed to upload", failed)
	}
	return nil
}
