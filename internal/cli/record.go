package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pemalang/roadsense/internal/recorder"
	"github.com/pemalang/roadsense/internal/sensors"
	"github.com/pemalang/roadsense/internal/sim"
	"github.com/pemalang/roadsense/internal/telemetry"
	"github.com/pemalang/roadsense/internal/transport"
	"github.com/pemalang/roadsense/internal/triplog"
)

var (
	recordDuration string
	recordProfile  string
	recordSeed     int64
	recordLive     bool
	recordLiveHost string
	recordLivePort int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a sensing trip from a simulated drive",
	Long: `Runs a full recording session: the drive simulator feeds the motion and
location samplers, the session recorder fuses them into a per-trip CSV log,
and the live telemetry aggregator tracks distance, path and shock events.

Stops after --duration or on Ctrl-C, whichever comes first.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordDuration, "duration", "1m", "How long to record")
	recordCmd.Flags().StringVar(&recordProfile, "profile", "", "Drive profile YAML (built-in default if unset)")
	recordCmd.Flags().Int64Var(&recordSeed, "seed", time.Now().UnixNano(), "Random seed for a repeatable drive")
	recordCmd.Flags().BoolVar(&recordLive, "live", false, "Broadcast live telemetry over WebSocket")
	recordCmd.Flags().StringVar(&recordLiveHost, "live-host", "127.0.0.1", "Telemetry host to bind to")
	recordCmd.Flags().IntVar(&recordLivePort, "live-port", 8787, "Telemetry port to listen on")
}

func runRecord(cmd *cobra.Command, args []string) error {
	duration, err := time.ParseDuration(recordDuration)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}

	profile := sim.DefaultProfile()
	if recordProfile != "" {
		if profile, err = sim.LoadProfile(recordProfile); err != nil {
			return err
		}
	}

	preferences, store, err := openStores()
	if err != nil {
		return err
	}
	defer store.Close()

	userID, err := preferences.GetOrCreateUserID()
	if err != nil {
		return err
	}

	drive := sim.NewDrive(profile, recordSeed)
	motion := sensors.NewMotionSampler(drive)
	location := sensors.NewLocationSampler(drive)

	capture := recorder.CaptureFunc(func(imagePath string, magnitude float32) {
		log.Printf("shock %.2fg, capture requested: %s", magnitude, imagePath)
	})
	rec := recorder.New(store, capture, preferences.SessionConfig(), tripsDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := telemetry.New(rec)
	go agg.Run(ctx)

	if recordLive {
		ws := transport.NewTelemetryServer(recordLiveHost, recordLivePort)
		go func() {
			if err := ws.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("telemetry server error: %v", err)
			}
		}()
		go ws.BroadcastFromChannel(ctx, agg.Snapshots())
		fmt.Printf("Live telemetry: %s\n", ws.GetAddress())
	}

	session, err := recorder.StartSession(ctx, rec, motion, location, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Recording trip %s\n", session.Trip().TripID)
	fmt.Printf("Profile:   %s\n", profile.Name)
	fmt.Printf("Duration:  %s\n", duration)
	fmt.Printf("Log file:  %s\n\n", session.Trip().DataFilePath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	deadline := time.After(duration)

loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-sigChan:
			fmt.Println("\nInterrupted, finishing trip...")
			break loop
		case <-progress.C:
			fmt.Printf("\rdistance %.1f m | events %d | gps %v     ",
				rec.Distance().Get(), rec.EventCount(), agg.Current().GPSActive)
		}
	}

	trip, err := session.Stop()
	if err != nil {
		return err
	}
	cancel()

	rows, rowsErr := triplog.CountRows(trip.DataFilePath)

	fmt.Printf("\n\nTrip finished: %s\n", trip.TripID)
	fmt.Printf("Duration:  %d s\n", trip.Duration)
	fmt.Printf("Distance:  %.1f m\n", trip.Distance)
	fmt.Printf("Events:    %d\n", rec.EventCount())
	if rowsErr == nil {
		fmt.Printf("Readings:  %d\n", rows)
	}
	fmt.Printf("Dropped:   %d motion / %d location samples\n",
		motion.Dropped(), location.Dropped())
	fmt.Printf("Status:    %s\n", trip.UploadStatus)
	return nil
}
