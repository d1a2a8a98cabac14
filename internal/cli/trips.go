package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pemalang/roadsense/internal/triplog"
)

var tripsCmd = &cobra.Command{
	Use:   "trips",
	Short: "Inspect and manage recorded trips",
}

var tripsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded trips, newest first",
	RunE:  runTripsList,
}

var tripsShowCmd = &cobra.Command{
	Use:   "show <trip-id>",
	Short: "Show one trip and its sensor log summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runTripsShow,
}

var tripsDeleteCmd = &cobra.Command{
	Use:   "delete <trip-id>",
	Short: "Delete a trip, its shock events and its log file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTripsDelete,
}

func init() {
	tripsCmd.AddCommand(tripsListCmd)
	tripsCmd.AddCommand(tripsShowCmd)
	tripsCmd.AddCommand(tripsDeleteCmd)
}

func runTripsList(cmd *cobra.Command, args []string) error {
	_, store, err := openStores()
	if err != nil {
		return err
	}
	defer store.Close()

	trips, err := store.GetAll()
	if err != nil {
		return err
	}
	count, err := store.Count()
	if err != nil {
		return err
	}
	total, err := store.TotalDistance()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRIP\tSTARTED\tDURATION\tDISTANCE\tSTATUS")
	for _, t := range trips {
		fmt.Fprintf(w, "%s\t%s\t%ds\t%.1fm\t%s\n",
			t.TripID, formatTime(t.StartTime), t.Duration, t.Distance, t.UploadStatus)
	}
	w.Flush()

	fmt.Printf("\n%d trips, %.1f m total\n", count, total)
	return nil
}

func runTripsShow(cmd *cobra.Command, args []string) error {
	_, store, err := openStores()
	if err != nil {
		return err
	}
	defer store.Close()

	trip, err := store.GetByID(args[0])
	if err != nil {
		return fmt.Errorf("trip %s not found: %w", args[0], err)
	}

	fmt.Printf("Trip:      %s\n", trip.TripID)
	fmt.Printf("User:      %s\n", trip.UserID)
	fmt.Printf("Started:   %s\n", formatTime(trip.StartTime))
	fmt.Printf("Finished:  %s\n", formatTime(trip.EndTime))
	fmt.Printf("Duration:  %d s\n", trip.Duration)
	fmt.Printf("Distance:  %.1f m\n", trip.Distance)
	fmt.Printf("Status:    %s\n", trip.UploadStatus)
	fmt.Printf("Log file:  %s\n", trip.DataFilePath)

	readings, err := triplog.ReadAll(trip.DataFilePath)
	if err != nil {
		fmt.Printf("\nSensor log unreadable: %v\n", err)
	} else {
		located := 0
		var peak float32
		for _, r := range readings {
			if r.HasLocation() {
				located++
			}
			if r.Magnitude > peak {
				peak = r.Magnitude
			}
		}
		fmt.Printf("\nReadings:  %d (%d with location)\n", len(readings), located)
		fmt.Printf("Peak magnitude: %.2f g\n", peak)
	}

	events, err := store.EventsForTrip(trip.TripID)
	if err != nil {
		return err
	}
	fmt.Printf("Shock events: %d\n", len(events))
	for _, e := range events {
		fmt.Printf("  %s  %.2fg  %s\n", formatTime(e.Timestamp), e.TriggerMagnitude, e.ImagePath)
	}
	return nil
}

func runTripsDelete(cmd *cobra.Command, args []string) error {
	_, store, err := openStores()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteWithFile(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted trip %s\n", args[0])
	return nil
}
