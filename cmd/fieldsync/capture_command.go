package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldport/fieldsync/internal/models"
	"github.com/fieldport/fieldsync/internal/portal"
	"github.com/fieldport/fieldsync/internal/telemetry"
)

func newCaptureCommand() *cobra.Command {
	var (
		projectID   int64
		milestoneID int64
		category    string
		note        string
		tags        []string
		lat         float64
		lon         float64
		accuracy    float64
	)

	cmd := &cobra.Command{
		Use:   "capture <photo-file>",
		Short: "Queue a project photo for upload",
		Long: `Queue a project photo for upload. Capturing never touches the
network; the photo is delivered by the next sync pass.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}

			capture := &models.PendingCapture{
				ProjectID:  projectID,
				Payload:    payload,
				MimeType:   portal.SniffMimeType(payload, ""),
				FileName:   filepath.Base(args[0]),
				FileSize:   int64(len(payload)),
				Category:   category,
				Note:       note,
				Tags:       tags,
				CapturedAt: time.Now().Unix(),
			}
			if milestoneID > 0 {
				capture.MilestoneID = &milestoneID
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				capture.Location = &models.GeoPoint{Latitude: lat, Longitude: lon, Accuracy: accuracy}
			}

			id, err := st.Enqueue(cmd.Context(), capture)
			if err != nil {
				return err
			}
			telemetry.Incr(telemetry.CounterCapturesEnqueued)

			count, _ := st.Count(cmd.Context())
			fmt.Printf("queued capture %d for project %d (%d pending)\n", id, projectID, count)
			return nil
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "project id (required)")
	cmd.Flags().Int64Var(&milestoneID, "milestone", 0, "milestone id")
	cmd.Flags().StringVar(&category, "category", "", "photo category")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "location accuracy in meters")
	cmd.MarkFlagRequired("project")

	return cmd
}
