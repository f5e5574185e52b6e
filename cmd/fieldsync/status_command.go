package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldport/fieldsync/internal/config"
	"github.com/fieldport/fieldsync/internal/models"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue and cache status",
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

			captures, err := st.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			projects, err := st.ProjectCache(cmd.Context())
			if err != nil {
				return err
			}

			byStatus := map[models.CaptureStatus]int{}
			for _, c := range captures {
				byStatus[c.Status]++
			}

			fmt.Printf("queue: %d captures (%d pending, %d uploading, %d failed)\n",
				len(captures),
				byStatus[models.CaptureStatusPending],
				byStatus[models.CaptureStatusUploading],
				byStatus[models.CaptureStatusFailed])
			fmt.Printf("offline projects cached: %d\n", len(projects))
			fmt.Printf("store: %s\n", st.Path())
			return nil
		},
	}
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteSample(configPath); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", configPath)
			return nil
		},
	}
}
