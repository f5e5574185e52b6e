package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the capture queue",
	}
	cmd.AddCommand(newQueueListCommand(), newQueueCountCommand(), newQueueRetryCommand())
	return cmd
}

func newQueueListCommand() *cobra.Command {
	var projectID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued captures",
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
			if projectID > 0 {
				captures, err = st.ListByProject(cmd.Context(), projectID)
				if err != nil {
					return err
				}
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Project", "File", "Size", "Status", "Retries", "Captured"})
			for _, c := range captures {
				t.AppendRow(table.Row{
					c.ID, c.ProjectID, c.FileName, c.FileSize, c.Status, c.RetryCount,
					time.Unix(c.CapturedAt, 0).Format("2006-01-02 15:04"),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "limit to one project")
	return cmd
}

func newQueueCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of queued captures",
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

			count, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
}

func newQueueRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset a capture's retry count and sync now if online",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid capture id %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stack := newSyncStack(cfg, st, nil)
			defer stack.close()
			stack.monitor.Probe(cmd.Context())

			triggered, err := stack.controller.RetryPhoto(cmd.Context(), id)
			if err != nil {
				return err
			}
			if triggered {
				fmt.Printf("capture %d retried and sync pass completed\n", id)
			} else {
				fmt.Printf("capture %d reset to pending; will upload on next sync\n", id)
			}
			return nil
		},
	}
}
