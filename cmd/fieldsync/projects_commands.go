package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fieldport/fieldsync/internal/portal"
)

func newProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the offline project picker cache",
	}
	cmd.AddCommand(newProjectsRefreshCommand(), newProjectsListCommand())
	return cmd
}

func newProjectsRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Replace the cached project list from the portal",
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

			client := portal.NewClient(cfg.Portal.APIBase, cfg.RequestTimeout())
			projects, err := client.FetchProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch projects: %w", err)
			}
			if err := st.ReplaceProjectCache(cmd.Context(), projects); err != nil {
				return err
			}
			fmt.Printf("cached %d projects for offline selection\n", len(projects))
			return nil
		},
	}
}

func newProjectsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the cached project list (stale but available offline)",
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

			projects, err := st.ProjectCache(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Code", "Name", "Status"})
			for _, p := range projects {
				t.AppendRow(table.Row{p.ID, p.Code, p.Name, p.Status})
			}
			t.Render()
			return nil
		},
	}
}
