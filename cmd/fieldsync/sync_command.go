package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the capture queue against the portal",
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

			stack := newSyncStack(cfg, st, nil)
			defer stack.close()

			if !stack.monitor.Probe(cmd.Context()) {
				fmt.Println("offline; captures stay queued")
				return nil
			}

			start := time.Now()
			if !stack.controller.StartSync(cmd.Context()) {
				fmt.Println("sync skipped (another context is draining the queue)")
				return nil
			}

			remaining, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("sync finished in %s, %d captures remaining\n",
				shortDuration(time.Since(start)), remaining)
			return nil
		},
	}
}
