package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldport/fieldsync/internal/models"
)

// newServeCommand runs the agent loop: the long-lived foreground context
// that reacts to worker messages and connectivity transitions. Interactive
// commands remain usable from other terminals; the store tolerates both.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the foreground agent loop",
		Long: `Run the foreground agent loop. The agent listens for sync triggers
from the background worker and for connectivity restoration, and drains the
capture queue whenever either arrives.`,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The hub connection starts delivering the moment it opens,
			// before the stack is fully assembled, so the handler only
			// enqueues; dispatch starts once construction is done.
			msgs := make(chan models.Message, 16)
			stack := newSyncStack(cfg, st, func(msg models.Message) {
				select {
				case msgs <- msg:
				default:
				}
			})
			defer stack.close()

			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case msg := <-msgs:
						stack.dispatch(ctx, msg)
					}
				}
			}()

			// Connectivity restoration triggers a pass on the agent's own
			// initiative, independent of the worker's message path. Both
			// converge on the same guarded StartSync.
			stack.monitor.OnTransition(func(online bool) {
				if online {
					go stack.controller.StartSync(ctx)
				}
			})
			stack.monitor.Start(ctx)

			fmt.Println("agent running; Ctrl-C to stop")
			<-ctx.Done()
			return nil
		},
	}
}
