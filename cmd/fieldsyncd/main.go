// Command fieldsyncd is the background network worker daemon. It fronts the
// portal with a caching gateway, hosts the cross-context hub, watches
// connectivity, and can drain the capture queue when no foreground agent is
// running.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fieldport/fieldsync/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
