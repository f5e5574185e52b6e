// Command fieldsync is the foreground agent: it enqueues captures, inspects
// and drains the offline queue, and keeps the offline project cache fresh.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
