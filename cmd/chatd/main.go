// chatd is the SecureSure assistant service: a session-aware,
// retrieval-augmented chat backend.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "chatd",
		Short:   "SecureSure assistant service",
		Version: Version,
	}
	root.AddCommand(newServeCmd(), newFetchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}
