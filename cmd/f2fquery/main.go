// Command f2fquery prints compiled session report plans and issues operator tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/f2freport-api/pkg/config"
)

// Version is set by the build.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "f2fquery",
		Short:         "Inspect face-to-face session report queries",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCommand(config.Load))
	root.AddCommand(newTokenCommand(config.Load))
	return root
}
