// Command qlty drives the execution engine: it parses flags, builds
// an engine.Engine, and writes the resulting execute.Results as JSON.
// Configuration-file discovery/fetching and human-readable result
// rendering are both out of scope for this engine (spec.md §1) and
// live in a caller-side front end this binary doesn't implement.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qlty-sh/qlty/pkg/constants"
)

// version is set by the build, matching the teacher's GoReleaser
// convention; "dev" otherwise.
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:     constants.CLIExtensionPrefix,
	Short:   "Run the qlty execution engine against a workspace",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.SetOut(os.Stderr)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
