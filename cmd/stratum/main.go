package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	stratumerrors "github.com/stratum-ui/stratum/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗┌┬┐┬─┐┌─┐┌┬┐┬ ┬┌┬┐
  ╚═╗ │ ├┬┘├─┤ │ │ ││││
  ╚═╝ ┴ ┴└─┴ ┴ ┴ └─┘┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "stratum",
		Short: "Shadow-tree reconciliation engine and mount stream server",
		Long: `Stratum diffs immutable shadow-tree generations into ordered
mutation lists and ships them to native mount stages.

  • serve   - publish a scene over the WebSocket mount stream
  • bench   - measure the differ over scripted workloads
  • replay  - re-apply a transaction journal and verify it
  • version - print build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		serveCmd(),
		benchCmd(),
		replayCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		var coded *stratumerrors.Error
		if errors.As(err, &coded) {
			fmt.Fprint(os.Stderr, coded.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

// printBanner prints the Stratum ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
