package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/scanscribe/internal/observability/logging"
)

// NewRootCommand builds the scribe command tree.
func NewRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "scribe",
		Short:         "Transcribe, proofread and enrich scanned documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "scribe", logLevel))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	root.AddCommand(newRunCommand())
	root.AddCommand(newFormatCommand())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
