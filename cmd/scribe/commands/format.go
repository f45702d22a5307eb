package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/scanscribe/internal/core/usecase"
)

func newFormatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "format [FILE]",
		Short: "Render a Markdown link list as resource HTML",
		Long:  "Reads Markdown from FILE, or stdin when FILE is omitted, and prints the HTML fragment shown in the resources pane.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read markdown: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), usecase.FormatResources(strings.TrimSpace(string(raw))))
			return err
		},
	}
}
