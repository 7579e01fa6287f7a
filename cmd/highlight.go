package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/hlpipe/internal/config"
)

var highlightLang string

var highlightCmd = &cobra.Command{
	Use:   "highlight [file]",
	Short: "Highlight one file without the line protocol",
	Long: `Render a single source file (or stdin) to HTML using the same
grammar lookup, settings and caches as the serve loop.

Examples:
  hlpipe highlight --lang go main.go
  cat script.sh | hlpipe highlight -l sh`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		var (
			source []byte
			err    error
		)
		if len(args) == 1 {
			source, err = os.ReadFile(args[0]) //nolint:gosec // G304: file named on the command line
		} else {
			source, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading source: %w", err)
		}

		rt, err := newServices(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		scope, err := rt.registry.Resolve(highlightLang)
		if err != nil {
			return err
		}
		html, err := rt.highlighter.Render(cmd.Context(), scope, string(source))
		if err != nil {
			return fmt.Errorf("rendering %s: %w", scope.Name, err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
		return err
	},
}

func init() {
	highlightCmd.Flags().StringVarP(&highlightLang, "lang", "l", "", "language flag, as on a declaration line")
	_ = highlightCmd.MarkFlagRequired("lang")
	rootCmd.AddCommand(highlightCmd)
}
