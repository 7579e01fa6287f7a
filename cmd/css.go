package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/hlpipe/internal/highlight"
)

var cssStyle string

var cssCmd = &cobra.Command{
	Use:   "css",
	Short: "Write the stylesheet for class based output",
	Long: `Write the CSS rules matching the classes hlpipe emits.

The style defaults to highlight.style and the class prefix follows
highlight.class_prefix, so the stylesheet always matches the served HTML.

Examples:
  hlpipe css > highlight.css
  hlpipe css --style monokai`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		hc := cfg.Highlight
		if cssStyle != "" {
			hc.Style = cssStyle
		}
		renderer, err := highlight.NewRenderer(hc)
		if err != nil {
			return err
		}
		return renderer.WriteCSS(cmd.OutOrStdout())
	},
}

func init() {
	cssCmd.Flags().StringVarP(&cssStyle, "style", "s", "", "chroma style name (default: highlight.style)")
	rootCmd.AddCommand(cssCmd)
}
