package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/hlpipe/internal/grammar"
	"github.com/zjrosen/hlpipe/internal/presentation"
)

var languagesFormat string

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the language flags hlpipe understands",
	Long: `List every grammar with its aliases and filename patterns, followed by
the configured language aliases.

Any name, alias, file extension or filename shown here is a valid
declaration line.

Examples:
  # Human readable table
  hlpipe languages

  # Machine readable output
  hlpipe languages --format json | jq '.languages[].name'
  hlpipe languages --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := presentation.ParseFormat(languagesFormat)
		if err != nil {
			return err
		}
		registry := grammar.NewRegistry(cfg.Languages.Aliases)
		list := presentation.FromLanguages(registry.Languages(), registry.Aliases())
		return presentation.NewFormatter(cmd.OutOrStdout(), format).FormatLanguages(list)
	},
}

func init() {
	languagesCmd.Flags().StringVarP(&languagesFormat, "format", "f", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(languagesCmd)
}
