package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/grammar"
)

var aliasRemove bool

var aliasCmd = &cobra.Command{
	Use:   "alias <flag> [language]",
	Short: "Add or remove a language alias in the config file",
	Long: `Store a language alias under languages.aliases in the loaded config file
(or .hlpipe/config.yaml when none was loaded). Other settings and comments
in the file are kept.

The target language must resolve, so typos are caught here rather than
as an exit status from a running session.

Examples:
  # Declarations of "tpl" are highlighted as Go templates
  hlpipe alias tpl go-html-template

  # Drop an alias
  hlpipe alias --remove tpl`,
	Args: func(cmd *cobra.Command, args []string) error {
		if aliasRemove {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = defaultConfigPath
		}
		from := args[0]

		if aliasRemove {
			if err := config.RemoveAlias(path, cfg.Languages.Aliases, from); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed alias %s from %s\n", from, path)
			return err
		}

		to := args[1]
		// Resolve without aliases so the target names a real grammar.
		if _, err := grammar.NewRegistry(nil).Resolve(to); err != nil {
			return err
		}
		if err := config.SetAlias(path, cfg.Languages.Aliases, from, to); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s saved to %s\n", from, to, path)
		return err
	},
}

func init() {
	aliasCmd.Flags().BoolVar(&aliasRemove, "remove", false, "remove the alias instead of setting it")
	rootCmd.AddCommand(aliasCmd)
}
