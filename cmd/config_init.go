package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/hlpipe/internal/config"
)

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "config:init [path]",
	Short: "Write a commented default config file",
	Long: `Write the default configuration, with comments for every option.

The file goes to .hlpipe/config.yaml unless a path is given. An existing
file is left alone unless --force is set.

Examples:
  hlpipe config:init
  hlpipe config:init ~/.config/hlpipe/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	// A broken config file must not block writing a fresh one.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initLogging(cmd.ErrOrStderr())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(configInitCmd)
}
