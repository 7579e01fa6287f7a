package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/log"
	"github.com/zjrosen/hlpipe/internal/protocol"
)

// defaultConfigPath is where config:init and alias write when no config file
// was loaded.
const defaultConfigPath = ".hlpipe/config.yaml"

var (
	version     = "dev"
	cfgFile     string
	cfg         config.Config
	configErr   error
	debugFlag   bool
	logStderr   bool
	watchConfig bool
	logCleanup  = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "hlpipe",
	Short: "Syntax highlighting over a line protocol",
	Long: `hlpipe reads highlight requests on stdin and writes HTML on stdout.

A line without a leading tab names the language of the next block, tab
prefixed lines carry the source, and a blank line asks for the HTML. Each
response ends with a line holding a single EOT (0x04) character. A blank
line with no pending language ends the session.

Example:
  printf 'go\n\tfunc main() {}\n\n\n' | hlpipe`,
	Version:           version,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
	RunE:              runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .hlpipe/config.yaml, then ~/.config/hlpipe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write a debug log (path from HLPIPE_LOG or log.path)")
	rootCmd.PersistentFlags().BoolVar(&logStderr, "log-stderr", false,
		"copy log entries to stderr")
	rootCmd.Flags().BoolVar(&watchConfig, "watch-config", false,
		"reload aliases and highlight settings when the config file changes")
}

func initConfig() {
	configErr = nil
	setDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .hlpipe/config.yaml (current directory)
		// 2. ~/.config/hlpipe/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			viper.SetConfigFile(defaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "hlpipe"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// Running without any config file is normal for a pipe process.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	loaded, err := decodeConfig(viper.GetViper())
	if err != nil {
		configErr = err
		return
	}
	cfg = loaded
}

// setDefaults registers every key so that HLPIPE_* environment variables
// are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	defaults := config.Defaults()
	v.SetEnvPrefix("HLPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("highlight.style", defaults.Highlight.Style)
	v.SetDefault("highlight.classes", defaults.Highlight.Classes)
	v.SetDefault("highlight.class_prefix", defaults.Highlight.ClassPrefix)
	v.SetDefault("highlight.tab_width", defaults.Highlight.TabWidth)
	v.SetDefault("highlight.line_numbers", defaults.Highlight.LineNumbers)
	v.SetDefault("highlight.prevent_surrounding_pre", defaults.Highlight.PreventSurroundingPre)
	v.SetDefault("cache.memory.enabled", defaults.Cache.Memory.Enabled)
	v.SetDefault("cache.memory.ttl", defaults.Cache.Memory.TTL)
	v.SetDefault("cache.persistent.enabled", defaults.Cache.Persistent.Enabled)
	v.SetDefault("cache.persistent.path", defaults.Cache.Persistent.Path)
	v.SetDefault("cache.persistent.max_age", defaults.Cache.Persistent.MaxAge)
	v.SetDefault("protocol.max_line_bytes", defaults.Protocol.MaxLineBytes)
	v.SetDefault("log.path", defaults.Log.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("watch_config", defaults.WatchConfig)
}

// decodeConfig unmarshals v. Aliases have no viper default because viper
// merges map defaults into file values, which would make the built-in
// aliases impossible to remove.
func decodeConfig(v *viper.Viper) (config.Config, error) {
	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return config.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if !v.IsSet("languages.aliases") {
		c.Languages.Aliases = config.DefaultAliases()
	}
	return c, nil
}

// loadConfigFile reads path with a fresh viper instance. Used on reload so
// the global instance is not mutated behind a running session.
func loadConfigFile(path string) (config.Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return config.Config{}, fmt.Errorf("reading config: %w", err)
	}
	return decodeConfig(v)
}

func preRun(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	return initLogging(cmd.ErrOrStderr())
}

// initLogging installs the debug logger. --debug and HLPIPE_DEBUG log to a
// file; --log-stderr alone logs straight to stderr.
func initLogging(stderr io.Writer) error {
	debug := debugFlag || os.Getenv("HLPIPE_DEBUG") != ""
	if !debug && !logStderr {
		return nil
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if !debug {
		logCleanup = log.InitWriter(stderr)
		log.SetMinLevel(level)
		return nil
	}

	logPath := os.Getenv("HLPIPE_LOG")
	if logPath == "" {
		logPath = cfg.Log.Path
	}
	if logPath == "" {
		logPath = log.DefaultPath()
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log.SetMinLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	if logStderr {
		log.Mirror(ctx, stderr)
	}
	logCleanup = func() {
		cancel()
		cleanup()
	}
	log.Info(log.CatConfig, "hlpipe starting", "version", version, "config", viper.ConfigFileUsed())
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	rt, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if watchConfig || cfg.WatchConfig {
		path := viper.ConfigFileUsed()
		if path == "" {
			log.Warn(log.CatWatcher, "No config file loaded, nothing to watch")
		} else {
			stop, err := rt.WatchConfig(path)
			if err != nil {
				return err
			}
			defer stop()
		}
	}

	server := protocol.NewServer(rt.registry, rt.highlighter,
		protocol.WithTracer(rt.tracing.Tracer()),
		protocol.WithMaxLineBytes(cfg.Protocol.MaxLineBytes),
		protocol.WithSummary(rt.logSummary),
	)
	return server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

// Execute runs the root command
func Execute() error {
	defer func() {
		logCleanup()
		logCleanup = func() {}
	}()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
