// Package config provides configuration types and defaults for hlpipe.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/hlpipe/internal/log"
)

// Config holds all configuration options for hlpipe.
type Config struct {
	Highlight   HighlightConfig `mapstructure:"highlight"`
	Languages   LanguagesConfig `mapstructure:"languages"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Protocol    ProtocolConfig  `mapstructure:"protocol"`
	Log         LogConfig       `mapstructure:"log"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	WatchConfig bool            `mapstructure:"watch_config"`
}

// HighlightConfig controls how syntax trees are serialized to HTML.
type HighlightConfig struct {
	Style                 string `mapstructure:"style"`        // chroma style name, used for inline styles and the css command
	Classes               bool   `mapstructure:"classes"`      // emit class="..." instead of inline style="..."
	ClassPrefix           string `mapstructure:"class_prefix"` // prefix for every emitted class
	TabWidth              int    `mapstructure:"tab_width"`    // 0 keeps the browser default
	LineNumbers           bool   `mapstructure:"line_numbers"`
	PreventSurroundingPre bool   `mapstructure:"prevent_surrounding_pre"` // emit bare spans with no <pre> wrapper
}

// LanguagesConfig holds language flag handling.
type LanguagesConfig struct {
	// Aliases rename a language flag before it reaches the grammar registry,
	// e.g. md -> markdown.
	Aliases map[string]string `mapstructure:"aliases"`
}

// CacheConfig holds render cache settings.
type CacheConfig struct {
	Memory     MemoryCacheConfig     `mapstructure:"memory"`
	Persistent PersistentCacheConfig `mapstructure:"persistent"`
}

// MemoryCacheConfig configures the per-process render cache.
type MemoryCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// PersistentCacheConfig configures the on-disk render store shared across runs.
type PersistentCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`    // sqlite database file
	MaxAge  time.Duration `mapstructure:"max_age"` // used by cache:prune when --older-than is not given
}

// ProtocolConfig holds wire protocol limits.
type ProtocolConfig struct {
	MaxLineBytes int `mapstructure:"max_line_bytes"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"` // debug (default), info, warn, error
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stderr", "otlp". stdout is reserved for the protocol.
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultMaxLineBytes bounds a single protocol line.
const DefaultMaxLineBytes = 1024 * 1024

// minMaxLineBytes keeps the scanner buffer usable.
const minMaxLineBytes = 4096

// DefaultAliases mirrors the renames the markdown renderer applied before
// sending flags over the wire.
func DefaultAliases() map[string]string {
	return map[string]string{
		"md": "markdown",
		"sh": "bash",
	}
}

// DefaultCacheDBPath returns ~/.cache/hlpipe/renders.db, or empty string if
// the cache dir is unavailable.
func DefaultCacheDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hlpipe", "renders.db")
}

// DefaultTracesFilePath returns ~/.config/hlpipe/traces/traces.jsonl or empty
// string if the home dir is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hlpipe", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Highlight: HighlightConfig{
			Style:                 "github",
			Classes:               true,
			ClassPrefix:           "",
			TabWidth:              0,
			LineNumbers:           false,
			PreventSurroundingPre: true,
		},
		Languages: LanguagesConfig{
			Aliases: DefaultAliases(),
		},
		Cache: CacheConfig{
			Memory: MemoryCacheConfig{
				Enabled: true,
				TTL:     10 * time.Minute,
			},
			Persistent: PersistentCacheConfig{
				Enabled: false,
				Path:    DefaultCacheDBPath(),
				MaxAge:  30 * 24 * time.Hour,
			},
		},
		Protocol: ProtocolConfig{
			MaxLineBytes: DefaultMaxLineBytes,
		},
		Log: LogConfig{
			Path:  "",
			Level: "debug",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // derived at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	if err := ValidateHighlight(cfg.Highlight); err != nil {
		return err
	}
	if err := ValidateAliases(cfg.Languages.Aliases); err != nil {
		return err
	}
	if err := ValidateCache(cfg.Cache); err != nil {
		return err
	}
	if cfg.Protocol.MaxLineBytes != 0 && cfg.Protocol.MaxLineBytes < minMaxLineBytes {
		return fmt.Errorf("protocol.max_line_bytes must be at least %d, got %d", minMaxLineBytes, cfg.Protocol.MaxLineBytes)
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateHighlight checks serializer settings. The style name itself is
// checked against the style registry when the renderer is built.
func ValidateHighlight(h HighlightConfig) error {
	if h.TabWidth < 0 {
		return fmt.Errorf("highlight.tab_width must not be negative, got %d", h.TabWidth)
	}
	if strings.ContainsAny(h.ClassPrefix, " \t\"'<>") {
		return fmt.Errorf("highlight.class_prefix contains characters not allowed in a class name: %q", h.ClassPrefix)
	}
	return nil
}

// ValidateAliases rejects aliases that could never arrive as a declaration
// line (empty, or starting with a tab).
func ValidateAliases(aliases map[string]string) error {
	for from, to := range aliases {
		if from == "" || strings.HasPrefix(from, "\t") {
			return fmt.Errorf("languages.aliases: invalid flag %q", from)
		}
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("languages.aliases.%s: target language is empty", from)
		}
	}
	return nil
}

// ValidateCache checks render cache configuration.
func ValidateCache(c CacheConfig) error {
	if c.Memory.TTL < 0 {
		return fmt.Errorf("cache.memory.ttl must not be negative, got %s", c.Memory.TTL)
	}
	if c.Persistent.MaxAge < 0 {
		return fmt.Errorf("cache.persistent.max_age must not be negative, got %s", c.Persistent.MaxAge)
	}
	if c.Persistent.Enabled {
		if c.Persistent.Path == "" {
			return fmt.Errorf("cache.persistent.path is required when the persistent cache is enabled")
		}
		if !filepath.IsAbs(c.Persistent.Path) {
			return fmt.Errorf("cache.persistent.path must be an absolute path, got %q", c.Persistent.Path)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stderr", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stderr\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# hlpipe configuration

# Highlight output
highlight:
  style: github                  # chroma style (run 'hlpipe css --style <name>' for the stylesheet)
  classes: true                  # class="..." spans; false inlines style="..."
  class_prefix: ""               # prefix added to every class name
  tab_width: 0                   # 0 keeps the default of 8
  line_numbers: false
  prevent_surrounding_pre: true  # bare spans, no <pre><code> wrapper

# Language flags are renamed before lookup.
# Any chroma name, alias, file extension or filename is accepted as a flag.
languages:
  aliases:
    md: markdown
    sh: bash

# Render cache
cache:
  memory:
    enabled: true
    ttl: 10m
  persistent:
    enabled: false
    # path: /home/me/.cache/hlpipe/renders.db
    max_age: 720h

# Wire protocol limits
protocol:
  max_line_bytes: 1048576

# Debug log (enabled with --debug or HLPIPE_DEBUG=1)
log:
  # path: /tmp/hlpipe-debug.log
  level: debug

# Reload aliases and highlight settings when this file changes
watch_config: false

# Tracing
# tracing:
#   enabled: false
#   exporter: file                # none, file, stderr, otlp
#   file_path: ~/.config/hlpipe/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
