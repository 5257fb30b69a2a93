package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved configuration for one rgrun invocation
type Config struct {
	Engine  EngineConfig
	Search  SearchConfig
	Output  OutputConfig
	History HistoryConfig
	Sandbox SandboxConfig
	Debug   bool
}

// EngineConfig locates and bounds the rg executable
type EngineConfig struct {
	Path            string
	NoMatchExitCode int
	Timeout         time.Duration
	MaxLineSize     int
}

// SearchConfig holds search options that persist across invocations
type SearchConfig struct {
	SafeDefaults    bool
	DefaultExcludes bool
	MaxDepth        int
	MaxCount        int
	MaxFileSize     int64
	ExcludeGlobs    []string
}

// OutputConfig selects how results are printed
type OutputConfig struct {
	Format     string
	Color      string
	MaxColumns int
}

// HistoryConfig controls the sqlite invocation history
type HistoryConfig struct {
	Enabled bool
	Path    string
	Limit   int
}

// SandboxConfig describes the container used with --sandbox
type SandboxConfig struct {
	Enabled bool
	Image   string
	Memory  string
	CPUs    float64
	Timeout time.Duration
}

// SetViperDefaults sets all default configuration values in Viper
func SetViperDefaults() {
	// Engine defaults
	viper.SetDefault("engine.path", DefaultExecutable)
	viper.SetDefault("engine.no_match_exit_code", DefaultNoMatchExitCode)
	viper.SetDefault("engine.timeout", "0s")
	viper.SetDefault("engine.max_line_size", DefaultScanBufferSize)

	// Search defaults
	viper.SetDefault("search.safe_defaults", false)
	viper.SetDefault("search.default_excludes", false)
	viper.SetDefault("search.max_depth", DefaultMaxDepth)
	viper.SetDefault("search.max_count", DefaultMaxCount)
	viper.SetDefault("search.max_filesize", DefaultMaxFileSize)
	viper.SetDefault("search.exclude_globs", []string{})

	// Output defaults
	viper.SetDefault("output.format", DefaultFormat)
	viper.SetDefault("output.color", DefaultColor)
	viper.SetDefault("output.max_columns", DefaultMaxColumns)

	// History defaults
	viper.SetDefault("history.enabled", false)
	viper.SetDefault("history.path", DefaultHistoryPath)
	viper.SetDefault("history.limit", DefaultHistoryLimit)

	// Sandbox defaults
	viper.SetDefault("sandbox.enabled", false)
	viper.SetDefault("sandbox.image", DefaultSandboxImage)
	viper.SetDefault("sandbox.memory", DefaultSandboxMemory)
	viper.SetDefault("sandbox.cpus", DefaultSandboxCPUs)
	viper.SetDefault("sandbox.timeout", DefaultSandboxTimeout.String())

	// Logging defaults
	viper.SetDefault("logging.debug", false)
}

// Load builds a Config from the current Viper state and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Engine: EngineConfig{
			Path:            viper.GetString("engine.path"),
			NoMatchExitCode: viper.GetInt("engine.no_match_exit_code"),
			Timeout:         viper.GetDuration("engine.timeout"),
			MaxLineSize:     viper.GetInt("engine.max_line_size"),
		},
		Search: SearchConfig{
			SafeDefaults:    viper.GetBool("search.safe_defaults"),
			DefaultExcludes: viper.GetBool("search.default_excludes"),
			MaxDepth:        viper.GetInt("search.max_depth"),
			MaxCount:        viper.GetInt("search.max_count"),
			MaxFileSize:     viper.GetInt64("search.max_filesize"),
			ExcludeGlobs:    viper.GetStringSlice("search.exclude_globs"),
		},
		Output: OutputConfig{
			Format:     viper.GetString("output.format"),
			Color:      viper.GetString("output.color"),
			MaxColumns: viper.GetInt("output.max_columns"),
		},
		History: HistoryConfig{
			Enabled: viper.GetBool("history.enabled"),
			Path:    viper.GetString("history.path"),
			Limit:   viper.GetInt("history.limit"),
		},
		Sandbox: SandboxConfig{
			Enabled: viper.GetBool("sandbox.enabled"),
			Image:   viper.GetString("sandbox.image"),
			Memory:  viper.GetString("sandbox.memory"),
			CPUs:    viper.GetFloat64("sandbox.cpus"),
			Timeout: viper.GetDuration("sandbox.timeout"),
		},
		Debug: viper.GetBool("logging.debug"),
	}

	if cfg.Engine.Path == "" {
		cfg.Engine.Path = DefaultExecutable
	}
	if cfg.Engine.Timeout < 0 {
		return nil, fmt.Errorf("engine.timeout must not be negative: %v", cfg.Engine.Timeout)
	}
	if !slices.Contains(Formats, cfg.Output.Format) {
		return nil, fmt.Errorf("invalid output.format %q (want one of %v)", cfg.Output.Format, Formats)
	}
	if !slices.Contains(ColorModes, cfg.Output.Color) {
		return nil, fmt.Errorf("invalid output.color %q (want one of %v)", cfg.Output.Color, ColorModes)
	}
	if cfg.Output.MaxColumns < 0 {
		return nil, fmt.Errorf("output.max_columns must not be negative: %d", cfg.Output.MaxColumns)
	}

	return cfg, nil
}
