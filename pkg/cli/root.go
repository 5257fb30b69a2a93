package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/computerscienceiscool/rgrun/internal/logging"
	"github.com/computerscienceiscool/rgrun/pkg/config"
)

// Exit codes follow rg: 1 when nothing was found, 2 on errors.
const (
	ExitOK        = 0
	ExitNoResults = 1
	ExitError     = 2
)

var errNoResults = errors.New("no results")

// flagKeys maps persistent flags to the configuration keys they override.
var flagKeys = map[string]string{
	"rg":               "engine.path",
	"timeout":          "engine.timeout",
	"format":           "output.format",
	"color":            "output.color",
	"max-columns":      "output.max_columns",
	"safe-defaults":    "search.safe_defaults",
	"default-excludes": "search.default_excludes",
	"sandbox":          "sandbox.enabled",
	"sandbox-image":    "sandbox.image",
	"history-db":       "history.path",
	"debug":            "logging.debug",
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "rgrun",
		Short: "Run ripgrep and work with its results as structured data",
		Long: `rgrun builds ripgrep command lines, runs them and groups the --json
output into one result per file. Results can be printed as text, re-emitted
as JSON lines or converted to YAML.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			logging.Init(viper.GetBool("logging.debug"), cmd.ErrOrStderr())
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./rgrun.config.yaml or $HOME/rgrun.config.yaml)")

	// Engine flags
	flags.String("rg", config.DefaultExecutable, "Path to the rg executable")
	flags.Duration("timeout", 0, "Abort the engine after this long (0 = no limit)")

	// Output flags
	flags.String("format", config.DefaultFormat, "Output format: text, json or yaml")
	flags.String("color", config.DefaultColor, "Color output: auto, always or never")
	flags.Int("max-columns", config.DefaultMaxColumns, "Truncate printed lines wider than this (0 = unlimited)")

	// Search scope flags
	flags.Bool("safe-defaults", false, "Limit depth, file size and matches per file")
	flags.Bool("default-excludes", false, "Skip binary, generated and data file types")

	// Sandbox and history flags
	flags.Bool("sandbox", false, "Run rg inside a locked-down Docker container")
	flags.String("sandbox-image", config.DefaultSandboxImage, "Docker image providing rg for --sandbox")
	flags.String("history-db", config.DefaultHistoryPath, "Path of the invocation history database")
	flags.Bool("debug", false, "Verbose logs")

	for flag, key := range flagKeys {
		viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newFindCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newHistoryCmd())
	return rootCmd
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	setupViper()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errNoResults):
		return ExitNoResults
	default:
		fmt.Fprintf(stderr, "rgrun: %v\n", err)
		return ExitError
	}
}
