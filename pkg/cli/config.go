package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/computerscienceiscool/rgrun/pkg/app"
	"github.com/computerscienceiscool/rgrun/pkg/config"
)

// setupViper starts from a clean Viper with rgrun's defaults, config file
// locations and environment prefix.
func setupViper() {
	viper.Reset()

	// Set all default values in Viper
	config.SetViperDefaults()

	// Set default config file name
	viper.SetConfigName("rgrun.config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")

	// Enable environment variables with RGRUN prefix, e.g. RGRUN_OUTPUT_FORMAT
	viper.SetEnvPrefix("RGRUN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables if set
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and flags
	}
	return nil
}

// bootstrapApp loads the configuration from Viper and builds the app
func bootstrapApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.Bootstrap(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
