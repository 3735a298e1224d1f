// Command tickle runs the snapshot pipeline and the game API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KeshavPeri/tickle/internal/common"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPaths []string
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tickle: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tickle",
		Short:         "Daily stock-ticker guessing game",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := []string{"tickle.toml"}
	if env := os.Getenv("TICKLE_CONFIG"); env != "" {
		defaultConfig = []string{env}
	}
	root.PersistentFlags().StringArrayVar(&opts.configPaths, "config", defaultConfig, "TOML config file (repeatable, later files override earlier)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override [logging] level")

	root.AddCommand(
		newBatchCmd(opts),
		newDailyCmd(opts),
		newValidateCmd(opts),
		newUniverseCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config files and applies the --log-level override.
func (o *rootOptions) loadConfig() (*common.Config, error) {
	cfg, err := common.LoadConfig(o.configPaths...)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}
