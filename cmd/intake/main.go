package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-intake/internal/config"
	"github.com/goliatone/go-intake/internal/logging"
)

// Set via ldflags at build time
var version = "dev"

// cli carries state shared by every command.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:          "intake",
		Short:        "Housing application intake wizard",
		Long:         "Serve, inspect and validate a multi-section housing application record.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logging.New(cfg.Log)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("INTAKE_CONFIG"), "Path to a YAML config file")

	rootCmd.AddCommand(c.serveCmd())
	rootCmd.AddCommand(c.sectionsCmd())
	rootCmd.AddCommand(c.recordCmd())
	rootCmd.AddCommand(c.saveCmd())
	rootCmd.AddCommand(c.validateCmd())
	return rootCmd
}

func (c *cli) printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
