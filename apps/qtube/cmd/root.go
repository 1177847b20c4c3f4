package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/quatton/qtube/pkg/qsdk"
	"github.com/spf13/cobra"
)

type contextKey string

const configContextKey contextKey = "qtubeconfig"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "qtube",
		Short: "qtube accounts server and client",
		Long: `qtube runs the accounts API (run, migrate, openapi) and talks to a
running one as a client (auth, me). Client commands read qtube.yaml,
.qtube/config.yaml and QTUBE_* environment variables; tokens are kept in
the OS keyring.`,
		SilenceUsage: true,
	}
)

// clientPreRun loads the SDK config for client commands. Server commands
// configure themselves from the environment instead.
func clientPreRun(cmd *cobra.Command, args []string) error {
	cfg, err := qsdk.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	if f := cmd.Flags().Lookup("base-url"); f != nil && f.Changed {
		if err := cfg.SetBaseURL(f.Value.String()); err != nil {
			return err
		}
	}

	ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
	cmd.SetContext(ctx)
	return nil
}

// GetConfig retrieves the Config from the command context
func GetConfig(cmd *cobra.Command) (*qsdk.Config, error) {
	cfg, ok := cmd.Context().Value(configContextKey).(*qsdk.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return cfg, nil
}

func newSdk(cmd *cobra.Command) (*qsdk.Sdk, error) {
	cfg, err := GetConfig(cmd)
	if err != nil {
		return nil, err
	}
	return qsdk.NewSdk(cfg, nil)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "client config file (YAML). Searches: qtube.yaml, .qtube/config.yaml")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL of the qtube API (overrides config)")
}
