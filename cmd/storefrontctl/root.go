package main

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/storefront_layer/internal/app"
	"github.com/R3E-Network/storefront_layer/internal/config"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/transport"
)

var (
	configPath string
	envFile    string
	tokenFlag  string
	logLevel   string

	application *app.Application
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storefrontctl",
	Short: "Talk to the storefront backends the way the storefront does.",
	Long: `storefrontctl drives the storefront backend-communication layer from a terminal.

Every command goes through the same stack the storefront uses:
	• one client per backend host with a fixed timeout
	• bearer token and tenant header injected from the session token
	• one refresh-and-resend when a backend answers 401
	• faceted search assembled from discovery and per-facet value queries

Configuration is read from a YAML file, an optional .env file and
STOREFRONT_* environment variables, in that order.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApplication,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
			application = nil
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "session token (overrides the configured one)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func setupApplication(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if tokenFlag != "" {
		cfg.Credentials.Token = tokenFlag
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log := logging.NewWithOutput("storefrontctl", cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	out := cmd.ErrOrStderr()

	application, err = app.New(cfg,
		app.WithLogger(log),
		app.WithRedirector(transport.RedirectFunc(func(_ context.Context, cause error) {
			fmt.Fprintf(out, "session expired (%v); sign in again at %s\n", cause, cfg.Auth.LoginURL)
		})),
	)
	return err
}

// commandContext carries a fresh trace id for one command run.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithTraceID(ctx, logging.NewTraceID())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
