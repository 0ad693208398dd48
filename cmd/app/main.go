package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/administrator"
	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
)

var ctx context.Context

var rootCmd = &cobra.Command{
	Use:   "sitemonitor",
	Short: "Site health monitoring and alerting",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler and the monitoring API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		admin, err := administrator.New(ctx, cfg)
		if err != nil {
			logger.Log.Error("Failed to build monitoring pipeline", zap.Error(err))
			return err
		}
		defer admin.Stop()

		logger.Log.Info("Starting site monitor", zap.String("site", cfg.SiteURL), zap.String("port", cfg.ServerPort))
		return admin.Serve(ctx)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run all checks once and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		if site, _ := cmd.Flags().GetString("site"); site != "" {
			cfg.SiteURL = site
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		admin, err := administrator.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer admin.Stop()

		result, err := admin.RunOnce(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	checkCmd.Flags().String("site", "", "site URL to check instead of SITE_URL")
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func main() {
	var stop func()
	ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.Execute(); err != nil {
		logger.Log.Error("Command failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
	_ = logger.Log.Sync()
}
