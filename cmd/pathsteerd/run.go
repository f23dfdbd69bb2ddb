package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pathsteer/pathsteerd/internal/config"
	"github.com/pathsteer/pathsteerd/internal/controller"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run the failover controller",
	Long:  `Loads the daemon configuration and runs the controller loop until signalled to stop.`,
	RunE:  runDaemon,
}

func init() {
	runCmd.Flags().String("log-format", "json", "log output format (json, text)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9273", "address to serve /metrics on")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logFormat, _ := cmd.Flags().GetString("log-format")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	runID := controller.NewRunID()

	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	logger := telemetry.NewLogger(telemetry.LoggerConfig{
		Level:  logLevel,
		Format: telemetry.Format(logFormat),
		Output: os.Stdout,
	}, runID)

	metrics := telemetry.NewMetrics()

	logger.Info("pathsteerd starting", "run_id", runID, "node", cfg.Node.ID, "version", version)

	ctrl := controller.New(cfg, logger, metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err.Error())
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctrl.Run(ctx)
	_ = metricsSrv.Close()

	logger.Info("pathsteerd stopped", "run_id", runID)
	return nil
}
