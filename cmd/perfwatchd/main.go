package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"perfwatch.sh/internal/config"
	"perfwatch.sh/internal/metrics"
	"perfwatch.sh/internal/observability"
	"perfwatch.sh/internal/server"
	"perfwatch.sh/internal/tracing"
	"perfwatch.sh/pkg/perf"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "perfwatchd",
	Short: "In-process runtime telemetry aggregator daemon",
	Long: `perfwatchd collects performance samples (work durations, memory
readings), keeps a bounded store biased toward anomalously slow samples,
and serves derived insights, hotspot rankings and recommendations to
polling consumers over HTTP.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path (yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDaemon(cfgFile)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "perfwatchd",
		Version: version,
	})
	defer logger.Sync()

	shutdownTracing, err := tracing.Initialize(tracing.LoadFromEnvironment("perfwatchd", version))
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer shutdownTracing()

	opts := []perf.Option{
		WithAlertLogging(logger),
	}
	prober, err := perf.NewProcessProber()
	if err != nil {
		logger.Warn("memory introspection unavailable, memory insights will be neutral", zap.Error(err))
	} else {
		opts = append(opts, perf.WithMemoryProber(prober))
	}
	if cfg.CallTraceDepth > 0 {
		opts = append(opts, perf.WithTraceCapture(perf.CallerTrace(cfg.CallTraceDepth)))
	}

	collector := perf.New(perf.Config{
		MaxCapacity:           cfg.MaxCapacity,
		AnomalyThresholdMs:    cfg.AnomalyThresholdMs,
		MemorySampleInterval:  cfg.MemorySampleInterval,
		MemoryHistoryCapacity: cfg.MemoryHistoryCapacity,
	}, opts...)

	collector.Start()
	defer collector.Stop()

	metrics.RegisterCollector(collector)

	logger.Info("collector started",
		zap.String("session_id", collector.SessionID()),
		zap.Int("max_capacity", cfg.MaxCapacity),
		zap.Float64("anomaly_threshold_ms", cfg.AnomalyThresholdMs),
	)

	srv := server.New(server.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Readiness for systemd-managed installs; a no-op elsewhere.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	err = srv.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Error("server exited", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// WithAlertLogging surfaces memory level-crossing alerts through the
// process logger.
func WithAlertLogging(logger *zap.Logger) perf.Option {
	return perf.WithAlertFunc(func(usage, baseline uint64) {
		logger.Warn("memory usage exceeds twice the session baseline",
			zap.Uint64("usage_bytes", usage),
			zap.Uint64("baseline_bytes", baseline),
		)
	})
}
