package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mcastellin/yellowpage/pkg/yellowpage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Join the gossip cluster and run until terminated",
	Long: `serve starts a Coordinator bound to the configured listen address,
contacts the configured seeds, and runs the gossip tick until the process
receives SIGINT or SIGTERM, at which point it writes a final tombstone
and shuts down.`,
	RunE: runServe,
}

// buildConfig assembles a yellowpage.Config from viper-bound flags and
// environment variables (ZUK_NODE_ID, ZUK_GOSSIP_PORT, ZUK_SEEDS per
// spec.md §6), falling back to a freshly generated xid when no node id
// was supplied so a node never needs an externally-assigned identity to
// boot.
func buildConfig(logger *zap.Logger, reg *prometheus.Registry) yellowpage.Config {
	nodeID := viper.GetString("node_id")
	if nodeID == "" {
		nodeID = xid.New().String()
		logger.Info("no node_id configured, generated one", zap.String("node_id", nodeID))
	}

	return yellowpage.Config{
		NodeID:     yellowpage.NodeID(nodeID),
		ListenAddr: ":" + strconv.Itoa(viper.GetInt("gossip_port")),
		Seeds:      viper.GetStringSlice("seeds"),
		Registry:   reg,
		Logger:     logger,
	}
}

// serveMetrics exposes the Prometheus registry on /metrics when port is
// non-zero. Grounded on the teacher's SpechtLabs-tka o11y pattern of
// serving promhttp.HandlerFor against a caller-owned registry rather than
// the global default one, so multiple Coordinators in one process (as in
// tests) never collide on global collector registration.
func serveMetrics(logger *zap.Logger, reg *prometheus.Registry, port int) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server exited", zap.Error(err))
		}
	}()
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	cfg := buildConfig(logger, reg)

	serveMetrics(logger, reg, viper.GetInt("metrics_port"))

	coord := yellowpage.NewCoordinator()
	if err := coord.Start(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("shutdown signal received, draining")
	return coord.Shutdown()
}
