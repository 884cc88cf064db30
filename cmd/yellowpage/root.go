// Package main is the yellowpage CLI/daemon shell: a thin cobra/viper
// wrapper that binds a Coordinator to the process environment and keeps
// it running until signaled. Grounded on the teacher's remote-procedure-call/
// cmd/root.go for the cobra command skeleton and distributed-queue/main.go
// for the zap production-logger and signal-driven Run() loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "yellowpage",
	Short: "A gossip-based cluster coordination daemon",
	Long: `yellowpage runs a single node of a Scuttlebutt-style gossip cluster:
it exchanges versioned key/value state with its peers over UDP, tracks
liveness with a phi-accrual failure detector, and, when --metrics-port
is set, serves Prometheus metrics on /metrics.`,
}

func init() {
	rootCmd.PersistentFlags().String("node-id", "", "unique identifier for this node (default: a generated xid)")
	rootCmd.PersistentFlags().Int("gossip-port", 7890, "UDP port to bind for gossip traffic, on all interfaces")
	rootCmd.PersistentFlags().StringSlice("seeds", nil, "comma-separated host:port seed addresses")
	rootCmd.PersistentFlags().Int("metrics-port", 0, "port to serve Prometheus /metrics on, 0 disables it")

	_ = viper.BindPFlag("node_id", rootCmd.PersistentFlags().Lookup("node-id"))
	_ = viper.BindPFlag("gossip_port", rootCmd.PersistentFlags().Lookup("gossip-port"))
	_ = viper.BindPFlag("seeds", rootCmd.PersistentFlags().Lookup("seeds"))
	_ = viper.BindPFlag("metrics_port", rootCmd.PersistentFlags().Lookup("metrics-port"))

	viper.SetEnvPrefix("zuk")
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
