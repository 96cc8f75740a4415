// Command tcpsim runs the TCP congestion-control simulator, per spec.md
// §6's CLI surface. It is grounded on the teacher-adjacent pack's cobra
// root-command pattern rather than anything in the teacher itself, which
// has no CLI front-end of its own.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcpsim/tcpsim/congestion"
	"github.com/tcpsim/tcpsim/metrics"
	"github.com/tcpsim/tcpsim/qerr"
	"github.com/tcpsim/tcpsim/simulator"
	"github.com/tcpsim/tcpsim/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simulator.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "tcpsim <variant> <iterations> <loss-rate>",
		Short: "Discrete-event TCP congestion-control network simulator",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &cfg)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.ReportLevel, "report-level", cfg.ReportLevel,
		"comma-separated subset of simulator,links,routers,senders,receivers,rto")
	flags.Int64Var((*int64)(&cfg.RouterBuffer), "router-buffer", int64(cfg.RouterBuffer), "router shared buffer capacity, in bytes")
	flags.Int64Var((*int64)(&cfg.RecvWindow), "recv-window", int64(cfg.RecvWindow), "receiver advertised window, in bytes")
	flags.Int64Var((*int64)(&cfg.MSS), "mss", int64(cfg.MSS), "maximum segment size, in bytes")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "optional host:port to serve Prometheus metrics")
	flags.Int64Var(&cfg.Seed, "seed", 0, "loss-rate RNG seed (defaults to a seed derived from the run ID)")

	return cmd
}

func run(cmd *cobra.Command, args []string, cfg *simulator.Config) error {
	cfg.Variant = args[0]
	variant, ok := congestion.ParseVariant(cfg.Variant)
	if !ok {
		return qerr.New(qerr.UnknownVariant, "%q: must be one of Tahoe, Reno, NewReno", cfg.Variant)
	}

	iterations, err := strconv.Atoi(args[1])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("iterations must be a positive integer, got %q", args[1])
	}
	cfg.Iterations = iterations

	lossRate, err := strconv.ParseFloat(args[2], 64)
	if err != nil || lossRate < 0 || lossRate > 1 {
		return fmt.Errorf("loss rate must be a float in [0,1], got %q", args[2])
	}
	cfg.LossRate = lossRate

	id := uuid.New()
	runID := id.String()
	if cfg.Seed == 0 {
		cfg.Seed = int64(binary.BigEndian.Uint64(id[:8]))
	}

	log := utils.NewRootLogger()
	defer log.Sync()

	reg := metrics.New(runID, variant.String())

	var server *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer server.Shutdown(context.Background())
	}

	runner := simulator.New(*cfg, variant, runID, cmd.OutOrStdout(), log, reg)
	runner.Run()

	if cfg.MetricsAddr == "" {
		if _, err := reg.Snapshot(); err != nil {
			log.Warn("failed to gather final metrics snapshot", zap.Error(err))
		}
	}

	return nil
}
