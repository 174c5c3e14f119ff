// Command memobench drives a synthetic workload through a memoized
// function and exposes optional pprof/Prometheus endpoints.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"time"

	"github.com/IvanBrykalov/memocache/memo"
	pmet "github.com/IvanBrykalov/memocache/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "memobench: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfg            workload
		defaultTimeout time.Duration
		pprofAddr      string
		metricsAddr    string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "memobench",
		Short: "Run a synthetic workload against a memoized function",
		Long: `memobench calls a deliberately slow function with Zipf-distributed
arguments through a memo and reports hit rate and throughput.

Entries expire --timeout after their last use; with --timeout=0 the
process-wide --default-timeout applies (0 disables expiry).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cmd.Flags().Changed("default-timeout") {
				memo.SetDefaultTimeout(defaultTimeout)
			}

			// ---- pprof server (on DefaultServeMux) ----
			if pprofAddr != "" {
				go serve(logger, "pprof", pprofAddr)
			}

			// ---- Prometheus metrics (on DefaultServeMux) ----
			if metricsAddr != "" {
				cfg.Metrics = pmet.New(nil, "memo", "bench", nil)
				http.Handle("/metrics", promhttp.Handler())
				go serve(logger, "metrics", metricsAddr)
			}

			cfg.Logger = logger
			rep, err := cfg.run(cmd.Context())
			if err != nil {
				return err
			}
			rep.print(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	f := cmd.Flags()
	f.DurationVar(&cfg.Timeout, "timeout", 5*time.Second, "entry timeout after last use (0 = use default)")
	f.DurationVar(&defaultTimeout, "default-timeout", memo.InitialDefaultTimeout, "process-wide default timeout (0 = never expire)")
	f.IntVar(&cfg.Shards, "shards", 0, "number of shards (0=auto)")
	f.BoolVar(&cfg.Coalesce, "coalesce", false, "share one computation between concurrent misses")
	f.IntVarP(&cfg.Workers, "workers", "w", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	f.DurationVarP(&cfg.Duration, "duration", "d", 10*time.Second, "benchmark duration")
	f.DurationVar(&cfg.Work, "work", 200*time.Microsecond, "simulated cost of one underlying call")
	f.IntVar(&cfg.Keys, "keys", 100_000, "keyspace size")
	f.Float64Var(&cfg.ZipfS, "zipf-s", 1.1, "Zipf s > 1 (skew)")
	f.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf v")
	f.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	f.StringVar(&pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.StringVar(&metricsAddr, "http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

// serve runs an HTTP server on DefaultServeMux until it fails.
func serve(logger *zap.Logger, what, addr string) {
	logger.Info(what+": serving", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error(what+" server", zap.String("addr", addr), zap.Error(err))
	}
}
