package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/ldpcsim/internal/ldpc"
	"github.com/san-kum/ldpcsim/internal/metrics"
	"github.com/san-kum/ldpcsim/internal/sim"
)

var (
	listenAddr string
	runLimit   int
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "run seeds continuously and export harness metrics to Prometheus",
		RunE:  serveMetrics,
	}
	addCodeFlags(cmd)
	addRunFlags(cmd)
	addDeviceFlags(cmd)
	cmd.Flags().StringVar(&listenAddr, "listen", ":9464", "metrics listen address")
	cmd.Flags().IntVar(&runLimit, "limit", 0, "stop after this many runs (0 = until interrupted)")
	return cmd
}

func serveMetrics(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	exp, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer exp.Close()
	cfg, session := exp.Config(), exp.GetSession()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	session.AddObserver(metrics.NewCollector(reg))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server failed: %v", err)
			stop()
		}
	}()
	log.Printf("Serving metrics on %s/metrics (%s, %s, %d errors, %d iterations)",
		listenAddr, cfg.Shape(), cfg.Decoder, cfg.Run.InjectedErrors, cfg.Run.BPIterations)

	loopErr := feedQueue(ctx, session, cfg.RunParams(), cfg.Pool.QueueDepth)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v", err)
	}
	if errors.Is(loopErr, context.Canceled) {
		return nil
	}
	return loopErr
}

// feedQueue keeps the run queue full with consecutive seeds until ctx ends
// or runLimit runs have completed. Failed runs are logged and counted by the
// collector; they do not stop the loop.
func feedQueue(ctx context.Context, session *sim.Session, params ldpc.RunParams, depth int) error {
	depth = max(depth, 1)
	queue := sim.NewQueue(session, 0, depth)
	defer queue.Close()

	pending := make([]*sim.Future, 0, depth+1)
	completed := 0
	next := params.Seed

	for runLimit == 0 || completed < runLimit {
		for runLimit == 0 || completed+len(pending) < runLimit {
			p := params
			p.Seed = next
			f, err := queue.Submit(p)
			if errors.Is(err, ldpc.ErrResourceExhausted) {
				break
			}
			if err != nil {
				return err
			}
			next++
			pending = append(pending, f)
		}
		if len(pending) == 0 {
			return fmt.Errorf("run queue accepts no work (depth %d)", depth)
		}

		res, err := pending[0].Wait(ctx)
		pending = pending[1:]
		completed++
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Printf("Run failed: %v", err)
		case res.BitErrorCount > 0:
			log.Printf("Seed %d left %d residual errors", res.Params.Seed, res.BitErrorCount)
		}
	}

	total, err := session.TotalErrors()
	if err != nil {
		return err
	}
	log.Printf("Completed %d runs, %d total errors", completed, total)
	return nil
}
