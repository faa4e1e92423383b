package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensornet/internal/blobs"
	"github.com/born-ml/tensornet/internal/config"
	"github.com/born-ml/tensornet/internal/job"
	"github.com/born-ml/tensornet/internal/metrics"
	"github.com/born-ml/tensornet/internal/network"
	"github.com/born-ml/tensornet/internal/perfdata"
	"github.com/born-ml/tensornet/internal/serialization"
)

type runOptions struct {
	output      string
	strategy    string
	metricsAddr string
	parallel    int
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run JOB.yaml...",
		Short: "Run job files and store their outputs",
		Long: `Run evaluates each job file and prints a summary of its outputs.
Independent job files run concurrently. With an output location, every
output tensor is stored as <location>/<job>/<tensor>.btns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runJobs(cmd.Context(), cmd.OutOrStdout(), cfg, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "result location: directory or gs://bucket/prefix (overrides config)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "contraction strategy: generic or chain (overrides config)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", runtime.NumCPU(), "maximum number of concurrent jobs")
	return cmd
}

// loadConfig reads --config and applies the logging verbosity unless -v
// was given explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if v := cmd.Flags().Lookup("v"); v != nil && !v.Changed && cfg.Logging.Verbosity > 0 {
		if err := v.Value.Set(strconv.Itoa(cfg.Logging.Verbosity)); err != nil {
			return cfg, fmt.Errorf("setting verbosity: %w", err)
		}
	}
	return cfg, nil
}

func runJobs(ctx context.Context, stdout io.Writer, cfg config.Config, opts runOptions, paths []string) error {
	log := klog.FromContext(ctx)

	if opts.output != "" {
		cfg.Output.Location = opts.output
	}
	if opts.strategy != "" {
		cfg.Network.Strategy = opts.strategy
	}
	strategy, err := network.StrategyByName(cfg.Network.Strategy)
	if err != nil {
		return err
	}

	var store blobs.Store
	if cfg.Output.Location != "" {
		if store, err = blobs.Open(cfg.Output.Location); err != nil {
			return err
		}
	}

	addr := opts.metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Listen
	}
	if addr != "" {
		stopMetrics := serveMetrics(ctx, addr)
		defer stopMetrics()
	}

	jobs := make([]*job.Job, len(paths))
	for k, path := range paths {
		if jobs[k], err = job.Load(path); err != nil {
			return err
		}
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.parallel, 1))
	for _, j := range jobs {
		g.Go(func() error {
			summary, err := runJob(gCtx, j, cfg, strategy, store)
			if err != nil {
				return fmt.Errorf("job %s: %w", j.Name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			_, err = io.WriteString(stdout, summary)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.V(1).Info("Finished jobs", "count", len(jobs))
	return nil
}

// jobKey derives the storage key of a job from its name.
func jobKey(j *job.Job) string {
	base := filepath.Base(j.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// runJob runs one job, stores its outputs and returns the summary lines.
func runJob(ctx context.Context, j *job.Job, cfg config.Config, strategy network.Strategy, store blobs.Store) (string, error) {
	log := klog.FromContext(ctx).WithValues("job", j.Name)
	ctx = klog.NewContext(ctx, log)

	rec := perfdata.New(cfg.Perf.PrintProgress)
	rec.Info = "job: " + j.Name

	start := time.Now()
	out, err := j.Run(ctx, job.Options{Strategy: strategy, Recorder: rec})
	if err != nil {
		return "", err
	}
	log.Info("Ran job", "operations", len(j.Operations), "outputs", len(out), "duration", time.Since(start))

	if cfg.Perf.Dir != "" {
		if err := rec.DumpToFile(filepath.Join(cfg.Perf.Dir, jobKey(j)+".perf")); err != nil {
			return "", err
		}
	}

	var summary strings.Builder
	names := slices.Sorted(func(yield func(string) bool) {
		for name := range out {
			if !yield(name) {
				return
			}
		}
	})
	for _, name := range names {
		t := out[name]
		fmt.Fprintf(&summary, "%s\t%s\t%v\t%s\tnnz=%d\tnorm=%g\n", jobKey(j), name, []int(t.Dims()), t.Representation(), t.NNZ(), t.FrobNorm())

		if store == nil {
			continue
		}
		var buf bytes.Buffer
		if err := serialization.WriteTensor(&buf, t); err != nil {
			return "", fmt.Errorf("encoding %s: %w", name, err)
		}
		if err := store.Put(ctx, jobKey(j)+"/"+name+".btns", buf.Bytes()); err != nil {
			return "", fmt.Errorf("storing %s: %w", name, err)
		}
	}
	return summary.String(), nil
}

// serveMetrics serves the metrics handler on addr until the returned
// function is called.
func serveMetrics(ctx context.Context, addr string) func() {
	log := klog.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server failed", "addr", addr)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "stopping metrics server")
		}
	}
}
