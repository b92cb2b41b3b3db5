package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/IvanBrykalov/replcache/config"
	pmet "github.com/IvanBrykalov/replcache/metrics/prom"
	"github.com/IvanBrykalov/replcache/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type benchFlags struct {
	capacity int
	ttl      string

	workers  int
	duration time.Duration
	readPct  int

	keys    int
	zipfS   float64
	zipfV   float64
	seed    int64
	preload int

	pprofAddr   string
	metricsAddr string
}

func newBenchCmd() *cobra.Command {
	var f benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic Zipf workload against a cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.capacity, "cap", 0, "override CACHE_MAX_ENTRIES (local only)")
	fl.StringVar(&f.ttl, "ttl", "", "override CACHE_TTL")
	fl.IntVar(&f.workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	fl.DurationVar(&f.duration, "duration", 10*time.Second, "benchmark duration")
	fl.IntVar(&f.readPct, "reads", 80, "read percentage [0..100]")
	fl.IntVar(&f.keys, "keys", 1_000_000, "keyspace size")
	fl.Float64Var(&f.zipfS, "zipf-s", 1.1, "Zipf s > 1 (skew)")
	fl.Float64Var(&f.zipfV, "zipf-v", 1.0, "Zipf v >= 1")
	fl.Int64Var(&f.seed, "seed", time.Now().UnixNano(), "random seed")
	fl.IntVar(&f.preload, "preload", 0, "preload entries (0 = capacity/2)")
	fl.StringVar(&f.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	fl.StringVar(&f.metricsAddr, "http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	return cmd
}

func runBench(cmd *cobra.Command, f benchFlags) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if f.capacity > 0 {
		cfg.MaxEntries = f.capacity
	}
	if f.ttl != "" {
		if err := cfg.TTL.UnmarshalText([]byte(f.ttl)); err != nil {
			return err
		}
	}
	if f.keys < 1 {
		f.keys = 1
	}
	if f.workers <= 0 {
		f.workers = 1
	}

	// ---- pprof + Prometheus (on DefaultServeMux) ----
	metrics := pmet.New(nil, "replcache", "bench", prometheus.Labels{"kind": cfg.Kind})
	http.Handle("/metrics", promhttp.Handler())
	for _, addr := range []string{f.pprofAddr, f.metricsAddr} {
		if addr == "" {
			continue
		}
		go func() {
			log.Info("serving debug endpoints", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Warn("debug endpoint stopped", zap.String("addr", addr), zap.Error(err))
			}
		}()
	}

	c, err := registry.Build[string, string](cfg, registry.Options{
		Logger:  log,
		Metrics: func(string) cache.Metrics { return metrics },
	})
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := f.preload
	if pl == 0 && cfg.Kind == config.KindLocal {
		pl = cfg.MaxEntries / 2
	}
	for i := 0; i < pl; i++ {
		c.Put("k:"+strconv.Itoa(i), "v"+strconv.Itoa(i))
	}

	// ---- Load generation ----
	var reads, writes, hits, total atomic.Uint64
	ctx, cancel := context.WithTimeout(cmd.Context(), f.duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < f.workers; w++ {
		g.Go(func() error {
			// rand.Rand is not goroutine-safe: one RNG + Zipf per worker.
			r := rand.New(rand.NewSource(f.seed + int64(w)*9973))
			zipf := rand.NewZipf(r, f.zipfS, f.zipfV, uint64(f.keys-1))
			key := func() string { return "k:" + strconv.FormatUint(zipf.Uint64(), 10) }

			for ctx.Err() == nil {
				total.Add(1)
				if int(r.Int31n(100)) < f.readPct {
					reads.Add(1)
					if _, ok := c.Get(key()); ok {
						hits.Add(1)
					}
					continue
				}
				writes.Add(1)
				c.Put(key(), "v"+strconv.Itoa(r.Int()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	readsN, hitsN := reads.Load(), hits.Load()
	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kind=%s cap=%d ttl=%s workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Kind, cfg.MaxEntries, cfg.TTL.Std(), f.workers, f.keys, elapsed, f.seed)
	fmt.Fprintf(out, "ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		total.Load(), float64(total.Load())/elapsed.Seconds(), readsN, writes.Load())
	fmt.Fprintf(out, "hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, readsN-hitsN, hitRate)
	fmt.Fprintf(out, "Len()=%d\n", c.Len())
	return nil
}
