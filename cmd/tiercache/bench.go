package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	pmet "github.com/IvanBrykalov/tiercache/metrics/prom"
)

type benchOpts struct {
	workers     int
	duration    time.Duration
	readPct     int
	keys        int
	zipfS       float64
	zipfV       float64
	seed        int64
	preload     int
	metricsAddr string
}

func benchCommand(g *globals) *cli.Command {
	o := &benchOpts{}
	return &cli.Command{
		Name:  "bench",
		Usage: "run a synthetic Zipf workload against the configured tiers",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Value: 2 * runtime.GOMAXPROCS(0), Usage: "number of worker goroutines", Destination: &o.workers},
			&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "benchmark duration", Destination: &o.duration},
			&cli.IntFlag{Name: "reads", Value: 80, Usage: "read percentage [0..100]", Destination: &o.readPct},
			&cli.IntFlag{Name: "keys", Value: 10_000, Usage: "keyspace size", Destination: &o.keys},
			&cli.Float64Flag{Name: "zipf-s", Value: 1.1, Usage: "Zipf s > 1 (skew)", Destination: &o.zipfS},
			&cli.Float64Flag{Name: "zipf-v", Value: 1.0, Usage: "Zipf v >= 1", Destination: &o.zipfV},
			&cli.Int64Flag{Name: "seed", Value: time.Now().UnixNano(), Usage: "random seed", Destination: &o.seed},
			&cli.IntFlag{Name: "preload", Usage: "preload entries (0 = L1 capacity/2)", Destination: &o.preload},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics at addr (e.g. :8080); empty = disabled", Destination: &o.metricsAddr},
		},
		Action: func(ctx *cli.Context) error { return runBench(ctx, g, o) },
	}
}

func runBench(ctx *cli.Context, g *globals, o *benchOpts) error {
	if o.keys < 1 || o.zipfS <= 1 || o.zipfV < 1 {
		return cli.Exit("bench: need --keys >= 1, --zipf-s > 1 and --zipf-v >= 1", 1)
	}
	workers := max(1, o.workers)

	reg := prometheus.NewRegistry()
	metrics := pmet.New(reg, "tiercache", "bench", nil)
	if o.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: o.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logrus.WithField("addr", o.metricsAddr).Info("metrics: serving")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("metrics server")
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	s, err := g.open(ctx, metrics)
	if err != nil {
		return err
	}
	defer s.Close()
	c, cfg := s.layer, s.cfg

	pl := o.preload
	if pl == 0 {
		pl = cfg.L1MaxEntries / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		if err := c.Set(k, benchValue(i)); err != nil {
			return err
		}
	}

	var reads, writes, hits, misses, total atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx.Context, o.duration)
	defer cancel()

	start := time.Now()
	eg, egCtx := errgroup.WithContext(runCtx)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(o.seed + int64(w)*9973))
			zipf := rand.NewZipf(r, o.zipfS, o.zipfV, uint64(o.keys-1))
			for egCtx.Err() == nil {
				total.Add(1)
				k := "k:" + strconv.FormatUint(zipf.Uint64(), 10)
				if int(r.Int31n(100)) < o.readPct {
					reads.Add(1)
					if _, ok := c.Get(k); ok {
						hits.Add(1)
					} else {
						misses.Add(1)
					}
					continue
				}
				writes.Add(1)
				if err := c.Set(k, benchValue(r.Int())); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	ops := total.Load()
	hitRate := 0.0
	if n := reads.Load(); n > 0 {
		hitRate = float64(hits.Load()) / float64(n) * 100
	}
	st := c.GetStats()

	w := ctx.App.Writer
	fmt.Fprintf(w, "namespace=%s policy=%s l1=%d workers=%d keys=%d dur=%v seed=%d remote=%s\n",
		cfg.Namespace, cfg.L1Policy, cfg.L1MaxEntries, workers, o.keys, elapsed.Round(time.Millisecond), o.seed, g.remote)
	fmt.Fprintf(w, "ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load())
	fmt.Fprintf(w, "hits=%d  misses=%d  hit-rate=%.2f%%\n", hits.Load(), misses.Load(), hitRate)
	fmt.Fprintf(w, "l1=%d/%d  l2=%d/%d  l3=%d/%d  evictions=%d  promotions=%d  len=%d\n",
		st.L1Hits, st.L1Misses, st.L2Hits, st.L2Misses, st.L3Hits, st.L3Misses,
		st.Evictions, st.Promotions, c.Len())
	return nil
}

func benchValue(i int) json.RawMessage {
	return json.RawMessage(`"v` + strconv.Itoa(i) + `"`)
}
