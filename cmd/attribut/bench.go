package main

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jetoze/attribut/internal/config"
	"github.com/jetoze/attribut/pkg/property"
	"github.com/spf13/cobra"
)

func benchCmd() *cobra.Command {
	var (
		writers    int
		iterations int
		listeners  int
		listSize   int
		copyPolicy string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure property write and dispatch throughput",
		Long: `Run concurrent writers against a scalar property and a list property
that share one registry, with a number of listeners attached to each.

Writers update the scalar on every iteration, replace the list every
4th iteration, sort it every 16th and clear it every 64th.

Examples:
  attribut bench
  attribut bench --writers=32 --iterations=100000
  attribut bench --copy-policy=reference --listeners=0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("writers") {
				cfg.Bench.Writers = writers
			}
			if flags.Changed("iterations") {
				cfg.Bench.Iterations = iterations
			}
			if flags.Changed("listeners") {
				cfg.Bench.Listeners = listeners
			}
			if flags.Changed("list-size") {
				cfg.Bench.ListSize = listSize
			}
			if flags.Changed("copy-policy") {
				cfg.Bench.CopyPolicy = copyPolicy
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := cfg.Log.Logger(cmd.ErrOrStderr())
			s, err := newStack(cfg, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.shutdown(context.Background())

			res, err := runBench(cfg, s)
			if err != nil {
				return err
			}

			success(cmd, "bench finished in %s", res.Elapsed.Round(time.Millisecond))
			info(cmd, "Writers:        %d", cfg.Bench.Writers)
			info(cmd, "Copy policy:    %s", cfg.CopyPolicy())
			info(cmd, "Writes:         %d", res.Writes)
			info(cmd, "Notifications:  %d", res.Notifications)
			info(cmd, "Listener calls: %d", res.ListenerCalls)
			info(cmd, "Writes/sec:     %.0f", res.WritesPerSecond())
			return nil
		},
	}

	cmd.Flags().IntVarP(&writers, "writers", "w", 0, "Concurrent writers (default from config)")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Writes per writer (default from config)")
	cmd.Flags().IntVarP(&listeners, "listeners", "l", 0, "Listeners per property (default from config)")
	cmd.Flags().IntVar(&listSize, "list-size", 0, "Elements per list write (default from config)")
	cmd.Flags().StringVar(&copyPolicy, "copy-policy", "", "List copy policy: snapshot, copy or reference")

	return cmd
}

// benchResult summarizes one bench run.
type benchResult struct {
	Writes        uint64
	Notifications uint64
	ListenerCalls uint64
	Elapsed       time.Duration
}

// WritesPerSecond returns the write throughput.
func (r benchResult) WritesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Writes) / r.Elapsed.Seconds()
}

func runBench(cfg *config.Config, s *stack) (benchResult, error) {
	counter, err := property.New("counter", 0, property.WithRegistry(s.registry))
	if err != nil {
		return benchResult{}, err
	}
	samples, err := property.NewList("samples", []int{},
		property.WithRegistry(s.registry),
		property.WithCopyPolicy(cfg.CopyPolicy()),
	)
	if err != nil {
		return benchResult{}, err
	}

	var calls, notifications atomic.Uint64
	// One listener per notification counts notifications; the rest count calls.
	s.hub.AddAnyListener(property.Listen(func(property.Event) { notifications.Add(1) }))
	for i := 0; i < cfg.Bench.Listeners; i++ {
		l := property.Listen(func(property.Event) { calls.Add(1) })
		if err := counter.AddListener(l); err != nil {
			return benchResult{}, err
		}
		if err := samples.AddListener(l); err != nil {
			return benchResult{}, err
		}
	}

	var writes atomic.Uint64
	errs := make(chan error, cfg.Bench.Writers)
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < cfg.Bench.Writers; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			if err := benchWriter(cfg.Bench, seed, counter, samples, &writes); err != nil {
				errs <- err
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(errs)

	if err := <-errs; err != nil {
		return benchResult{}, fmt.Errorf("bench: %w", err)
	}

	return benchResult{
		Writes:        writes.Load(),
		Notifications: notifications.Load(),
		ListenerCalls: calls.Load(),
		Elapsed:       elapsed,
	}, nil
}

func benchWriter(cfg config.BenchConfig, seed int, counter *property.Property[int], samples *property.List[int], writes *atomic.Uint64) error {
	buf := make([]int, cfg.ListSize)
	for i := 0; i < cfg.Iterations; i++ {
		if err := counter.Update(func(n int) int { return n + 1 }); err != nil {
			return err
		}
		writes.Add(1)

		var err error
		switch {
		case i%64 == 63:
			err = samples.Clear()
		case i%16 == 15:
			err = samples.Sort(cmp.Compare[int])
		case i%4 == 3:
			for j := range buf {
				buf[j] = (seed*31 + i*17 + j*7) % 1000
			}
			// Under the reference policy every writer hands over a fresh slice.
			err = samples.Set(slices.Clone(buf))
		default:
			continue
		}
		if err != nil {
			return err
		}
		writes.Add(1)
	}
	return nil
}
