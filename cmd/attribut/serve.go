package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jetoze/attribut/internal/config"
	"github.com/jetoze/attribut/internal/inspect"
	"github.com/jetoze/attribut/pkg/property"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo property set behind the HTTP inspector",
		Long: `Start the HTTP inspector over a small set of demo properties that
change on a timer.

Routes:
  GET /properties  current values as JSON
  GET /metrics     Prometheus metrics
  GET /watch       WebSocket stream of changes

Examples:
  attribut serve
  attribut serve --addr=0.0.0.0:9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Serve.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Serve.Addr, err)
			}
			success(cmd, "inspector listening on http://%s", ln.Addr())
			return runServe(ctx, cfg, ln, cfg.Log.Logger(cmd.ErrOrStderr()), cmd)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

// demo is the property set served by `attribut serve`.
type demo struct {
	clock    *property.Property[string]
	ticks    *property.Property[int]
	readings *property.List[float64]
	rng      *rand.Rand
}

func newDemo(reg property.Registry) (*demo, error) {
	clock, err := property.New("clock", time.Now().UTC().Format(time.RFC3339), property.WithRegistry(reg))
	if err != nil {
		return nil, err
	}
	ticks, err := property.New("ticks", 0, property.WithRegistry(reg))
	if err != nil {
		return nil, err
	}
	readings, err := property.NewList("readings", []float64{}, property.WithRegistry(reg))
	if err != nil {
		return nil, err
	}
	return &demo{
		clock:    clock,
		ticks:    ticks,
		readings: readings,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// tick advances the demo by one step.
func (d *demo) tick(now time.Time) error {
	if err := d.clock.Set(now.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := d.ticks.Update(func(n int) int { return n + 1 }); err != nil {
		return err
	}

	n := d.ticks.Get()
	switch {
	case n%10 == 0:
		return d.readings.Clear()
	case n%5 == 0:
		return d.readings.Sort(cmp.Compare[float64])
	default:
		next := append(d.readings.Get(), d.rng.Float64()*100)
		return d.readings.Set(next)
	}
}

func runServe(ctx context.Context, cfg *config.Config, ln net.Listener, logger *slog.Logger, cmd *cobra.Command) error {
	s, err := newStack(cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.shutdown(context.Background())

	d, err := newDemo(s.registry)
	if err != nil {
		return err
	}

	insp := inspect.New(s.hub, inspect.WithLogger(logger), inspect.WithGatherer(s.metrics))
	inspect.Track[string](insp, d.clock)
	inspect.Track[int](insp, d.ticks)
	inspect.Track[[]float64](insp, d.readings)

	srv := &http.Server{
		Handler:           insp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	ticker := time.NewTicker(cfg.Serve.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			insp.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve: %w", err)
		case now := <-ticker.C:
			if err := d.tick(now); err != nil {
				logger.Error("demo tick failed", "error", err)
			}
		}
	}
}
