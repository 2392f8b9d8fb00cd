// Command ringlogd keeps a bounded history of recent DHCPv6 events per client
// and serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/DeterminateSystems/ringbuffer/internal/config"
	"github.com/DeterminateSystems/ringbuffer/internal/dhcpwatch"
	"github.com/DeterminateSystems/ringbuffer/internal/history"
	"github.com/DeterminateSystems/ringbuffer/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "ringlogd",
		Short:         "Serve bounded per-client DHCPv6 event histories",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "ringlogd: %v\n", err)
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("exiting", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	config.AddFlags(cmd.Flags())
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	broker := history.NewBroker(0)
	store, err := history.NewStore(history.Config{
		Depth:       cfg.Depth,
		RecentDepth: cfg.RecentDepth,
		Registerer:  reg,
	}, broker, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(store, broker, reg, cfg.Heartbeat, logger).ListenAndServe(ctx, cfg.Listen)
	})
	if cfg.DHCP {
		g.Go(func() error {
			return dhcpwatch.New(store, logger).Serve(ctx, cfg.Interface)
		})
	}

	logger.Info("started",
		zap.String("listen", cfg.Listen),
		zap.Int("depth", cfg.Depth),
		zap.Bool("dhcp", cfg.DHCP),
	)
	return g.Wait()
}
