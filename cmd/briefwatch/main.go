// cmd/briefwatch/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/tendant/simple-brief/internal/briefapi"
	"github.com/tendant/simple-brief/internal/bus"
	"github.com/tendant/simple-brief/internal/process"
	"github.com/tendant/simple-brief/internal/sink"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "briefwatch",
		Usage: "request ingredient research briefs and follow their generation",
		Commands: []*cli.Command{
			{
				Name:      "request",
				Usage:     "request briefs and wait for each to finish",
				ArgsUsage: "<ingredient>...",
				Flags: []cli.Flag{
					envFlag,
					&cli.DurationFlag{
						Name:  "wait",
						Usage: "give up waiting after this long (0 waits until every job ends)",
					},
				},
				Action: requestAction,
			},
			{
				Name:   "events",
				Usage:  "print brief lifecycle events published on NATS",
				Flags:  []cli.Flag{envFlag},
				Action: eventsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cli.Command) (config, *slog.Logger, error) {
	if err := loadEnvFile(cmd.String("env")); err != nil {
		return config{}, nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func requestAction(ctx context.Context, cmd *cli.Command) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return cli.Exit("at least one ingredient is required", 2)
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	logger.Info("briefwatch starting", "api_url", cfg.APIURL, "poll_interval", cfg.PollInterval, "max_attempts", cfg.MaxAttempts, "transport_retries", cfg.TransportRetries, "nats_url", cfg.NATSURL)

	reg := prometheus.NewRegistry()
	metrics, err := sink.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	results := make(chan terminal, len(keys))
	opts := []process.Option{
		process.WithLogger(logger),
		process.WithSink(sink.Multi{sink.NewLog(logger), metrics, collector(results)}),
		process.WithOptions(process.Options{
			Interval:         cfg.PollInterval,
			MaxAttempts:      cfg.MaxAttempts,
			TransportRetries: cfg.TransportRetries,
		}),
	}

	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, "briefwatch")
		if err != nil {
			return err
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL, "subject", cfg.LifecycleSubject)
		opts = append(opts, process.WithObserver(sink.NewBus(nc, cfg.LifecycleSubject, logger)))
	}

	client := briefapi.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	dispatcher := process.NewDispatcher(process.NewRegistry(), client, client, opts...)
	defer func() {
		if err := dispatcher.Close(shutdownTimeout); err != nil {
			logger.Warn("dispatcher close", "err", err)
		}
	}()

	failed := trackBriefs(ctx, dispatcher, results, keys, cmd.Duration("wait"), os.Stdout)
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d briefs were not delivered", failed, len(keys)), 1)
	}
	return nil
}

func eventsAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.NATSURL == "" {
		return cli.Exit("NATS_URL is required to follow lifecycle events", 2)
	}

	nc, err := bus.Connect(cfg.NATSURL, "briefwatch-events")
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.SubscribeJSON(cfg.LifecycleSubject, func(_ context.Context, data []byte) {
		line, err := formatEvent(data)
		if err != nil {
			logger.Warn("invalid lifecycle event", "err", err)
			return
		}
		fmt.Println(line)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.LifecycleSubject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	logger.Info("listening for lifecycle events", "subject", cfg.LifecycleSubject)

	<-ctx.Done()
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "err", err)
	}
}
