// Command reactived runs a message broker and exposes its CloudEvents
// topics over HTTP and websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fxsml/reactive/bridge"
	"github.com/fxsml/reactive/broker"
	"github.com/fxsml/reactive/config"
	"github.com/fxsml/reactive/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	printKeys := flag.Bool("env-keys", false, "print the supported environment variables and exit")
	flag.Parse()

	if *printKeys {
		for _, key := range config.Keys("daemon", daemonConfig{}) {
			fmt.Println(key)
		}
		return
	}

	cfg, err := loadConfig(*configPath, config.Loader{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("[REACTIVE] Daemon failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg daemonConfig) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer := metrics.New()

	cfg.Broker.Logger = logger.With(slog.String("component", "broker"))
	cfg.Broker.Observer = observer

	var host broker.Host
	b, err := host.Initialize(cfg.Broker)
	if err != nil {
		return err
	}
	observer.Register(reg, b.Stats)
	bridge.RegisterMetrics(reg)

	catalog := bridge.NewCatalog(cfg.AutoCreateCapacity)
	for _, t := range cfg.Topics {
		catalog.Register(t.Name, t.Capacity)
	}

	cfg.Bridge.Logger = logger.With(slog.String("component", "bridge"))
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !host.IsInitialized() {
			http.Error(w, "broker not initialized", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Mount("/", bridge.NewHandler(&host, catalog, cfg.Bridge))

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("[REACTIVE] Listening", slog.String("addr", cfg.Listen), slog.Any("topics", catalog.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = host.Shutdown(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
	}

	logger.Info("[REACTIVE] Shutting down", slog.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Closing the broker first sends close frames to stream clients, which
	// lets their hijacked connections end before the server waits.
	brokerErr := host.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(brokerErr, fmt.Errorf("http shutdown: %w", err))
	}
	return brokerErr
}
