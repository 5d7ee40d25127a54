package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markis/gh-scriptai/internal/args"
	"github.com/markis/gh-scriptai/internal/config"
	"github.com/markis/gh-scriptai/internal/logging"
	"github.com/markis/gh-scriptai/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// main function to parse arguments and initiate the chat request.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}

	a, err := args.ParseArgs(ctx, *cfg, args.Input{Args: os.Args[1:], Stdin: args.PipedStdin()})
	if err != nil {
		return err
	}
	if a.Action == "" {
		return nil
	}

	cfg.Model = a.Model
	cfg.Provider = a.Provider
	cfg.Endpoint = a.Endpoint
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	log := logger.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	if a.MetricsAddr != "" {
		srv := serveMetrics(a.MetricsAddr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("metrics server shutdown failed")
			}
		}()
	}

	switch a.Action {
	case args.ActionModels:
		return listModels(ctx, *cfg, log, os.Stdout)
	case args.ActionReplay:
		return replay(ctx, *cfg, a, log, collector)
	default:
		return ask(ctx, *cfg, a, log, collector)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return srv
}
