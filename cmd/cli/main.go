// Command ensemble reads a SimulationInput JSON from a file argument (or stdin),
// runs the platoon simulation, and writes the SimulationLog JSON to stdout.
//
// Usage:
//
//	ensemble [-config ensemble.toml] [-log-level info] [-metrics-addr :9090] [input.json]
//
// With -metrics-addr the Prometheus metrics of the run stay available on
// /metrics after the log is written, until the process is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/licit-lab/ensemble-sub000/internal/config"
	"github.com/licit-lab/ensemble-sub000/internal/engine"
	"github.com/licit-lab/ensemble-sub000/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "TOML file with protocol and control overrides")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	logger, err := telemetry.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	telemetry.SetBuildInfo(version)

	if err := run(logger, *configPath, *metricsAddr, flag.Arg(0)); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger, configPath, metricsAddr, inputPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	if inputPath != "" {
		data, err = os.ReadFile(inputPath)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	result, err := engine.RunJSON(string(data), cfg, logger)
	if err != nil {
		return err
	}
	fmt.Println(result)

	if srv == nil {
		return nil
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}
