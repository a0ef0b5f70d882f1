// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blinklabs-io/pgf"
	"github.com/blinklabs-io/pgf/internal/config"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	genesis, err := loadGenesis(cfg)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ParseShutdownTimeout()
	if err != nil {
		return err
	}
	slotLength, err := cfg.ParseSlotLength()
	if err != nil {
		return err
	}
	systemStart, err := cfg.ParseSystemStart()
	if err != nil {
		return err
	}
	opts := []pgf.ConfigOptionFunc{
		pgf.WithLogger(logger),
		pgf.WithGenesis(genesis),
		pgf.WithDatabasePath(cfg.DatabasePath),
		pgf.WithBlobPlugin(cfg.BlobPlugin),
		pgf.WithMetadataPlugin(cfg.MetadataPlugin),
		pgf.WithMempoolCapacity(cfg.MempoolCapacity),
		pgf.WithMaxBlockTxs(cfg.MaxBlockTxs),
		pgf.WithEpochSchedule(systemStart, slotLength, cfg.SlotsPerEpoch),
		pgf.WithShutdownTimeout(shutdownTimeout),
		// Enable metrics with default prometheus registry
		pgf.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		pgf.WithTracing(cfg.TracingEnabled),
		pgf.WithTracingStdout(cfg.TracingStdout),
		pgf.WithTracingEndpoint(cfg.TracingEndpoint),
	}
	if cfg.ApiPort > 0 {
		opts = append(
			opts,
			pgf.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
		)
	}
	n, err := pgf.New(pgf.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr: fmt.Sprintf(
				"%s:%d",
				cfg.BindAddr,
				cfg.MetricsPort,
			),
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		logger.Info(
			"serving prometheus metrics on "+metricsServer.Addr,
			"component", "node",
		)
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	metricsErr := make(chan error, 1)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				metricsErr <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
	}
	// Run node in goroutine
	nodeErr := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		nodeErr <- n.Run(signalCtx)
	}()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		// The node shuts itself down on context cancellation
		runErr = <-nodeErr
	case runErr = <-nodeErr:
	case err := <-metricsErr:
		runErr = errors.Join(err, n.Stop())
		<-nodeErr
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if runErr != nil {
		logger.Error("node error", "error", runErr)
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}
