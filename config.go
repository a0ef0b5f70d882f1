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

package pgf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/pgf/ledger"
)

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	genesis         *ledger.Genesis
	dataDir         string
	blobPlugin      string
	metadataPlugin  string
	tracingEndpoint string
	// API listen address (empty = disabled)
	apiListenAddress string
	mempoolCapacity  int64
	maxBlockTxs      int
	systemStart      time.Time
	slotLength       time.Duration
	slotsPerEpoch    uint64
	shutdownTimeout  time.Duration
	tracing          bool
	tracingStdout    bool
}

type ConfigOptionFunc func(*Config)

// NewConfig creates a new node config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		slotLength:    time.Second,
		slotsPerEpoch: 60,
		maxBlockTxs:   500,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *Config) validate() error {
	var err error
	if c.genesis == nil {
		err = errors.Join(err, errors.New("no genesis provided"))
	} else if gErr := c.genesis.Validate(); gErr != nil {
		err = errors.Join(err, fmt.Errorf("genesis: %w", gErr))
	}
	if c.slotLength <= 0 {
		err = errors.Join(err, fmt.Errorf("invalid slot length: %s", c.slotLength))
	}
	if c.slotsPerEpoch == 0 {
		err = errors.Join(err, errors.New("slots per epoch must be positive"))
	}
	if c.maxBlockTxs < 0 {
		err = errors.Join(err, fmt.Errorf("invalid max block txs: %d", c.maxBlockTxs))
	}
	return err
}

// WithGenesis specifies the genesis state. It is written to an empty
// database and checked against an existing one.
func WithGenesis(genesis *ledger.Genesis) ConfigOptionFunc {
	return func(c *Config) {
		c.genesis = genesis
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithTracingEndpoint overrides the OTLP endpoint ("host:port")
func WithTracingEndpoint(endpoint string) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingEndpoint = endpoint
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithMempoolCapacity sets the mempool capacity (in bytes)
func WithMempoolCapacity(capacity int64) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolCapacity = capacity
	}
}

// WithMaxBlockTxs limits the number of transactions the producer puts in
// one block. Zero means no limit
func WithMaxBlockTxs(maxTxs int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxBlockTxs = maxTxs
	}
}

// WithEpochSchedule sets the slot schedule that drives block production
// and epoch finalization. A zero system start means "now"
func WithEpochSchedule(
	systemStart time.Time,
	slotLength time.Duration,
	slotsPerEpoch uint64,
) ConfigOptionFunc {
	return func(c *Config) {
		c.systemStart = systemStart
		c.slotLength = slotLength
		c.slotsPerEpoch = slotsPerEpoch
	}
}

// WithApiListenAddress enables the REST API on the given address
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}
