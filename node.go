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

// Package pgf assembles a Public Goods Funding node: the state store, the
// ledger, the mempool, the epoch clock driven block producer and the REST
// API.
package pgf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/blinklabs-io/pgf/api"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/event"
	"github.com/blinklabs-io/pgf/ledger"
	"github.com/blinklabs-io/pgf/mempool"
)

type Node struct {
	eventBus       *event.EventBus
	db             *database.Database
	ledgerState    *ledger.LedgerState
	mempool        *mempool.Mempool
	clock          *ledger.EpochClock
	producer       *blockProducer
	api            *api.Server
	tracerProvider *sdktrace.TracerProvider
	shutdownFuncs  []func(context.Context) error
	config         Config
	cancel         context.CancelFunc
	started        chan struct{}
	done           chan struct{}
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:  cfg,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	return n, nil
}

// Run starts every component and blocks until Stop is called or ctx is
// done
func (n *Node) Run(ctx context.Context) error {
	select {
	case <-n.done:
		return errors.New("node is stopped")
	default:
	}
	ctx, n.cancel = context.WithCancel(ctx)
	if err := n.start(ctx); err != nil {
		// Release whatever was started before the failure
		return errors.Join(err, n.Stop())
	}
	close(n.started)
	select {
	case <-ctx.Done():
		return n.Stop()
	case <-n.done:
		return nil
	}
}

func (n *Node) start(ctx context.Context) error {
	logger := n.config.logger
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	n.eventBus = event.NewEventBus(n.config.promRegistry, logger)
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		Logger:         logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
	})
	// A database that fails to initialize is still returned for cleanup
	n.db = db
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Load state
	lsCfg := ledger.LedgerStateConfig{
		Logger:       logger,
		Database:     n.db,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		VotingPower:  n.config.genesis.VotingPower(),
	}
	if n.tracerProvider != nil {
		lsCfg.TracerProvider = n.tracerProvider
	}
	state, err := ledger.NewLedgerState(lsCfg)
	if err != nil {
		return fmt.Errorf("failed to load state database: %w", err)
	}
	n.ledgerState = state
	if err := n.ledgerState.InitGenesis(ctx, n.config.genesis); err != nil {
		return fmt.Errorf("failed to initialize genesis: %w", err)
	}
	// Initialize mempool
	n.mempool = mempool.NewMempool(mempool.MempoolConfig{
		MempoolCapacity: n.config.mempoolCapacity,
		Logger:          logger,
		EventBus:        n.eventBus,
		PromRegistry:    n.config.promRegistry,
		Validator:       n.ledgerState,
	})
	// Configure epoch clock and block producer
	clock, err := ledger.NewEpochClock(ledger.EpochClockConfig{
		Logger:        logger,
		SystemStart:   n.config.systemStart,
		SlotLength:    n.config.slotLength,
		SlotsPerEpoch: n.config.slotsPerEpoch,
		FirstEpoch:    n.config.genesis.Epoch,
	})
	if err != nil {
		return err
	}
	n.clock = clock
	n.producer = newBlockProducer(
		logger,
		n.ledgerState,
		n.mempool,
		n.config.maxBlockTxs,
		n.config.promRegistry,
	)
	n.producer.start(ctx, n.clock.Subscribe())
	n.clock.Start(ctx)
	// Configure REST API
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.Config{
				ListenAddress:   n.config.apiListenAddress,
				ShutdownTimeout: n.config.shutdownTimeout,
			},
			api.NewNodeAdapter(n.ledgerState, n.mempool),
			logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	logger.Info(
		"node started",
		"component", "node",
		"epoch", n.ledgerState.CurrentEpoch(),
		"height", n.ledgerState.Height(),
	)
	return nil
}

// Started is closed once every component is running
func (n *Node) Started() <-chan struct{} {
	return n.started
}

func (n *Node) LedgerState() *ledger.LedgerState {
	return n.ledgerState
}

func (n *Node) Mempool() *mempool.Mempool {
	return n.mempool
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// ApiAddr returns the bound API address, or nil when the API is disabled
func (n *Node) ApiAddr() net.Addr {
	if n.api == nil {
		return nil
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	logger := n.config.logger

	logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	logger.Debug("shutdown phase 1: stopping new work", "component", "node")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if n.cancel != nil {
		n.cancel()
	}
	if n.clock != nil {
		n.clock.Stop()
	}
	if n.producer != nil {
		n.producer.wait()
	}

	// Phase 2: Drain pending work
	logger.Debug("shutdown phase 2: draining mempool", "component", "node")

	if n.mempool != nil {
		if pending := n.mempool.Len(); pending > 0 {
			logger.Info(
				"discarding pending transactions",
				"component", "node",
				"count", pending,
			)
		}
		n.mempool.Stop()
	}

	// Phase 3: Close database
	logger.Debug("shutdown phase 3: closing database", "component", "node")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	logger.Debug("shutdown phase 4: cleanup resources", "component", "node")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
