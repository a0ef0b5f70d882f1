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
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/pgf/ledger"
	"github.com/blinklabs-io/pgf/mempool"
)

// blockProducer turns epoch clock ticks into ledger progress. On every
// slot it first finalizes any epochs the clock has moved past and then
// applies the pending mempool transactions as one block.
type blockProducer struct {
	logger      *slog.Logger
	ledgerState *ledger.LedgerState
	mempool     *mempool.Mempool
	maxTxs      int
	metrics     struct {
		blocksProduced prometheus.Counter
		txsIncluded    prometheus.Counter
		txsFailed      prometheus.Counter
		epochsEnded    prometheus.Counter
	}
	wg sync.WaitGroup
}

func newBlockProducer(
	logger *slog.Logger,
	ls *ledger.LedgerState,
	mp *mempool.Mempool,
	maxTxs int,
	promRegistry prometheus.Registerer,
) *blockProducer {
	p := &blockProducer{
		logger:      logger.With("component", "producer"),
		ledgerState: ls,
		mempool:     mp,
		maxTxs:      maxTxs,
	}
	promautoFactory := promauto.With(promRegistry)
	p.metrics.blocksProduced = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgf_producer_blocks_total",
			Help: "total blocks applied by the producer",
		},
	)
	p.metrics.txsIncluded = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgf_producer_txs_included_total",
			Help: "total transactions included in produced blocks",
		},
	)
	p.metrics.txsFailed = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgf_producer_txs_failed_total",
			Help: "total included transactions that aborted",
		},
	)
	p.metrics.epochsEnded = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgf_producer_epochs_ended_total",
			Help: "total epochs finalized by the producer",
		},
	)
	return p
}

// start consumes ticks until the channel closes or ctx is done
func (p *blockProducer) start(ctx context.Context, ticks <-chan ledger.SlotTick) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-ticks:
				if !ok {
					return
				}
				if err := p.handleTick(ctx, tick); err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					p.logger.Error(
						"failed to process slot",
						"slot", tick.Slot,
						"epoch", tick.Epoch,
						"error", err,
					)
				}
			}
		}
	}()
}

func (p *blockProducer) wait() {
	p.wg.Wait()
}

func (p *blockProducer) handleTick(ctx context.Context, tick ledger.SlotTick) error {
	if err := p.catchUpEpochs(ctx, tick.Epoch); err != nil {
		return err
	}
	epoch := p.ledgerState.CurrentEpoch()
	if epoch > tick.Epoch {
		// The ledger was finalized past the clock, e.g. after a restart
		// with a different schedule
		p.logger.Warn(
			"ledger epoch is ahead of the clock, not producing",
			"ledger_epoch", epoch,
			"clock_epoch", tick.Epoch,
		)
		return nil
	}
	return p.produceBlock(ctx, epoch)
}

// catchUpEpochs ends every ledger epoch before clockEpoch
func (p *blockProducer) catchUpEpochs(ctx context.Context, clockEpoch uint64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		epoch := p.ledgerState.CurrentEpoch()
		if epoch >= clockEpoch {
			return nil
		}
		report, err := p.ledgerState.EndEpoch(ctx, epoch)
		if err != nil {
			return err
		}
		p.metrics.epochsEnded.Inc()
		p.logger.Info(
			"ended epoch",
			"epoch", report.Epoch,
			"resolutions", len(report.Resolutions),
		)
	}
}

func (p *blockProducer) produceBlock(ctx context.Context, epoch uint64) error {
	pending := p.mempool.Drain(p.maxTxs)
	if len(pending) == 0 {
		return nil
	}
	block := ledger.Block{
		Height: p.ledgerState.Height() + 1,
		Epoch:  epoch,
		Txs:    make([]*ledger.Tx, 0, len(pending)),
	}
	for _, mtx := range pending {
		block.Txs = append(block.Txs, mtx.Tx)
	}
	results, err := p.ledgerState.ApplyBlock(ctx, block)
	if err != nil {
		dropped := p.mempool.Requeue(pending)
		if len(dropped) > 0 {
			p.logger.Warn(
				"dropped transactions from failed block",
				"height", block.Height,
				"tx_hashes", dropped,
				"error", err,
			)
		}
		return err
	}
	p.metrics.blocksProduced.Inc()
	p.metrics.txsIncluded.Add(float64(len(results)))
	for _, result := range results {
		if result.Success() {
			continue
		}
		p.metrics.txsFailed.Inc()
		p.logger.Debug(
			"transaction aborted",
			"height", block.Height,
			"tx_hash", pending[result.Index].Hash,
			"kind", string(result.Kind),
			"error", result.Err,
		)
	}
	p.logger.Debug(
		"produced block",
		"height", block.Height,
		"epoch", block.Epoch,
		"txs", len(block.Txs),
	)
	return nil
}
