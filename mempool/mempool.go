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

package mempool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/pgf/event"
	"github.com/blinklabs-io/pgf/ledger"
)

const (
	AddTransactionEventType    event.EventType = "mempool.add_tx"
	RemoveTransactionEventType event.EventType = "mempool.remove_tx"
)

const DefaultCapacity = 1024 * 1024

var ErrMempoolStopped = errors.New("mempool is stopped")

type AddTransactionEvent struct {
	Hash string
	Body []byte
}

type RemoveTransactionEvent struct {
	Hash string
}

type MempoolTransaction struct {
	LastSeen time.Time
	Tx       *ledger.Tx
	Hash     string
	Cbor     []byte
}

// TxValidator defines the transaction checks needed by the mempool
type TxValidator interface {
	ValidateTx(tx *ledger.Tx) error
}

type MempoolConfig struct {
	PromRegistry    prometheus.Registerer
	Validator       TxValidator
	Logger          *slog.Logger
	EventBus        *event.EventBus
	MempoolCapacity int64
}

// Mempool holds submitted transactions in arrival order until the block
// producer drains them
type Mempool struct {
	config  MempoolConfig
	metrics struct {
		txsProcessedNum prometheus.Counter
		txsRejectedNum  prometheus.Counter
		txsInMempool    prometheus.Gauge
		mempoolBytes    prometheus.Gauge
	}
	validator    TxValidator
	logger       *slog.Logger
	eventBus     *event.EventBus
	transactions []*MempoolTransaction
	currentSize  int
	done         chan struct{}
	doneOnce     sync.Once
	wg           sync.WaitGroup
	sync.RWMutex
}

type MempoolFullError struct {
	CurrentSize int
	TxSize      int
	Capacity    int64
}

func (e *MempoolFullError) Error() string {
	return fmt.Sprintf(
		"mempool full: current size=%d bytes, tx size=%d bytes, capacity=%d bytes",
		e.CurrentSize,
		e.TxSize,
		e.Capacity,
	)
}

func NewMempool(config MempoolConfig) *Mempool {
	if config.MempoolCapacity <= 0 {
		config.MempoolCapacity = DefaultCapacity
	}
	m := &Mempool{
		eventBus:  config.EventBus,
		validator: config.Validator,
		config:    config,
		done:      make(chan struct{}),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	m.metrics.txsProcessedNum = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgf_mempool_txs_processed_total",
			Help: "total transactions accepted into the mempool",
		},
	)
	m.metrics.txsRejectedNum = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "pgf_mempool_txs_rejected_total",
			Help: "total transactions rejected on submission or re-validation",
		},
	)
	m.metrics.txsInMempool = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_mempool_txs",
		Help: "current count of mempool transactions",
	})
	m.metrics.mempoolBytes = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "pgf_mempool_bytes",
		Help: "current size of mempool transactions in bytes",
	})
	// Re-validate pending transactions whenever an epoch ends
	if m.eventBus != nil && m.validator != nil {
		subId, evtCh := m.eventBus.Subscribe(ledger.EpochEndedEventType)
		m.wg.Add(1)
		go m.processLedgerEvents(subId, evtCh)
	}
	return m
}

// Stop ends the re-validation goroutine. Further submissions fail.
func (m *Mempool) Stop() {
	m.doneOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Mempool) processLedgerEvents(
	subId event.EventSubscriberId,
	evtCh <-chan event.Event,
) {
	defer m.wg.Done()
	defer m.eventBus.Unsubscribe(ledger.EpochEndedEventType, subId)
	for {
		select {
		case <-m.done:
			return
		case _, ok := <-evtCh:
			if !ok {
				return
			}
			m.revalidate()
		}
	}
}

func (m *Mempool) revalidate() {
	m.Lock()
	defer m.Unlock()
	// We iterate backward to avoid issues with shifting indexes when deleting
	for i := len(m.transactions) - 1; i >= 0; i-- {
		tx := m.transactions[i]
		if err := m.validator.ValidateTx(tx.Tx); err != nil {
			m.removeTransactionByIndex(i)
			m.metrics.txsRejectedNum.Inc()
			m.logger.Debug(
				"removed transaction after re-validation failure",
				"component", "mempool",
				"tx_hash", tx.Hash,
				"error", err,
			)
		}
	}
}

// AddTransaction decodes, validates and queues a CBOR-encoded transaction.
// It returns the transaction hash. Re-submitting a queued transaction only
// refreshes its last seen time.
func (m *Mempool) AddTransaction(txBytes []byte) (string, error) {
	select {
	case <-m.done:
		return "", ErrMempoolStopped
	default:
	}
	tmpTx, err := ledger.DecodeTx(txBytes)
	if err != nil {
		m.metrics.txsRejectedNum.Inc()
		return "", err
	}
	if m.validator != nil {
		if err := m.validator.ValidateTx(tmpTx); err != nil {
			m.metrics.txsRejectedNum.Inc()
			return "", err
		}
	} else if err := tmpTx.Validate(); err != nil {
		m.metrics.txsRejectedNum.Inc()
		return "", err
	}
	tx := MempoolTransaction{
		Hash:     tmpTx.HashHex(),
		Tx:       tmpTx,
		Cbor:     slices.Clone(txBytes),
		LastSeen: time.Now(),
	}
	m.Lock()
	defer m.Unlock()
	// Update last seen for existing TX
	if existingTx := m.getTransaction(tx.Hash); existingTx != nil {
		existingTx.LastSeen = tx.LastSeen
		m.logger.Debug(
			"updated last seen for transaction",
			"component", "mempool",
			"tx_hash", tx.Hash,
		)
		return tx.Hash, nil
	}
	// Enforce mempool capacity
	if int64(m.currentSize+len(tx.Cbor)) > m.config.MempoolCapacity {
		m.metrics.txsRejectedNum.Inc()
		return "", &MempoolFullError{
			CurrentSize: m.currentSize,
			TxSize:      len(tx.Cbor),
			Capacity:    m.config.MempoolCapacity,
		}
	}
	m.transactions = append(m.transactions, &tx)
	m.currentSize += len(tx.Cbor)
	m.logger.Debug(
		"added transaction",
		"component", "mempool",
		"tx_hash", tx.Hash,
		"kind", string(tmpTx.Kind()),
	)
	m.metrics.txsProcessedNum.Inc()
	m.metrics.txsInMempool.Inc()
	m.metrics.mempoolBytes.Add(float64(len(tx.Cbor)))
	m.publish(
		AddTransactionEventType,
		AddTransactionEvent{
			Hash: tx.Hash,
			Body: tx.Cbor,
		},
	)
	return tx.Hash, nil
}

func (m *Mempool) GetTransaction(txHash string) (MempoolTransaction, bool) {
	m.RLock()
	defer m.RUnlock()
	ret := m.getTransaction(txHash)
	if ret == nil {
		return MempoolTransaction{}, false
	}
	return *ret, true
}

func (m *Mempool) Transactions() []MempoolTransaction {
	m.RLock()
	defer m.RUnlock()
	ret := make([]MempoolTransaction, len(m.transactions))
	for i := range m.transactions {
		ret[i] = *m.transactions[i]
	}
	return ret
}

func (m *Mempool) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.transactions)
}

// Drain removes and returns up to maxTxs transactions in arrival order. A
// non-positive maxTxs drains everything.
func (m *Mempool) Drain(maxTxs int) []MempoolTransaction {
	m.Lock()
	defer m.Unlock()
	count := len(m.transactions)
	if maxTxs > 0 {
		count = min(count, maxTxs)
	}
	ret := make([]MempoolTransaction, 0, count)
	for range count {
		ret = append(ret, *m.transactions[0])
		m.removeTransactionByIndex(0)
	}
	return ret
}

// Requeue puts drained transactions back at the front of the pool in their
// original order. Transactions that are already queued are skipped. It
// returns the hashes that could not be requeued because the pool is
// stopped or full.
func (m *Mempool) Requeue(txs []MempoolTransaction) []string {
	var dropped []string
	select {
	case <-m.done:
		for _, tx := range txs {
			dropped = append(dropped, tx.Hash)
		}
		return dropped
	default:
	}
	m.Lock()
	defer m.Unlock()
	requeued := make([]*MempoolTransaction, 0, len(txs))
	for _, tx := range txs {
		if m.getTransaction(tx.Hash) != nil {
			continue
		}
		if int64(m.currentSize+len(tx.Cbor)) > m.config.MempoolCapacity {
			dropped = append(dropped, tx.Hash)
			continue
		}
		requeued = append(requeued, &tx)
		m.currentSize += len(tx.Cbor)
		m.metrics.txsInMempool.Inc()
		m.metrics.mempoolBytes.Add(float64(len(tx.Cbor)))
	}
	m.transactions = append(requeued, m.transactions...)
	if len(requeued) > 0 {
		m.logger.Debug(
			"requeued transactions",
			"component", "mempool",
			"count", len(requeued),
		)
	}
	return dropped
}

func (m *Mempool) getTransaction(txHash string) *MempoolTransaction {
	for _, tx := range m.transactions {
		if tx.Hash == txHash {
			return tx
		}
	}
	return nil
}

func (m *Mempool) RemoveTransaction(txHash string) {
	m.Lock()
	defer m.Unlock()
	if m.removeTransaction(txHash) {
		m.logger.Debug(
			"removed transaction",
			"component", "mempool",
			"tx_hash", txHash,
		)
	}
}

func (m *Mempool) removeTransaction(txHash string) bool {
	for txIdx, tx := range m.transactions {
		if tx.Hash == txHash {
			return m.removeTransactionByIndex(txIdx)
		}
	}
	return false
}

func (m *Mempool) removeTransactionByIndex(txIdx int) bool {
	if txIdx >= len(m.transactions) {
		return false
	}
	tx := m.transactions[txIdx]
	m.transactions = slices.Delete(
		m.transactions,
		txIdx,
		txIdx+1,
	)
	m.currentSize -= len(tx.Cbor)
	m.metrics.txsInMempool.Dec()
	m.metrics.mempoolBytes.Sub(float64(len(tx.Cbor)))
	m.publish(
		RemoveTransactionEventType,
		RemoveTransactionEvent{
			Hash: tx.Hash,
		},
	)
	return true
}

func (m *Mempool) publish(eventType event.EventType, data any) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
