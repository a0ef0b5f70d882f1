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
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/ledger"
	"github.com/blinklabs-io/pgf/mempool"
)

func newTestProducer(t *testing.T) (*blockProducer, *mempool.Mempool) {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	g := testGenesis()
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database:    db,
		VotingPower: g.VotingPower(),
	})
	require.NoError(t, err)
	require.NoError(t, ls.InitGenesis(context.Background(), g))
	mp := mempool.NewMempool(mempool.MempoolConfig{
		PromRegistry: prometheus.NewRegistry(),
		Validator:    ls,
	})
	t.Cleanup(mp.Stop)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return newBlockProducer(logger, ls, mp, 10, prometheus.NewRegistry()), mp
}

func addBurn(t *testing.T, mp *mempool.Mempool, nonce uint64) string {
	t.Helper()
	holderKey, holder := testHolder()
	tx := &ledger.Tx{Signer: holder, Nonce: nonce, Burn: &ledger.BurnTx{Amount: 10}}
	require.NoError(t, tx.Sign(holderKey))
	txBytes, err := tx.Encode()
	require.NoError(t, err)
	hash, err := mp.AddTransaction(txBytes)
	require.NoError(t, err)
	return hash
}

func TestProduceBlock(t *testing.T) {
	p, mp := newTestProducer(t)
	addBurn(t, mp, 1)
	addBurn(t, mp, 2)
	require.NoError(t, p.produceBlock(context.Background(), 0))
	assert.Zero(t, mp.Len())
	assert.Equal(t, uint64(1), p.ledgerState.Height())
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.blocksProduced), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.metrics.txsIncluded), 0)
	_, holder := testHolder()
	balance, err := p.ledgerState.Balance(holder)
	require.NoError(t, err)
	assert.Equal(t, uint64(980), balance)
}

func TestProduceBlockFailureRequeuesTransactions(t *testing.T) {
	p, mp := newTestProducer(t)
	first := addBurn(t, mp, 1)
	second := addBurn(t, mp, 2)

	// The ledger is still in epoch 0, so a block for epoch 1 is refused
	err := p.produceBlock(context.Background(), 1)
	require.ErrorIs(t, err, ledger.ErrEpochMismatch)
	txs := mp.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, first, txs[0].Hash)
	assert.Equal(t, second, txs[1].Hash)
	assert.Zero(t, p.ledgerState.Height())
	assert.Zero(t, testutil.ToFloat64(p.metrics.blocksProduced))

	require.NoError(t, p.produceBlock(context.Background(), 0))
	assert.Zero(t, mp.Len())
}
