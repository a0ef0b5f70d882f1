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
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/ledger"
)

func testHolder() (ed25519.PrivateKey, string) {
	seed := blake2b.Sum256([]byte("node-holder"))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv, address.FromPublicKey(priv.Public().(ed25519.PublicKey)).String()
}

func testGenesis() *ledger.Genesis {
	_, holder := testHolder()
	return &ledger.Genesis{
		CandidacyLength: 10,
		Treasury:        5000,
		Balances:        map[string]uint64{holder: 1000},
		Stake:           map[string]uint64{holder: 100},
	}
}

func TestNodeProducesBlocksAndEndsEpochs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	holderKey, holder := testHolder()
	n, err := New(NewConfig(
		WithGenesis(testGenesis()),
		WithPrometheusRegistry(prometheus.NewRegistry()),
		WithEpochSchedule(time.Now(), 20*time.Millisecond, 5),
		WithApiListenAddress("127.0.0.1:0"),
		WithShutdownTimeout(5*time.Second),
	))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(context.Background())
	}()
	select {
	case <-n.Started():
	case err := <-errCh:
		t.Fatalf("node failed to start: %s", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for node start")
	}

	tx := &ledger.Tx{Signer: holder, Nonce: 1, Burn: &ledger.BurnTx{Amount: 100}}
	require.NoError(t, tx.Sign(holderKey))
	txBytes, err := tx.Encode()
	require.NoError(t, err)
	_, err = n.Mempool().AddTransaction(txBytes)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		balance, err := n.LedgerState().Balance(holder)
		return err == nil && balance == 900
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return n.LedgerState().CurrentEpoch() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	// The API serves the live ledger
	addr := n.ApiAddr()
	require.NotNil(t, addr)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(
		fmt.Sprintf("http://%s/api/v0/accounts/%s/balance", addr, holder),
	)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"balance":"900"`)
	client.CloseIdleConnections()

	require.NoError(t, n.Stop())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for node shutdown")
	}
	// Stop is idempotent
	require.NoError(t, n.Stop())
}

func TestNodeStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n, err := New(NewConfig(
		WithGenesis(testGenesis()),
		WithEpochSchedule(time.Now(), 50*time.Millisecond, 5),
	))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	<-n.Started()
	assert.Nil(t, n.ApiAddr())
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for node shutdown")
	}
}

func TestNodeStartFailure(t *testing.T) {
	n, err := New(NewConfig(
		WithGenesis(testGenesis()),
		WithBlobPlugin("nonexistent"),
	))
	require.NoError(t, err)
	err = n.Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
