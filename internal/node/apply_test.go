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
	"crypto/ed25519"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/internal/cbor"
	"github.com/blinklabs-io/pgf/internal/config"
	"github.com/blinklabs-io/pgf/ledger"
)

func testHolder() (ed25519.PrivateKey, string) {
	seed := blake2b.Sum256([]byte("apply-holder"))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv, address.FromPublicKey(priv.Public().(ed25519.PublicKey)).String()
}

func writeGenesis(t *testing.T, dir string) string {
	t.Helper()
	_, holder := testHolder()
	g := ledger.Genesis{
		CandidacyLength: 10,
		Treasury:        5000,
		Balances:        map[string]uint64{holder: 1000},
		Stake:           map[string]uint64{holder: 100},
	}
	buf, err := yaml.Marshal(&g)
	require.NoError(t, err)
	path := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func testBlocks(t *testing.T) BlockFile {
	t.Helper()
	key, holder := testHolder()
	burn := func(nonce, amount uint64) *ledger.Tx {
		tx := &ledger.Tx{
			Signer: holder,
			Nonce:  nonce,
			Burn:   &ledger.BurnTx{Amount: amount},
		}
		require.NoError(t, tx.Sign(key))
		return tx
	}
	return BlockFile{
		Blocks: []ledger.Block{
			{Epoch: 0, Txs: []*ledger.Tx{burn(1, 100)}},
			{Epoch: 2, Txs: []*ledger.Tx{burn(2, 50), burn(3, 5000)}},
		},
	}
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "db")
	cfg.GenesisFile = writeGenesis(t, dir)
	return cfg
}

func TestApplyYamlBlockFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	buf, err := yaml.Marshal(testBlocks(t))
	require.NoError(t, err)
	blockPath := filepath.Join(dir, "blocks.yaml")
	require.NoError(t, os.WriteFile(blockPath, buf, 0o600))

	summary, err := Apply(context.Background(), cfg, discardLogger(), blockPath, true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Blocks)
	assert.Equal(t, 3, summary.Txs)
	// The oversized burn aborts on its own
	assert.Equal(t, 1, summary.FailedTxs)
	assert.Equal(t, 3, summary.EpochsEnded)
	assert.Equal(t, uint64(3), summary.Epoch)
	assert.Equal(t, uint64(2), summary.Height)

	// The database persists, so replaying old epochs fails
	_, err = Apply(context.Background(), cfg, discardLogger(), blockPath, false)
	require.ErrorIs(t, err, ledger.ErrEpochMismatch)
}

func TestApplyCborBlockFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	buf, err := cbor.Encode(testBlocks(t))
	require.NoError(t, err)
	blockPath := filepath.Join(dir, "blocks.cbor")
	require.NoError(t, os.WriteFile(blockPath, buf, 0o600))

	summary, err := Apply(context.Background(), cfg, discardLogger(), blockPath, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Blocks)
	assert.Equal(t, 2, summary.EpochsEnded)
	assert.Equal(t, uint64(2), summary.Epoch)
}

func TestLoadBlockFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadBlockFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("bogus: 1\n"), 0o600))
	_, err = LoadBlockFile(unknown)
	require.Error(t, err)
}

func TestApplyWithoutGenesis(t *testing.T) {
	dir := t.TempDir()
	blockPath := filepath.Join(dir, "blocks.yaml")
	require.NoError(t, os.WriteFile(blockPath, []byte("blocks: []\n"), 0o600))
	cfg := config.DefaultConfig()
	cfg.GenesisFile = ""
	_, err := Apply(context.Background(), cfg, discardLogger(), blockPath, false)
	require.ErrorIs(t, err, errNoGenesis)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
