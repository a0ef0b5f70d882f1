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

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/pgf/api"
	"github.com/blinklabs-io/pgf/ledger"
)

func TestGenerateKeyFiles(t *testing.T) {
	dir := t.TempDir()
	skey := filepath.Join(dir, "key.skey")
	vkey := filepath.Join(dir, "key.vkey")
	addr, err := generateKeyFiles(skey, vkey)
	require.NoError(t, err)
	require.NoError(t, addr.Validate())
	if runtime.GOOS != "windows" {
		info, err := os.Stat(skey)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
	_, err = os.Stat(vkey)
	require.NoError(t, err)

	// Existing key files are never overwritten
	_, err = generateKeyFiles(skey, "")
	require.Error(t, err)
}

func TestSignTx(t *testing.T) {
	dir := t.TempDir()
	skey := filepath.Join(dir, "key.skey")
	addr, err := generateKeyFiles(skey, "")
	require.NoError(t, err)

	tx, err := signTx([]byte("nonce: 7\nburn:\n  amount: 10\n"), []string{skey})
	require.NoError(t, err)
	assert.Equal(t, addr.String(), tx.Signer)
	assert.Equal(t, ledger.TxKindBurn, tx.Kind())
	require.Len(t, tx.Signatures, 1)

	// Round trip through the wire encoding
	txBytes, err := tx.Encode()
	require.NoError(t, err)
	decoded, err := ledger.DecodeTx(txBytes)
	require.NoError(t, err)
	assert.Equal(t, tx.HashHex(), decoded.HashHex())

	_, err = signTx([]byte("nonce: 1\n"), []string{skey})
	require.ErrorIs(t, err, ledger.ErrInvalidTx)
	_, err = signTx([]byte("bogus: 1\n"), []string{skey})
	require.Error(t, err)
	_, err = signTx([]byte("burn:\n  amount: 1\n"), nil)
	require.Error(t, err)
}

func TestReadTxFile(t *testing.T) {
	dir := t.TempDir()
	raw := []byte{0xa2, 0x01, 0x02}
	binPath := filepath.Join(dir, "tx.cbor")
	require.NoError(t, os.WriteFile(binPath, raw, 0o600))
	got, err := readTxFile(binPath)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	hexPath := filepath.Join(dir, "tx.hex")
	require.NoError(t, os.WriteFile(hexPath, []byte(hex.EncodeToString(raw)+"\n"), 0o600))
	got, err = readTxFile(hexPath)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestAPIClient(t *testing.T) {
	var submitted []byte
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v0/treasury", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(api.TreasuryResponse{Balance: "42"}) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/v0/council", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{ //nolint:errcheck
			StatusCode: http.StatusNotFound,
			Error:      "Not Found",
			Message:    "no active council",
		})
	})
	mux.HandleFunc("POST /api/v0/tx/submit", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/cbor", r.Header.Get("Content-Type"))
		submitted, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.SubmitTxResponse{Hash: "beef"}) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newAPIClient(srv.URL + "/")
	var treasury api.TreasuryResponse
	require.NoError(t, client.get("/api/v0/treasury", nil, &treasury))
	assert.Equal(t, "42", treasury.Balance)

	var council api.CouncilResponse
	err := client.get("/api/v0/council", nil, &council)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active council")

	hash, err := client.submit([]byte{0xa0})
	require.NoError(t, err)
	assert.Equal(t, "beef", hash)
	assert.Equal(t, []byte{0xa0}, submitted)

	var out bytes.Buffer
	require.NoError(t, printJSON(&out, &treasury))
	assert.Contains(t, out.String(), `"balance": "42"`)
}

func TestQueryTargetPaths(t *testing.T) {
	paths := map[string]string{}
	for _, target := range queryTargets {
		var args []string
		switch target.name {
		case "proposals", "ballots":
			args = []string{"3"}
		case "balance":
			args = []string{"tpgf1abc"}
		}
		path, err := target.path(args)
		require.NoError(t, err, target.name)
		paths[target.name] = path
	}
	assert.Equal(t, "/api/v0/proposals/3", paths["proposals"])
	assert.Equal(t, "/api/v0/proposals/3/ballots", paths["ballots"])
	assert.Equal(t, "/api/v0/accounts/tpgf1abc/balance", paths["balance"])
	assert.Equal(t, "/api/v0/treasury", paths["treasury"])

	for _, target := range queryTargets {
		if target.name == "ballots" {
			_, err := target.path([]string{"x"})
			require.Error(t, err)
		}
	}
}
