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

package ledger

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
)

func TestTransferAndBurn(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	env.applyOK(
		env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 300}
		}),
		env.tx(council.addr, council.signers(3), func(tx *Tx) {
			tx.Burn = &BurnTx{Amount: 200}
		}),
	)
	assert.Equal(t, uint64(300), env.balance(testOutsider.addr))
	assert.Equal(t, uint64(testTreasury-500), env.balance(address.Pgf.String()))
	assert.Equal(t, uint64(500), env.council().SpentAmount)
}

func TestSpendCheckOrder(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	transfer := func(signer string, keys []ed25519.PrivateKey, amount uint64) *Tx {
		return env.tx(signer, keys, func(tx *Tx) {
			tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: amount}
		})
	}
	results := env.apply(
		// Not the council
		transfer(testOutsider.addr, []ed25519.PrivateKey{testOutsider.priv}, 10),
		// Below the signature threshold, also invalid amount
		transfer(council.addr, council.signers(1), 0),
		// Signatures by keys outside the account do not count
		transfer(council.addr, []ed25519.PrivateKey{council.keys[0].priv, testOutsider.priv}, 10),
		// Authorized, zero amount
		transfer(council.addr, council.signers(2), 0),
		// Authorized, over the cap
		transfer(council.addr, council.signers(2), 1001),
	)
	assert.ErrorIs(t, results[0].Err, ErrAuthorization)
	assert.ErrorIs(t, results[1].Err, ErrAuthorization)
	assert.ErrorIs(t, results[2].Err, ErrAuthorization)
	assert.ErrorIs(t, results[3].Err, ErrValidation)
	var capErr *CapExceededError
	require.ErrorAs(t, results[4].Err, &capErr)
	assert.Equal(t, uint64(1000), capErr.SpendingCap)
	assert.Equal(t, uint64(1001), capErr.Amount)
}

func TestSpendBeforeActivation(t *testing.T) {
	council := newTestCouncil(t, "council")
	g := baseGenesis(council)
	g.Council = &GenesisCouncil{Address: council.addr, SpendingCap: 1000, ActivationEpoch: 2}
	env := newTestEnv(t, g)
	spend := func() *Tx {
		return env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 10}
		})
	}
	results := env.apply(spend())
	assert.ErrorIs(t, results[0].Err, ErrAuthorization)
	env.advanceTo(2)
	env.applyOK(spend())
	assert.Equal(t, uint64(10), env.balance(testOutsider.addr))
}

func TestSpentNeverExceedsCap(t *testing.T) {
	env, council := genesisWithCouncil(t, 150)
	for i := range 6 {
		results := env.apply(env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 40}
		}))
		c := env.council()
		assert.LessOrEqual(t, c.SpentAmount, c.SpendingCap)
		if i < 3 {
			assert.NoError(t, results[0].Err)
		} else {
			assert.ErrorIs(t, results[0].Err, ErrCapExceeded)
		}
	}
	assert.Equal(t, uint64(120), env.council().SpentAmount)
}

func TestSpendAllowanceInsufficientTreasury(t *testing.T) {
	env := newTestEnv(t, baseGenesis())
	council := &database.Council{
		Address:     newTestKey("x").addr,
		SpendingCap: testTreasury * 2,
	}
	err := env.withTxn(func(txn *database.Txn) error {
		_, err := env.ls.treasury.spendAllowance(txn, council, testTreasury+1, testOutsider.addr)
		return err
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, council.SpentAmount)
}

func TestTransferToInternalAddressRejected(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	results := env.apply(env.tx(council.addr, council.signers(2), func(tx *Tx) {
		tx.Transfer = &TransferTx{Target: address.Governance.String(), Amount: 10}
	}))
	assert.ErrorIs(t, results[0].Err, ErrValidation)
}
