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

package multisig_test

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(n int) []ed25519.PrivateKey {
	ret := make([]ed25519.PrivateKey, n)
	for i := range ret {
		seed := make([]byte, ed25519.SeedSize)
		seed[0] = byte(i + 1)
		ret[i] = ed25519.NewKeyFromSeed(seed)
	}
	return ret
}

func accountFor(threshold uint32, keys []ed25519.PrivateKey) multisig.Account {
	acct := multisig.Account{Threshold: threshold}
	for _, k := range keys {
		acct.PublicKeys = append(
			acct.PublicKeys,
			multisig.HexBytes(k.Public().(ed25519.PublicKey)),
		)
	}
	return acct
}

func TestVerifyThreshold(t *testing.T) {
	keys := testKeys(3)
	acct := accountFor(2, keys)
	msg := []byte("spend 100")

	one := []multisig.Signature{multisig.Sign(keys[0], msg)}
	require.ErrorIs(t, multisig.Verify(acct, msg, one), multisig.ErrInsufficientSignature)

	two := append(one, multisig.Sign(keys[2], msg))
	require.NoError(t, multisig.Verify(acct, msg, two))

	// The same key twice only counts once
	dup := []multisig.Signature{one[0], one[0]}
	require.ErrorIs(t, multisig.Verify(acct, msg, dup), multisig.ErrInsufficientSignature)
}

func TestVerifyIgnoresForeignAndBadSignatures(t *testing.T) {
	keys := testKeys(3)
	acct := accountFor(2, keys[:2])
	msg := []byte("add recipient")
	sigs := []multisig.Signature{
		multisig.Sign(keys[0], msg),
		multisig.Sign(keys[2], msg),             // not in the account
		multisig.Sign(keys[1], []byte("other")), // wrong message
	}
	require.ErrorIs(t, multisig.Verify(acct, msg, sigs), multisig.ErrInsufficientSignature)
}

func TestAccountValidate(t *testing.T) {
	keys := testKeys(2)
	assert.ErrorIs(t, multisig.Account{}.Validate(), multisig.ErrInvalidAccount)
	assert.ErrorIs(t, accountFor(3, keys).Validate(), multisig.ErrInvalidAccount)
	dup := accountFor(1, []ed25519.PrivateKey{keys[0], keys[0]})
	assert.ErrorIs(t, dup.Validate(), multisig.ErrInvalidAccount)
	assert.NoError(t, accountFor(2, keys).Validate())
}

func TestAccountAddress(t *testing.T) {
	keys := testKeys(2)
	implicit := multisig.ImplicitAccount(keys[0].Public().(ed25519.PublicKey))
	addr, err := implicit.Address()
	require.NoError(t, err)
	assert.Equal(t, address.FromPublicKey(keys[0].Public().(ed25519.PublicKey)), addr)

	multi, err := accountFor(2, keys).Address()
	require.NoError(t, err)
	kind, err := multi.Kind()
	require.NoError(t, err)
	assert.Equal(t, address.KindEstablished, kind)
}

func TestHexBytesJSON(t *testing.T) {
	sig := multisig.Signature{
		PublicKey: multisig.HexBytes{0xde, 0xad},
		Signature: multisig.HexBytes{0xbe, 0xef},
	}
	data, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"public_key":"dead","signature":"beef"}`, string(data))
	var decoded multisig.Signature
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sig.PublicKey, decoded.PublicKey)
	assert.Equal(t, sig.Signature, decoded.Signature)
}
