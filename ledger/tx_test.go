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
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/multisig"
)

func TestTxKind(t *testing.T) {
	testDefs := []struct {
		tx   Tx
		kind TxKind
	}{
		{Tx{Candidacy: &CandidacyTx{}}, TxKindCandidacy},
		{Tx{Proposal: &ProposalTx{}}, TxKindProposal},
		{Tx{Vote: &VoteTx{}}, TxKindVote},
		{Tx{Transfer: &TransferTx{}}, TxKindTransfer},
		{Tx{Burn: &BurnTx{}}, TxKindBurn},
		{Tx{AddRecipient: &AddRecipientTx{}}, TxKindAddRecipient},
		{Tx{RemoveRecipient: &RemoveRecipientTx{}}, TxKindRemoveRecipient},
		{Tx{}, ""},
		{Tx{Burn: &BurnTx{}, Vote: &VoteTx{}}, ""},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.kind, testDef.tx.Kind())
	}
}

func TestTxValidate(t *testing.T) {
	tx := &Tx{Signer: testAuthor.addr, Burn: &BurnTx{Amount: 1}}
	require.NoError(t, tx.Validate())

	tx.Vote = &VoteTx{}
	assert.ErrorIs(t, tx.Validate(), ErrInvalidTx)

	tx = &Tx{Signer: "not-an-address", Burn: &BurnTx{Amount: 1}}
	assert.ErrorIs(t, tx.Validate(), ErrInvalidTx)
}

func TestTxHashExcludesSignatures(t *testing.T) {
	tx := &Tx{
		Signer:   testAuthor.addr,
		Nonce:    1,
		Transfer: &TransferTx{Target: testOutsider.addr, Amount: 5},
	}
	unsigned, err := tx.Hash()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(testAuthor.priv))
	signed, err := tx.Hash()
	require.NoError(t, err)
	assert.Equal(t, unsigned, signed)
	assert.Len(t, signed, 32)

	other := *tx
	other.Nonce = 2
	otherHash, err := other.Hash()
	require.NoError(t, err)
	assert.False(t, bytes.Equal(signed, otherHash))
}

func TestTxSignVerify(t *testing.T) {
	council := newTestCouncil(t, "council")
	tx := &Tx{
		Signer: council.addr,
		Burn:   &BurnTx{Amount: 10},
	}
	require.NoError(t, tx.Sign(council.signers(2)...))
	msg, err := tx.SigningBytes()
	require.NoError(t, err)
	require.NoError(t, multisig.Verify(council.account, msg, tx.Signatures))

	// Changing the body invalidates the signatures
	tx.Burn.Amount = 11
	msg, err = tx.SigningBytes()
	require.NoError(t, err)
	assert.ErrorIs(
		t,
		multisig.Verify(council.account, msg, tx.Signatures),
		multisig.ErrInsufficientSignature,
	)
}

func TestTxEncodeDecode(t *testing.T) {
	tx := &Tx{
		Signer: testVoters[0].addr,
		Nonce:  42,
		Vote: &VoteTx{
			ProposalID: 3,
			Voter:      testVoters[0].addr,
			Kind:       BallotApprove,
			Approvals: []CouncilPair{
				{Address: testOutsider.addr, SpendingCap: 1000},
			},
		},
	}
	require.NoError(t, tx.Sign(testVoters[0].priv))
	data, err := tx.Encode()
	require.NoError(t, err)
	decoded, err := DecodeTx(data)
	require.NoError(t, err)
	assert.Equal(t, tx, decoded)
	assert.Equal(t, tx.HashHex(), decoded.HashHex())
}

func TestDecodeTxGarbage(t *testing.T) {
	_, err := DecodeTx([]byte{0xff, 0x00, 0x13})
	assert.ErrorIs(t, err, ErrInvalidTx)
}

func TestAccountVerifier(t *testing.T) {
	council := newTestCouncil(t, "council")
	env := newTestEnv(t, baseGenesis(council))
	verifier := NewAccountVerifier(env.db)
	msg := []byte("message")
	sign := func(keys ...ed25519.PrivateKey) []multisig.Signature {
		var ret []multisig.Signature
		for _, k := range keys {
			ret = append(ret, multisig.Sign(k, msg))
		}
		return ret
	}
	testDefs := []struct {
		name    string
		signer  string
		sigs    []multisig.Signature
		wantErr bool
	}{
		{"implicit", testAuthor.addr, sign(testAuthor.priv), false},
		{"implicit wrong key", testAuthor.addr, sign(testOutsider.priv), true},
		{"implicit unsigned", testAuthor.addr, nil, true},
		{"established threshold", council.addr, sign(council.signers(2)...), false},
		{"established below threshold", council.addr, sign(council.signers(1)...), true},
		{"established duplicate key", council.addr, sign(council.keys[0].priv, council.keys[0].priv), true},
		{"internal", address.Pgf.String(), sign(testAuthor.priv), true},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := verifier.VerifySignatures(nil, testDef.signer, msg, testDef.sigs)
			if testDef.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBalanceLedger(t *testing.T) {
	env := newTestEnv(t, baseGenesis())
	tokens := NewBalanceLedger(env.db)
	require.NoError(t, env.withTxn(func(txn *database.Txn) error {
		return tokens.Transfer(txn, testAuthor.addr, testOutsider.addr, 400)
	}))
	assert.Equal(t, uint64(600), env.balance(testAuthor.addr))
	assert.Equal(t, uint64(400), env.balance(testOutsider.addr))

	err := env.withTxn(func(txn *database.Txn) error {
		return tokens.Debit(txn, testOutsider.addr, 401)
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(400), env.balance(testOutsider.addr))

	err = env.withTxn(func(txn *database.Txn) error {
		if err := tokens.Credit(txn, testOutsider.addr, ^uint64(0)); err != nil {
			return err
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrBalanceOverflow)
}
