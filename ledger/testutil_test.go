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
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/multisig"
)

type testKey struct {
	priv ed25519.PrivateKey
	addr string
}

func newTestKey(name string) testKey {
	seed := blake2b.Sum256([]byte(name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return testKey{
		priv: priv,
		addr: address.FromPublicKey(priv.Public().(ed25519.PublicKey)).String(),
	}
}

// testCouncil is a 2-of-3 established account
type testCouncil struct {
	keys    []testKey
	account multisig.Account
	addr    string
}

func newTestCouncil(t *testing.T, name string) testCouncil {
	t.Helper()
	c := testCouncil{account: multisig.Account{Threshold: 2}}
	for _, suffix := range []string{"-1", "-2", "-3"} {
		k := newTestKey(name + suffix)
		c.keys = append(c.keys, k)
		c.account.PublicKeys = append(
			c.account.PublicKeys,
			multisig.HexBytes(k.priv.Public().(ed25519.PublicKey)),
		)
	}
	addr, err := c.account.Address()
	require.NoError(t, err)
	c.addr = addr.String()
	return c
}

// signers returns the first n private keys
func (c testCouncil) signers(n int) []ed25519.PrivateKey {
	ret := make([]ed25519.PrivateKey, 0, n)
	for _, k := range c.keys[:n] {
		ret = append(ret, k.priv)
	}
	return ret
}

type testEnv struct {
	t       *testing.T
	db      *database.Database
	ls      *LedgerState
	power   *StaticVotingPower
	genesis *Genesis
	nonce   uint64
}

const testTreasury = 10_000_000

var (
	testAuthor = newTestKey("author")
	testVoters = []testKey{
		newTestKey("voter-1"),
		newTestKey("voter-2"),
		newTestKey("voter-3"),
		newTestKey("voter-4"),
		newTestKey("voter-5"),
	}
	testRecipient1 = newTestKey("recipient-1")
	testRecipient2 = newTestKey("recipient-2")
	testOutsider   = newTestKey("outsider")
)

// baseGenesis gives five voters 20% of the stake each
func baseGenesis(councils ...testCouncil) *Genesis {
	g := &Genesis{
		CandidacyLength: 10,
		Treasury:        testTreasury,
		Balances: map[string]uint64{
			testAuthor.addr: 1000,
		},
		Stake: map[string]uint64{},
	}
	for _, v := range testVoters {
		g.Stake[v.addr] = 20
	}
	for _, c := range councils {
		g.Accounts = append(g.Accounts, c.account)
	}
	return g
}

func newTestEnv(t *testing.T, g *Genesis) *testEnv {
	t.Helper()
	require.NoError(t, g.Validate())
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	power := g.VotingPower()
	ls, err := NewLedgerState(LedgerStateConfig{
		Database:    db,
		VotingPower: power,
	})
	require.NoError(t, err)
	require.NoError(t, ls.InitGenesis(context.Background(), g))
	return &testEnv{
		t:       t,
		db:      db,
		ls:      ls,
		power:   power,
		genesis: g,
	}
}

// tx builds a transaction signed by keys. Each call gets a fresh nonce so
// identical bodies produce distinct hashes.
func (e *testEnv) tx(
	signer string,
	keys []ed25519.PrivateKey,
	body func(*Tx),
) *Tx {
	e.nonce++
	tx := &Tx{Signer: signer, Nonce: e.nonce}
	body(tx)
	require.NoError(e.t, tx.Sign(keys...))
	return tx
}

func (e *testEnv) apply(txs ...*Tx) []TxResult {
	e.t.Helper()
	results, err := e.ls.ApplyBlock(context.Background(), Block{
		Height: e.ls.Height() + 1,
		Epoch:  e.ls.CurrentEpoch(),
		Txs:    txs,
	})
	require.NoError(e.t, err)
	require.Len(e.t, results, len(txs))
	return results
}

// applyOK applies txs and requires every one of them to succeed
func (e *testEnv) applyOK(txs ...*Tx) {
	e.t.Helper()
	for _, r := range e.apply(txs...) {
		require.NoError(e.t, r.Err, "tx %d (%s)", r.Index, r.Kind)
	}
}

func (e *testEnv) endEpoch() *EpochReport {
	e.t.Helper()
	report, err := e.ls.EndEpoch(context.Background(), e.ls.CurrentEpoch())
	require.NoError(e.t, err)
	return report
}

// advanceTo ends epochs until the ledger is at epoch and returns the reports
func (e *testEnv) advanceTo(epoch uint64) []*EpochReport {
	e.t.Helper()
	var reports []*EpochReport
	for e.ls.CurrentEpoch() < epoch {
		reports = append(reports, e.endEpoch())
	}
	return reports
}

func (e *testEnv) candidacyTx(c testCouncil, spendingCap uint64) *Tx {
	return e.tx(c.addr, c.signers(2), func(tx *Tx) {
		tx.Candidacy = &CandidacyTx{
			Address:        c.addr,
			SpendingCap:    spendingCap,
			AttestationURL: "https://example.org/" + c.addr,
		}
	})
}

func (e *testEnv) implicitCandidacyTx(k testKey, spendingCap uint64) *Tx {
	return e.tx(k.addr, []ed25519.PrivateKey{k.priv}, func(tx *Tx) {
		tx.Candidacy = &CandidacyTx{
			Address:        k.addr,
			SpendingCap:    spendingCap,
			AttestationURL: "https://example.org/" + k.addr,
		}
	})
}

// proposalTx opens voting at start for the minimum period and grace
func (e *testEnv) proposalTx(start uint64) *Tx {
	return e.tx(testAuthor.addr, []ed25519.PrivateKey{testAuthor.priv}, func(tx *Tx) {
		tx.Proposal = &ProposalTx{
			Type:             ProposalTypePgfCouncil,
			Content:          map[string]string{"title": "elect a council"},
			Author:           testAuthor.addr,
			VotingStartEpoch: start,
			VotingEndEpoch:   start + 3,
			GraceEpoch:       start + 9,
		}
	})
}

func (e *testEnv) voteTx(
	voter testKey,
	proposalID uint64,
	kind BallotKind,
	approvals ...CouncilPair,
) *Tx {
	return e.tx(voter.addr, []ed25519.PrivateKey{voter.priv}, func(tx *Tx) {
		tx.Vote = &VoteTx{
			ProposalID: proposalID,
			Voter:      voter.addr,
			Kind:       kind,
			Approvals:  approvals,
		}
	})
}

func (e *testEnv) balance(addr string) uint64 {
	e.t.Helper()
	bal, err := e.ls.Balance(addr)
	require.NoError(e.t, err)
	return bal
}

func (e *testEnv) council() *database.Council {
	e.t.Helper()
	council, err := e.ls.ActiveCouncil()
	require.NoError(e.t, err)
	return council
}

// withTxn runs fn in a read-write transaction that is committed on success
func (e *testEnv) withTxn(fn func(txn *database.Txn) error) error {
	return e.db.Transaction(true).Do(fn)
}
