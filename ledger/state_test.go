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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/event"
)

// Four of five equal voters take part. The ES approval names a cap that
// does not match its candidacy and is dropped, so BC wins with 60%.
func TestElectionDropsMismatchedCapApproval(t *testing.T) {
	bc := newTestCouncil(t, "bc")
	es := newTestKey("es")
	env := newTestEnv(t, baseGenesis(bc))

	env.applyOK(
		env.candidacyTx(bc, 1_000_000),
		env.implicitCandidacyTx(es, 500_000),
		env.proposalTx(1),
	)
	assert.Equal(t, uint64(500), env.balance(testAuthor.addr))
	assert.Equal(t, uint64(500), env.balance(address.Governance.String()))

	env.advanceTo(1)
	bcPair := CouncilPair{Address: bc.addr, SpendingCap: 1_000_000}
	esPair := CouncilPair{Address: es.addr, SpendingCap: 1_000_000}
	env.applyOK(
		env.voteTx(testVoters[0], 1, BallotApprove, bcPair),
		env.voteTx(testVoters[1], 1, BallotApprove, bcPair),
		env.voteTx(testVoters[2], 1, BallotReject),
		env.voteTx(testVoters[3], 1, BallotApprove, esPair, bcPair),
	)

	reports := env.advanceTo(5)
	last := reports[len(reports)-1]
	require.Len(t, last.Resolutions, 1)
	res := last.Resolutions[0]
	assert.True(t, res.Tally.Passed)
	assert.Equal(t, uint64(100), res.Tally.TotalPower)
	assert.Equal(t, uint64(80), res.Tally.ParticipationPower)
	assert.Equal(t, uint64(60), res.Tally.YayPower)
	require.NotNil(t, res.Election.Elected)
	assert.Equal(t, uint64(60), res.Election.Weight)

	council := env.council()
	require.NotNil(t, council)
	assert.Equal(t, bc.addr, council.Address)
	assert.Equal(t, uint64(1_000_000), council.SpendingCap)
	assert.Zero(t, council.SpentAmount)
	assert.Equal(t, uint64(10), council.ActivationEpoch)

	// Passed proposals return the deposit
	assert.Equal(t, uint64(1000), env.balance(testAuthor.addr))
	assert.Zero(t, env.balance(address.Governance.String()))

	proposal, err := env.ls.Proposal(1)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, models.ProposalStatusPassed, proposal.Status)
	require.NotNil(t, proposal.ResolvedEpoch)
	assert.Equal(t, uint64(4), *proposal.ResolvedEpoch)
	assert.Equal(t, ProposalStatusPassed, ProposalStatusAt(proposal, 5))

	terms, err := env.ls.CouncilTerms()
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, bc.addr, terms[0].Address)
	assert.True(t, terms[0].Active())
}

// Participation below one third rejects the proposal, revokes the sitting
// council and elects nobody
func TestLowParticipationRevokesCouncil(t *testing.T) {
	sitting := newTestCouncil(t, "sitting")
	bc := newTestCouncil(t, "bc")
	g := baseGenesis(sitting, bc)
	g.Council = &GenesisCouncil{Address: sitting.addr, SpendingCap: 5000}
	env := newTestEnv(t, g)

	env.applyOK(
		env.candidacyTx(bc, 1_000_000),
		env.proposalTx(1),
	)
	env.advanceTo(1)
	env.applyOK(env.voteTx(
		testVoters[0],
		1,
		BallotApprove,
		CouncilPair{Address: bc.addr, SpendingCap: 1_000_000},
	))
	reports := env.advanceTo(5)
	res := reports[len(reports)-1].Resolutions[0]
	assert.False(t, res.Tally.Passed)
	assert.Equal(t, uint64(20), res.Tally.ParticipationPower)
	assert.Nil(t, res.Election.Elected)
	require.NotNil(t, res.Election.Revoked)
	assert.Equal(t, sitting.addr, res.Election.Revoked.Address)

	assert.Nil(t, env.council())
	// Rejected proposals forfeit the deposit to the treasury
	assert.Equal(t, uint64(testTreasury+500), env.balance(address.Pgf.String()))
	assert.Equal(t, uint64(500), env.balance(testAuthor.addr))

	terms, err := env.ls.CouncilTerms()
	require.NoError(t, err)
	require.Len(t, terms, 1)
	require.NotNil(t, terms[0].RevokedEpoch)
	assert.Equal(t, uint64(4), *terms[0].RevokedEpoch)

	// The revoked council can no longer spend
	results := env.apply(env.tx(sitting.addr, sitting.signers(2), func(tx *Tx) {
		tx.Transfer = &TransferTx{Target: testRecipient1.addr, Amount: 10}
	}))
	assert.ErrorIs(t, results[0].Err, ErrAuthorization)
}

func genesisWithCouncil(t *testing.T, spendingCap uint64) (*testEnv, testCouncil) {
	t.Helper()
	council := newTestCouncil(t, "council")
	g := baseGenesis(council)
	g.Council = &GenesisCouncil{Address: council.addr, SpendingCap: spendingCap}
	return newTestEnv(t, g), council
}

// A recipient whose payout exceeds the remaining allowance is skipped, the
// deficiency is recorded and the recipient stays registered
func TestSettlementSkipsRecipientBeyondCap(t *testing.T) {
	env, council := genesisWithCouncil(t, 150)
	env.applyOK(
		env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 100}
		}),
		env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.AddRecipient = &AddRecipientTx{Address: testRecipient1.addr, AmountPerEpoch: 100}
		}),
	)
	require.Equal(t, uint64(100), env.council().SpentAmount)

	_, deficiencyCh := subscribeLedger(t, env, SettlementDeficiencyEventType)
	report := env.endEpoch()
	require.NotNil(t, report.Settlement)
	assert.Empty(t, report.Settlement.Payouts)
	require.Len(t, report.Settlement.Deficiencies, 1)
	d := report.Settlement.Deficiencies[0]
	assert.Equal(t, testRecipient1.addr, d.Recipient)
	assert.ErrorIs(t, d, ErrInsufficientBalanceAtSettlement)
	assert.ErrorIs(t, d, ErrCapExceeded)

	evt := <-deficiencyCh
	assert.Equal(t, testRecipient1.addr, evt.Data.(SettlementDeficiencyEvent).Recipient)

	assert.Equal(t, uint64(100), env.council().SpentAmount)
	assert.Zero(t, env.balance(testRecipient1.addr))
	records, err := env.ls.Settlements(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Paid)

	recipients, err := env.ls.Recipients()
	require.NoError(t, err)
	require.Len(t, recipients, 1)

	// Next epoch the recipient is attempted again
	report = env.endEpoch()
	require.Len(t, report.Settlement.Deficiencies, 1)
	records, err = env.ls.Settlements(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, testRecipient1.addr, records[0].Recipient)
}

// Removing and re-adding a recipient leaves a fresh entry
func TestRecipientRemoveAndReadd(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	add := func() *Tx {
		return env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.AddRecipient = &AddRecipientTx{Address: testRecipient1.addr, AmountPerEpoch: 100}
		})
	}
	remove := env.tx(council.addr, council.signers(2), func(tx *Tx) {
		tx.RemoveRecipient = &RemoveRecipientTx{Address: testRecipient1.addr}
	})
	env.applyOK(add(), remove)
	recipients, err := env.ls.Recipients()
	require.NoError(t, err)
	assert.Empty(t, recipients)

	env.applyOK(add())
	recipients, err = env.ls.Recipients()
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, uint64(100), recipients[0].AmountPerEpoch)

	report := env.endEpoch()
	require.Len(t, report.Settlement.Payouts, 1)
	assert.Equal(t, uint64(100), env.balance(testRecipient1.addr))
	assert.Equal(t, uint64(100), env.council().SpentAmount)
}

func TestRemoveMissingRecipient(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	results := env.apply(env.tx(council.addr, council.signers(2), func(tx *Tx) {
		tx.RemoveRecipient = &RemoveRecipientTx{Address: testRecipient1.addr}
	}))
	assert.ErrorIs(t, results[0].Err, ErrNotFound)
}

func TestRecipientMutationRequiresCouncil(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	results := env.apply(
		// Signed by an outsider
		env.tx(testOutsider.addr, []ed25519.PrivateKey{testOutsider.priv}, func(tx *Tx) {
			tx.AddRecipient = &AddRecipientTx{Address: testRecipient1.addr, AmountPerEpoch: 100}
		}),
		// Below the council threshold
		env.tx(council.addr, council.signers(1), func(tx *Tx) {
			tx.AddRecipient = &AddRecipientTx{Address: testRecipient1.addr, AmountPerEpoch: 100}
		}),
	)
	assert.ErrorIs(t, results[0].Err, ErrAuthorization)
	assert.ErrorIs(t, results[1].Err, ErrAuthorization)
}

func TestSettlementContinuesPastDeficiency(t *testing.T) {
	env, council := genesisWithCouncil(t, 150)
	env.applyOK(
		env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.AddRecipient = &AddRecipientTx{Address: testRecipient1.addr, AmountPerEpoch: 100}
		}),
		env.tx(council.addr, council.signers(2), func(tx *Tx) {
			tx.AddRecipient = &AddRecipientTx{Address: testRecipient2.addr, AmountPerEpoch: 100}
		}),
	)
	report := env.endEpoch()
	assert.Len(t, report.Settlement.Payouts, 1)
	assert.Len(t, report.Settlement.Deficiencies, 1)
	assert.Equal(
		t,
		uint64(100),
		env.balance(testRecipient1.addr)+env.balance(testRecipient2.addr),
	)
	c := env.council()
	assert.Equal(t, uint64(100), c.SpentAmount)
	assert.LessOrEqual(t, c.SpentAmount, c.SpendingCap)
}

func TestSettlementWithoutCouncil(t *testing.T) {
	g := baseGenesis()
	g.Recipients = []GenesisRecipient{{Address: testRecipient1.addr, AmountPerEpoch: 10}}
	env := newTestEnv(t, g)
	report := env.endEpoch()
	require.Len(t, report.Settlement.Deficiencies, 1)
	assert.ErrorIs(t, report.Settlement.Deficiencies[0], ErrInsufficientBalanceAtSettlement)
	assert.ErrorIs(t, report.Settlement.Deficiencies[0], ErrAuthorization)
	assert.Equal(t, uint64(testTreasury), env.balance(address.Pgf.String()))
}

func TestSettleEpochIdempotent(t *testing.T) {
	env, _ := genesisWithCouncil(t, 1000)
	require.NoError(t, env.withTxn(func(txn *database.Txn) error {
		return env.db.SetRecipient(
			database.Recipient{Address: testRecipient1.addr, AmountPerEpoch: 100},
			txn,
		)
	}))
	for range 2 {
		require.NoError(t, env.withTxn(func(txn *database.Txn) error {
			_, err := env.ls.continuous.SettleEpoch(txn, 0)
			return err
		}))
	}
	assert.Equal(t, uint64(100), env.balance(testRecipient1.addr))
	assert.Equal(t, uint64(100), env.council().SpentAmount)

	// EndEpoch for the same epoch does not pay again
	report := env.endEpoch()
	assert.True(t, report.Settlement.AlreadySettled)
	assert.Equal(t, uint64(100), env.balance(testRecipient1.addr))
}

func TestEndEpochRejectsWrongEpoch(t *testing.T) {
	env := newTestEnv(t, baseGenesis())
	_, err := env.ls.EndEpoch(context.Background(), 3)
	assert.ErrorIs(t, err, ErrEpochMismatch)
}

func TestApplyBlockRejectsWrongEpochOrHeight(t *testing.T) {
	env := newTestEnv(t, baseGenesis())
	_, err := env.ls.ApplyBlock(context.Background(), Block{Height: 1, Epoch: 1})
	assert.ErrorIs(t, err, ErrEpochMismatch)
	env.apply()
	_, err = env.ls.ApplyBlock(context.Background(), Block{Height: 1, Epoch: 0})
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	env, council := genesisWithCouncil(t, 100)
	spend := env.tx(council.addr, council.signers(2), func(tx *Tx) {
		tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 101}
	})
	results := env.apply(spend)
	require.ErrorIs(t, results[0].Err, ErrCapExceeded)
	assert.Zero(t, env.balance(testOutsider.addr))
	assert.Equal(t, uint64(testTreasury), env.balance(address.Pgf.String()))
	assert.Zero(t, env.council().SpentAmount)

	records, err := env.ls.TxRecords(results[0].Hash)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success())
}

func TestDuplicateTransactionRejected(t *testing.T) {
	env, council := genesisWithCouncil(t, 1000)
	spend := env.tx(council.addr, council.signers(2), func(tx *Tx) {
		tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 10}
	})
	env.applyOK(spend)
	results := env.apply(spend)
	assert.ErrorIs(t, results[0].Err, ErrValidation)
	assert.Equal(t, uint64(10), env.balance(testOutsider.addr))
}

func TestInvalidEnvelope(t *testing.T) {
	env := newTestEnv(t, baseGenesis())
	tx := env.tx(testAuthor.addr, []ed25519.PrivateKey{testAuthor.priv}, func(tx *Tx) {
		tx.Burn = &BurnTx{Amount: 1}
		tx.Transfer = &TransferTx{Target: testOutsider.addr, Amount: 1}
	})
	results := env.apply(tx, nil)
	assert.ErrorIs(t, results[0].Err, ErrValidation)
	assert.ErrorIs(t, results[0].Err, ErrInvalidTx)
	assert.ErrorIs(t, results[1].Err, ErrInvalidTx)
}

func TestApplyBlockPublishesEvents(t *testing.T) {
	bc := newTestCouncil(t, "bc")
	env := newTestEnv(t, baseGenesis(bc))
	_, ch := subscribeLedger(t, env, CandidacyRegisteredEventType)
	env.applyOK(env.candidacyTx(bc, 1000))
	evt := <-ch
	data, ok := evt.Data.(CandidacyRegisteredEvent)
	require.True(t, ok)
	assert.Equal(t, bc.addr, data.Address)
	assert.Equal(t, uint64(1000), data.SpendingCap)
}

func TestGenesisIsIdempotent(t *testing.T) {
	g := baseGenesis()
	env := newTestEnv(t, g)
	require.NoError(t, env.ls.InitGenesis(context.Background(), g))
	other := baseGenesis()
	other.Treasury = 1
	err := env.ls.InitGenesis(context.Background(), other)
	assert.ErrorIs(t, err, ErrGenesisMismatch)
	assert.Equal(t, uint64(testTreasury), env.balance(address.Pgf.String()))
}

// subscribeLedger attaches a fresh event bus to the ledger
func subscribeLedger(
	t *testing.T,
	env *testEnv,
	eventType event.EventType,
) (event.EventSubscriberId, <-chan event.Event) {
	t.Helper()
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	env.ls.config.EventBus = bus
	return bus.Subscribe(eventType)
}
