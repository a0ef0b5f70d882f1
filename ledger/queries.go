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
	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
)

// CandidacyStatus is a stored candidacy with its validity at the current epoch
type CandidacyStatus struct {
	database.Candidacy
	ExpiryEpoch uint64
	Valid       bool
}

func (ls *LedgerState) CurrentEpoch() uint64 {
	ls.RLock()
	defer ls.RUnlock()
	return ls.currentEpoch
}

func (ls *LedgerState) Height() uint64 {
	ls.RLock()
	defer ls.RUnlock()
	return ls.currentHeight
}

// ActiveCouncil returns the active council, or nil if there is none
func (ls *LedgerState) ActiveCouncil() (*database.Council, error) {
	ls.RLock()
	defer ls.RUnlock()
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	return ls.db.GetActiveCouncil(txn)
}

func (ls *LedgerState) CouncilTerms() ([]models.CouncilTerm, error) {
	ls.RLock()
	defer ls.RUnlock()
	return ls.db.GetCouncilTerms(nil)
}

func (ls *LedgerState) Recipients() ([]database.Recipient, error) {
	ls.RLock()
	defer ls.RUnlock()
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	return ls.continuous.Recipients(txn)
}

func (ls *LedgerState) Candidacies() ([]CandidacyStatus, error) {
	ls.RLock()
	defer ls.RUnlock()
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	candidacies, err := ls.candidacies.List(txn)
	if err != nil {
		return nil, err
	}
	length, err := ls.db.GetCandidacyLength(txn)
	if err != nil {
		return nil, err
	}
	ret := make([]CandidacyStatus, 0, len(candidacies))
	for _, c := range candidacies {
		expiry, ok := addUint64(c.ProposedEpoch, length)
		if !ok {
			expiry = ^uint64(0)
		}
		ret = append(ret, CandidacyStatus{
			Candidacy:   c,
			ExpiryEpoch: expiry,
			Valid:       candidacyActive(c.ProposedEpoch, length, ls.currentEpoch),
		})
	}
	return ret, nil
}

func (ls *LedgerState) Proposals() ([]models.PgfProposal, error) {
	ls.RLock()
	defer ls.RUnlock()
	return ls.db.GetPgfProposals(nil)
}

// Proposal returns a proposal by ID, or nil if it does not exist
func (ls *LedgerState) Proposal(id uint64) (*models.PgfProposal, error) {
	ls.RLock()
	defer ls.RUnlock()
	return ls.db.GetPgfProposal(id, nil)
}

func (ls *LedgerState) Ballots(proposalID uint64) ([]models.PgfBallot, error) {
	ls.RLock()
	defer ls.RUnlock()
	return ls.db.GetPgfBallots(proposalID, nil)
}

func (ls *LedgerState) Settlements(epoch uint64) ([]models.SettlementRecord, error) {
	ls.RLock()
	defer ls.RUnlock()
	return ls.db.GetSettlementRecords(epoch, nil)
}

func (ls *LedgerState) TxRecords(hash []byte) ([]models.TxRecord, error) {
	ls.RLock()
	defer ls.RUnlock()
	return ls.db.GetTxRecords(hash, nil)
}

func (ls *LedgerState) Balance(addr string) (uint64, error) {
	ls.RLock()
	defer ls.RUnlock()
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	return ls.config.Tokens.Balance(txn, addr)
}

func (ls *LedgerState) TreasuryBalance() (uint64, error) {
	return ls.Balance(address.Pgf.String())
}

func (ls *LedgerState) GovParams() (GovParams, error) {
	ls.RLock()
	defer ls.RUnlock()
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	return loadGovParams(ls.db, txn)
}

// ValidateTx checks a transaction against the current state without
// applying it. Only the envelope, the signer's signatures and replay are
// checked; body rules are left to ApplyBlock.
func (ls *LedgerState) ValidateTx(tx *Tx) error {
	if err := tx.Validate(); err != nil {
		return validationErrorf("%w", err)
	}
	msg, err := tx.SigningBytes()
	if err != nil {
		return validationErrorf("%w: %w", ErrInvalidTx, err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return validationErrorf("%w: %w", ErrInvalidTx, err)
	}
	ls.RLock()
	defer ls.RUnlock()
	applied, err := ls.db.HasAppliedTx(hash, nil)
	if err != nil {
		return err
	}
	if applied {
		return validationErrorf("transaction %x was already applied", hash)
	}
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	if err := ls.config.Verifier.VerifySignatures(txn, tx.Signer, msg, tx.Signatures); err != nil {
		return authorizationErrorf("signature of %s: %w", tx.Signer, err)
	}
	return nil
}
