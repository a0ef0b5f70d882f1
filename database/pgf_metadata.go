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

package database

import (
	"fmt"

	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/types"
)

// GetPgfProposal returns a PGF proposal by ID, or nil if it does not exist
func (d *Database) GetPgfProposal(
	id uint64,
	txn *Txn,
) (*models.PgfProposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	proposal, err := d.metadata.GetPgfProposal(id, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to get pgf proposal %d: %w", id, err)
	}
	return proposal, nil
}

// GetPgfProposals returns every PGF proposal ordered by ID
func (d *Database) GetPgfProposals(txn *Txn) ([]models.PgfProposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetPgfProposals(txn.Metadata())
}

// GetUnresolvedPgfProposals returns the proposals that have not been tallied yet
func (d *Database) GetUnresolvedPgfProposals(
	txn *Txn,
) ([]models.PgfProposal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetUnresolvedPgfProposals(txn.Metadata())
}

// SetPgfProposal creates a proposal or records its outcome
func (d *Database) SetPgfProposal(
	proposal *models.PgfProposal,
	txn *Txn,
) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.SetPgfProposal(proposal, txn.Metadata()); err != nil {
		return fmt.Errorf(
			"failed to set pgf proposal %d: %w",
			proposal.ID,
			err,
		)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// GetPgfBallots returns the ballots cast on a proposal ordered by voter
func (d *Database) GetPgfBallots(
	proposalID uint64,
	txn *Txn,
) ([]models.PgfBallot, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ballots, err := d.metadata.GetPgfBallots(proposalID, txn.Metadata())
	if err != nil {
		return nil, fmt.Errorf(
			"failed to get ballots for pgf proposal %d: %w",
			proposalID,
			err,
		)
	}
	return ballots, nil
}

// SetPgfBallot records a ballot, replacing an earlier ballot by the same voter
func (d *Database) SetPgfBallot(ballot *models.PgfBallot, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.SetPgfBallot(ballot, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to set pgf ballot: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// GetCouncilTerms returns the council history in election order
func (d *Database) GetCouncilTerms(txn *Txn) ([]models.CouncilTerm, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetCouncilTerms(txn.Metadata())
}

// GetActiveCouncilTerm returns the history record of the active council, or nil
func (d *Database) GetActiveCouncilTerm(txn *Txn) (*models.CouncilTerm, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetActiveCouncilTerm(txn.Metadata())
}

// AddCouncilTerm records a newly elected council
func (d *Database) AddCouncilTerm(term *models.CouncilTerm, txn *Txn) error {
	if txn == nil {
		return fmt.Errorf("add council term: %w", types.ErrNilTxn)
	}
	return d.metadata.SetCouncilTerm(term, txn.Metadata())
}

// RevokeCouncilTerms closes every open council term at the given epoch
func (d *Database) RevokeCouncilTerms(
	epoch uint64,
	spentAmount uint64,
	txn *Txn,
) error {
	if txn == nil {
		return fmt.Errorf("revoke council terms: %w", types.ErrNilTxn)
	}
	return d.metadata.RevokeCouncilTerms(epoch, spentAmount, txn.Metadata())
}

// AddSettlementRecords stores the outcome of a settlement pass
func (d *Database) AddSettlementRecords(
	records []models.SettlementRecord,
	txn *Txn,
) error {
	if txn == nil {
		return fmt.Errorf("add settlement records: %w", types.ErrNilTxn)
	}
	return d.metadata.AddSettlementRecords(records, txn.Metadata())
}

// GetSettlementRecords returns the settlement records of an epoch
func (d *Database) GetSettlementRecords(
	epoch uint64,
	txn *Txn,
) ([]models.SettlementRecord, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetSettlementRecords(epoch, txn.Metadata())
}

// AddTxRecord stores the outcome of an applied transaction
func (d *Database) AddTxRecord(record *models.TxRecord, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.MetadataTxn(true)
		owned = true
		defer func() {
			if owned {
				txn.Rollback() //nolint:errcheck
			}
		}()
	}
	if err := d.metadata.AddTxRecord(record, txn.Metadata()); err != nil {
		return fmt.Errorf("failed to add tx record: %w", err)
	}
	if owned {
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		owned = false
	}
	return nil
}

// GetTxRecords returns every recorded application of a transaction hash
func (d *Database) GetTxRecords(
	hash []byte,
	txn *Txn,
) ([]models.TxRecord, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetTxRecords(hash, txn.Metadata())
}

// HasAppliedTx reports whether a transaction hash was already applied successfully
func (d *Database) HasAppliedTx(hash []byte, txn *Txn) (bool, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.HasAppliedTx(hash, txn.Metadata())
}
