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

package sqlite

import (
	"errors"
	"math"

	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetPgfProposal retrieves a PGF proposal by ID. Returns nil if not found.
func (d *MetadataStoreSqlite) GetPgfProposal(
	id uint64,
	txn types.Txn,
) (*models.PgfProposal, error) {
	// SQLite integers are signed, so larger ids cannot be stored
	if id > math.MaxInt64 {
		return nil, nil
	}
	var proposal models.PgfProposal
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.First(&proposal, "id = ?", id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &proposal, nil
}

// GetPgfProposals retrieves all PGF proposals ordered by ID
func (d *MetadataStoreSqlite) GetPgfProposals(
	txn types.Txn,
) ([]models.PgfProposal, error) {
	var proposals []models.PgfProposal
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Order("id").Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	return proposals, nil
}

// GetUnresolvedPgfProposals retrieves the PGF proposals that have not yet been tallied
func (d *MetadataStoreSqlite) GetUnresolvedPgfProposals(
	txn types.Txn,
) ([]models.PgfProposal, error) {
	var proposals []models.PgfProposal
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"status = ?",
		models.ProposalStatusPending,
	).Order("id").Find(&proposals); result.Error != nil {
		return nil, result.Error
	}
	return proposals, nil
}

// SetPgfProposal creates or updates a PGF proposal
func (d *MetadataStoreSqlite) SetPgfProposal(
	proposal *models.PgfProposal,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		// The proposal body is immutable once submitted, only the
		// outcome columns change
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"resolved_epoch",
			"total_power",
			"participation_power",
			"yay_power",
		}),
	}
	if result := db.Clauses(onConflict).Create(proposal); result.Error != nil {
		return result.Error
	}
	return nil
}

// GetPgfBallots retrieves all ballots for a PGF proposal ordered by voter
func (d *MetadataStoreSqlite) GetPgfBallots(
	proposalID uint64,
	txn types.Txn,
) ([]models.PgfBallot, error) {
	if proposalID > math.MaxInt64 {
		return nil, nil
	}
	var ballots []models.PgfBallot
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Preload(
		"Approvals",
		func(db *gorm.DB) *gorm.DB { return db.Order("id") },
	).Where(
		"proposal_id = ?",
		proposalID,
	).Order("voter").Find(&ballots); result.Error != nil {
		return nil, result.Error
	}
	return ballots, nil
}

// SetPgfBallot records a ballot, replacing any earlier ballot by the same voter
func (d *MetadataStoreSqlite) SetPgfBallot(
	ballot *models.PgfBallot,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	var existing models.PgfBallot
	result := db.Where(
		"proposal_id = ? AND voter = ?",
		ballot.ProposalID,
		ballot.Voter,
	).First(&existing)
	if result.Error != nil &&
		!errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	if result.Error == nil {
		if err := db.Where(
			"ballot_id = ?",
			existing.ID,
		).Delete(&models.PgfBallotApproval{}).Error; err != nil {
			return err
		}
		if err := db.Delete(&existing).Error; err != nil {
			return err
		}
	}
	ballot.ID = 0
	for i := range ballot.Approvals {
		ballot.Approvals[i].ID = 0
		ballot.Approvals[i].BallotID = 0
	}
	return db.Create(ballot).Error
}

// GetActiveCouncilTerm returns the council term that has not been revoked, or nil
func (d *MetadataStoreSqlite) GetActiveCouncilTerm(
	txn types.Txn,
) (*models.CouncilTerm, error) {
	var term models.CouncilTerm
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"revoked_epoch IS NULL",
	).Order("id DESC").First(&term); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &term, nil
}

// GetCouncilTerms returns every council term in election order
func (d *MetadataStoreSqlite) GetCouncilTerms(
	txn types.Txn,
) ([]models.CouncilTerm, error) {
	var terms []models.CouncilTerm
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Order("id").Find(&terms); result.Error != nil {
		return nil, result.Error
	}
	return terms, nil
}

// SetCouncilTerm creates or updates a council term keyed by its proposal
func (d *MetadataStoreSqlite) SetCouncilTerm(
	term *models.CouncilTerm,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"spent_amount",
			"revoked_epoch",
		}),
	}
	if result := db.Clauses(onConflict).Create(term); result.Error != nil {
		return result.Error
	}
	return nil
}

// RevokeCouncilTerms marks every active term as revoked at the given epoch
// and freezes its spent amount
func (d *MetadataStoreSqlite) RevokeCouncilTerms(
	epoch uint64,
	spentAmount uint64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.CouncilTerm{}).
		Where("revoked_epoch IS NULL").
		Updates(map[string]any{
			"revoked_epoch": epoch,
			"spent_amount":  types.Uint64(spentAmount),
		})
	return result.Error
}

// AddSettlementRecords stores the outcome of a settlement pass
func (d *MetadataStoreSqlite) AddSettlementRecords(
	records []models.SettlementRecord,
	txn types.Txn,
) error {
	if len(records) == 0 {
		return nil
	}
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(&records).Error
}

// GetSettlementRecords returns the settlement records for an epoch
func (d *MetadataStoreSqlite) GetSettlementRecords(
	epoch uint64,
	txn types.Txn,
) ([]models.SettlementRecord, error) {
	var records []models.SettlementRecord
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"epoch = ?",
		epoch,
	).Order("id").Find(&records); result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// AddTxRecord stores the outcome of an applied transaction
func (d *MetadataStoreSqlite) AddTxRecord(
	record *models.TxRecord,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(record).Error
}

// GetTxRecords returns every recorded application attempt of a transaction hash
func (d *MetadataStoreSqlite) GetTxRecords(
	hash []byte,
	txn types.Txn,
) ([]models.TxRecord, error) {
	var records []models.TxRecord
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	if result := db.Where(
		"hash = ?",
		hash,
	).Order("id").Find(&records); result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// HasAppliedTx reports whether a transaction hash has been applied successfully
func (d *MetadataStoreSqlite) HasAppliedTx(
	hash []byte,
	txn types.Txn,
) (bool, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return false, err
	}
	var count int64
	if result := db.Model(&models.TxRecord{}).Where(
		"hash = ? AND error = ?",
		hash,
		"",
	).Count(&count); result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}
