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

package models

import "github.com/blinklabs-io/pgf/database/types"

// Ballot kinds
const (
	BallotKindApprove uint8 = 0
	BallotKindReject  uint8 = 1
	BallotKindAbstain uint8 = 2
)

// PgfBallot is the latest ballot cast by a voter on a PGF proposal
type PgfBallot struct {
	ID         uint                `gorm:"primarykey"`
	ProposalID uint64              `gorm:"uniqueIndex:idx_pgf_ballot_unique,priority:1;not null"`
	Voter      string              `gorm:"uniqueIndex:idx_pgf_ballot_unique,priority:2;size:64;not null"`
	Kind       uint8               `gorm:"not null"`
	CastEpoch  uint64              `gorm:"not null"`
	CastHeight uint64              `gorm:"index;not null"`
	Approvals  []PgfBallotApproval `gorm:"foreignKey:BallotID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name
func (PgfBallot) TableName() string {
	return "pgf_ballot"
}

// PgfBallotApproval is one (council address, spending cap) pair supported by a ballot
type PgfBallotApproval struct {
	ID             uint         `gorm:"primarykey"`
	BallotID       uint         `gorm:"index;not null"`
	CouncilAddress string       `gorm:"size:64;not null"`
	SpendingCap    types.Uint64 `gorm:"not null"`
}

// TableName returns the table name
func (PgfBallotApproval) TableName() string {
	return "pgf_ballot_approval"
}
