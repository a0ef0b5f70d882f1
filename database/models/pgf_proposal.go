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

import (
	"errors"

	"github.com/blinklabs-io/pgf/database/types"
)

var ErrPgfProposalNotFound = errors.New("pgf proposal not found")

// Persisted proposal status values. The voting and tallying phases are
// derived from the current epoch and are never stored.
const (
	ProposalStatusPending  uint8 = 0
	ProposalStatusPassed   uint8 = 1
	ProposalStatusRejected uint8 = 2
)

// PgfProposal represents a PGF council proposal.
// Proposals have a lifecycle: pending -> voting -> (passed | rejected).
type PgfProposal struct {
	ID                 uint64 `gorm:"primarykey;autoIncrement:false"`
	Author             string `gorm:"index;size:64;not null"`
	Content            []byte
	VotingStartEpoch   uint64       `gorm:"index;not null"`
	VotingEndEpoch     uint64       `gorm:"index;not null"`
	GraceEpoch         uint64       `gorm:"not null"`
	Deposit            types.Uint64 `gorm:"not null"`
	Status             uint8        `gorm:"index;not null"`
	ResolvedEpoch      *uint64
	TotalPower         types.Uint64
	ParticipationPower types.Uint64
	YayPower           types.Uint64
	SubmittedHeight    uint64 `gorm:"index;not null"`
}

// TableName returns the table name
func (PgfProposal) TableName() string {
	return "pgf_proposal"
}

// Resolved reports whether the proposal has reached a terminal status
func (p *PgfProposal) Resolved() bool {
	return p.Status != ProposalStatusPending
}
