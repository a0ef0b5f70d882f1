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

// CouncilTerm records a council elected by a PGF proposal. The active
// council itself lives in the blob store. This table keeps the history,
// including the frozen cap and spent amount of revoked councils.
type CouncilTerm struct {
	ID              uint         `gorm:"primarykey"`
	ProposalID      uint64       `gorm:"uniqueIndex;not null"`
	Address         string       `gorm:"index;size:64;not null"`
	DeclaredCap     types.Uint64 `gorm:"not null"`
	SpendingCap     types.Uint64 `gorm:"not null"`
	SpentAmount     types.Uint64 `gorm:"not null"`
	Weight          types.Uint64 `gorm:"not null"`
	ElectedEpoch    uint64       `gorm:"index;not null"`
	ActivationEpoch uint64       `gorm:"not null"`
	RevokedEpoch    *uint64      `gorm:"index"`
}

// TableName returns the table name
func (CouncilTerm) TableName() string {
	return "council_term"
}

// Active reports whether the term has not been revoked
func (c *CouncilTerm) Active() bool {
	return c.RevokedEpoch == nil
}
