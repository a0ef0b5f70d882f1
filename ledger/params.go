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
	"fmt"

	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/types"
)

// GovParams holds the governance parameters that bound PGF proposals
type GovParams struct {
	MinProposalFund         uint64 `cbor:"min_proposal_fund"          json:"min_proposal_fund"          yaml:"min_proposal_fund"`
	MaxProposalCodeSize     uint64 `cbor:"max_proposal_code_size"     json:"max_proposal_code_size"     yaml:"max_proposal_code_size"`
	MinProposalVotingPeriod uint64 `cbor:"min_proposal_voting_period" json:"min_proposal_voting_period" yaml:"min_proposal_voting_period"`
	MaxProposalPeriod       uint64 `cbor:"max_proposal_period"        json:"max_proposal_period"        yaml:"max_proposal_period"`
	MaxProposalContentSize  uint64 `cbor:"max_proposal_content_size"  json:"max_proposal_content_size"  yaml:"max_proposal_content_size"`
	MinProposalGraceEpochs  uint64 `cbor:"min_proposal_grace_epochs"  json:"min_proposal_grace_epochs"  yaml:"min_proposal_grace_epochs"`
}

func DefaultGovParams() GovParams {
	return GovParams{
		MinProposalFund:         500,
		MaxProposalCodeSize:     300000,
		MinProposalVotingPeriod: 3,
		MaxProposalPeriod:       27,
		MaxProposalContentSize:  10000,
		MinProposalGraceEpochs:  6,
	}
}

func (p GovParams) Validate() error {
	if p.MinProposalVotingPeriod == 0 {
		return fmt.Errorf("min_proposal_voting_period must be positive")
	}
	if p.MaxProposalPeriod < p.MinProposalVotingPeriod+p.MinProposalGraceEpochs {
		return fmt.Errorf(
			"max_proposal_period %d is shorter than the minimum voting period plus grace epochs",
			p.MaxProposalPeriod,
		)
	}
	if p.MaxProposalContentSize == 0 {
		return fmt.Errorf("max_proposal_content_size must be positive")
	}
	return nil
}

// loadGovParams returns the stored parameters, falling back to the defaults
// for a store initialized without them
func loadGovParams(db *database.Database, txn *database.Txn) (GovParams, error) {
	params := DefaultGovParams()
	if _, err := db.GetBlobValue(txn, types.GovernanceParamsKey(), &params); err != nil {
		return GovParams{}, fmt.Errorf("load governance params: %w", err)
	}
	return params, nil
}

func storeGovParams(
	db *database.Database,
	params GovParams,
	txn *database.Txn,
) error {
	return db.SetBlobValue(txn, types.GovernanceParamsKey(), params)
}
