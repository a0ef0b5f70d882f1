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
)

// CandidacyRegistry tracks declared council candidacies
type CandidacyRegistry struct {
	db *database.Database
}

func NewCandidacyRegistry(db *database.Database) *CandidacyRegistry {
	return &CandidacyRegistry{db: db}
}

// Register upserts the candidacy for (addr, spendingCap) starting at epoch.
// Registering the same pair again refreshes its validity window.
func (r *CandidacyRegistry) Register(
	txn *database.Txn,
	addr string,
	spendingCap uint64,
	attestationURL string,
	epoch uint64,
) error {
	if err := address.Address(addr).Validate(); err != nil {
		return validationErrorf("candidacy address: %w", err)
	}
	if address.Address(addr).IsInternal() {
		return validationErrorf("internal address %s cannot stand as council", addr)
	}
	if spendingCap == 0 {
		return validationErrorf("candidacy spending cap must be positive")
	}
	if attestationURL == "" {
		return validationErrorf("candidacy attestation url is empty")
	}
	if len(attestationURL) > MaxAttestationURLSize {
		return validationErrorf(
			"candidacy attestation url is %d bytes, limit is %d",
			len(attestationURL),
			MaxAttestationURLSize,
		)
	}
	return r.db.SetCandidacy(
		database.Candidacy{
			Address:        addr,
			SpendingCap:    spendingCap,
			ProposedEpoch:  epoch,
			AttestationURL: attestationURL,
		},
		txn,
	)
}

// IsValid reports whether a candidacy exists for exactly (addr, spendingCap)
// and epoch falls within [proposed, proposed+candidacy_length]
func (r *CandidacyRegistry) IsValid(
	txn *database.Txn,
	addr string,
	spendingCap uint64,
	epoch uint64,
) (bool, error) {
	candidacy, err := r.db.GetCandidacy(addr, spendingCap, txn)
	if err != nil || candidacy == nil {
		return false, err
	}
	length, err := r.db.GetCandidacyLength(txn)
	if err != nil {
		return false, err
	}
	return candidacyActive(candidacy.ProposedEpoch, length, epoch), nil
}

func (r *CandidacyRegistry) List(txn *database.Txn) ([]database.Candidacy, error) {
	return r.db.GetCandidacies(txn)
}

func candidacyActive(proposed, length, epoch uint64) bool {
	if epoch < proposed {
		return false
	}
	expiry, ok := addUint64(proposed, length)
	if !ok {
		return true
	}
	return epoch <= expiry
}
