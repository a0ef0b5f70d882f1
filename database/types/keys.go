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

package types

import (
	"strconv"
)

// Key layout for the blob store. The PGF keys mirror the on-chain storage
// layout of the PGF internal address.
const (
	PgfKeyPrefix        = "/PGFAddress/"
	GovernanceKeyPrefix = "/Governance/"
	BalanceKeyPrefix    = "/Balance/"
	AccountKeyPrefix    = "/Account/"
	ChainKeyPrefix      = "/Chain/"

	pgfRecipientsSegment      = "cPGF_recipients/"
	pgfCandidatesSegment      = "council_candidates/"
	pgfActiveCouncilSegment   = "active_council/"
	pgfSpendingCapSegment     = "spending_cap"
	pgfSpentAmountSegment     = "spent_amount"
	pgfCandidacyLengthSegment = "candidacy_length"
	pgfActivationSegment      = "activation_epoch"
	pgfLastSettledSegment     = "last_settled_epoch"
)

func PgfRecipientKey(addr string) []byte {
	return []byte(PgfKeyPrefix + pgfRecipientsSegment + addr)
}

func PgfRecipientPrefix() []byte {
	return []byte(PgfKeyPrefix + pgfRecipientsSegment)
}

func PgfSpendingCapKey() []byte {
	return []byte(PgfKeyPrefix + pgfSpendingCapSegment)
}

func PgfSpentAmountKey() []byte {
	return []byte(PgfKeyPrefix + pgfSpentAmountSegment)
}

func PgfCandidacyLengthKey() []byte {
	return []byte(PgfKeyPrefix + pgfCandidacyLengthSegment)
}

func PgfActivationEpochKey() []byte {
	return []byte(PgfKeyPrefix + pgfActivationSegment)
}

func PgfLastSettledEpochKey() []byte {
	return []byte(PgfKeyPrefix + pgfLastSettledSegment)
}

// PgfCandidateKey returns the key for a single (address, cap) candidacy
func PgfCandidateKey(addr string, spendingCap uint64) []byte {
	return []byte(
		PgfKeyPrefix + pgfCandidatesSegment + addr + "/" +
			strconv.FormatUint(spendingCap, 10),
	)
}

// PgfCandidateAddressPrefix returns the prefix covering every candidacy of an address
func PgfCandidateAddressPrefix(addr string) []byte {
	return []byte(PgfKeyPrefix + pgfCandidatesSegment + addr + "/")
}

func PgfCandidatePrefix() []byte {
	return []byte(PgfKeyPrefix + pgfCandidatesSegment)
}

func PgfActiveCouncilKey(addr string) []byte {
	return []byte(PgfKeyPrefix + pgfActiveCouncilSegment + addr)
}

func PgfActiveCouncilPrefix() []byte {
	return []byte(PgfKeyPrefix + pgfActiveCouncilSegment)
}

func GovernanceParamsKey() []byte {
	return []byte(GovernanceKeyPrefix + "params")
}

func GovernanceCounterKey() []byte {
	return []byte(GovernanceKeyPrefix + "counter")
}

func BalanceKey(addr string) []byte {
	return []byte(BalanceKeyPrefix + addr)
}

func AccountKey(addr string) []byte {
	return []byte(AccountKeyPrefix + addr)
}

func ChainEpochKey() []byte {
	return []byte(ChainKeyPrefix + "epoch")
}

func ChainHeightKey() []byte {
	return []byte(ChainKeyPrefix + "height")
}

func ChainGenesisKey() []byte {
	return []byte(ChainKeyPrefix + "genesis")
}
