// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import "errors"

var (
	// ErrNotFound is returned by a Node when the requested object does
	// not exist.
	ErrNotFound = errors.New("not found")
	// ErrTxRejected wraps the reason a submitted transaction was refused.
	ErrTxRejected = errors.New("transaction rejected")
	// ErrUnavailable is returned when the node cannot accept
	// transactions right now.
	ErrUnavailable = errors.New("service unavailable")
)

// Node is the interface that the API server uses to query PGF state and
// submit transactions. This decouples the HTTP server from the concrete
// node and enables testing with mock implementations.
type Node interface {
	// Epoch returns the current epoch and chain height.
	Epoch() (EpochInfo, error)

	// Council returns the active council. It returns ErrNotFound if no
	// council is active.
	Council() (CouncilInfo, error)

	// CouncilHistory returns every elected council term.
	CouncilHistory() ([]CouncilInfo, error)

	// Treasury returns the treasury balance.
	Treasury() (TreasuryInfo, error)

	Recipients() ([]RecipientInfo, error)

	Candidacies() ([]CandidacyInfo, error)

	Proposals() ([]ProposalInfo, error)

	// Proposal returns one proposal. It returns ErrNotFound for an
	// unknown ID.
	Proposal(id uint64) (ProposalInfo, error)

	Ballots(proposalID uint64) ([]BallotInfo, error)

	Settlements(epoch uint64) ([]SettlementInfo, error)

	Balance(addr string) (uint64, error)

	// SubmitTx queues a CBOR-encoded transaction and returns its hash.
	SubmitTx(txBytes []byte) (string, error)
}

// EpochInfo holds the chain position needed by the API.
type EpochInfo struct {
	Epoch  uint64
	Height uint64
}

// CouncilInfo holds council data needed by the API.
type CouncilInfo struct {
	Address         string
	ProposalID      uint64
	SpendingCap     uint64
	SpentAmount     uint64
	Weight          uint64
	ElectedEpoch    uint64
	ActivationEpoch uint64
	RevokedEpoch    *uint64
}

// TreasuryInfo holds treasury data needed by the API.
type TreasuryInfo struct {
	Balance uint64
}

// RecipientInfo holds continuous funding data needed by the API.
type RecipientInfo struct {
	Address        string
	AmountPerEpoch uint64
}

// CandidacyInfo holds candidacy data needed by the API.
type CandidacyInfo struct {
	Address        string
	SpendingCap    uint64
	ProposedEpoch  uint64
	ExpiryEpoch    uint64
	AttestationURL string
	Valid          bool
}

// ProposalInfo holds proposal data needed by the API.
type ProposalInfo struct {
	ID                 uint64
	Author             string
	Content            map[string]string
	VotingStartEpoch   uint64
	VotingEndEpoch     uint64
	GraceEpoch         uint64
	Deposit            uint64
	Status             string
	ResolvedEpoch      *uint64
	TotalPower         uint64
	ParticipationPower uint64
	YayPower           uint64
}

// BallotInfo holds ballot data needed by the API.
type BallotInfo struct {
	Voter     string
	Kind      string
	CastEpoch uint64
	Approvals []ApprovalInfo
}

// ApprovalInfo is one supported (council, spending cap) pair.
type ApprovalInfo struct {
	CouncilAddress string
	SpendingCap    uint64
}

// SettlementInfo holds one settlement payout record.
type SettlementInfo struct {
	Epoch     uint64
	Recipient string
	Amount    uint64
	Paid      bool
	Reason    string
}
