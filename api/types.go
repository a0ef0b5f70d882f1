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

// Token amounts are rendered as decimal strings so clients never lose
// precision on values above 2^53.

// RootResponse is returned by GET /.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// EpochResponse is returned by GET /api/v0/epoch.
type EpochResponse struct {
	Epoch  uint64 `json:"epoch"`
	Height uint64 `json:"height"`
}

// CouncilResponse represents a council term.
type CouncilResponse struct {
	Address         string  `json:"address"`
	ProposalID      uint64  `json:"proposal_id"`
	SpendingCap     string  `json:"spending_cap"`
	SpentAmount     string  `json:"spent_amount"`
	Weight          string  `json:"weight"`
	ElectedEpoch    uint64  `json:"elected_epoch"`
	ActivationEpoch uint64  `json:"activation_epoch"`
	RevokedEpoch    *uint64 `json:"revoked_epoch"`
}

// TreasuryResponse is returned by GET /api/v0/treasury.
type TreasuryResponse struct {
	Balance string `json:"balance"`
}

// RecipientResponse represents a continuous funding recipient.
type RecipientResponse struct {
	Address        string `json:"address"`
	AmountPerEpoch string `json:"amount_per_epoch"`
}

// CandidacyResponse represents a council candidacy.
type CandidacyResponse struct {
	Address        string `json:"address"`
	SpendingCap    string `json:"spending_cap"`
	ProposedEpoch  uint64 `json:"proposed_epoch"`
	ExpiryEpoch    uint64 `json:"expiry_epoch"`
	AttestationURL string `json:"attestation_url"`
	Valid          bool   `json:"valid"`
}

// ProposalResponse represents a council election proposal.
type ProposalResponse struct {
	ID                 uint64            `json:"id"`
	Author             string            `json:"author"`
	Content            map[string]string `json:"content"`
	VotingStartEpoch   uint64            `json:"voting_start_epoch"`
	VotingEndEpoch     uint64            `json:"voting_end_epoch"`
	GraceEpoch         uint64            `json:"grace_epoch"`
	Deposit            string            `json:"deposit"`
	Status             string            `json:"status"`
	ResolvedEpoch      *uint64           `json:"resolved_epoch"`
	TotalPower         string            `json:"total_power"`
	ParticipationPower string            `json:"participation_power"`
	YayPower           string            `json:"yay_power"`
}

// BallotResponse represents a voter's latest ballot.
type BallotResponse struct {
	Voter     string             `json:"voter"`
	Kind      string             `json:"kind"`
	CastEpoch uint64             `json:"cast_epoch"`
	Approvals []ApprovalResponse `json:"approvals"`
}

// ApprovalResponse is one (council, spending cap) pair in a ballot.
type ApprovalResponse struct {
	CouncilAddress string `json:"council_address"`
	SpendingCap    string `json:"spending_cap"`
}

// SettlementResponse represents one settlement payout record.
type SettlementResponse struct {
	Epoch     uint64 `json:"epoch"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Paid      bool   `json:"paid"`
	Reason    string `json:"reason,omitempty"`
}

// BalanceResponse is returned by GET /api/v0/accounts/{address}/balance.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// SubmitTxResponse is returned by POST /api/v0/tx/submit.
type SubmitTxResponse struct {
	Hash string `json:"hash"`
}
