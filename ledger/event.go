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

import "github.com/blinklabs-io/pgf/event"

const (
	CandidacyRegisteredEventType  event.EventType = "pgf.candidacy_registered"
	ProposalSubmittedEventType    event.EventType = "pgf.proposal_submitted"
	VoteCastEventType             event.EventType = "pgf.vote_cast"
	ProposalResolvedEventType     event.EventType = "pgf.proposal_resolved"
	CouncilElectedEventType       event.EventType = "pgf.council_elected"
	CouncilRevokedEventType       event.EventType = "pgf.council_revoked"
	SpendAuthorizedEventType      event.EventType = "pgf.spend_authorized"
	RecipientAddedEventType       event.EventType = "pgf.recipient_added"
	RecipientRemovedEventType     event.EventType = "pgf.recipient_removed"
	SettlementPayoutEventType     event.EventType = "pgf.settlement_payout"
	SettlementDeficiencyEventType event.EventType = "pgf.settlement_deficiency"
	EpochEndedEventType           event.EventType = "pgf.epoch_ended"
	TransactionAppliedEventType   event.EventType = "pgf.transaction_applied"
	TransactionRejectedEventType  event.EventType = "pgf.transaction_rejected"
)

type CandidacyRegisteredEvent struct {
	Address        string
	SpendingCap    uint64
	AttestationURL string
	Epoch          uint64
}

type ProposalSubmittedEvent struct {
	ProposalID       uint64
	Author           string
	VotingStartEpoch uint64
	VotingEndEpoch   uint64
	GraceEpoch       uint64
}

type VoteCastEvent struct {
	ProposalID uint64
	Voter      string
	Kind       BallotKind
	Approvals  []CouncilPair
}

type ProposalResolvedEvent struct {
	ProposalID         uint64
	Passed             bool
	Epoch              uint64
	TotalPower         uint64
	ParticipationPower uint64
	YayPower           uint64
}

type CouncilElectedEvent struct {
	ProposalID      uint64
	Address         string
	DeclaredCap     uint64
	SpendingCap     uint64
	ActivationEpoch uint64
	Weight          uint64
}

type CouncilRevokedEvent struct {
	ProposalID  uint64
	Address     string
	SpendingCap uint64
	SpentAmount uint64
	Epoch       uint64
}

type SpendAuthorizedEvent struct {
	Council     string
	Destination string
	Amount      uint64
	SpentAmount uint64
	SpendingCap uint64
}

type RecipientAddedEvent struct {
	Address        string
	AmountPerEpoch uint64
}

type RecipientRemovedEvent struct {
	Address string
}

type SettlementPayoutEvent struct {
	Epoch     uint64
	Recipient string
	Amount    uint64
}

type SettlementDeficiencyEvent struct {
	Epoch     uint64
	Recipient string
	Amount    uint64
	Reason    string
}

type EpochEndedEvent struct {
	Epoch     uint64
	NextEpoch uint64
}

type TransactionEvent struct {
	Hash   []byte
	Height uint64
	Index  uint32
	Kind   TxKind
	Signer string
	Error  string
}
