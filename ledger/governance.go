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
	"math"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/types"
	"github.com/blinklabs-io/pgf/internal/cbor"
)

// MaxProposalID is the largest id the metadata store can hold
const MaxProposalID uint64 = math.MaxInt64

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusVoting   ProposalStatus = "voting"
	ProposalStatusTallying ProposalStatus = "tallying"
	ProposalStatusPassed   ProposalStatus = "passed"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// ProposalStatusAt returns the lifecycle phase of a proposal at epoch.
// Tallying covers the end epoch after voting closed but before the
// end-of-epoch hook resolved the proposal.
func ProposalStatusAt(p *models.PgfProposal, epoch uint64) ProposalStatus {
	switch p.Status {
	case models.ProposalStatusPassed:
		return ProposalStatusPassed
	case models.ProposalStatusRejected:
		return ProposalStatusRejected
	}
	switch {
	case epoch < p.VotingStartEpoch:
		return ProposalStatusPending
	case epoch <= p.VotingEndEpoch:
		return ProposalStatusVoting
	default:
		return ProposalStatusTallying
	}
}

// ProposalContent decodes the stored key/value content of a proposal
func ProposalContent(p *models.PgfProposal) (map[string]string, error) {
	ret := map[string]string{}
	if len(p.Content) == 0 {
		return ret, nil
	}
	if err := cbor.Decode(p.Content, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// WeightedBallot is an approve ballot together with the voter's weight
type WeightedBallot struct {
	Voter     string
	Weight    uint64
	Approvals []CouncilPair
}

type TallyResult struct {
	ProposalID         uint64
	Passed             bool
	TotalPower         uint64
	ParticipationPower uint64
	YayPower           uint64
	YayBallots         []WeightedBallot
}

// ResolveResult is the outcome of resolving a proposal at the end of its
// voting window
type ResolveResult struct {
	Proposal *models.PgfProposal
	Tally    TallyResult
	Election ElectionResult
}

// ProposalLifecycle restricts the governance flow to PGF council proposals
type ProposalLifecycle struct {
	db       *database.Database
	power    VotingPowerSource
	tokens   TokenLedger
	election *CouncilElection
}

func NewProposalLifecycle(
	db *database.Database,
	power VotingPowerSource,
	tokens TokenLedger,
	election *CouncilElection,
) *ProposalLifecycle {
	return &ProposalLifecycle{
		db:       db,
		power:    power,
		tokens:   tokens,
		election: election,
	}
}

// Submit validates and stores a new PGF proposal and locks the author's
// deposit in governance escrow
func (l *ProposalLifecycle) Submit(
	txn *database.Txn,
	p ProposalTx,
	epoch uint64,
	height uint64,
) (*models.PgfProposal, error) {
	if p.Type != ProposalTypePgfCouncil {
		return nil, validationErrorf("unsupported proposal type %q", p.Type)
	}
	author := address.Address(p.Author)
	if err := author.Validate(); err != nil {
		return nil, validationErrorf("proposal author: %w", err)
	}
	if author.IsInternal() {
		return nil, validationErrorf("internal address %s cannot author proposals", p.Author)
	}
	unresolved, err := l.db.GetUnresolvedPgfProposals(txn)
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		return nil, validationErrorf(
			"pgf proposal %d is still unresolved",
			unresolved[0].ID,
		)
	}
	params, err := loadGovParams(l.db, txn)
	if err != nil {
		return nil, err
	}
	if err := validateProposalEpochs(p, params, epoch); err != nil {
		return nil, err
	}
	var content []byte
	if len(p.Content) > 0 {
		content, err = cbor.Encode(p.Content)
		if err != nil {
			return nil, validationErrorf("proposal content: %w", err)
		}
	}
	if uint64(len(content)) > params.MaxProposalContentSize {
		return nil, validationErrorf(
			"proposal content is %d bytes, limit is %d",
			len(content),
			params.MaxProposalContentSize,
		)
	}
	id, err := l.assignProposalID(txn, p.ID)
	if err != nil {
		return nil, err
	}
	if err := l.tokens.Transfer(
		txn,
		p.Author,
		address.Governance.String(),
		params.MinProposalFund,
	); err != nil {
		return nil, validationErrorf("proposal deposit: %w", err)
	}
	proposal := &models.PgfProposal{
		ID:               id,
		Author:           p.Author,
		Content:          content,
		VotingStartEpoch: p.VotingStartEpoch,
		VotingEndEpoch:   p.VotingEndEpoch,
		GraceEpoch:       p.GraceEpoch,
		Deposit:          types.Uint64(params.MinProposalFund),
		Status:           models.ProposalStatusPending,
		SubmittedHeight:  height,
	}
	if err := l.db.SetPgfProposal(proposal, txn); err != nil {
		return nil, err
	}
	return proposal, nil
}

// assignProposalID checks an explicit id or takes the next free one from
// the counter. Explicit ids never move the counter.
func (l *ProposalLifecycle) assignProposalID(
	txn *database.Txn,
	requested uint64,
) (uint64, error) {
	if requested != 0 {
		if requested > MaxProposalID {
			return 0, validationErrorf(
				"proposal id %d exceeds the maximum %d",
				requested,
				MaxProposalID,
			)
		}
		existing, err := l.db.GetPgfProposal(requested, txn)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return 0, validationErrorf("proposal id %d is already used", requested)
		}
		return requested, nil
	}
	next, err := l.db.GetProposalCounter(txn)
	if err != nil {
		return 0, err
	}
	next = max(next, 1)
	for {
		if next > MaxProposalID {
			return 0, validationErrorf("proposal ids are exhausted")
		}
		existing, err := l.db.GetPgfProposal(next, txn)
		if err != nil {
			return 0, err
		}
		if existing == nil {
			break
		}
		next++
	}
	if err := l.db.SetProposalCounter(next+1, txn); err != nil {
		return 0, err
	}
	return next, nil
}

func validateProposalEpochs(p ProposalTx, params GovParams, epoch uint64) error {
	if p.VotingStartEpoch <= epoch {
		return validationErrorf(
			"voting start epoch %d must be after the current epoch %d",
			p.VotingStartEpoch,
			epoch,
		)
	}
	if p.VotingEndEpoch < p.VotingStartEpoch ||
		p.VotingEndEpoch-p.VotingStartEpoch < params.MinProposalVotingPeriod {
		return validationErrorf(
			"voting period %d..%d is shorter than %d epochs",
			p.VotingStartEpoch,
			p.VotingEndEpoch,
			params.MinProposalVotingPeriod,
		)
	}
	if p.GraceEpoch < p.VotingEndEpoch ||
		p.GraceEpoch-p.VotingEndEpoch < params.MinProposalGraceEpochs {
		return validationErrorf(
			"grace epoch %d must be at least %d epochs after voting end %d",
			p.GraceEpoch,
			params.MinProposalGraceEpochs,
			p.VotingEndEpoch,
		)
	}
	if p.GraceEpoch-p.VotingStartEpoch > params.MaxProposalPeriod {
		return validationErrorf(
			"proposal period %d..%d exceeds %d epochs",
			p.VotingStartEpoch,
			p.GraceEpoch,
			params.MaxProposalPeriod,
		)
	}
	return nil
}

// Vote records a ballot, replacing any earlier ballot by the same voter.
// Approvals that do not match a valid candidacy are accepted here and only
// weigh nothing at tally time.
func (l *ProposalLifecycle) Vote(
	txn *database.Txn,
	v VoteTx,
	epoch uint64,
	height uint64,
) error {
	proposal, err := l.db.GetPgfProposal(v.ProposalID, txn)
	if err != nil {
		return err
	}
	if proposal == nil {
		return validationErrorf("proposal %d does not exist", v.ProposalID)
	}
	if proposal.Resolved() {
		return validationErrorf("proposal %d is already resolved", v.ProposalID)
	}
	if epoch < proposal.VotingStartEpoch || epoch > proposal.VotingEndEpoch {
		return validationErrorf(
			"epoch %d is outside the voting window %d..%d of proposal %d",
			epoch,
			proposal.VotingStartEpoch,
			proposal.VotingEndEpoch,
			proposal.ID,
		)
	}
	if err := address.Address(v.Voter).Validate(); err != nil {
		return validationErrorf("voter: %w", err)
	}
	var kind uint8
	switch v.Kind {
	case BallotApprove:
		if len(v.Approvals) == 0 {
			return validationErrorf("approve ballot without council approvals")
		}
		kind = models.BallotKindApprove
	case BallotReject:
		kind = models.BallotKindReject
	case BallotAbstain:
		kind = models.BallotKindAbstain
	default:
		return validationErrorf("unknown ballot kind %q", v.Kind)
	}
	if kind != models.BallotKindApprove && len(v.Approvals) > 0 {
		return validationErrorf("%s ballot must not carry approvals", v.Kind)
	}
	approvals := make([]models.PgfBallotApproval, 0, len(v.Approvals))
	for _, pair := range v.Approvals {
		if err := address.Address(pair.Address).Validate(); err != nil {
			return validationErrorf("approval address: %w", err)
		}
		approvals = append(approvals, models.PgfBallotApproval{
			CouncilAddress: pair.Address,
			SpendingCap:    types.Uint64(pair.SpendingCap),
		})
	}
	weight, err := l.power.VotingPower(v.Voter, proposal.VotingStartEpoch)
	if err != nil {
		return fmt.Errorf("voting power of %s: %w", v.Voter, err)
	}
	if weight == 0 {
		return validationErrorf(
			"voter %s has no voting power at epoch %d",
			v.Voter,
			proposal.VotingStartEpoch,
		)
	}
	return l.db.SetPgfBallot(
		&models.PgfBallot{
			ProposalID: proposal.ID,
			Voter:      v.Voter,
			Kind:       kind,
			CastEpoch:  epoch,
			CastHeight: height,
			Approvals:  approvals,
		},
		txn,
	)
}

// Tally computes quorum and majority for a proposal. Weights are taken at
// the voting start epoch. Abstain ballots count toward participation and
// against the majority.
func (l *ProposalLifecycle) Tally(
	txn *database.Txn,
	proposal *models.PgfProposal,
) (TallyResult, error) {
	result := TallyResult{ProposalID: proposal.ID}
	total, err := l.power.TotalVotingPower(proposal.VotingStartEpoch)
	if err != nil {
		return result, fmt.Errorf("total voting power: %w", err)
	}
	result.TotalPower = total
	ballots, err := l.db.GetPgfBallots(proposal.ID, txn)
	if err != nil {
		return result, err
	}
	var participation, yay weightSum
	for _, ballot := range ballots {
		weight, err := l.power.VotingPower(ballot.Voter, proposal.VotingStartEpoch)
		if err != nil {
			return result, fmt.Errorf("voting power of %s: %w", ballot.Voter, err)
		}
		participation.add(weight)
		if ballot.Kind != models.BallotKindApprove || len(ballot.Approvals) == 0 {
			continue
		}
		yay.add(weight)
		wb := WeightedBallot{
			Voter:     ballot.Voter,
			Weight:    weight,
			Approvals: make([]CouncilPair, 0, len(ballot.Approvals)),
		}
		for _, a := range ballot.Approvals {
			wb.Approvals = append(wb.Approvals, CouncilPair{
				Address:     a.CouncilAddress,
				SpendingCap: uint64(a.SpendingCap),
			})
		}
		result.YayBallots = append(result.YayBallots, wb)
	}
	result.ParticipationPower = participation.uint64()
	result.YayPower = yay.uint64()
	var totalSum weightSum
	totalSum.add(total)
	quorum := total > 0 && participation.mul(3).Cmp(totalSum.mul(1)) >= 0
	majority := yay.mul(2).Cmp(participation.mul(1)) > 0
	result.Passed = quorum && majority
	if !result.Passed {
		result.YayBallots = nil
	}
	return result, nil
}

// Resolve tallies a proposal, runs the council election, settles the
// deposit and persists the outcome
func (l *ProposalLifecycle) Resolve(
	txn *database.Txn,
	proposal *models.PgfProposal,
	epoch uint64,
) (*ResolveResult, error) {
	tally, err := l.Tally(txn, proposal)
	if err != nil {
		return nil, err
	}
	activation := max(proposal.GraceEpoch, proposal.VotingEndEpoch+1)
	election, err := l.election.Elect(
		txn,
		proposal.ID,
		tally.YayBallots,
		epoch,
		activation,
	)
	if err != nil {
		return nil, err
	}
	depositTo := address.Pgf.String()
	proposal.Status = models.ProposalStatusRejected
	if tally.Passed {
		depositTo = proposal.Author
		proposal.Status = models.ProposalStatusPassed
	}
	if proposal.Deposit > 0 {
		if err := l.tokens.Transfer(
			txn,
			address.Governance.String(),
			depositTo,
			uint64(proposal.Deposit),
		); err != nil {
			return nil, fmt.Errorf("release deposit of proposal %d: %w", proposal.ID, err)
		}
	}
	resolved := epoch
	proposal.ResolvedEpoch = &resolved
	proposal.TotalPower = types.Uint64(tally.TotalPower)
	proposal.ParticipationPower = types.Uint64(tally.ParticipationPower)
	proposal.YayPower = types.Uint64(tally.YayPower)
	if err := l.db.SetPgfProposal(proposal, txn); err != nil {
		return nil, err
	}
	return &ResolveResult{
		Proposal: proposal,
		Tally:    tally,
		Election: election,
	}, nil
}
