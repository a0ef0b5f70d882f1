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

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/ledger"
	"github.com/blinklabs-io/pgf/mempool"
)

// NodeAdapter wraps a LedgerState and a Mempool to implement the Node
// interface.
type NodeAdapter struct {
	ledgerState *ledger.LedgerState
	mempool     *mempool.Mempool
}

// NewNodeAdapter creates a NodeAdapter. Panics if ls is nil. A nil mempool
// makes the adapter read-only.
func NewNodeAdapter(
	ls *ledger.LedgerState,
	mp *mempool.Mempool,
) *NodeAdapter {
	if ls == nil {
		panic("NewNodeAdapter: LedgerState must not be nil")
	}
	return &NodeAdapter{ledgerState: ls, mempool: mp}
}

func (a *NodeAdapter) Epoch() (EpochInfo, error) {
	return EpochInfo{
		Epoch:  a.ledgerState.CurrentEpoch(),
		Height: a.ledgerState.Height(),
	}, nil
}

// Council returns the active council from the blob store, enriched with
// its election record when one exists.
func (a *NodeAdapter) Council() (CouncilInfo, error) {
	council, err := a.ledgerState.ActiveCouncil()
	if err != nil {
		return CouncilInfo{}, err
	}
	if council == nil {
		return CouncilInfo{}, ErrNotFound
	}
	ret := CouncilInfo{
		Address:         council.Address,
		SpendingCap:     council.SpendingCap,
		SpentAmount:     council.SpentAmount,
		ActivationEpoch: council.ActivationEpoch,
	}
	terms, err := a.ledgerState.CouncilTerms()
	if err != nil {
		return CouncilInfo{}, err
	}
	// Terms are ordered oldest first
	for i := len(terms) - 1; i >= 0; i-- {
		term := terms[i]
		if term.Address != council.Address || term.RevokedEpoch != nil {
			continue
		}
		ret.ProposalID = term.ProposalID
		ret.Weight = uint64(term.Weight)
		ret.ElectedEpoch = term.ElectedEpoch
		break
	}
	return ret, nil
}

func (a *NodeAdapter) CouncilHistory() ([]CouncilInfo, error) {
	terms, err := a.ledgerState.CouncilTerms()
	if err != nil {
		return nil, err
	}
	ret := make([]CouncilInfo, 0, len(terms))
	for _, term := range terms {
		ret = append(ret, councilTermInfo(term))
	}
	return ret, nil
}

func (a *NodeAdapter) Treasury() (TreasuryInfo, error) {
	balance, err := a.ledgerState.TreasuryBalance()
	if err != nil {
		return TreasuryInfo{}, err
	}
	return TreasuryInfo{Balance: balance}, nil
}

func (a *NodeAdapter) Recipients() ([]RecipientInfo, error) {
	recipients, err := a.ledgerState.Recipients()
	if err != nil {
		return nil, err
	}
	ret := make([]RecipientInfo, 0, len(recipients))
	for _, r := range recipients {
		ret = append(ret, RecipientInfo{
			Address:        r.Address,
			AmountPerEpoch: r.AmountPerEpoch,
		})
	}
	return ret, nil
}

func (a *NodeAdapter) Candidacies() ([]CandidacyInfo, error) {
	candidacies, err := a.ledgerState.Candidacies()
	if err != nil {
		return nil, err
	}
	ret := make([]CandidacyInfo, 0, len(candidacies))
	for _, c := range candidacies {
		ret = append(ret, CandidacyInfo{
			Address:        c.Address,
			SpendingCap:    c.SpendingCap,
			ProposedEpoch:  c.ProposedEpoch,
			ExpiryEpoch:    c.ExpiryEpoch,
			AttestationURL: c.AttestationURL,
			Valid:          c.Valid,
		})
	}
	return ret, nil
}

func (a *NodeAdapter) Proposals() ([]ProposalInfo, error) {
	proposals, err := a.ledgerState.Proposals()
	if err != nil {
		return nil, err
	}
	epoch := a.ledgerState.CurrentEpoch()
	ret := make([]ProposalInfo, 0, len(proposals))
	for i := range proposals {
		info, err := proposalInfo(&proposals[i], epoch)
		if err != nil {
			return nil, err
		}
		ret = append(ret, info)
	}
	return ret, nil
}

func (a *NodeAdapter) Proposal(id uint64) (ProposalInfo, error) {
	proposal, err := a.ledgerState.Proposal(id)
	if err != nil {
		return ProposalInfo{}, err
	}
	if proposal == nil {
		return ProposalInfo{}, ErrNotFound
	}
	return proposalInfo(proposal, a.ledgerState.CurrentEpoch())
}

func (a *NodeAdapter) Ballots(proposalID uint64) ([]BallotInfo, error) {
	proposal, err := a.ledgerState.Proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, ErrNotFound
	}
	ballots, err := a.ledgerState.Ballots(proposalID)
	if err != nil {
		return nil, err
	}
	ret := make([]BallotInfo, 0, len(ballots))
	for _, b := range ballots {
		info := BallotInfo{
			Voter:     b.Voter,
			Kind:      ballotKindName(b.Kind),
			CastEpoch: b.CastEpoch,
		}
		for _, approval := range b.Approvals {
			info.Approvals = append(info.Approvals, ApprovalInfo{
				CouncilAddress: approval.CouncilAddress,
				SpendingCap:    uint64(approval.SpendingCap),
			})
		}
		ret = append(ret, info)
	}
	return ret, nil
}

func (a *NodeAdapter) Settlements(epoch uint64) ([]SettlementInfo, error) {
	records, err := a.ledgerState.Settlements(epoch)
	if err != nil {
		return nil, err
	}
	ret := make([]SettlementInfo, 0, len(records))
	for _, r := range records {
		ret = append(ret, SettlementInfo{
			Epoch:     r.Epoch,
			Recipient: r.Recipient,
			Amount:    uint64(r.Amount),
			Paid:      r.Paid,
			Reason:    r.Reason,
		})
	}
	return ret, nil
}

func (a *NodeAdapter) Balance(addr string) (uint64, error) {
	return a.ledgerState.Balance(addr)
}

// SubmitTx hands the transaction to the mempool. Validation failures are
// wrapped in ErrTxRejected and a full or stopped mempool in
// ErrUnavailable.
func (a *NodeAdapter) SubmitTx(txBytes []byte) (string, error) {
	if a.mempool == nil {
		return "", fmt.Errorf("%w: no mempool", ErrUnavailable)
	}
	hash, err := a.mempool.AddTransaction(txBytes)
	if err == nil {
		return hash, nil
	}
	var fullErr *mempool.MempoolFullError
	switch {
	case errors.As(err, &fullErr),
		errors.Is(err, mempool.ErrMempoolStopped):
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, ledger.ErrInvalidTx),
		errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrAuthorization):
		return "", fmt.Errorf("%w: %w", ErrTxRejected, err)
	}
	return "", err
}

func councilTermInfo(term models.CouncilTerm) CouncilInfo {
	return CouncilInfo{
		Address:         term.Address,
		ProposalID:      term.ProposalID,
		SpendingCap:     uint64(term.SpendingCap),
		SpentAmount:     uint64(term.SpentAmount),
		Weight:          uint64(term.Weight),
		ElectedEpoch:    term.ElectedEpoch,
		ActivationEpoch: term.ActivationEpoch,
		RevokedEpoch:    term.RevokedEpoch,
	}
}

func proposalInfo(
	p *models.PgfProposal,
	epoch uint64,
) (ProposalInfo, error) {
	content, err := ledger.ProposalContent(p)
	if err != nil {
		return ProposalInfo{}, fmt.Errorf(
			"proposal %d content: %w",
			p.ID,
			err,
		)
	}
	return ProposalInfo{
		ID:                 p.ID,
		Author:             p.Author,
		Content:            content,
		VotingStartEpoch:   p.VotingStartEpoch,
		VotingEndEpoch:     p.VotingEndEpoch,
		GraceEpoch:         p.GraceEpoch,
		Deposit:            uint64(p.Deposit),
		Status:             string(ledger.ProposalStatusAt(p, epoch)),
		ResolvedEpoch:      p.ResolvedEpoch,
		TotalPower:         uint64(p.TotalPower),
		ParticipationPower: uint64(p.ParticipationPower),
		YayPower:           uint64(p.YayPower),
	}, nil
}

func ballotKindName(kind uint8) string {
	switch kind {
	case models.BallotKindApprove:
		return string(ledger.BallotApprove)
	case models.BallotKindReject:
		return string(ledger.BallotReject)
	case models.BallotKindAbstain:
		return string(ledger.BallotAbstain)
	}
	return "unknown"
}
