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
	"cmp"
	"fmt"
	"slices"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/types"
)

// ElectionResult describes the council change made when a proposal resolves.
// Revoked is the council that lost its rights, Elected the new council.
// Either may be nil.
type ElectionResult struct {
	ProposalID  uint64
	Revoked     *database.Council
	Elected     *database.Council
	DeclaredCap uint64
	Weight      uint64
}

// CouncilElection turns approve ballots into at most one council using
// weighted approval voting
type CouncilElection struct {
	db          *database.Database
	candidacies *CandidacyRegistry
	tokens      TokenLedger
}

func NewCouncilElection(
	db *database.Database,
	candidacies *CandidacyRegistry,
	tokens TokenLedger,
) *CouncilElection {
	return &CouncilElection{
		db:          db,
		candidacies: candidacies,
		tokens:      tokens,
	}
}

type pairTally struct {
	pair   CouncilPair
	weight weightSum
}

// less orders candidates for election: greater weight first, then the
// lower spending cap, then the smaller address
func (p *pairTally) less(other *pairTally) bool {
	if c := p.weight.cmp(&other.weight); c != 0 {
		return c > 0
	}
	if p.pair.SpendingCap != other.pair.SpendingCap {
		return p.pair.SpendingCap < other.pair.SpendingCap
	}
	return p.pair.Address < other.pair.Address
}

// Winner returns the best valid pair named by the ballots, or nil. Every
// ballot gives its full weight to each distinct pair it names.
func (e *CouncilElection) Winner(
	txn *database.Txn,
	ballots []WeightedBallot,
	epoch uint64,
) (*CouncilPair, uint64, error) {
	tallies := make(map[CouncilPair]*pairTally)
	validity := make(map[CouncilPair]bool)
	for _, ballot := range ballots {
		for _, pair := range sortedPairs(ballot.Approvals) {
			valid, ok := validity[pair]
			if !ok {
				var err error
				valid, err = e.candidacies.IsValid(
					txn,
					pair.Address,
					pair.SpendingCap,
					epoch,
				)
				if err != nil {
					return nil, 0, err
				}
				validity[pair] = valid
			}
			if !valid {
				continue
			}
			t, ok := tallies[pair]
			if !ok {
				t = &pairTally{pair: pair}
				tallies[pair] = t
			}
			t.weight.add(ballot.Weight)
		}
	}
	var best *pairTally
	for _, t := range tallies {
		if t.weight.isZero() {
			continue
		}
		if best == nil || t.less(best) {
			best = t
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	winner := best.pair
	return &winner, best.weight.uint64(), nil
}

// Elect revokes the current council and installs the winner of the ballots,
// if any. The new council's cap is clamped to the treasury balance.
func (e *CouncilElection) Elect(
	txn *database.Txn,
	proposalID uint64,
	ballots []WeightedBallot,
	epoch uint64,
	activationEpoch uint64,
) (ElectionResult, error) {
	result := ElectionResult{ProposalID: proposalID}
	previous, err := e.db.GetActiveCouncil(txn)
	if err != nil {
		return result, err
	}
	if previous != nil {
		if err := e.db.ClearActiveCouncil(txn); err != nil {
			return result, err
		}
		result.Revoked = previous
	}
	var spent uint64
	if previous != nil {
		spent = previous.SpentAmount
	}
	if err := e.db.RevokeCouncilTerms(epoch, spent, txn); err != nil {
		return result, err
	}
	winner, weight, err := e.Winner(txn, ballots, epoch)
	if err != nil || winner == nil {
		return result, err
	}
	treasury, err := e.tokens.Balance(txn, address.Pgf.String())
	if err != nil {
		return result, fmt.Errorf("treasury balance: %w", err)
	}
	council := database.Council{
		Address:         winner.Address,
		SpendingCap:     min(winner.SpendingCap, treasury),
		SpentAmount:     0,
		ActivationEpoch: activationEpoch,
	}
	if err := e.db.SetActiveCouncil(council, txn); err != nil {
		return result, err
	}
	if err := e.db.AddCouncilTerm(
		&models.CouncilTerm{
			ProposalID:      proposalID,
			Address:         council.Address,
			DeclaredCap:     types.Uint64(winner.SpendingCap),
			SpendingCap:     types.Uint64(council.SpendingCap),
			Weight:          types.Uint64(weight),
			ElectedEpoch:    epoch,
			ActivationEpoch: activationEpoch,
		},
		txn,
	); err != nil {
		return result, err
	}
	result.Elected = &council
	result.DeclaredCap = winner.SpendingCap
	result.Weight = weight
	return result, nil
}

// sortedPairs returns the distinct pairs of a ballot in canonical order
func sortedPairs(pairs []CouncilPair) []CouncilPair {
	ret := slices.Clone(pairs)
	slices.SortFunc(ret, func(a, b CouncilPair) int {
		if c := cmp.Compare(a.Address, b.Address); c != 0 {
			return c
		}
		return cmp.Compare(a.SpendingCap, b.SpendingCap)
	})
	return slices.Compact(ret)
}
