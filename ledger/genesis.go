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
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/types"
	"github.com/blinklabs-io/pgf/internal/cbor"
	"github.com/blinklabs-io/pgf/multisig"
)

var ErrGenesisMismatch = errors.New("database was initialized from a different genesis")

// Genesis is the initial ledger state
type Genesis struct {
	Epoch           uint64             `cbor:"epoch"            yaml:"epoch"`
	CandidacyLength uint64             `cbor:"candidacy_length" yaml:"candidacy_length"`
	Treasury        uint64             `cbor:"treasury"         yaml:"treasury"`
	Balances        map[string]uint64  `cbor:"balances"         yaml:"balances"`
	Stake           map[string]uint64  `cbor:"stake"            yaml:"stake"`
	Accounts        []multisig.Account `cbor:"accounts"         yaml:"accounts"`
	Governance      *GovParams         `cbor:"governance"       yaml:"governance"`
	Council         *GenesisCouncil    `cbor:"council"          yaml:"council"`
	Recipients      []GenesisRecipient `cbor:"recipients"       yaml:"recipients"`
}

// GenesisCouncil seeds an initial council, before any election
type GenesisCouncil struct {
	Address         string `cbor:"address"          yaml:"address"`
	SpendingCap     uint64 `cbor:"spending_cap"     yaml:"spending_cap"`
	ActivationEpoch uint64 `cbor:"activation_epoch" yaml:"activation_epoch"`
}

type GenesisRecipient struct {
	Address        string `cbor:"address"          yaml:"address"`
	AmountPerEpoch uint64 `cbor:"amount_per_epoch" yaml:"amount_per_epoch"`
}

func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(data)
}

func ParseGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g *Genesis) Params() GovParams {
	if g.Governance == nil {
		return DefaultGovParams()
	}
	return *g.Governance
}

func (g *Genesis) Validate() error {
	if g.CandidacyLength == 0 {
		return errors.New("genesis: candidacy_length must be positive")
	}
	if err := g.Params().Validate(); err != nil {
		return fmt.Errorf("genesis: governance: %w", err)
	}
	for addr := range g.Balances {
		if err := validateUserAddress(addr); err != nil {
			return fmt.Errorf("genesis: balance: %w", err)
		}
	}
	for addr := range g.Stake {
		if err := validateUserAddress(addr); err != nil {
			return fmt.Errorf("genesis: stake: %w", err)
		}
	}
	for i, acct := range g.Accounts {
		if _, err := acct.Address(); err != nil {
			return fmt.Errorf("genesis: account %d: %w", i, err)
		}
	}
	if g.Council != nil {
		if err := validateUserAddress(g.Council.Address); err != nil {
			return fmt.Errorf("genesis: council: %w", err)
		}
		if g.Council.SpendingCap == 0 {
			return errors.New("genesis: council spending_cap must be positive")
		}
	}
	for _, r := range g.Recipients {
		if err := validateUserAddress(r.Address); err != nil {
			return fmt.Errorf("genesis: recipient: %w", err)
		}
		if r.AmountPerEpoch == 0 {
			return fmt.Errorf("genesis: recipient %s amount_per_epoch must be positive", r.Address)
		}
	}
	return nil
}

func validateUserAddress(addr string) error {
	a := address.Address(addr)
	if err := a.Validate(); err != nil {
		return err
	}
	if a.IsInternal() {
		return fmt.Errorf("%w: %s is internal", address.ErrInvalidAddress, addr)
	}
	return nil
}

// Hash identifies the genesis content
func (g *Genesis) Hash() ([]byte, error) {
	data, err := cbor.Encode(g)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(data)
	return sum[:], nil
}

// VotingPower returns the static stake table of the genesis
func (g *Genesis) VotingPower() *StaticVotingPower {
	return NewStaticVotingPower(g.Stake)
}

// initGenesis writes the genesis state. It returns false when the store
// already holds the same genesis.
func initGenesis(
	db *database.Database,
	g *Genesis,
	txn *database.Txn,
) (bool, error) {
	hash, err := g.Hash()
	if err != nil {
		return false, err
	}
	var stored []byte
	ok, err := db.GetBlobValue(txn, types.ChainGenesisKey(), &stored)
	if err != nil {
		return false, err
	}
	if ok {
		if !bytes.Equal(stored, hash) {
			return false, ErrGenesisMismatch
		}
		return false, nil
	}
	if err := db.SetBlobValue(txn, types.ChainGenesisKey(), hash); err != nil {
		return false, err
	}
	if err := storeGovParams(db, g.Params(), txn); err != nil {
		return false, err
	}
	if err := db.SetCandidacyLength(g.CandidacyLength, txn); err != nil {
		return false, err
	}
	if err := db.SetChainEpoch(g.Epoch, txn); err != nil {
		return false, err
	}
	for addr, amount := range g.Balances {
		if err := db.SetBalance(addr, amount, txn); err != nil {
			return false, err
		}
	}
	if err := db.SetBalance(address.Pgf.String(), g.Treasury, txn); err != nil {
		return false, err
	}
	for _, acct := range g.Accounts {
		addr, err := acct.Address()
		if err != nil {
			return false, err
		}
		if err := db.SetAccount(addr.String(), acct, txn); err != nil {
			return false, err
		}
	}
	for _, r := range g.Recipients {
		if err := db.SetRecipient(
			database.Recipient{Address: r.Address, AmountPerEpoch: r.AmountPerEpoch},
			txn,
		); err != nil {
			return false, err
		}
	}
	if g.Council != nil {
		council := database.Council{
			Address:         g.Council.Address,
			SpendingCap:     min(g.Council.SpendingCap, g.Treasury),
			ActivationEpoch: g.Council.ActivationEpoch,
		}
		if err := db.SetActiveCouncil(council, txn); err != nil {
			return false, err
		}
		if err := db.AddCouncilTerm(
			&models.CouncilTerm{
				Address:         council.Address,
				DeclaredCap:     types.Uint64(g.Council.SpendingCap),
				SpendingCap:     types.Uint64(council.SpendingCap),
				ElectedEpoch:    g.Epoch,
				ActivationEpoch: council.ActivationEpoch,
			},
			txn,
		); err != nil {
			return false, err
		}
	}
	return true, nil
}
