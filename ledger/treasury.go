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
	"github.com/blinklabs-io/pgf/multisig"
)

// Spend is a successful treasury debit. An empty Destination is a burn.
type Spend struct {
	Council     string
	Destination string
	Amount      uint64
	SpentAmount uint64
	SpendingCap uint64
}

// TreasuryAccount guards the PGF treasury balance behind the active
// council's spending cap
type TreasuryAccount struct {
	db       *database.Database
	tokens   TokenLedger
	verifier SignatureVerifier
}

func NewTreasuryAccount(
	db *database.Database,
	tokens TokenLedger,
	verifier SignatureVerifier,
) *TreasuryAccount {
	return &TreasuryAccount{
		db:       db,
		tokens:   tokens,
		verifier: verifier,
	}
}

func (t *TreasuryAccount) Balance(txn *database.Txn) (uint64, error) {
	return t.tokens.Balance(txn, address.Pgf.String())
}

// authorizeCouncil checks that signer is the active council, that the
// signatures satisfy its key set and that its powers are active at epoch
func (t *TreasuryAccount) authorizeCouncil(
	txn *database.Txn,
	signer string,
	sigs []multisig.Signature,
	msg []byte,
	epoch uint64,
) (*database.Council, error) {
	council, err := t.db.GetActiveCouncil(txn)
	if err != nil {
		return nil, err
	}
	if council == nil {
		return nil, authorizationErrorf("no active council")
	}
	if council.Address != signer {
		return nil, authorizationErrorf(
			"signer %s is not the active council %s",
			signer,
			council.Address,
		)
	}
	if err := t.verifier.VerifySignatures(txn, signer, msg, sigs); err != nil {
		return nil, authorizationErrorf("council signature: %w", err)
	}
	if epoch < council.ActivationEpoch {
		return nil, authorizationErrorf(
			"council %s is not active until epoch %d",
			council.Address,
			council.ActivationEpoch,
		)
	}
	return council, nil
}

// AuthorizeSpend debits the treasury on behalf of the active council and
// credits destination, or burns the amount when destination is empty
func (t *TreasuryAccount) AuthorizeSpend(
	txn *database.Txn,
	signer string,
	sigs []multisig.Signature,
	msg []byte,
	amount uint64,
	destination string,
	epoch uint64,
) (*Spend, error) {
	council, err := t.authorizeCouncil(txn, signer, sigs, msg, epoch)
	if err != nil {
		return nil, err
	}
	if destination != "" {
		dest := address.Address(destination)
		if err := dest.Validate(); err != nil {
			return nil, validationErrorf("transfer target: %w", err)
		}
		if dest.IsInternal() {
			return nil, validationErrorf("transfer target %s is an internal address", destination)
		}
	}
	return t.spendAllowance(txn, council, amount, destination)
}

// spendAllowance applies a spend against the cap and the treasury balance
// and updates council.SpentAmount in place
func (t *TreasuryAccount) spendAllowance(
	txn *database.Txn,
	council *database.Council,
	amount uint64,
	destination string,
) (*Spend, error) {
	if amount == 0 {
		return nil, validationErrorf("spend amount must be positive")
	}
	newSpent, ok := addUint64(council.SpentAmount, amount)
	if !ok || newSpent > council.SpendingCap {
		return nil, &CapExceededError{
			SpendingCap: council.SpendingCap,
			SpentAmount: council.SpentAmount,
			Amount:      amount,
		}
	}
	balance, err := t.Balance(txn)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, validationErrorf(
			"%w: treasury holds %d, spend needs %d",
			ErrInsufficientBalance,
			balance,
			amount,
		)
	}
	if err := t.tokens.Debit(txn, address.Pgf.String(), amount); err != nil {
		return nil, err
	}
	if destination != "" {
		if err := t.tokens.Credit(txn, destination, amount); err != nil {
			return nil, err
		}
	}
	if err := t.db.SetSpentAmount(newSpent, txn); err != nil {
		return nil, err
	}
	council.SpentAmount = newSpent
	return &Spend{
		Council:     council.Address,
		Destination: destination,
		Amount:      amount,
		SpentAmount: newSpent,
		SpendingCap: council.SpendingCap,
	}, nil
}
