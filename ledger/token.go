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
	"errors"
	"fmt"

	"github.com/blinklabs-io/pgf/database"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// TokenLedger is the debit/credit primitive over native token balances
type TokenLedger interface {
	Balance(txn *database.Txn, addr string) (uint64, error)
	Debit(txn *database.Txn, addr string, amount uint64) error
	Credit(txn *database.Txn, addr string, amount uint64) error
	Transfer(txn *database.Txn, from string, to string, amount uint64) error
}

// BalanceLedger keeps balances under /Balance/<address> in the blob store
type BalanceLedger struct {
	db *database.Database
}

func NewBalanceLedger(db *database.Database) *BalanceLedger {
	return &BalanceLedger{db: db}
}

func (b *BalanceLedger) Balance(txn *database.Txn, addr string) (uint64, error) {
	return b.db.GetBalance(addr, txn)
}

func (b *BalanceLedger) Debit(txn *database.Txn, addr string, amount uint64) error {
	bal, err := b.db.GetBalance(addr, txn)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf(
			"%w: %s has %d, needs %d",
			ErrInsufficientBalance,
			addr,
			bal,
			amount,
		)
	}
	return b.db.SetBalance(addr, bal-amount, txn)
}

func (b *BalanceLedger) Credit(txn *database.Txn, addr string, amount uint64) error {
	bal, err := b.db.GetBalance(addr, txn)
	if err != nil {
		return err
	}
	newBal, ok := addUint64(bal, amount)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr)
	}
	return b.db.SetBalance(addr, newBal, txn)
}

func (b *BalanceLedger) Transfer(
	txn *database.Txn,
	from string,
	to string,
	amount uint64,
) error {
	if err := b.Debit(txn, from, amount); err != nil {
		return err
	}
	return b.Credit(txn, to, amount)
}
