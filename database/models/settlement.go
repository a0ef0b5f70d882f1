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

package models

import "github.com/blinklabs-io/pgf/database/types"

// SettlementRecord is one continuous funding payout attempt. Unpaid
// records carry the reason the payout was skipped.
type SettlementRecord struct {
	ID        uint         `gorm:"primarykey"`
	Epoch     uint64       `gorm:"index;not null"`
	Recipient string       `gorm:"index;size:64;not null"`
	Amount    types.Uint64 `gorm:"not null"`
	Paid      bool         `gorm:"not null"`
	Reason    string       `gorm:"size:256"`
}

// TableName returns the table name
func (SettlementRecord) TableName() string {
	return "settlement_record"
}

// TxRecord is the outcome of a transaction applied in a block
type TxRecord struct {
	ID     uint   `gorm:"primarykey"`
	Hash   []byte `gorm:"index;size:32;not null"`
	Height uint64 `gorm:"index;not null"`
	Index  uint32 `gorm:"not null"`
	Epoch  uint64 `gorm:"index;not null"`
	Kind   string `gorm:"size:32;not null"`
	Signer string `gorm:"size:64"`
	Error  string `gorm:"size:512"`
}

// TableName returns the table name
func (TxRecord) TableName() string {
	return "tx_record"
}

// Success reports whether the transaction applied without error
func (t *TxRecord) Success() bool {
	return t.Error == ""
}
