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

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/types"
	"github.com/blinklabs-io/pgf/multisig"
)

// SettlementReport is the outcome of settling one epoch
type SettlementReport struct {
	Epoch          uint64
	AlreadySettled bool
	Payouts        []*Spend
	Deficiencies   []*InsufficientBalanceAtSettlementError
}

// ContinuousFundingLedger keeps the recurring recipient set and pays it out
// once per epoch
type ContinuousFundingLedger struct {
	db       *database.Database
	treasury *TreasuryAccount
}

func NewContinuousFundingLedger(
	db *database.Database,
	treasury *TreasuryAccount,
) *ContinuousFundingLedger {
	return &ContinuousFundingLedger{
		db:       db,
		treasury: treasury,
	}
}

func (c *ContinuousFundingLedger) AddRecipient(
	txn *database.Txn,
	caller string,
	sigs []multisig.Signature,
	msg []byte,
	addr string,
	amountPerEpoch uint64,
	epoch uint64,
) error {
	if _, err := c.treasury.authorizeCouncil(txn, caller, sigs, msg, epoch); err != nil {
		return err
	}
	recipient := address.Address(addr)
	if err := recipient.Validate(); err != nil {
		return validationErrorf("recipient address: %w", err)
	}
	if recipient.IsInternal() {
		return validationErrorf("recipient %s is an internal address", addr)
	}
	if amountPerEpoch == 0 {
		return validationErrorf("recipient amount per epoch must be positive")
	}
	return c.db.SetRecipient(
		database.Recipient{Address: addr, AmountPerEpoch: amountPerEpoch},
		txn,
	)
}

func (c *ContinuousFundingLedger) RemoveRecipient(
	txn *database.Txn,
	caller string,
	sigs []multisig.Signature,
	msg []byte,
	addr string,
	epoch uint64,
) error {
	if _, err := c.treasury.authorizeCouncil(txn, caller, sigs, msg, epoch); err != nil {
		return err
	}
	existing, err := c.db.GetRecipient(addr, txn)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{What: "recipient", Key: addr}
	}
	return c.db.DeleteRecipient(addr, txn)
}

func (c *ContinuousFundingLedger) Recipients(txn *database.Txn) ([]database.Recipient, error) {
	return c.db.GetRecipients(txn)
}

// SettleEpoch pays every recipient its amount for epoch. A payout that
// cannot be made is recorded as a deficiency and the remaining recipients
// are still processed. Settling an epoch a second time does nothing.
func (c *ContinuousFundingLedger) SettleEpoch(
	txn *database.Txn,
	epoch uint64,
) (*SettlementReport, error) {
	report := &SettlementReport{Epoch: epoch}
	last, settled, err := c.db.GetLastSettledEpoch(txn)
	if err != nil {
		return nil, err
	}
	if settled && epoch <= last {
		report.AlreadySettled = true
		return report, nil
	}
	recipients, err := c.db.GetRecipients(txn)
	if err != nil {
		return nil, err
	}
	council, err := c.db.GetActiveCouncil(txn)
	if err != nil {
		return nil, err
	}
	var councilErr error
	switch {
	case council == nil:
		councilErr = authorizationErrorf("no active council")
	case epoch < council.ActivationEpoch:
		councilErr = authorizationErrorf(
			"council %s is not active until epoch %d",
			council.Address,
			council.ActivationEpoch,
		)
	}
	records := make([]models.SettlementRecord, 0, len(recipients))
	for _, r := range recipients {
		record := models.SettlementRecord{
			Epoch:     epoch,
			Recipient: r.Address,
			Amount:    types.Uint64(r.AmountPerEpoch),
		}
		payErr := councilErr
		if payErr == nil {
			var spend *Spend
			spend, payErr = c.treasury.spendAllowance(
				txn,
				council,
				r.AmountPerEpoch,
				r.Address,
			)
			if payErr == nil {
				report.Payouts = append(report.Payouts, spend)
			} else if !errors.Is(payErr, ErrCapExceeded) &&
				!errors.Is(payErr, ErrValidation) {
				return nil, payErr
			}
		}
		if payErr != nil {
			report.Deficiencies = append(
				report.Deficiencies,
				&InsufficientBalanceAtSettlementError{
					Recipient: r.Address,
					Amount:    r.AmountPerEpoch,
					Epoch:     epoch,
					Err:       payErr,
				},
			)
			record.Reason = truncate(payErr.Error(), 256)
		} else {
			record.Paid = true
		}
		records = append(records, record)
	}
	if err := c.db.AddSettlementRecords(records, txn); err != nil {
		return nil, err
	}
	if err := c.db.SetLastSettledEpoch(epoch, txn); err != nil {
		return nil, err
	}
	return report, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
