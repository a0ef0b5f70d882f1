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

package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blinklabs-io/pgf/database/types"
	"github.com/blinklabs-io/pgf/internal/cbor"
	"github.com/blinklabs-io/pgf/multisig"
)

// Candidacy is a council candidacy stored under its (address, cap) key
type Candidacy struct {
	Address        string
	SpendingCap    uint64
	ProposedEpoch  uint64
	AttestationURL string
}

// candidacyValue is the stored (epoch, attestation_url) value
type candidacyValue struct {
	_              struct{} `cbor:",toarray"`
	Epoch          uint64
	AttestationURL string
}

// Recipient is a continuous funding recipient
type Recipient struct {
	Address        string
	AmountPerEpoch uint64
}

// Council is the active council as recorded in the blob store
type Council struct {
	Address         string
	SpendingCap     uint64
	SpentAmount     uint64
	ActivationEpoch uint64
}

func (d *Database) blobTxn(txn *Txn) (types.Txn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	if txn.Blob() == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return txn.Blob(), nil
}

// GetBlobValue decodes the CBOR value stored at key into dst. It returns
// false without error when the key does not exist.
func (d *Database) GetBlobValue(txn *Txn, key []byte, dst any) (bool, error) {
	btxn, err := d.blobTxn(txn)
	if err != nil {
		return false, err
	}
	val, err := d.blob.Get(btxn, key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := cbor.Decode(val, dst); err != nil {
		return false, fmt.Errorf("decode value for key %q: %w", key, err)
	}
	return true, nil
}

// SetBlobValue stores the CBOR encoding of val at key
func (d *Database) SetBlobValue(txn *Txn, key []byte, val any) error {
	btxn, err := d.blobTxn(txn)
	if err != nil {
		return err
	}
	data, err := cbor.Encode(val)
	if err != nil {
		return fmt.Errorf("encode value for key %q: %w", key, err)
	}
	return d.blob.Set(btxn, key, data)
}

// DeleteBlobValue removes key
func (d *Database) DeleteBlobValue(txn *Txn, key []byte) error {
	btxn, err := d.blobTxn(txn)
	if err != nil {
		return err
	}
	return d.blob.Delete(btxn, key)
}

// getUint64 returns the uint64 stored at key, or zero if it is missing
func (d *Database) getUint64(txn *Txn, key []byte) (uint64, error) {
	var ret uint64
	if _, err := d.GetBlobValue(txn, key, &ret); err != nil {
		return 0, err
	}
	return ret, nil
}

// iteratePrefix calls fn for every key/value under prefix in key order
func (d *Database) iteratePrefix(
	txn *Txn,
	prefix []byte,
	fn func(key []byte, val []byte) error,
) error {
	btxn, err := d.blobTxn(txn)
	if err != nil {
		return err
	}
	iter := d.blob.NewIterator(btxn, types.BlobIteratorOptions{Prefix: prefix})
	defer iter.Close()
	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.Key(), val); err != nil {
			return err
		}
	}
	return iter.Err()
}

// SetCandidacy upserts a candidacy
func (d *Database) SetCandidacy(candidacy Candidacy, txn *Txn) error {
	return d.SetBlobValue(
		txn,
		types.PgfCandidateKey(candidacy.Address, candidacy.SpendingCap),
		candidacyValue{
			Epoch:          candidacy.ProposedEpoch,
			AttestationURL: candidacy.AttestationURL,
		},
	)
}

// GetCandidacy returns the candidacy for an exact (address, cap) pair, or nil
func (d *Database) GetCandidacy(
	addr string,
	spendingCap uint64,
	txn *Txn,
) (*Candidacy, error) {
	var val candidacyValue
	ok, err := d.GetBlobValue(txn, types.PgfCandidateKey(addr, spendingCap), &val)
	if err != nil || !ok {
		return nil, err
	}
	return &Candidacy{
		Address:        addr,
		SpendingCap:    spendingCap,
		ProposedEpoch:  val.Epoch,
		AttestationURL: val.AttestationURL,
	}, nil
}

// GetCandidacies returns every stored candidacy, including expired ones
func (d *Database) GetCandidacies(txn *Txn) ([]Candidacy, error) {
	var ret []Candidacy
	prefix := types.PgfCandidatePrefix()
	err := d.iteratePrefix(txn, prefix, func(key, data []byte) error {
		rest := strings.TrimPrefix(string(key), string(prefix))
		idx := strings.LastIndex(rest, "/")
		if idx < 0 {
			return fmt.Errorf("malformed candidacy key: %s", key)
		}
		spendingCap, err := strconv.ParseUint(rest[idx+1:], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed candidacy key %s: %w", key, err)
		}
		var val candidacyValue
		if err := cbor.Decode(data, &val); err != nil {
			return err
		}
		ret = append(ret, Candidacy{
			Address:        rest[:idx],
			SpendingCap:    spendingCap,
			ProposedEpoch:  val.Epoch,
			AttestationURL: val.AttestationURL,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// GetCandidacyLength returns the number of epochs a candidacy stays valid
func (d *Database) GetCandidacyLength(txn *Txn) (uint64, error) {
	return d.getUint64(txn, types.PgfCandidacyLengthKey())
}

func (d *Database) SetCandidacyLength(length uint64, txn *Txn) error {
	return d.SetBlobValue(txn, types.PgfCandidacyLengthKey(), length)
}

// SetRecipient upserts a continuous funding recipient
func (d *Database) SetRecipient(recipient Recipient, txn *Txn) error {
	return d.SetBlobValue(
		txn,
		types.PgfRecipientKey(recipient.Address),
		recipient.AmountPerEpoch,
	)
}

// GetRecipient returns a continuous funding recipient, or nil
func (d *Database) GetRecipient(addr string, txn *Txn) (*Recipient, error) {
	var amount uint64
	ok, err := d.GetBlobValue(txn, types.PgfRecipientKey(addr), &amount)
	if err != nil || !ok {
		return nil, err
	}
	return &Recipient{Address: addr, AmountPerEpoch: amount}, nil
}

func (d *Database) DeleteRecipient(addr string, txn *Txn) error {
	return d.DeleteBlobValue(txn, types.PgfRecipientKey(addr))
}

// GetRecipients returns the continuous funding recipients ordered by address
func (d *Database) GetRecipients(txn *Txn) ([]Recipient, error) {
	var ret []Recipient
	prefix := types.PgfRecipientPrefix()
	err := d.iteratePrefix(txn, prefix, func(key, data []byte) error {
		var amount uint64
		if err := cbor.Decode(data, &amount); err != nil {
			return err
		}
		ret = append(ret, Recipient{
			Address:        strings.TrimPrefix(string(key), string(prefix)),
			AmountPerEpoch: amount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// GetActiveCouncil returns the active council, or nil if there is none
func (d *Database) GetActiveCouncil(txn *Txn) (*Council, error) {
	var addrs []string
	err := d.iteratePrefix(
		txn,
		types.PgfActiveCouncilPrefix(),
		func(_, data []byte) error {
			var addr string
			if err := cbor.Decode(data, &addr); err != nil {
				return err
			}
			addrs = append(addrs, addr)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	switch len(addrs) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("found %d active councils", len(addrs))
	}
	council := &Council{Address: addrs[0]}
	if council.SpendingCap, err = d.getUint64(txn, types.PgfSpendingCapKey()); err != nil {
		return nil, err
	}
	if council.SpentAmount, err = d.getUint64(txn, types.PgfSpentAmountKey()); err != nil {
		return nil, err
	}
	if council.ActivationEpoch, err = d.getUint64(txn, types.PgfActivationEpochKey()); err != nil {
		return nil, err
	}
	return council, nil
}

// SetActiveCouncil installs a council, replacing any existing one
func (d *Database) SetActiveCouncil(council Council, txn *Txn) error {
	if err := d.ClearActiveCouncil(txn); err != nil {
		return err
	}
	if err := d.SetBlobValue(
		txn,
		types.PgfActiveCouncilKey(council.Address),
		council.Address,
	); err != nil {
		return err
	}
	if err := d.SetBlobValue(txn, types.PgfSpendingCapKey(), council.SpendingCap); err != nil {
		return err
	}
	if err := d.SetSpentAmount(council.SpentAmount, txn); err != nil {
		return err
	}
	return d.SetBlobValue(txn, types.PgfActivationEpochKey(), council.ActivationEpoch)
}

// ClearActiveCouncil removes the active council entry. The cap and spent
// amount keys are left in place as a frozen record of the revoked term.
func (d *Database) ClearActiveCouncil(txn *Txn) error {
	var keys [][]byte
	err := d.iteratePrefix(
		txn,
		types.PgfActiveCouncilPrefix(),
		func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		},
	)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := d.DeleteBlobValue(txn, key); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) SetSpentAmount(amount uint64, txn *Txn) error {
	return d.SetBlobValue(txn, types.PgfSpentAmountKey(), amount)
}

// GetBalance returns the token balance of an address
func (d *Database) GetBalance(addr string, txn *Txn) (uint64, error) {
	return d.getUint64(txn, types.BalanceKey(addr))
}

func (d *Database) SetBalance(addr string, amount uint64, txn *Txn) error {
	if amount == 0 {
		return d.DeleteBlobValue(txn, types.BalanceKey(addr))
	}
	return d.SetBlobValue(txn, types.BalanceKey(addr), amount)
}

// GetAccount returns the multisignature account registered for an address, or nil
func (d *Database) GetAccount(addr string, txn *Txn) (*multisig.Account, error) {
	var acct multisig.Account
	ok, err := d.GetBlobValue(txn, types.AccountKey(addr), &acct)
	if err != nil || !ok {
		return nil, err
	}
	return &acct, nil
}

func (d *Database) SetAccount(
	addr string,
	acct multisig.Account,
	txn *Txn,
) error {
	return d.SetBlobValue(txn, types.AccountKey(addr), acct)
}

// GetLastSettledEpoch returns the last settled epoch and whether any
// settlement has happened yet
func (d *Database) GetLastSettledEpoch(txn *Txn) (uint64, bool, error) {
	var epoch uint64
	ok, err := d.GetBlobValue(txn, types.PgfLastSettledEpochKey(), &epoch)
	return epoch, ok, err
}

func (d *Database) SetLastSettledEpoch(epoch uint64, txn *Txn) error {
	return d.SetBlobValue(txn, types.PgfLastSettledEpochKey(), epoch)
}

// GetProposalCounter returns the next free proposal ID
func (d *Database) GetProposalCounter(txn *Txn) (uint64, error) {
	return d.getUint64(txn, types.GovernanceCounterKey())
}

func (d *Database) SetProposalCounter(next uint64, txn *Txn) error {
	return d.SetBlobValue(txn, types.GovernanceCounterKey(), next)
}

// GetChainEpoch returns the current epoch of the state machine
func (d *Database) GetChainEpoch(txn *Txn) (uint64, error) {
	return d.getUint64(txn, types.ChainEpochKey())
}

func (d *Database) SetChainEpoch(epoch uint64, txn *Txn) error {
	return d.SetBlobValue(txn, types.ChainEpochKey(), epoch)
}

// GetChainHeight returns the height of the last applied block
func (d *Database) GetChainHeight(txn *Txn) (uint64, error) {
	return d.getUint64(txn, types.ChainHeightKey())
}

func (d *Database) SetChainHeight(height uint64, txn *Txn) error {
	return d.SetBlobValue(txn, types.ChainHeightKey(), height)
}
