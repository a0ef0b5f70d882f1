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

package badger

import (
	"errors"

	"github.com/blinklabs-io/pgf/database/types"
	badger "github.com/dgraph-io/badger/v4"
)

var (
	errForeignTxn  = errors.New("transaction belongs to another store")
	errTxnFinished = errors.New("transaction already finished")
)

// badgerTxn implements types.Txn over a badger transaction
type badgerTxn struct {
	store    *BlobStoreBadger
	tx       *badger.Txn
	writable bool
	done     bool
}

// Commit discards read-only transactions, since badger rejects committing
// them after a write attempt
func (t *badgerTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.writable {
		t.tx.Discard()
		return nil
	}
	return t.tx.Commit()
}

func (t *badgerTxn) Rollback() error {
	if !t.done {
		t.tx.Discard()
		t.done = true
	}
	return nil
}

// txnFor unwraps txn after checking it is a live transaction of this store
func (d *BlobStoreBadger) txnFor(txn types.Txn) (*badgerTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	bTxn, ok := txn.(*badgerTxn)
	switch {
	case !ok:
		return nil, types.ErrTxnWrongType
	case bTxn.store != d:
		return nil, errForeignTxn
	case bTxn.done:
		return nil, errTxnFinished
	}
	return bTxn, nil
}

// writableTxnFor is txnFor for mutations
func (d *BlobStoreBadger) writableTxnFor(txn types.Txn) (*badgerTxn, error) {
	bTxn, err := d.txnFor(txn)
	if err != nil {
		return nil, err
	}
	if !bTxn.writable {
		return nil, types.ErrReadOnlyTxn
	}
	return bTxn, nil
}

type badgerIterator struct {
	iter *badger.Iterator
}

func (it *badgerIterator) Rewind()                      { it.iter.Rewind() }
func (it *badgerIterator) Seek(prefix []byte)           { it.iter.Seek(prefix) }
func (it *badgerIterator) Valid() bool                  { return it.iter.Valid() }
func (it *badgerIterator) ValidForPrefix(p []byte) bool { return it.iter.ValidForPrefix(p) }
func (it *badgerIterator) Next()                        { it.iter.Next() }
func (it *badgerIterator) Close()                       { it.iter.Close() }
func (it *badgerIterator) Err() error                   { return nil }

func (it *badgerIterator) Item() types.BlobItem {
	return badgerItem{it.iter.Item()}
}

type badgerItem struct {
	*badger.Item
}

func (i badgerItem) Key() []byte {
	return i.KeyCopy(nil)
}

// failedIterator is returned when the iterator could not be opened. It is
// empty and reports the cause from Err.
type failedIterator struct {
	err error
}

func (it failedIterator) Rewind()                      {}
func (it failedIterator) Seek([]byte)                  {}
func (it failedIterator) Valid() bool                  { return false }
func (it failedIterator) ValidForPrefix(p []byte) bool { return false }
func (it failedIterator) Next()                        {}
func (it failedIterator) Item() types.BlobItem         { return nil }
func (it failedIterator) Close()                       {}
func (it failedIterator) Err() error                   { return it.err }
