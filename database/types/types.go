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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// uint64Width is the number of decimal digits in math.MaxUint64
const uint64Width = 20

// Uint64 is a token amount or voting power kept in a text column. SQLite
// integers are signed, so the value is written as a zero-padded decimal
// string, which also makes text ordering match numeric ordering.
//
//nolint:recvcheck
type Uint64 uint64

// GormDataType pins the column type to text
func (Uint64) GormDataType() string {
	return "text"
}

func (u Uint64) Value() (driver.Value, error) {
	return fmt.Sprintf("%0*d", uint64Width, uint64(u)), nil
}

func (u *Uint64) Scan(val any) error {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Uint64", val)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot scan %q into Uint64: %w", s, err)
	}
	*u = Uint64(n)
	return nil
}

// Store errors shared by the blob and metadata plugins
var (
	ErrBlobKeyNotFound      = errors.New("blob key not found")
	ErrTxnWrongType         = errors.New("invalid transaction type")
	ErrNilTxn               = errors.New("nil transaction")
	ErrNoStoreAvailable     = errors.New("no store available")
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
	ErrReadOnlyTxn          = errors.New("read-only transaction")
)

// BlobItem is the key and value at the current iterator position
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator walks blob keys in order. Items are only valid while the
// transaction that created the iterator is open.
type BlobIterator interface {
	Rewind()
	Seek(prefix []byte)
	Valid() bool
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// Txn is a single store's transaction. database.Txn spans both stores.
type Txn interface {
	Commit() error
	Rollback() error
}
