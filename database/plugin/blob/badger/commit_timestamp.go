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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/pgf/database/types"
)

// commitStampKey sits outside the /PGFAddress/ keyspace so state scans
// never see it
var commitStampKey = []byte("/db/commit_stamp")

// GetCommitTimestamp returns zero for a store that has never been stamped
func (d *BlobStoreBadger) GetCommitTimestamp() (int64, error) {
	txn := d.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := d.Get(txn, commitStampKey)
	if errors.Is(err, types.ErrBlobKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("commit stamp is %d bytes, want 8", len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil //nolint:gosec
}

// SetCommitTimestamp writes the stamp inside txn so it lands with the
// state it describes
func (d *BlobStoreBadger) SetCommitTimestamp(stamp int64, txn types.Txn) error {
	return d.Set(
		txn,
		commitStampKey,
		binary.BigEndian.AppendUint64(nil, uint64(stamp)), //nolint:gosec
	)
}
