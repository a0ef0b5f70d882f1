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
)

// ErrCommitMismatch means the last write reached only one of the stores
var ErrCommitMismatch = errors.New("stores disagree on last commit")

// CommitMismatchError carries the commit stamps found in each store
type CommitMismatchError struct {
	Metadata int64
	Blob     int64
}

func (e *CommitMismatchError) Error() string {
	return fmt.Sprintf(
		"%s: metadata at %d, blob at %d",
		ErrCommitMismatch,
		e.Metadata,
		e.Blob,
	)
}

func (e *CommitMismatchError) Is(target error) bool {
	return target == ErrCommitMismatch
}

// verifyCommitStamps refuses to open a database whose stores were left at
// different commits. A store without a stamp has never seen a full commit.
func (d *Database) verifyCommitStamps() error {
	if d.Metadata() == nil || d.Blob() == nil {
		return nil
	}
	metaStamp, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("read metadata commit stamp: %w", err)
	}
	if metaStamp <= 0 {
		return nil
	}
	blobStamp, err := d.Blob().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("read blob commit stamp: %w", err)
	}
	if blobStamp != metaStamp {
		return &CommitMismatchError{Metadata: metaStamp, Blob: blobStamp}
	}
	return nil
}

func (d *Database) stampCommit(txn *Txn, stamp int64) error {
	if err := d.Metadata().SetCommitTimestamp(stamp, txn.Metadata()); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := d.Blob().SetCommitTimestamp(stamp, txn.Blob()); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}
