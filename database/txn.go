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
	"sync"
	"time"

	"github.com/blinklabs-io/pgf/database/types"
)

// txnScope selects which stores a Txn spans
type txnScope uint8

const (
	scopeBlob txnScope = 1 << iota
	scopeMetadata

	scopeAll = scopeBlob | scopeMetadata
)

// Txn groups the store transactions touched by one PGF state transition.
// A full-scope Txn stamps both stores with the same commit time so a torn
// commit is detected when the database is next opened.
type Txn struct {
	db       *Database
	blob     types.Txn
	metadata types.Txn
	mu       sync.Mutex
	done     bool
	writable bool
}

func newTxn(db *Database, writable bool, scope txnScope) *Txn {
	t := &Txn{db: db, writable: writable}
	if bs := db.Blob(); bs != nil && scope&scopeBlob != 0 {
		t.blob = bs.NewTransaction(writable)
	}
	if ms := db.Metadata(); ms != nil && scope&scopeMetadata != 0 {
		t.metadata = ms.Transaction()
	}
	return t
}

// Metadata returns the metadata store handle, or nil outside its scope
func (t *Txn) Metadata() types.Txn {
	return t.metadata
}

// Blob returns the blob store handle, or nil outside its scope
func (t *Txn) Blob() types.Txn {
	return t.blob
}

// Do runs fn and commits on success. An error from fn rolls everything back.
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				rbErr,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	if !t.writable {
		return t.discard()
	}
	if t.blob == nil && t.metadata == nil {
		t.done = true
		return types.ErrNoStoreAvailable
	}
	if t.blob != nil && t.metadata != nil {
		if err := t.db.stampCommit(t, time.Now().UnixMilli()); err != nil {
			_ = t.discard()
			return fmt.Errorf("failed to stamp commit: %w", err)
		}
	}
	defer func() { t.done = true }()
	// Balances and proposals live in the blob store, so it goes first and
	// a failure there leaves both stores untouched
	if t.blob != nil {
		if err := t.blob.Commit(); err != nil {
			if t.metadata != nil {
				_ = t.metadata.Rollback()
			}
			return fmt.Errorf("blob commit failed: %w", err)
		}
	}
	if t.metadata == nil {
		return nil
	}
	if err := t.metadata.Commit(); err != nil {
		t.db.logger.Error(
			"metadata commit failed after blob commit",
			"component", "database",
			"error", err,
		)
		return fmt.Errorf("partial commit: %w", err)
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discard()
}

func (t *Txn) discard() error {
	if t.done {
		return nil
	}
	t.done = true
	var errs []error
	if t.blob != nil {
		if err := t.blob.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob rollback: %w", err))
		}
	}
	if t.metadata != nil {
		if err := t.metadata.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Release is a deferrable Rollback that logs instead of returning errors
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"writable", t.writable,
		)
	}
}
