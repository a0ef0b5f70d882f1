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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/pgf/database/types"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

// BlobStoreBadger holds balances, accounts and PGF state in badger. Data
// is kept in memory when no data directory is configured.
type BlobStoreBadger struct {
	promRegistry prometheus.Registerer
	metrics      *blobMetrics
	db           *badger.DB
	logger       *slog.Logger
	gcStop       chan struct{}
	gcDone       sync.WaitGroup
	dataDir      string
	gcInterval   time.Duration
}

// New opens the store
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	db := &BlobStoreBadger{
		gcInterval: DefaultGcInterval,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	badgerOpts, err := db.badgerOptions()
	if err != nil {
		return nil, err
	}
	blobDb, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	db.db = blobDb
	if db.promRegistry != nil {
		if err := db.registerBlobMetrics(); err != nil {
			return db, err
		}
	}
	if db.dataDir != "" && db.gcInterval > 0 {
		db.gcStop = make(chan struct{})
		db.gcDone.Add(1)
		go db.runGc()
	}
	return db, nil
}

func (d *BlobStoreBadger) badgerOptions() (badger.Options, error) {
	if d.dataDir == "" {
		return badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true).
			WithValueThreshold(valueThreshold), nil
	}
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return badger.Options{}, fmt.Errorf("failed to create data dir: %w", err)
	}
	return badger.DefaultOptions(filepath.Join(d.dataDir, "blob")).
		WithLogger(NewBadgerLogger(d.logger)).
		WithLoggingLevel(badger.WARNING).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithValueLogFileSize(valueLogFileSize).
		WithMemTableSize(memTableSize).
		WithValueThreshold(valueThreshold).
		WithCompression(options.Snappy), nil
}

func (d *BlobStoreBadger) runGc() {
	defer d.gcDone.Done()
	ticker := time.NewTicker(d.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
		}
		// Each successful pass rewrote a file, so there may be more to reclaim
		var err error
		for err == nil {
			err = d.db.RunValueLogGC(gcDiscardRatio)
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			d.logger.Warn(
				"blob value log GC failed",
				"component", "database",
				"error", err,
			)
		}
	}
}

// Close stops value log GC and closes badger
func (d *BlobStoreBadger) Close() error {
	if d.gcStop != nil {
		close(d.gcStop)
		d.gcDone.Wait()
		d.gcStop = nil
	}
	return d.db.Close()
}

// DB returns the badger handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

func (d *BlobStoreBadger) NewTransaction(update bool) types.Txn {
	return &badgerTxn{
		store:    d,
		tx:       d.db.NewTransaction(update),
		writable: update,
	}
}

// Get returns a copy of the value at key, or types.ErrBlobKeyNotFound
func (d *BlobStoreBadger) Get(txn types.Txn, key []byte) ([]byte, error) {
	bTxn, err := d.txnFor(txn)
	if err != nil {
		return nil, err
	}
	d.metrics.observeGet()
	item, err := bTxn.tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.ErrBlobKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	bTxn, err := d.writableTxnFor(txn)
	if err != nil {
		return err
	}
	d.metrics.observeSet(len(val))
	return bTxn.tx.Set(key, val)
}

func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	bTxn, err := d.writableTxnFor(txn)
	if err != nil {
		return err
	}
	d.metrics.observeDelete()
	return bTxn.tx.Delete(key)
}

// NewIterator walks keys in order. Items are only valid while txn is open.
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	bTxn, err := d.txnFor(txn)
	if err != nil {
		return failedIterator{err: err}
	}
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = opts.Prefix
	iterOpts.Reverse = opts.Reverse
	return &badgerIterator{iter: bTxn.tx.NewIterator(iterOpts)}
}
