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

package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/internal/cbor"
	"github.com/blinklabs-io/pgf/internal/config"
	"github.com/blinklabs-io/pgf/ledger"
)

// BlockFile is an ordered batch of blocks applied offline
type BlockFile struct {
	Blocks []ledger.Block `cbor:"blocks" yaml:"blocks"`
}

// ApplySummary describes the outcome of an offline apply
type ApplySummary struct {
	Blocks      int
	Txs         int
	FailedTxs   int
	EpochsEnded int
	Epoch       uint64
	Height      uint64
}

// LoadBlockFile reads a block file. Files ending in .cbor are decoded as
// CBOR, anything else as YAML.
func LoadBlockFile(path string) (*BlockFile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block file: %w", err)
	}
	var ret BlockFile
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		if err := cbor.Decode(buf, &ret); err != nil {
			return nil, fmt.Errorf("decode block file: %w", err)
		}
		return &ret, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&ret); err != nil {
		return nil, fmt.Errorf("parse block file: %w", err)
	}
	return &ret, nil
}

// Apply opens the configured database, initializes it from the genesis
// file if needed and applies the blocks in blockFile. Epochs are ended as
// needed to reach each block's epoch. With endEpoch set, the epoch of the
// last block is ended as well.
func Apply(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	blockFile string,
	endEpoch bool,
) (*ApplySummary, error) {
	blocks, err := LoadBlockFile(blockFile)
	if err != nil {
		return nil, err
	}
	genesis, err := loadGenesis(cfg)
	if err != nil {
		return nil, err
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         logger,
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
	})
	if db != nil {
		defer db.Close() //nolint:errcheck
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Load state
	ls, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			Database:    db,
			Logger:      logger,
			VotingPower: genesis.VotingPower(),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if err := ls.InitGenesis(ctx, genesis); err != nil {
		return nil, fmt.Errorf("failed to initialize genesis: %w", err)
	}
	summary := &ApplySummary{}
	for i, block := range blocks.Blocks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if block.Epoch < ls.CurrentEpoch() {
			return summary, fmt.Errorf(
				"block %d: %w: epoch %d already ended",
				i,
				ledger.ErrEpochMismatch,
				block.Epoch,
			)
		}
		for ls.CurrentEpoch() < block.Epoch {
			if _, err := ls.EndEpoch(ctx, ls.CurrentEpoch()); err != nil {
				return summary, err
			}
			summary.EpochsEnded++
		}
		// Heights may be left out of hand-written files
		if block.Height == 0 {
			block.Height = ls.Height() + 1
		}
		results, err := ls.ApplyBlock(ctx, block)
		if err != nil {
			return summary, fmt.Errorf("block %d: %w", i, err)
		}
		summary.Blocks++
		summary.Txs += len(results)
		for _, result := range results {
			if result.Success() {
				continue
			}
			summary.FailedTxs++
			logger.Warn(
				"transaction aborted",
				"component", "node",
				"height", block.Height,
				"index", result.Index,
				"kind", string(result.Kind),
				"error", result.Err,
			)
		}
	}
	if endEpoch {
		if _, err := ls.EndEpoch(ctx, ls.CurrentEpoch()); err != nil {
			return summary, err
		}
		summary.EpochsEnded++
	}
	summary.Epoch = ls.CurrentEpoch()
	summary.Height = ls.Height()
	logger.Info(
		fmt.Sprintf(
			"applied %d blocks (%d txs, %d aborted), ended %d epochs",
			summary.Blocks,
			summary.Txs,
			summary.FailedTxs,
			summary.EpochsEnded,
		),
		"component", "node",
		"epoch", summary.Epoch,
		"height", summary.Height,
	)
	return summary, nil
}

var errNoGenesis = errors.New("no genesis file configured")

func loadGenesis(cfg *config.Config) (*ledger.Genesis, error) {
	if cfg.GenesisFile == "" {
		return nil, errNoGenesis
	}
	return ledger.LoadGenesis(cfg.GenesisFile)
}
