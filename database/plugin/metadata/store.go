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

package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/pgf/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Proposals
	GetPgfProposal(uint64, types.Txn) (*models.PgfProposal, error)
	GetPgfProposals(types.Txn) ([]models.PgfProposal, error)
	GetUnresolvedPgfProposals(types.Txn) ([]models.PgfProposal, error)
	SetPgfProposal(*models.PgfProposal, types.Txn) error
	GetPgfBallots(
		uint64, // proposalID
		types.Txn,
	) ([]models.PgfBallot, error)
	SetPgfBallot(*models.PgfBallot, types.Txn) error

	// Council history
	GetActiveCouncilTerm(types.Txn) (*models.CouncilTerm, error)
	GetCouncilTerms(types.Txn) ([]models.CouncilTerm, error)
	SetCouncilTerm(*models.CouncilTerm, types.Txn) error
	RevokeCouncilTerms(
		uint64, // epoch
		uint64, // spentAmount
		types.Txn,
	) error

	// Settlement and transaction log
	AddSettlementRecords([]models.SettlementRecord, types.Txn) error
	GetSettlementRecords(
		uint64, // epoch
		types.Txn,
	) ([]models.SettlementRecord, error)
	AddTxRecord(*models.TxRecord, types.Txn) error
	GetTxRecords([]byte, types.Txn) ([]models.TxRecord, error)
	HasAppliedTx([]byte, types.Txn) (bool, error)
}

// New creates a new metadata store instance using the specified backend
func New(
	pluginName string,
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	switch pluginName {
	case "sqlite":
		store, err := sqlite.New(
			sqlite.WithDataDir(dataDir),
			sqlite.WithLogger(logger),
			sqlite.WithPromRegistry(promRegistry),
		)
		if store == nil {
			return nil, err
		}
		// The store is returned alongside an error when it needs recovery
		return store, err
	default:
		return nil, fmt.Errorf("unknown metadata plugin: %s", pluginName)
	}
}
