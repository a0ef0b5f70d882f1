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

package sqlite

import (
	"github.com/blinklabs-io/pgf/database/types"
	"gorm.io/gorm/clause"
)

// commitMarker is the single-row table holding the timestamp of the last
// coordinated commit. The database layer compares it with the blob store
// copy on startup to detect a partial write.
type commitMarker struct {
	ID        uint `gorm:"primarykey"`
	Timestamp int64
}

func (commitMarker) TableName() string {
	return "commit_timestamp"
}

const commitMarkerID = 1

// GetCommitTimestamp returns zero when nothing has been committed yet
func (d *MetadataStoreSqlite) GetCommitTimestamp() (int64, error) {
	var rows []commitMarker
	if result := d.DB().Limit(1).Find(&rows, commitMarkerID); result.Error != nil {
		return 0, result.Error
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Timestamp, nil
}

func (d *MetadataStoreSqlite) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(
		&commitMarker{ID: commitMarkerID, Timestamp: timestamp},
	).Error
}
