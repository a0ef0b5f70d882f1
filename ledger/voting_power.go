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

package ledger

import (
	"fmt"
	"maps"
	"sync"
)

// VotingPowerSource looks up voting weight by voter and epoch
type VotingPowerSource interface {
	VotingPower(voter string, epoch uint64) (uint64, error)
	TotalVotingPower(epoch uint64) (uint64, error)
}

// StaticVotingPower is a stake table that does not change between epochs
type StaticVotingPower struct {
	mu    sync.RWMutex
	stake map[string]uint64
}

func NewStaticVotingPower(stake map[string]uint64) *StaticVotingPower {
	s := &StaticVotingPower{
		stake: make(map[string]uint64, len(stake)),
	}
	maps.Copy(s.stake, stake)
	return s
}

func (s *StaticVotingPower) VotingPower(voter string, _ uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stake[voter], nil
}

func (s *StaticVotingPower) TotalVotingPower(_ uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for voter, amount := range s.stake {
		var ok bool
		total, ok = addUint64(total, amount)
		if !ok {
			return 0, fmt.Errorf("total voting power overflows at %s", voter)
		}
	}
	return total, nil
}

// SetStake replaces the stake of a voter. A zero amount removes it.
func (s *StaticVotingPower) SetStake(voter string, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == 0 {
		delete(s.stake, voter)
		return
	}
	s.stake[voter] = amount
}
