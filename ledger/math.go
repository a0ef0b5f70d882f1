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

import "github.com/holiman/uint256"

// addUint64 returns a+b and whether the sum fits in 64 bits
func addUint64(a, b uint64) (uint64, bool) {
	sum, overflow := new(uint256.Int).AddOverflow(
		uint256.NewInt(a),
		uint256.NewInt(b),
	)
	if overflow || !sum.IsUint64() {
		return 0, false
	}
	return sum.Uint64(), true
}

// weightSum accumulates voting weights without overflow
type weightSum struct {
	v uint256.Int
}

func (w *weightSum) add(weight uint64) {
	w.v.Add(&w.v, uint256.NewInt(weight))
}

func (w *weightSum) mul(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(&w.v, uint256.NewInt(n))
}

func (w *weightSum) cmp(other *weightSum) int {
	return w.v.Cmp(&other.v)
}

func (w *weightSum) isZero() bool {
	return w.v.IsZero()
}

// uint64 saturates at the maximum uint64 value
func (w *weightSum) uint64() uint64 {
	if !w.v.IsUint64() {
		return ^uint64(0)
	}
	return w.v.Uint64()
}
