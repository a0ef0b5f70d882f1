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

// Package cbor provides the canonical CBOR encoding used for stored values,
// transaction hashes and signing bytes.
package cbor

import (
	"fmt"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	encMode _cbor.EncMode
	decMode _cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding gives byte-identical output on every node
	encMode, err = _cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: failed to build encoding mode: %s", err))
	}
	decMode, err = _cbor.DecOptions{
		DupMapKey:   _cbor.DupMapKeyEnforcedAPF,
		IndefLength: _cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: failed to build decoding mode: %s", err))
	}
}

// RawMessage is a raw encoded CBOR value
type RawMessage = _cbor.RawMessage

// Encode returns the canonical CBOR encoding of v
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode parses CBOR data into v and rejects trailing bytes
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
