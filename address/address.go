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

// Package address implements bech32 account addresses. Implicit addresses
// are derived from a single ed25519 public key, established addresses from
// a multisignature key set and threshold.
package address

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	HumanReadablePart = "tpgf"
	HashSize          = 20
)

const (
	KindImplicit    byte = 0x00
	KindEstablished byte = 0x01
)

// Internal addresses are not bech32 encoded and cannot sign
const (
	Pgf        Address = "PGFAddress"
	Governance Address = "Governance"
)

var ErrInvalidAddress = errors.New("invalid address")

// Address is the canonical bech32 text form of an account address
type Address string

func (a Address) String() string {
	return string(a)
}

// IsInternal reports whether the address is a protocol-owned internal address
func (a Address) IsInternal() bool {
	return a == Pgf || a == Governance
}

// Validate checks that the address is either internal or a well-formed
// bech32 address with the expected prefix and payload size
func (a Address) Validate() error {
	if a.IsInternal() {
		return nil
	}
	_, _, err := a.decode()
	return err
}

// Kind returns the address kind byte
func (a Address) Kind() (byte, error) {
	kind, _, err := a.decode()
	return kind, err
}

// Hash returns the key hash carried by the address
func (a Address) Hash() ([]byte, error) {
	_, hash, err := a.decode()
	return hash, err
}

func (a Address) decode() (byte, []byte, error) {
	hrp, data, err := bech32.Decode(string(a))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if hrp != HumanReadablePart {
		return 0, nil, fmt.Errorf(
			"%w: unexpected prefix %q",
			ErrInvalidAddress,
			hrp,
		)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(payload) != HashSize+1 {
		return 0, nil, fmt.Errorf(
			"%w: unexpected payload length %d",
			ErrInvalidAddress,
			len(payload),
		)
	}
	kind := payload[0]
	if kind != KindImplicit && kind != KindEstablished {
		return 0, nil, fmt.Errorf(
			"%w: unknown kind %d",
			ErrInvalidAddress,
			kind,
		)
	}
	return kind, payload[1:], nil
}

// Parse validates and returns an address from its text form
func Parse(s string) (Address, error) {
	a := Address(s)
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// Encode builds an address from its kind and key hash
func Encode(kind byte, hash []byte) (Address, error) {
	if len(hash) != HashSize {
		return "", fmt.Errorf(
			"%w: hash must be %d bytes",
			ErrInvalidAddress,
			HashSize,
		)
	}
	payload := make([]byte, 0, HashSize+1)
	payload = append(payload, kind)
	payload = append(payload, hash...)
	convData, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	encoded, err := bech32.Encode(HumanReadablePart, convData)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32: %w", err)
	}
	return Address(encoded), nil
}

// FromPublicKey returns the implicit address owned by a single key
func FromPublicKey(pub ed25519.PublicKey) Address {
	// Encode cannot fail for a fixed-size hash
	addr, _ := Encode(KindImplicit, keyHash(pub))
	return addr
}

// Established returns the address of a multisignature account. The key set
// is sorted first so the result does not depend on the order keys are listed.
func Established(
	threshold uint32,
	keys []ed25519.PublicKey,
) (Address, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("%w: empty key set", ErrInvalidAddress)
	}
	if threshold == 0 || int(threshold) > len(keys) {
		return "", fmt.Errorf(
			"%w: threshold %d out of range for %d keys",
			ErrInvalidAddress,
			threshold,
			len(keys),
		)
	}
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, func(a, b ed25519.PublicKey) int {
		return bytes.Compare(a, b)
	})
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, threshold)
	for _, k := range sorted {
		buf.Write(k)
	}
	return Encode(KindEstablished, keyHash(buf.Bytes()))
}

func keyHash(data []byte) []byte {
	// blake2b.New only fails for an invalid size or key
	h, _ := blake2b.New(HashSize, nil)
	h.Write(data)
	return h.Sum(nil)
}
