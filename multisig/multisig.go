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

// Package multisig provides k-of-n ed25519 signature verification for
// account key sets.
package multisig

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/pgf/address"
)

var (
	ErrInvalidAccount        = errors.New("invalid multisig account")
	ErrInsufficientSignature = errors.New("signature threshold not met")
)

// HexBytes is a byte slice that is represented as hex in text encodings
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *HexBytes) UnmarshalText(data []byte) error {
	tmp, err := hex.DecodeString(string(data))
	if err != nil {
		return err
	}
	*h = tmp
	return nil
}

func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

// Account is a k-of-n key set controlling an address
type Account struct {
	_          struct{}   `cbor:",toarray"`
	Threshold  uint32     `json:"threshold"   yaml:"threshold"`
	PublicKeys []HexBytes `json:"public_keys" yaml:"public_keys"`
}

// ImplicitAccount returns the 1-of-1 account for a single key
func ImplicitAccount(pub ed25519.PublicKey) Account {
	return Account{
		Threshold:  1,
		PublicKeys: []HexBytes{HexBytes(pub)},
	}
}

func (a Account) Validate() error {
	if len(a.PublicKeys) == 0 {
		return fmt.Errorf("%w: no public keys", ErrInvalidAccount)
	}
	if a.Threshold == 0 || int(a.Threshold) > len(a.PublicKeys) {
		return fmt.Errorf(
			"%w: threshold %d out of range for %d keys",
			ErrInvalidAccount,
			a.Threshold,
			len(a.PublicKeys),
		)
	}
	for i, k := range a.PublicKeys {
		if len(k) != ed25519.PublicKeySize {
			return fmt.Errorf(
				"%w: key %d has length %d",
				ErrInvalidAccount,
				i,
				len(k),
			)
		}
		for _, other := range a.PublicKeys[:i] {
			if bytes.Equal(k, other) {
				return fmt.Errorf("%w: duplicate key", ErrInvalidAccount)
			}
		}
	}
	return nil
}

// Address returns the address controlled by the account. A 1-of-1 account
// maps to the implicit address of its key.
func (a Account) Address() (address.Address, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	if a.Threshold == 1 && len(a.PublicKeys) == 1 {
		return address.FromPublicKey(ed25519.PublicKey(a.PublicKeys[0])), nil
	}
	keys := make([]ed25519.PublicKey, len(a.PublicKeys))
	for i, k := range a.PublicKeys {
		keys[i] = ed25519.PublicKey(k)
	}
	return address.Established(a.Threshold, keys)
}

// Signature is a single ed25519 signature along with the key that made it
type Signature struct {
	_         struct{} `cbor:",toarray"`
	PublicKey HexBytes `json:"public_key" yaml:"public_key"`
	Signature HexBytes `json:"signature"  yaml:"signature"`
}

// Sign produces a Signature over msg
func Sign(key ed25519.PrivateKey, msg []byte) Signature {
	return Signature{
		PublicKey: HexBytes(key.Public().(ed25519.PublicKey)),
		Signature: HexBytes(ed25519.Sign(key, msg)),
	}
}

// Verify checks that at least Threshold distinct account keys produced a
// valid signature over msg. Signatures by keys outside the account are
// ignored.
func Verify(account Account, msg []byte, sigs []Signature) error {
	if err := account.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(sigs))
	var valid uint32
	for _, sig := range sigs {
		if len(sig.PublicKey) != ed25519.PublicKeySize ||
			len(sig.Signature) != ed25519.SignatureSize {
			continue
		}
		if _, ok := seen[string(sig.PublicKey)]; ok {
			continue
		}
		if !account.hasKey(sig.PublicKey) {
			continue
		}
		if !ed25519.Verify(ed25519.PublicKey(sig.PublicKey), msg, sig.Signature) {
			continue
		}
		seen[string(sig.PublicKey)] = struct{}{}
		valid++
	}
	if valid < account.Threshold {
		return fmt.Errorf(
			"%w: %d of %d",
			ErrInsufficientSignature,
			valid,
			account.Threshold,
		)
	}
	return nil
}

func (a Account) hasKey(pub []byte) bool {
	for _, k := range a.PublicKeys {
		if bytes.Equal(k, pub) {
			return true
		}
	}
	return false
}
