// Copyright 2026 Blink Labs Software
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

package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/pgf/internal/cbor"
)

const (
	KeyTypeSigning      = "PgfSigningKey_ed25519"
	KeyTypeVerification = "PgfVerificationKey_ed25519"
)

// keyFileEnvelope is the JSON structure of a key file
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// loadedKey holds the parsed contents of a key file
type loadedKey struct {
	Type        string
	Description string
	VKey        ed25519.PublicKey
	SKey        ed25519.PrivateKey
}

// loadKeyFromFile loads a key from a file path.
// Returns ErrInsecureFileMode if a signing key file has group or other access.
//
// The file is opened first and permissions are checked on the open handle
// (via fstat on Unix) to avoid a TOCTOU race between the permission check
// and the read.
func loadKeyFromFile(path string) (*loadedKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	// Limit read to 1 MiB to guard against accidentally pointing at a
	// large file. Valid key files are well under this size.
	const maxKeyFileSize = 1 << 20
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	if key.SKey != nil {
		if err := checkOpenFilePermissions(f); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// parseKeyEnvelope parses a key file. Signing keys hold the 32 byte
// ed25519 seed and verification keys the 32 byte public key, each as a
// CBOR byte string.
func parseKeyEnvelope(fileBytes []byte) (*loadedKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var keyBytes []byte
	if err := cbor.Decode(cborData, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key CBOR: %w", err)
	}
	lk := &loadedKey{
		Type:        env.Type,
		Description: env.Description,
	}
	switch env.Type {
	case KeyTypeSigning:
		if len(keyBytes) != ed25519.SeedSize {
			return nil, fmt.Errorf(
				"invalid signing key bytes: expected %d, got %d",
				ed25519.SeedSize,
				len(keyBytes),
			)
		}
		// Derive the public key from the seed rather than trusting file contents
		lk.SKey = ed25519.NewKeyFromSeed(keyBytes)
		lk.VKey = lk.SKey.Public().(ed25519.PublicKey)
		return lk, nil
	case KeyTypeVerification:
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf(
				"invalid verification key bytes: expected %d, got %d",
				ed25519.PublicKeySize,
				len(keyBytes),
			)
		}
		lk.VKey = ed25519.PublicKey(keyBytes)
		return lk, nil
	default:
		return nil, fmt.Errorf("unknown key type: %s", env.Type)
	}
}

func marshalKeyEnvelope(keyType, description string, keyBytes []byte) ([]byte, error) {
	cborData, err := cbor.Encode(keyBytes)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(
		keyFileEnvelope{
			Type:        keyType,
			Description: description,
			CborHex:     hex.EncodeToString(cborData),
		},
		"",
		"    ",
	)
}

// WriteSigningKeyFile writes the seed of key to a new file readable only by
// the owner. An existing file is never overwritten.
func WriteSigningKeyFile(path string, key ed25519.PrivateKey, description string) error {
	data, err := marshalKeyEnvelope(KeyTypeSigning, description, key.Seed())
	if err != nil {
		return err
	}
	return writeNewFile(path, data, 0o600)
}

func WriteVerificationKeyFile(path string, key ed25519.PublicKey, description string) error {
	data, err := marshalKeyEnvelope(KeyTypeVerification, description, key)
	if err != nil {
		return err
	}
	return writeNewFile(path, data, 0o644)
}

func writeNewFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Join(
			fmt.Errorf("failed to write key file %q: %w", path, err),
			os.Remove(path),
		)
	}
	return f.Close()
}
