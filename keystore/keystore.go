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

// Package keystore manages the ed25519 signing keys used to sign PGF
// transactions. Keys are loaded from JSON envelope files whose permissions
// must restrict access to the owner.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/blinklabs-io/pgf/address"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeysNotLoaded    = errors.New("keys not loaded")
	ErrKeyNotFound      = errors.New("no signing key for address")
	ErrNotSigningKey    = errors.New("key file does not hold a signing key")
	ErrInsecureFileMode = errors.New("insecure file permissions")
)

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	Logger *slog.Logger
	// SigningKeyPaths are the signing key files loaded by LoadFromFiles
	SigningKeyPaths []string
}

// KeyStore holds signing keys by the implicit address they control
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger
	keys   map[address.Address]ed25519.PrivateKey
	order  []address.Address
	mu     sync.RWMutex
}

func NewKeyStore(config KeyStoreConfig) *KeyStore {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeyStore{
		config: config,
		logger: logger.With("component", "keystore"),
		keys:   make(map[address.Address]ed25519.PrivateKey),
	}
}

// LoadFromFiles loads every configured signing key file
func (ks *KeyStore) LoadFromFiles() error {
	for _, path := range ks.config.SigningKeyPaths {
		if _, err := ks.Load(path); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a signing key file and returns the implicit address of the key
func (ks *KeyStore) Load(path string) (address.Address, error) {
	lk, err := loadKeyFromFile(path)
	if err != nil {
		return "", err
	}
	if lk.SKey == nil {
		return "", fmt.Errorf("%w: %s has type %s", ErrNotSigningKey, path, lk.Type)
	}
	addr := ks.Add(lk.SKey)
	ks.logger.Debug(
		"loaded signing key",
		"path", path,
		"address", addr.String(),
	)
	return addr, nil
}

// Add registers a key and returns its implicit address
func (ks *KeyStore) Add(key ed25519.PrivateKey) address.Address {
	addr := address.FromPublicKey(key.Public().(ed25519.PublicKey))
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok := ks.keys[addr]; !ok {
		ks.order = append(ks.order, addr)
	}
	ks.keys[addr] = key
	return addr
}

// Key returns the signing key that controls the implicit address addr
func (ks *KeyStore) Key(addr address.Address) (ed25519.PrivateKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	key, ok := ks.keys[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, addr)
	}
	return key, nil
}

// Keys returns all loaded keys in load order
func (ks *KeyStore) Keys() ([]ed25519.PrivateKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if len(ks.order) == 0 {
		return nil, ErrKeysNotLoaded
	}
	ret := make([]ed25519.PrivateKey, 0, len(ks.order))
	for _, addr := range ks.order {
		ret = append(ret, ks.keys[addr])
	}
	return ret, nil
}

func (ks *KeyStore) Addresses() []address.Address {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return slices.Clone(ks.order)
}

// GenerateKey creates a new ed25519 signing key. A nil reader uses
// crypto/rand.
func GenerateKey(r io.Reader) (ed25519.PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	_, key, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}
