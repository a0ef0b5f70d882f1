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

package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/keystore"
	"github.com/blinklabs-io/pgf/ledger"
)

// generateKeyFiles writes a new signing key and, when vkeyPath is set, the
// matching verification key. It returns the implicit address of the key.
func generateKeyFiles(skeyPath, vkeyPath string) (address.Address, error) {
	key, err := keystore.GenerateKey(rand.Reader)
	if err != nil {
		return "", err
	}
	if err := keystore.WriteSigningKeyFile(skeyPath, key, "PGF signing key"); err != nil {
		return "", err
	}
	pub := key.Public().(ed25519.PublicKey)
	if vkeyPath != "" {
		if err := keystore.WriteVerificationKeyFile(vkeyPath, pub, "PGF verification key"); err != nil {
			return "", err
		}
	}
	return address.FromPublicKey(pub), nil
}

func keygenCommand() *cobra.Command {
	var vkeyPath string
	cmd := &cobra.Command{
		Use:   "keygen <signing-key-file>",
		Short: "Generate an ed25519 signing key and print its address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := generateKeyFiles(args[0], vkeyPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
	cmd.Flags().
		StringVar(&vkeyPath, "vkey", "", "also write the verification key to this file")
	return cmd
}

// signTx reads an unsigned YAML transaction and signs it with every key in
// keyPaths. An empty signer is filled in when exactly one key is given.
func signTx(txYaml []byte, keyPaths []string) (*ledger.Tx, error) {
	if len(keyPaths) == 0 {
		return nil, errors.New("at least one signing key is required")
	}
	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
		SigningKeyPaths: keyPaths,
	})
	if err := ks.LoadFromFiles(); err != nil {
		return nil, err
	}
	var tx ledger.Tx
	dec := yaml.NewDecoder(bytes.NewReader(txYaml))
	dec.KnownFields(true)
	if err := dec.Decode(&tx); err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}
	if tx.Signer == "" {
		addrs := ks.Addresses()
		if len(addrs) != 1 {
			return nil, errors.New("signer must be set when signing with several keys")
		}
		tx.Signer = addrs[0].String()
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	keys, err := ks.Keys()
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(keys...); err != nil {
		return nil, err
	}
	return &tx, nil
}

func signCommand() *cobra.Command {
	var keyPaths []string
	var outPath string
	cmd := &cobra.Command{
		Use:   "sign <tx-yaml-file>",
		Short: "Sign a YAML transaction and emit its CBOR encoding",
		Long: "Sign a YAML transaction with one or more signing keys. The CBOR " +
			"encoding is written to --out, or printed as hex.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var txYaml []byte
			var err error
			if args[0] == "-" {
				txYaml, err = io.ReadAll(cmd.InOrStdin())
			} else {
				txYaml, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			tx, err := signTx(txYaml, keyPaths)
			if err != nil {
				return err
			}
			txBytes, err := tx.Encode()
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, txBytes, 0o600); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tx.HashHex())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(txBytes))
			return nil
		},
	}
	cmd.Flags().
		StringArrayVarP(&keyPaths, "key", "k", nil, "signing key file (repeat for multisig accounts)")
	cmd.Flags().
		StringVarP(&outPath, "out", "o", "", "write the CBOR transaction to this file")
	return cmd
}
