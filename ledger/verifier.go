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
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/multisig"
)

var ErrUnknownAccount = errors.New("no account registered for address")

// SignatureVerifier checks that a set of signatures over msg satisfies the
// k-of-n policy of the signer address
type SignatureVerifier interface {
	VerifySignatures(
		txn *database.Txn,
		signer string,
		msg []byte,
		sigs []multisig.Signature,
	) error
}

// AccountVerifier resolves the key set of an address from the account
// registry. An implicit address without a registered account is controlled
// by the single key whose hash it encodes.
type AccountVerifier struct {
	db *database.Database
}

func NewAccountVerifier(db *database.Database) *AccountVerifier {
	return &AccountVerifier{db: db}
}

func (v *AccountVerifier) VerifySignatures(
	txn *database.Txn,
	signer string,
	msg []byte,
	sigs []multisig.Signature,
) error {
	addr := address.Address(signer)
	if addr.IsInternal() {
		return fmt.Errorf("internal address %s cannot sign", signer)
	}
	acct, err := v.db.GetAccount(signer, txn)
	if err != nil {
		return err
	}
	if acct != nil {
		return multisig.Verify(*acct, msg, sigs)
	}
	kind, err := addr.Kind()
	if err != nil {
		return err
	}
	if kind != address.KindImplicit {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, signer)
	}
	for _, sig := range sigs {
		if len(sig.PublicKey) != ed25519.PublicKeySize {
			continue
		}
		pub := ed25519.PublicKey(sig.PublicKey)
		if address.FromPublicKey(pub) != addr {
			continue
		}
		return multisig.Verify(multisig.ImplicitAccount(pub), msg, sigs)
	}
	return fmt.Errorf("%w: no signature by the key of %s", multisig.ErrInsufficientSignature, signer)
}
