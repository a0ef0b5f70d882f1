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
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/internal/cbor"
	"github.com/blinklabs-io/pgf/multisig"
)

type TxKind string

const (
	TxKindCandidacy       TxKind = "candidacy"
	TxKindProposal        TxKind = "proposal"
	TxKindVote            TxKind = "vote"
	TxKindTransfer        TxKind = "transfer"
	TxKindBurn            TxKind = "burn"
	TxKindAddRecipient    TxKind = "add_recipient"
	TxKindRemoveRecipient TxKind = "remove_recipient"
)

const ProposalTypePgfCouncil = "pgf_council"

const MaxAttestationURLSize = 256

type BallotKind string

const (
	BallotApprove BallotKind = "approve"
	BallotReject  BallotKind = "reject"
	BallotAbstain BallotKind = "abstain"
)

// CouncilPair names a candidacy by its exact (address, cap) key
type CouncilPair struct {
	Address     string `cbor:"address"      json:"address"      yaml:"address"`
	SpendingCap uint64 `cbor:"spending_cap" json:"spending_cap" yaml:"spending_cap"`
}

type CandidacyTx struct {
	Address        string `cbor:"address"         json:"address"         yaml:"address"`
	SpendingCap    uint64 `cbor:"spending_cap"    json:"spending_cap"    yaml:"spending_cap"`
	AttestationURL string `cbor:"attestation_url" json:"attestation_url" yaml:"attestation_url"`
}

type ProposalTx struct {
	ID               uint64            `cbor:"id"                 json:"id"                 yaml:"id"`
	Type             string            `cbor:"type"               json:"type"               yaml:"type"`
	Content          map[string]string `cbor:"content"            json:"content"            yaml:"content"`
	Author           string            `cbor:"author"             json:"author"             yaml:"author"`
	VotingStartEpoch uint64            `cbor:"voting_start_epoch" json:"voting_start_epoch" yaml:"voting_start_epoch"`
	VotingEndEpoch   uint64            `cbor:"voting_end_epoch"   json:"voting_end_epoch"   yaml:"voting_end_epoch"`
	GraceEpoch       uint64            `cbor:"grace_epoch"        json:"grace_epoch"        yaml:"grace_epoch"`
}

type VoteTx struct {
	ProposalID uint64        `cbor:"id"        json:"id"                  yaml:"id"`
	Voter      string        `cbor:"voter"     json:"voter"               yaml:"voter"`
	Kind       BallotKind    `cbor:"kind"      json:"kind"                yaml:"kind"`
	Approvals  []CouncilPair `cbor:"approvals" json:"approvals,omitempty" yaml:"approvals,omitempty"`
}

type TransferTx struct {
	Target string `cbor:"target" json:"target" yaml:"target"`
	Amount uint64 `cbor:"amount" json:"amount" yaml:"amount"`
}

type BurnTx struct {
	Amount uint64 `cbor:"amount" json:"amount" yaml:"amount"`
}

type AddRecipientTx struct {
	Address        string `cbor:"address"          json:"address"          yaml:"address"`
	AmountPerEpoch uint64 `cbor:"amount_per_epoch" json:"amount_per_epoch" yaml:"amount_per_epoch"`
}

type RemoveRecipientTx struct {
	Address string `cbor:"address" json:"address" yaml:"address"`
}

// Tx is a signed transaction envelope carrying exactly one body
type Tx struct {
	Signer          string               `cbor:"signer"                     json:"signer"                     yaml:"signer"`
	Nonce           uint64               `cbor:"nonce"                      json:"nonce"                      yaml:"nonce"`
	Candidacy       *CandidacyTx         `cbor:"candidacy,omitempty"        json:"candidacy,omitempty"        yaml:"candidacy,omitempty"`
	Proposal        *ProposalTx          `cbor:"proposal,omitempty"         json:"proposal,omitempty"         yaml:"proposal,omitempty"`
	Vote            *VoteTx              `cbor:"vote,omitempty"             json:"vote,omitempty"             yaml:"vote,omitempty"`
	Transfer        *TransferTx          `cbor:"transfer,omitempty"         json:"transfer,omitempty"         yaml:"transfer,omitempty"`
	Burn            *BurnTx              `cbor:"burn,omitempty"             json:"burn,omitempty"             yaml:"burn,omitempty"`
	AddRecipient    *AddRecipientTx      `cbor:"add_recipient,omitempty"    json:"add_recipient,omitempty"    yaml:"add_recipient,omitempty"`
	RemoveRecipient *RemoveRecipientTx   `cbor:"remove_recipient,omitempty" json:"remove_recipient,omitempty" yaml:"remove_recipient,omitempty"`
	Signatures      []multisig.Signature `cbor:"signatures,omitempty"       json:"signatures,omitempty"       yaml:"signatures,omitempty"`
}

var ErrInvalidTx = errors.New("invalid transaction")

// Kind returns the kind of the transaction body, or an empty string if the
// envelope does not carry exactly one body
func (t *Tx) Kind() TxKind {
	var kind TxKind
	count := 0
	set := func(present bool, k TxKind) {
		if present {
			kind = k
			count++
		}
	}
	set(t.Candidacy != nil, TxKindCandidacy)
	set(t.Proposal != nil, TxKindProposal)
	set(t.Vote != nil, TxKindVote)
	set(t.Transfer != nil, TxKindTransfer)
	set(t.Burn != nil, TxKindBurn)
	set(t.AddRecipient != nil, TxKindAddRecipient)
	set(t.RemoveRecipient != nil, TxKindRemoveRecipient)
	if count != 1 {
		return ""
	}
	return kind
}

// Validate checks the envelope shape. Field level checks belong to the
// component that applies the body.
func (t *Tx) Validate() error {
	if t.Kind() == "" {
		return fmt.Errorf("%w: expected exactly one body", ErrInvalidTx)
	}
	if err := address.Address(t.Signer).Validate(); err != nil {
		return fmt.Errorf("%w: signer: %w", ErrInvalidTx, err)
	}
	return nil
}

// SigningBytes returns the canonical encoding of the transaction without
// its signatures
func (t *Tx) SigningBytes() ([]byte, error) {
	tmp := *t
	tmp.Signatures = nil
	return cbor.Encode(&tmp)
}

// Hash identifies the transaction. Signatures are excluded so a body
// cannot be replayed under a different signature set.
func (t *Tx) Hash() ([]byte, error) {
	data, err := t.SigningBytes()
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(data)
	return sum[:], nil
}

func (t *Tx) HashHex() string {
	h, err := t.Hash()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(h)
}

// Sign appends a signature by each key over the signing bytes
func (t *Tx) Sign(keys ...ed25519.PrivateKey) error {
	msg, err := t.SigningBytes()
	if err != nil {
		return err
	}
	for _, key := range keys {
		t.Signatures = append(t.Signatures, multisig.Sign(key, msg))
	}
	return nil
}

func (t *Tx) Encode() ([]byte, error) {
	return cbor.Encode(t)
}

func DecodeTx(data []byte) (*Tx, error) {
	var tx Tx
	if err := cbor.Decode(data, &tx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}
	return &tx, nil
}

// Block is an ordered batch of transactions for one epoch
type Block struct {
	Height uint64 `json:"height" yaml:"height"`
	Epoch  uint64 `json:"epoch"  yaml:"epoch"`
	Txs    []*Tx  `json:"txs"    yaml:"txs"`
}

// TxResult is the outcome of applying one transaction
type TxResult struct {
	Hash  []byte
	Index uint32
	Kind  TxKind
	Err   error
}

func (r TxResult) Success() bool {
	return r.Err == nil
}
