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
	"errors"
	"fmt"
)

var (
	ErrValidation                      = errors.New("validation error")
	ErrAuthorization                   = errors.New("authorization error")
	ErrCapExceeded                     = errors.New("spending cap exceeded")
	ErrNotFound                        = errors.New("not found")
	ErrInsufficientBalanceAtSettlement = errors.New(
		"insufficient balance at settlement",
	)
	ErrEpochMismatch = errors.New("epoch mismatch")
)

// ValidationError reports malformed transaction fields or a request that
// the current state does not allow
type ValidationError struct {
	Err error
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Err.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthorizationError reports a missing or insufficient signature, or an
// action by an address that does not hold the required rights
type AuthorizationError struct {
	Err error
}

func authorizationErrorf(format string, args ...any) error {
	return &AuthorizationError{Err: fmt.Errorf(format, args...)}
}

func (e *AuthorizationError) Error() string {
	return "authorization error: " + e.Err.Error()
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorization
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// CapExceededError reports a spend that would push the council past its cap
type CapExceededError struct {
	SpendingCap uint64
	SpentAmount uint64
	Amount      uint64
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf(
		"spending cap exceeded: spent %d + amount %d > cap %d",
		e.SpentAmount,
		e.Amount,
		e.SpendingCap,
	)
}

func (e *CapExceededError) Is(target error) bool {
	return target == ErrCapExceeded
}

type NotFoundError struct {
	What string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InsufficientBalanceAtSettlementError records a continuous payout that
// could not be made during settlement. It never fails the epoch transition.
type InsufficientBalanceAtSettlementError struct {
	Recipient string
	Amount    uint64
	Epoch     uint64
	Err       error
}

func (e *InsufficientBalanceAtSettlementError) Error() string {
	return fmt.Sprintf(
		"insufficient balance at settlement of epoch %d: recipient %s amount %d: %s",
		e.Epoch,
		e.Recipient,
		e.Amount,
		e.Err,
	)
}

func (e *InsufficientBalanceAtSettlementError) Is(target error) bool {
	return target == ErrInsufficientBalanceAtSettlement
}

func (e *InsufficientBalanceAtSettlementError) Unwrap() error {
	return e.Err
}
