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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/pgf/address"
	"github.com/blinklabs-io/pgf/database"
	"github.com/blinklabs-io/pgf/database/models"
	"github.com/blinklabs-io/pgf/event"
)

const tracerName = "github.com/blinklabs-io/pgf/ledger"

var ErrInvalidBlock = errors.New("invalid block")

type LedgerStateConfig struct {
	Logger         *slog.Logger
	Database       *database.Database
	EventBus       *event.EventBus
	PromRegistry   prometheus.Registerer
	TracerProvider oteltrace.TracerProvider
	VotingPower    VotingPowerSource
	// Verifier and Tokens default to the account registry and the blob
	// store balances
	Verifier SignatureVerifier
	Tokens   TokenLedger
}

// LedgerState is the single writer of PGF state. Blocks and epoch
// finalization are applied strictly in order under its lock.
type LedgerState struct {
	sync.RWMutex
	config        LedgerStateConfig
	db            *database.Database
	tracer        oteltrace.Tracer
	metrics       stateMetrics
	candidacies   *CandidacyRegistry
	proposals     *ProposalLifecycle
	election      *CouncilElection
	treasury      *TreasuryAccount
	continuous    *ContinuousFundingLedger
	currentEpoch  uint64
	currentHeight uint64
}

// EpochReport is the outcome of finalizing an epoch
type EpochReport struct {
	Epoch       uint64
	Settlement  *SettlementReport
	Resolutions []*ResolveResult
}

func NewLedgerState(cfg LedgerStateConfig) (*LedgerState, error) {
	if cfg.Database == nil {
		return nil, errors.New("ledger: no database configured")
	}
	if cfg.VotingPower == nil {
		return nil, errors.New("ledger: no voting power source configured")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Verifier == nil {
		cfg.Verifier = NewAccountVerifier(cfg.Database)
	}
	if cfg.Tokens == nil {
		cfg.Tokens = NewBalanceLedger(cfg.Database)
	}
	ls := &LedgerState{
		config: cfg,
		db:     cfg.Database,
		tracer: cfg.TracerProvider.Tracer(tracerName),
	}
	ls.metrics.init(cfg.PromRegistry)
	ls.candidacies = NewCandidacyRegistry(ls.db)
	ls.election = NewCouncilElection(ls.db, ls.candidacies, cfg.Tokens)
	ls.proposals = NewProposalLifecycle(
		ls.db,
		cfg.VotingPower,
		cfg.Tokens,
		ls.election,
	)
	ls.treasury = NewTreasuryAccount(ls.db, cfg.Tokens, cfg.Verifier)
	ls.continuous = NewContinuousFundingLedger(ls.db, ls.treasury)
	if err := ls.loadTip(); err != nil {
		return nil, err
	}
	ls.updateStateMetrics()
	return ls, nil
}

func (ls *LedgerState) loadTip() error {
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	var err error
	if ls.currentEpoch, err = ls.db.GetChainEpoch(txn); err != nil {
		return fmt.Errorf("load chain epoch: %w", err)
	}
	if ls.currentHeight, err = ls.db.GetChainHeight(txn); err != nil {
		return fmt.Errorf("load chain height: %w", err)
	}
	return nil
}

// InitGenesis writes the genesis state into an empty store. Starting again
// from the same genesis is a no-op.
func (ls *LedgerState) InitGenesis(ctx context.Context, g *Genesis) error {
	_, span := ls.tracer.Start(ctx, "LedgerState.InitGenesis")
	defer span.End()
	ls.Lock()
	defer ls.Unlock()
	var created bool
	txn := ls.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		var err error
		created, err = initGenesis(ls.db, g, txn)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("init genesis: %w", err)
	}
	if err := ls.loadTip(); err != nil {
		return err
	}
	if created {
		ls.config.Logger.Info(
			"initialized ledger from genesis",
			"component", "ledger",
			"epoch", ls.currentEpoch,
			"treasury", g.Treasury,
		)
	}
	ls.updateStateMetrics()
	return nil
}

// ApplyBlock applies the transactions of a block in order. Each transaction
// commits or rolls back on its own and its outcome is returned in the
// matching TxResult. An error is returned only when the block itself is
// unacceptable or the store fails.
func (ls *LedgerState) ApplyBlock(ctx context.Context, block Block) ([]TxResult, error) {
	ctx, span := ls.tracer.Start(
		ctx,
		"LedgerState.ApplyBlock",
		oteltrace.WithAttributes(
			attribute.Int64("block.height", int64(block.Height)), //nolint:gosec
			attribute.Int64("block.epoch", int64(block.Epoch)),   //nolint:gosec
			attribute.Int("block.txs", len(block.Txs)),
		),
	)
	defer span.End()
	ls.Lock()
	defer ls.Unlock()
	start := time.Now()
	if block.Epoch != ls.currentEpoch {
		err := fmt.Errorf(
			"%w: block epoch %d, ledger epoch %d",
			ErrEpochMismatch,
			block.Epoch,
			ls.currentEpoch,
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if block.Height <= ls.currentHeight {
		err := fmt.Errorf(
			"%w: height %d is not above %d",
			ErrInvalidBlock,
			block.Height,
			ls.currentHeight,
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	results := make([]TxResult, 0, len(block.Txs))
	for i, tx := range block.Txs {
		result, err := ls.applyTx(ctx, block, uint32(i), tx) //nolint:gosec
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return results, err
		}
		results = append(results, result)
	}
	txn := ls.db.BlobTxn(true)
	if err := txn.Do(func(txn *database.Txn) error {
		return ls.db.SetChainHeight(block.Height, txn)
	}); err != nil {
		return results, fmt.Errorf("set chain height: %w", err)
	}
	ls.currentHeight = block.Height
	ls.metrics.blockApplyLatency.Observe(time.Since(start).Seconds())
	ls.updateStateMetrics()
	ls.config.Logger.Debug(
		"applied block",
		"component", "ledger",
		"height", block.Height,
		"epoch", block.Epoch,
		"txs", len(block.Txs),
	)
	return results, nil
}

func (ls *LedgerState) applyTx(
	ctx context.Context,
	block Block,
	index uint32,
	tx *Tx,
) (TxResult, error) {
	result := TxResult{Index: index}
	if tx == nil {
		result.Err = validationErrorf("%w: empty transaction", ErrInvalidTx)
		return result, nil
	}
	result.Kind = tx.Kind()
	kindLabel := string(result.Kind)
	if kindLabel == "" {
		kindLabel = "invalid"
	}
	_, span := ls.tracer.Start(
		ctx,
		"LedgerState.applyTx",
		oteltrace.WithAttributes(
			attribute.String("tx.kind", kindLabel),
			attribute.String("tx.signer", tx.Signer),
			attribute.Int64("tx.index", int64(index)),
		),
	)
	defer span.End()
	hash, err := tx.Hash()
	if err != nil {
		result.Err = validationErrorf("%w: %w", ErrInvalidTx, err)
		ls.metrics.txsTotal.WithLabelValues(kindLabel, "failed").Inc()
		return result, nil
	}
	result.Hash = hash
	record := &models.TxRecord{
		Hash:   hash,
		Height: block.Height,
		Index:  index,
		Epoch:  block.Epoch,
		Kind:   kindLabel,
		Signer: tx.Signer,
	}
	var events []event.Event
	txn := ls.db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		applied, err := ls.db.HasAppliedTx(hash, txn)
		if err != nil {
			return err
		}
		if applied {
			return validationErrorf("transaction %x was already applied", hash)
		}
		events, err = ls.applyTxBody(txn, tx, block)
		if err != nil {
			return err
		}
		return ls.db.AddTxRecord(record, txn)
	})
	txEvent := TransactionEvent{
		Hash:   hash,
		Height: block.Height,
		Index:  index,
		Kind:   result.Kind,
		Signer: tx.Signer,
	}
	if err != nil {
		result.Err = err
		record.Error = truncate(err.Error(), 512)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ls.metrics.txsTotal.WithLabelValues(kindLabel, "failed").Inc()
		ls.config.Logger.Debug(
			"transaction rejected",
			"component", "ledger",
			"hash", fmt.Sprintf("%x", hash),
			"kind", kindLabel,
			"error", err,
		)
		if err := ls.db.AddTxRecord(record, nil); err != nil {
			return result, fmt.Errorf("record failed transaction: %w", err)
		}
		txEvent.Error = record.Error
		ls.publish(event.NewEvent(TransactionRejectedEventType, txEvent))
		return result, nil
	}
	ls.metrics.txsTotal.WithLabelValues(kindLabel, "applied").Inc()
	ls.publish(events...)
	ls.publish(event.NewEvent(TransactionAppliedEventType, txEvent))
	return result, nil
}

// authorizeSigner checks that the envelope is signed by expected
func (ls *LedgerState) authorizeSigner(
	txn *database.Txn,
	tx *Tx,
	expected string,
	msg []byte,
) error {
	if tx.Signer != expected {
		return authorizationErrorf(
			"transaction signer %s does not match %s",
			tx.Signer,
			expected,
		)
	}
	if err := ls.config.Verifier.VerifySignatures(txn, tx.Signer, msg, tx.Signatures); err != nil {
		return authorizationErrorf("signature of %s: %w", tx.Signer, err)
	}
	return nil
}

func (ls *LedgerState) applyTxBody(
	txn *database.Txn,
	tx *Tx,
	block Block,
) ([]event.Event, error) {
	if err := tx.Validate(); err != nil {
		return nil, validationErrorf("%w", err)
	}
	msg, err := tx.SigningBytes()
	if err != nil {
		return nil, validationErrorf("%w: %w", ErrInvalidTx, err)
	}
	epoch := block.Epoch
	switch tx.Kind() {
	case TxKindCandidacy:
		c := tx.Candidacy
		if err := ls.authorizeSigner(txn, tx, c.Address, msg); err != nil {
			return nil, err
		}
		if err := ls.candidacies.Register(
			txn,
			c.Address,
			c.SpendingCap,
			c.AttestationURL,
			epoch,
		); err != nil {
			return nil, err
		}
		return []event.Event{event.NewEvent(
			CandidacyRegisteredEventType,
			CandidacyRegisteredEvent{
				Address:        c.Address,
				SpendingCap:    c.SpendingCap,
				AttestationURL: c.AttestationURL,
				Epoch:          epoch,
			},
		)}, nil
	case TxKindProposal:
		if err := ls.authorizeSigner(txn, tx, tx.Proposal.Author, msg); err != nil {
			return nil, err
		}
		proposal, err := ls.proposals.Submit(txn, *tx.Proposal, epoch, block.Height)
		if err != nil {
			return nil, err
		}
		return []event.Event{event.NewEvent(
			ProposalSubmittedEventType,
			ProposalSubmittedEvent{
				ProposalID:       proposal.ID,
				Author:           proposal.Author,
				VotingStartEpoch: proposal.VotingStartEpoch,
				VotingEndEpoch:   proposal.VotingEndEpoch,
				GraceEpoch:       proposal.GraceEpoch,
			},
		)}, nil
	case TxKindVote:
		v := tx.Vote
		if err := ls.authorizeSigner(txn, tx, v.Voter, msg); err != nil {
			return nil, err
		}
		if err := ls.proposals.Vote(txn, *v, epoch, block.Height); err != nil {
			return nil, err
		}
		return []event.Event{event.NewEvent(
			VoteCastEventType,
			VoteCastEvent{
				ProposalID: v.ProposalID,
				Voter:      v.Voter,
				Kind:       v.Kind,
				Approvals:  v.Approvals,
			},
		)}, nil
	case TxKindTransfer:
		if tx.Transfer.Target == "" {
			return nil, validationErrorf("transfer without target")
		}
		return ls.applySpend(txn, tx, msg, tx.Transfer.Amount, tx.Transfer.Target, epoch)
	case TxKindBurn:
		return ls.applySpend(txn, tx, msg, tx.Burn.Amount, "", epoch)
	case TxKindAddRecipient:
		r := tx.AddRecipient
		if err := ls.continuous.AddRecipient(
			txn,
			tx.Signer,
			tx.Signatures,
			msg,
			r.Address,
			r.AmountPerEpoch,
			epoch,
		); err != nil {
			return nil, err
		}
		return []event.Event{event.NewEvent(
			RecipientAddedEventType,
			RecipientAddedEvent{
				Address:        r.Address,
				AmountPerEpoch: r.AmountPerEpoch,
			},
		)}, nil
	case TxKindRemoveRecipient:
		r := tx.RemoveRecipient
		if err := ls.continuous.RemoveRecipient(
			txn,
			tx.Signer,
			tx.Signatures,
			msg,
			r.Address,
			epoch,
		); err != nil {
			return nil, err
		}
		return []event.Event{event.NewEvent(
			RecipientRemovedEventType,
			RecipientRemovedEvent{Address: r.Address},
		)}, nil
	default:
		return nil, validationErrorf("%w: unknown body", ErrInvalidTx)
	}
}

func (ls *LedgerState) applySpend(
	txn *database.Txn,
	tx *Tx,
	msg []byte,
	amount uint64,
	destination string,
	epoch uint64,
) ([]event.Event, error) {
	spend, err := ls.treasury.AuthorizeSpend(
		txn,
		tx.Signer,
		tx.Signatures,
		msg,
		amount,
		destination,
		epoch,
	)
	if err != nil {
		return nil, err
	}
	return []event.Event{event.NewEvent(
		SpendAuthorizedEventType,
		SpendAuthorizedEvent(*spend),
	)}, nil
}

// EndEpoch finalizes epoch: recipients are settled, proposals whose voting
// window ends at epoch are resolved, and the ledger advances to epoch+1.
// All of it commits as one transaction.
func (ls *LedgerState) EndEpoch(ctx context.Context, epoch uint64) (*EpochReport, error) {
	_, span := ls.tracer.Start(
		ctx,
		"LedgerState.EndEpoch",
		oteltrace.WithAttributes(
			attribute.Int64("epoch", int64(epoch)), //nolint:gosec
		),
	)
	defer span.End()
	ls.Lock()
	defer ls.Unlock()
	if epoch != ls.currentEpoch {
		err := fmt.Errorf(
			"%w: cannot end epoch %d, ledger epoch is %d",
			ErrEpochMismatch,
			epoch,
			ls.currentEpoch,
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	report := &EpochReport{Epoch: epoch}
	txn := ls.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		settlement, err := ls.continuous.SettleEpoch(txn, epoch)
		if err != nil {
			return fmt.Errorf("settle epoch %d: %w", epoch, err)
		}
		report.Settlement = settlement
		proposals, err := ls.db.GetUnresolvedPgfProposals(txn)
		if err != nil {
			return err
		}
		for i := range proposals {
			if proposals[i].VotingEndEpoch > epoch {
				continue
			}
			res, err := ls.proposals.Resolve(txn, &proposals[i], epoch)
			if err != nil {
				return fmt.Errorf("resolve proposal %d: %w", proposals[i].ID, err)
			}
			report.Resolutions = append(report.Resolutions, res)
		}
		return ls.db.SetChainEpoch(epoch+1, txn)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	ls.currentEpoch = epoch + 1
	ls.reportEpoch(report)
	ls.updateStateMetrics()
	return report, nil
}

// reportEpoch emits the events, metrics and logs of a committed epoch
func (ls *LedgerState) reportEpoch(report *EpochReport) {
	logger := ls.config.Logger.With("component", "ledger", "epoch", report.Epoch)
	var events []event.Event
	if s := report.Settlement; s != nil && !s.AlreadySettled {
		for _, p := range s.Payouts {
			ls.metrics.settlementPayouts.Inc()
			ls.metrics.settlementPaidAmount.Add(float64(p.Amount))
			events = append(events, event.NewEvent(
				SettlementPayoutEventType,
				SettlementPayoutEvent{
					Epoch:     report.Epoch,
					Recipient: p.Destination,
					Amount:    p.Amount,
				},
			))
		}
		for _, d := range s.Deficiencies {
			ls.metrics.settlementDeficiencies.Inc()
			logger.Warn(
				"continuous payout skipped",
				"recipient", d.Recipient,
				"amount", d.Amount,
				"reason", d.Err,
			)
			events = append(events, event.NewEvent(
				SettlementDeficiencyEventType,
				SettlementDeficiencyEvent{
					Epoch:     report.Epoch,
					Recipient: d.Recipient,
					Amount:    d.Amount,
					Reason:    d.Err.Error(),
				},
			))
		}
	}
	for _, res := range report.Resolutions {
		outcome := "rejected"
		if res.Tally.Passed {
			outcome = "passed"
		}
		ls.metrics.proposalsResolvedTotal.WithLabelValues(outcome).Inc()
		logger.Info(
			"pgf proposal resolved",
			"proposal", res.Proposal.ID,
			"outcome", outcome,
			"participation", res.Tally.ParticipationPower,
			"yay", res.Tally.YayPower,
			"total", res.Tally.TotalPower,
		)
		events = append(events, event.NewEvent(
			ProposalResolvedEventType,
			ProposalResolvedEvent{
				ProposalID:         res.Proposal.ID,
				Passed:             res.Tally.Passed,
				Epoch:              report.Epoch,
				TotalPower:         res.Tally.TotalPower,
				ParticipationPower: res.Tally.ParticipationPower,
				YayPower:           res.Tally.YayPower,
			},
		))
		if c := res.Election.Revoked; c != nil {
			logger.Info("council revoked", "address", c.Address, "spent", c.SpentAmount)
			events = append(events, event.NewEvent(
				CouncilRevokedEventType,
				CouncilRevokedEvent{
					ProposalID:  res.Proposal.ID,
					Address:     c.Address,
					SpendingCap: c.SpendingCap,
					SpentAmount: c.SpentAmount,
					Epoch:       report.Epoch,
				},
			))
		}
		if c := res.Election.Elected; c != nil {
			logger.Info(
				"council elected",
				"address", c.Address,
				"spending_cap", c.SpendingCap,
				"activation_epoch", c.ActivationEpoch,
			)
			events = append(events, event.NewEvent(
				CouncilElectedEventType,
				CouncilElectedEvent{
					ProposalID:      res.Proposal.ID,
					Address:         c.Address,
					DeclaredCap:     res.Election.DeclaredCap,
					SpendingCap:     c.SpendingCap,
					ActivationEpoch: c.ActivationEpoch,
					Weight:          res.Election.Weight,
				},
			))
		}
	}
	events = append(events, event.NewEvent(
		EpochEndedEventType,
		EpochEndedEvent{Epoch: report.Epoch, NextEpoch: report.Epoch + 1},
	))
	ls.publish(events...)
}

func (ls *LedgerState) publish(events ...event.Event) {
	if ls.config.EventBus == nil {
		return
	}
	for _, evt := range events {
		ls.config.EventBus.Publish(evt.Type, evt)
	}
}

// updateStateMetrics refreshes the state gauges from the blob store
func (ls *LedgerState) updateStateMetrics() {
	ls.metrics.epochNum.Set(float64(ls.currentEpoch))
	ls.metrics.blockHeight.Set(float64(ls.currentHeight))
	txn := ls.db.BlobTxn(false)
	defer txn.Release()
	if bal, err := ls.db.GetBalance(address.Pgf.String(), txn); err == nil {
		ls.metrics.treasuryBalance.Set(float64(bal))
	}
	council, err := ls.db.GetActiveCouncil(txn)
	if err == nil {
		var capAmount, spent uint64
		if council != nil {
			capAmount, spent = council.SpendingCap, council.SpentAmount
		}
		ls.metrics.councilSpendingCap.Set(float64(capAmount))
		ls.metrics.councilSpentAmount.Set(float64(spent))
	}
	if recipients, err := ls.db.GetRecipients(txn); err == nil {
		ls.metrics.recipients.Set(float64(len(recipients)))
	}
}
