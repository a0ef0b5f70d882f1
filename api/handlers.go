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
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/pgf/address"
)

const (
	apiVersion = "0.1.0"

	// maxTxSize bounds the request body accepted by the submit endpoint
	maxTxSize = 64 * 1024
)

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(
	w http.ResponseWriter,
	status int,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

// writeNodeError maps a Node error onto a response status.
func (s *Server) writeNodeError(
	w http.ResponseWriter,
	err error,
	message string,
) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "the requested component has not been found")
		return
	}
	s.logger.Error(message, "error", err)
	writeError(w, http.StatusInternalServerError, message)
}

func parseUintParam(r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	return v, err == nil
}

// handleRoot handles GET / and returns API metadata.
func (s *Server) handleRoot(
	w http.ResponseWriter,
	r *http.Request,
) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "unknown endpoint")
		return
	}
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "pgf",
		Version: apiVersion,
	})
}

// handleHealth handles GET /health and returns node health
// status.
func (s *Server) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleEpoch handles GET /api/v0/epoch.
func (s *Server) handleEpoch(
	w http.ResponseWriter,
	_ *http.Request,
) {
	info, err := s.node.Epoch()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve current epoch")
		return
	}
	writeJSON(w, http.StatusOK, EpochResponse(info))
}

// handleCouncil handles GET /api/v0/council and returns the active
// council.
func (s *Server) handleCouncil(
	w http.ResponseWriter,
	_ *http.Request,
) {
	info, err := s.node.Council()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve active council")
		return
	}
	writeJSON(w, http.StatusOK, councilResponse(info))
}

// handleCouncilHistory handles GET /api/v0/councils.
func (s *Server) handleCouncilHistory(
	w http.ResponseWriter,
	r *http.Request,
) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	terms, err := s.node.CouncilHistory()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve council history")
		return
	}
	ret := make([]CouncilResponse, 0, len(terms))
	for _, term := range paginate(w, terms, page) {
		ret = append(ret, councilResponse(term))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleTreasury handles GET /api/v0/treasury.
func (s *Server) handleTreasury(
	w http.ResponseWriter,
	_ *http.Request,
) {
	info, err := s.node.Treasury()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve treasury")
		return
	}
	writeJSON(w, http.StatusOK, TreasuryResponse{
		Balance: formatAmount(info.Balance),
	})
}

// handleRecipients handles GET /api/v0/recipients.
func (s *Server) handleRecipients(
	w http.ResponseWriter,
	r *http.Request,
) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipients, err := s.node.Recipients()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve recipients")
		return
	}
	ret := make([]RecipientResponse, 0, len(recipients))
	for _, rcpt := range paginate(w, recipients, page) {
		ret = append(ret, RecipientResponse{
			Address:        rcpt.Address,
			AmountPerEpoch: formatAmount(rcpt.AmountPerEpoch),
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleCandidacies handles GET /api/v0/candidacies. Expired
// candidacies are listed with valid set to false.
func (s *Server) handleCandidacies(
	w http.ResponseWriter,
	r *http.Request,
) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	candidacies, err := s.node.Candidacies()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve candidacies")
		return
	}
	ret := make([]CandidacyResponse, 0, len(candidacies))
	for _, c := range paginate(w, candidacies, page) {
		ret = append(ret, CandidacyResponse{
			Address:        c.Address,
			SpendingCap:    formatAmount(c.SpendingCap),
			ProposedEpoch:  c.ProposedEpoch,
			ExpiryEpoch:    c.ExpiryEpoch,
			AttestationURL: c.AttestationURL,
			Valid:          c.Valid,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleProposals handles GET /api/v0/proposals.
func (s *Server) handleProposals(
	w http.ResponseWriter,
	r *http.Request,
) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	proposals, err := s.node.Proposals()
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve proposals")
		return
	}
	ret := make([]ProposalResponse, 0, len(proposals))
	for _, p := range paginate(w, proposals, page) {
		ret = append(ret, proposalResponse(p))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleProposal handles GET /api/v0/proposals/{id}.
func (s *Server) handleProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := parseUintParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}
	info, err := s.node.Proposal(id)
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve proposal")
		return
	}
	writeJSON(w, http.StatusOK, proposalResponse(info))
}

// handleBallots handles GET /api/v0/proposals/{id}/ballots.
func (s *Server) handleBallots(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := parseUintParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ballots, err := s.node.Ballots(id)
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve ballots")
		return
	}
	ret := make([]BallotResponse, 0, len(ballots))
	for _, b := range paginate(w, ballots, page) {
		resp := BallotResponse{
			Voter:     b.Voter,
			Kind:      b.Kind,
			CastEpoch: b.CastEpoch,
			Approvals: make([]ApprovalResponse, 0, len(b.Approvals)),
		}
		for _, a := range b.Approvals {
			resp.Approvals = append(resp.Approvals, ApprovalResponse{
				CouncilAddress: a.CouncilAddress,
				SpendingCap:    formatAmount(a.SpendingCap),
			})
		}
		ret = append(ret, resp)
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleSettlements handles GET /api/v0/settlements?epoch=N. The epoch
// defaults to the previous epoch, the last one that can have settled.
func (s *Server) handleSettlements(
	w http.ResponseWriter,
	r *http.Request,
) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var epoch uint64
	if epochParam := r.URL.Query().Get("epoch"); epochParam != "" {
		epoch, err = strconv.ParseUint(epochParam, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid epoch")
			return
		}
	} else {
		info, err := s.node.Epoch()
		if err != nil {
			s.writeNodeError(w, err, "failed to retrieve current epoch")
			return
		}
		if info.Epoch > 0 {
			epoch = info.Epoch - 1
		}
	}
	records, err := s.node.Settlements(epoch)
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve settlements")
		return
	}
	ret := make([]SettlementResponse, 0, len(records))
	for _, rec := range paginate(w, records, page) {
		ret = append(ret, SettlementResponse{
			Epoch:     rec.Epoch,
			Recipient: rec.Recipient,
			Amount:    formatAmount(rec.Amount),
			Paid:      rec.Paid,
			Reason:    rec.Reason,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleBalance handles GET /api/v0/accounts/{address}/balance.
func (s *Server) handleBalance(
	w http.ResponseWriter,
	r *http.Request,
) {
	addr, err := address.Parse(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.node.Balance(addr.String())
	if err != nil {
		s.writeNodeError(w, err, "failed to retrieve balance")
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Address: addr.String(),
		Balance: formatAmount(balance),
	})
}

// handleSubmitTx handles POST /api/v0/tx/submit. The body is the
// CBOR-encoded signed transaction.
func (s *Server) handleSubmitTx(
	w http.ResponseWriter,
	r *http.Request,
) {
	if ct := r.Header.Get("Content-Type"); ct != "application/cbor" {
		writeError(
			w,
			http.StatusUnsupportedMediaType,
			"invalid request body, expecting Content-Type: application/cbor",
		)
		return
	}
	txBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTxSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "transaction too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(txBytes) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}
	hash, err := s.node.SubmitTx(txBytes)
	if err != nil {
		switch {
		case errors.Is(err, ErrTxRejected):
			s.logger.Debug("rejected transaction", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUnavailable):
			s.logger.Warn("cannot accept transaction", "error", err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Error("failed to submit transaction", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to submit transaction")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitTxResponse{Hash: hash})
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func councilResponse(info CouncilInfo) CouncilResponse {
	return CouncilResponse{
		Address:         info.Address,
		ProposalID:      info.ProposalID,
		SpendingCap:     formatAmount(info.SpendingCap),
		SpentAmount:     formatAmount(info.SpentAmount),
		Weight:          formatAmount(info.Weight),
		ElectedEpoch:    info.ElectedEpoch,
		ActivationEpoch: info.ActivationEpoch,
		RevokedEpoch:    info.RevokedEpoch,
	}
}

func proposalResponse(info ProposalInfo) ProposalResponse {
	content := info.Content
	if content == nil {
		content = map[string]string{}
	}
	return ProposalResponse{
		ID:                 info.ID,
		Author:             info.Author,
		Content:            content,
		VotingStartEpoch:   info.VotingStartEpoch,
		VotingEndEpoch:     info.VotingEndEpoch,
		GraceEpoch:         info.GraceEpoch,
		Deposit:            formatAmount(info.Deposit),
		Status:             info.Status,
		ResolvedEpoch:      info.ResolvedEpoch,
		TotalPower:         formatAmount(info.TotalPower),
		ParticipationPower: formatAmount(info.ParticipationPower),
		YayPower:           formatAmount(info.YayPower),
	}
}
