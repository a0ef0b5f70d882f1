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
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/pgf/address"
)

var testAddr = func() string {
	seed := blake2b.Sum256([]byte("api"))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return address.FromPublicKey(priv.Public().(ed25519.PublicKey)).String()
}()

// mockNode implements Node for testing.
type mockNode struct {
	epoch       EpochInfo
	council     *CouncilInfo
	history     []CouncilInfo
	treasury    TreasuryInfo
	recipients  []RecipientInfo
	candidacies []CandidacyInfo
	proposals   []ProposalInfo
	ballots     map[uint64][]BallotInfo
	settlements map[uint64][]SettlementInfo
	balances    map[string]uint64
	submitHash  string
	submitErr   error
	submitted   [][]byte
	err         error
}

func (m *mockNode) Epoch() (EpochInfo, error) {
	return m.epoch, m.err
}

func (m *mockNode) Council() (CouncilInfo, error) {
	if m.err != nil {
		return CouncilInfo{}, m.err
	}
	if m.council == nil {
		return CouncilInfo{}, ErrNotFound
	}
	return *m.council, nil
}

func (m *mockNode) CouncilHistory() ([]CouncilInfo, error) {
	return m.history, m.err
}

func (m *mockNode) Treasury() (TreasuryInfo, error) {
	return m.treasury, m.err
}

func (m *mockNode) Recipients() ([]RecipientInfo, error) {
	return m.recipients, m.err
}

func (m *mockNode) Candidacies() ([]CandidacyInfo, error) {
	return m.candidacies, m.err
}

func (m *mockNode) Proposals() ([]ProposalInfo, error) {
	return m.proposals, m.err
}

func (m *mockNode) Proposal(id uint64) (ProposalInfo, error) {
	for _, p := range m.proposals {
		if p.ID == id {
			return p, nil
		}
	}
	return ProposalInfo{}, ErrNotFound
}

func (m *mockNode) Ballots(id uint64) ([]BallotInfo, error) {
	ballots, ok := m.ballots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ballots, nil
}

func (m *mockNode) Settlements(epoch uint64) ([]SettlementInfo, error) {
	return m.settlements[epoch], m.err
}

func (m *mockNode) Balance(addr string) (uint64, error) {
	return m.balances[addr], m.err
}

func (m *mockNode) SubmitTx(txBytes []byte) (string, error) {
	m.submitted = append(m.submitted, txBytes)
	return m.submitHash, m.submitErr
}

func newTestServer(node Node) *Server {
	return New(Config{ListenAddress: ":0"}, node, nil)
}

func doRequest(
	t *testing.T,
	s *Server,
	method string,
	target string,
	body string,
	contentType string,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ret))
	return ret
}

func TestHandleRootAndHealth(t *testing.T) {
	s := newTestServer(&mockNode{})

	rec := doRequest(t, s, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	root := decodeBody[RootResponse](t, rec)
	assert.Equal(t, apiVersion, root.Version)

	rec = doRequest(t, s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[HealthResponse](t, rec).IsHealthy)

	rec = doRequest(t, s, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEpoch(t *testing.T) {
	s := newTestServer(&mockNode{epoch: EpochInfo{Epoch: 7, Height: 42}})
	rec := doRequest(t, s, http.MethodGet, "/api/v0/epoch", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[EpochResponse](t, rec)
	assert.Equal(t, uint64(7), resp.Epoch)
	assert.Equal(t, uint64(42), resp.Height)
}

func TestHandleCouncil(t *testing.T) {
	node := &mockNode{}
	s := newTestServer(node)

	rec := doRequest(t, s, http.MethodGet, "/api/v0/council", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	node.council = &CouncilInfo{
		Address:         testAddr,
		ProposalID:      3,
		SpendingCap:     1 << 60,
		SpentAmount:     10,
		Weight:          80,
		ElectedEpoch:    9,
		ActivationEpoch: 9,
	}
	rec = doRequest(t, s, http.MethodGet, "/api/v0/council", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[CouncilResponse](t, rec)
	assert.Equal(t, testAddr, resp.Address)
	assert.Equal(t, "1152921504606846976", resp.SpendingCap)
	assert.Equal(t, "10", resp.SpentAmount)
	assert.Equal(t, "80", resp.Weight)
	assert.Nil(t, resp.RevokedEpoch)
}

func TestHandleCouncilHistory(t *testing.T) {
	revoked := uint64(12)
	s := newTestServer(&mockNode{history: []CouncilInfo{
		{Address: "a", ElectedEpoch: 5, RevokedEpoch: &revoked},
		{Address: "b", ElectedEpoch: 12},
	}})
	rec := doRequest(t, s, http.MethodGet, "/api/v0/councils?order=desc", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[[]CouncilResponse](t, rec)
	require.Len(t, resp, 2)
	assert.Equal(t, "b", resp[0].Address)
	require.NotNil(t, resp[1].RevokedEpoch)
	assert.Equal(t, revoked, *resp[1].RevokedEpoch)
}

func TestHandleTreasury(t *testing.T) {
	s := newTestServer(&mockNode{treasury: TreasuryInfo{Balance: 5000}})
	rec := doRequest(t, s, http.MethodGet, "/api/v0/treasury", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5000", decodeBody[TreasuryResponse](t, rec).Balance)
}

func TestHandleRecipientsPagination(t *testing.T) {
	node := &mockNode{}
	for i := range 5 {
		node.recipients = append(node.recipients, RecipientInfo{
			Address:        fmt.Sprintf("r%d", i),
			AmountPerEpoch: uint64(i * 10),
		})
	}
	s := newTestServer(node)

	rec := doRequest(t, s, http.MethodGet, "/api/v0/recipients?limit=2&offset=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get(TotalCountHeader))
	resp := decodeBody[[]RecipientResponse](t, rec)
	require.Len(t, resp, 2)
	assert.Equal(t, "r2", resp[0].Address)
	assert.Equal(t, "30", resp[1].AmountPerEpoch)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/recipients?offset=9", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]RecipientResponse](t, rec))

	rec = doRequest(t, s, http.MethodGet, "/api/v0/recipients?limit=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCandidacies(t *testing.T) {
	s := newTestServer(&mockNode{candidacies: []CandidacyInfo{
		{
			Address:        testAddr,
			SpendingCap:    100,
			ProposedEpoch:  2,
			ExpiryEpoch:    12,
			AttestationURL: "https://example.org",
			Valid:          true,
		},
	}})
	rec := doRequest(t, s, http.MethodGet, "/api/v0/candidacies", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[[]CandidacyResponse](t, rec)
	require.Len(t, resp, 1)
	assert.Equal(t, "100", resp[0].SpendingCap)
	assert.Equal(t, uint64(12), resp[0].ExpiryEpoch)
	assert.True(t, resp[0].Valid)
}

func TestHandleProposals(t *testing.T) {
	node := &mockNode{
		proposals: []ProposalInfo{
			{ID: 1, Author: testAddr, Deposit: 500, Status: "passed"},
			{
				ID:      2,
				Author:  testAddr,
				Deposit: 500,
				Status:  "voting",
				Content: map[string]string{"title": "council"},
			},
		},
		ballots: map[uint64][]BallotInfo{
			2: {{
				Voter:     testAddr,
				Kind:      "approve",
				CastEpoch: 4,
				Approvals: []ApprovalInfo{{CouncilAddress: "c", SpendingCap: 9}},
			}},
		},
	}
	s := newTestServer(node)

	rec := doRequest(t, s, http.MethodGet, "/api/v0/proposals", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ProposalResponse](t, rec)
	require.Len(t, list, 2)
	assert.NotNil(t, list[0].Content)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/proposals/2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[ProposalResponse](t, rec)
	assert.Equal(t, "voting", p.Status)
	assert.Equal(t, "council", p.Content["title"])
	assert.Equal(t, "500", p.Deposit)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/proposals/3", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(t, s, http.MethodGet, "/api/v0/proposals/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/proposals/2/ballots", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ballots := decodeBody[[]BallotResponse](t, rec)
	require.Len(t, ballots, 1)
	assert.Equal(t, "approve", ballots[0].Kind)
	require.Len(t, ballots[0].Approvals, 1)
	assert.Equal(t, "9", ballots[0].Approvals[0].SpendingCap)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/proposals/1/ballots", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSettlements(t *testing.T) {
	node := &mockNode{
		epoch: EpochInfo{Epoch: 4},
		settlements: map[uint64][]SettlementInfo{
			1: {{Epoch: 1, Recipient: "r", Amount: 10, Paid: true}},
			3: {{Epoch: 3, Recipient: "r", Amount: 10, Reason: "cap exceeded"}},
		},
	}
	s := newTestServer(node)

	rec := doRequest(t, s, http.MethodGet, "/api/v0/settlements?epoch=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[[]SettlementResponse](t, rec)
	require.Len(t, resp, 1)
	assert.True(t, resp[0].Paid)

	// Defaults to the last finished epoch
	rec = doRequest(t, s, http.MethodGet, "/api/v0/settlements", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[[]SettlementResponse](t, rec)
	require.Len(t, resp, 1)
	assert.False(t, resp[0].Paid)
	assert.Equal(t, "cap exceeded", resp[0].Reason)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/settlements?epoch=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBalance(t *testing.T) {
	s := newTestServer(&mockNode{balances: map[string]uint64{testAddr: 77}})

	rec := doRequest(t, s, http.MethodGet, "/api/v0/accounts/"+testAddr+"/balance", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[BalanceResponse](t, rec)
	assert.Equal(t, testAddr, resp.Address)
	assert.Equal(t, "77", resp.Balance)

	rec = doRequest(t, s, http.MethodGet, "/api/v0/accounts/bogus/balance", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmitTx(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		submitErr   error
		wantStatus  int
	}{
		{
			name:        "accepted",
			contentType: "application/cbor",
			body:        "\xa0",
			wantStatus:  http.StatusAccepted,
		},
		{
			name:        "wrong content type",
			contentType: "application/json",
			body:        "{}",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "empty body",
			contentType: "application/cbor",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "too large",
			contentType: "application/cbor",
			body:        strings.Repeat("x", maxTxSize+1),
			wantStatus:  http.StatusRequestEntityTooLarge,
		},
		{
			name:        "rejected",
			contentType: "application/cbor",
			body:        "\xa0",
			submitErr:   fmt.Errorf("%w: bad signature", ErrTxRejected),
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "mempool full",
			contentType: "application/cbor",
			body:        "\xa0",
			submitErr:   fmt.Errorf("%w: full", ErrUnavailable),
			wantStatus:  http.StatusServiceUnavailable,
		},
		{
			name:        "internal error",
			contentType: "application/cbor",
			body:        "\xa0",
			submitErr:   errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			node := &mockNode{submitHash: "abcd", submitErr: test.submitErr}
			s := newTestServer(node)
			rec := doRequest(
				t,
				s,
				http.MethodPost,
				"/api/v0/tx/submit",
				test.body,
				test.contentType,
			)
			require.Equal(t, test.wantStatus, rec.Code)
			if test.wantStatus == http.StatusAccepted {
				assert.Equal(t, "abcd", decodeBody[SubmitTxResponse](t, rec).Hash)
				require.Len(t, node.submitted, 1)
				return
			}
			errResp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, test.wantStatus, errResp.StatusCode)
		})
	}
}

func TestHandleNodeError(t *testing.T) {
	s := newTestServer(&mockNode{err: errors.New("db closed")})
	for _, path := range []string{
		"/api/v0/epoch",
		"/api/v0/treasury",
		"/api/v0/recipients",
		"/api/v0/candidacies",
		"/api/v0/proposals",
	} {
		rec := doRequest(t, s, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestServer(&mockNode{})
	require.NoError(t, s.Start(t.Context()))
	addr := s.Addr()
	require.NotNil(t, addr)

	// Starting twice fails
	require.Error(t, s.Start(t.Context()))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Nil(t, s.Addr())
	// Stopping twice is a no-op
	require.NoError(t, s.Stop(ctx))
}

func TestStopOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestServer(&mockNode{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	require.Eventually(t, func() bool {
		return s.Addr() == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartPortInUse(t *testing.T) {
	first := newTestServer(&mockNode{})
	require.NoError(t, first.Start(t.Context()))
	defer first.Stop(context.Background()) //nolint:errcheck

	second := New(Config{ListenAddress: first.Addr().String()}, &mockNode{}, nil)
	require.Error(t, second.Start(t.Context()))
}
