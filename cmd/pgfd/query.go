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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/pgf/api"
)

// apiClient talks to the REST API of a running node
type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(req *http.Request, v any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("%s: %s", errResp.Error, errResp.Message)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.Unmarshal(body, v)
}

func (c *apiClient) get(path string, query url.Values, v any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func (c *apiClient) submit(txBytes []byte) (string, error) {
	req, err := http.NewRequest(
		http.MethodPost,
		c.baseURL+"/api/v0/tx/submit",
		bytes.NewReader(txBytes),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/cbor")
	var resp api.SubmitTxResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Hash, nil
}

// queryTarget describes one "pgfd query" subcommand
type queryTarget struct {
	name  string
	short string
	args  cobra.PositionalArgs
	// path builds the request path from the positional arguments
	path func(args []string) (string, error)
	// newResult returns a pointer to the response value
	newResult func() any
}

var queryTargets = []queryTarget{
	{
		name:      "epoch",
		short:     "Show the current epoch and height",
		path:      staticPath("/api/v0/epoch"),
		newResult: func() any { return &api.EpochResponse{} },
	},
	{
		name:      "council",
		short:     "Show the active council",
		path:      staticPath("/api/v0/council"),
		newResult: func() any { return &api.CouncilResponse{} },
	},
	{
		name:      "councils",
		short:     "List every elected council term",
		path:      staticPath("/api/v0/councils"),
		newResult: func() any { return &[]api.CouncilResponse{} },
	},
	{
		name:      "treasury",
		short:     "Show the treasury balance",
		path:      staticPath("/api/v0/treasury"),
		newResult: func() any { return &api.TreasuryResponse{} },
	},
	{
		name:      "recipients",
		short:     "List continuous funding recipients",
		path:      staticPath("/api/v0/recipients"),
		newResult: func() any { return &[]api.RecipientResponse{} },
	},
	{
		name:      "candidacies",
		short:     "List council candidacies",
		path:      staticPath("/api/v0/candidacies"),
		newResult: func() any { return &[]api.CandidacyResponse{} },
	},
	{
		name:  "proposals",
		short: "List proposals, or show one proposal by ID",
		args:  cobra.MaximumNArgs(1),
		path: func(args []string) (string, error) {
			if len(args) == 0 {
				return "/api/v0/proposals", nil
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return "", fmt.Errorf("invalid proposal id %q", args[0])
			}
			return fmt.Sprintf("/api/v0/proposals/%d", id), nil
		},
		newResult: func() any { return new(json.RawMessage) },
	},
	{
		name:  "ballots",
		short: "List the ballots cast on a proposal",
		args:  cobra.ExactArgs(1),
		path: func(args []string) (string, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return "", fmt.Errorf("invalid proposal id %q", args[0])
			}
			return fmt.Sprintf("/api/v0/proposals/%d/ballots", id), nil
		},
		newResult: func() any { return &[]api.BallotResponse{} },
	},
	{
		name:      "settlements",
		short:     "List settlement records of an epoch",
		path:      staticPath("/api/v0/settlements"),
		newResult: func() any { return &[]api.SettlementResponse{} },
	},
	{
		name:  "balance",
		short: "Show the balance of an address",
		args:  cobra.ExactArgs(1),
		path: func(args []string) (string, error) {
			return "/api/v0/accounts/" + url.PathEscape(args[0]) + "/balance", nil
		},
		newResult: func() any { return &api.BalanceResponse{} },
	},
}

func staticPath(path string) func([]string) (string, error) {
	return func([]string) (string, error) {
		return path, nil
	}
}

func queryCommand() *cobra.Command {
	var apiURL string
	var epoch int64
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the state of a running node through its API",
	}
	cmd.PersistentFlags().
		StringVar(&apiURL, "api-url", "", "base URL of the node API (default http://127.0.0.1:<apiPort>)")
	for _, target := range queryTargets {
		sub := &cobra.Command{
			Use:   target.name,
			Short: target.short,
			Args:  target.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				if target.args == nil && len(args) > 0 {
					return fmt.Errorf("%s takes no arguments", target.name)
				}
				path, err := target.path(args)
				if err != nil {
					return err
				}
				query := url.Values{}
				if target.name == "settlements" && epoch >= 0 {
					query.Set("epoch", strconv.FormatInt(epoch, 10))
				}
				result := target.newResult()
				client := newAPIClient(resolveAPIURL(cmd, apiURL))
				if err := client.get(path, query, result); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			},
		}
		if target.name == "settlements" {
			sub.Flags().
				Int64Var(&epoch, "epoch", -1, "epoch to list (default: the last ended epoch)")
		}
		cmd.AddCommand(sub)
	}
	return cmd
}

func submitCommand() *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "submit <tx-file>",
		Short: "Submit a signed CBOR transaction (binary or hex) to a running node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txBytes, err := readTxFile(args[0])
			if err != nil {
				return err
			}
			client := newAPIClient(resolveAPIURL(cmd, apiURL))
			hash, err := client.submit(txBytes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().
		StringVar(&apiURL, "api-url", "", "base URL of the node API (default http://127.0.0.1:<apiPort>)")
	return cmd
}

// readTxFile accepts the binary output of "sign --out" as well as the hex
// it prints
func readTxFile(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(buf)
	if decoded, err := hex.DecodeString(string(trimmed)); err == nil {
		return decoded, nil
	}
	if len(buf) == 0 {
		return nil, errors.New("empty transaction file")
	}
	return buf, nil
}

func resolveAPIURL(cmd *cobra.Command, apiURL string) string {
	if apiURL != "" {
		return apiURL
	}
	port := uint(3100)
	if cfg := cmdConfigOrNil(cmd); cfg != nil && cfg.ApiPort > 0 {
		port = cfg.ApiPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
