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
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/pgf/internal/config"
	"github.com/blinklabs-io/pgf/internal/node"
)

func applyRun(ctx context.Context, args []string, cfg *config.Config, endEpoch bool) {
	logger := commonRun()
	if _, err := node.Apply(ctx, cfg, logger, args[0], endEpoch); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func applyCommand() *cobra.Command {
	var endEpoch bool
	cmd := &cobra.Command{
		Use:   "apply <block-file>",
		Short: "Apply a YAML or CBOR block file to the database offline",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			applyRun(cmd.Context(), args, cmdConfig(cmd), endEpoch)
		},
	}
	cmd.Flags().
		BoolVar(&endEpoch, "end-epoch", false, "end the epoch of the last block after applying")
	return cmd
}
