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

// Package api implements the read-only PGF query API and the transaction
// submission endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const DefaultListenAddress = ":3100"

// Config holds the API server settings.
type Config struct {
	ListenAddress string
	// ShutdownTimeout bounds the graceful shutdown that follows context
	// cancellation. Zero means 30 seconds.
	ShutdownTimeout time.Duration
}

// Server is the PGF REST API server.
type Server struct {
	config     Config
	logger     *slog.Logger
	node       Node
	httpServer *http.Server
	listener   net.Listener
	stopCh     chan struct{}
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(
	cfg Config,
	node Node,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		config: cfg,
		logger: logger,
		node:   node,
	}
}

// Handler returns the request router. It is exposed for tests and for
// embedding the API in another server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v0/epoch", s.handleEpoch)
	mux.HandleFunc("GET /api/v0/council", s.handleCouncil)
	mux.HandleFunc("GET /api/v0/councils", s.handleCouncilHistory)
	mux.HandleFunc("GET /api/v0/treasury", s.handleTreasury)
	mux.HandleFunc("GET /api/v0/recipients", s.handleRecipients)
	mux.HandleFunc("GET /api/v0/candidacies", s.handleCandidacies)
	mux.HandleFunc("GET /api/v0/proposals", s.handleProposals)
	mux.HandleFunc("GET /api/v0/proposals/{id}", s.handleProposal)
	mux.HandleFunc(
		"GET /api/v0/proposals/{id}/ballots",
		s.handleBallots,
	)
	mux.HandleFunc("GET /api/v0/settlements", s.handleSettlements)
	mux.HandleFunc(
		"GET /api/v0/accounts/{address}/balance",
		s.handleBalance,
	)
	mux.HandleFunc("POST /api/v0/tx/submit", s.handleSubmitTx)
	return mux
}

// Addr returns the bound listen address, or nil if the server is not
// running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start(
	ctx context.Context,
) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	// Start the server with deterministic error detection
	if err := s.startServer(server); err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return err
	}

	s.logger.Info(
		"API listener started on " + s.config.ListenAddress,
	)

	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()

	// Monitor context for cancellation
	go func() {
		select {
		case <-ctx.Done():
		case <-stopCh:
			return
		}
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.listener = nil
		s.mu.Unlock()

		if srv != nil {
			s.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				s.config.ShutdownTimeout,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(
				shutdownCtx,
			); err != nil {
				s.logger.Error(
					"failed to shutdown API server on "+
						"context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(
	ctx context.Context,
) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.mu.Unlock()

	if srv != nil {
		s.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (s *Server) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	s.mu.Lock()
	s.listener = ln
	s.stopCh = make(chan struct{})
	s.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
