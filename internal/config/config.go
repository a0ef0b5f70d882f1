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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "pgf.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	envPrefix              = "pgf"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string `yaml:"blobPlugin"      envconfig:"PGF_DATABASE_BLOB_PLUGIN"`
	MetadataPlugin  string `yaml:"metadataPlugin"  envconfig:"PGF_DATABASE_METADATA_PLUGIN"`
	GenesisFile     string `yaml:"genesisFile"     split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	// SlotLength is a duration string such as "1s"
	SlotLength string `yaml:"slotLength"  split_words:"true"`
	// SystemStart is the RFC3339 start time of slot 0. Empty means the
	// time the node starts.
	SystemStart     string `yaml:"systemStart"     split_words:"true"`
	TracingEndpoint string `yaml:"tracingEndpoint" split_words:"true"`
	MempoolCapacity int64  `yaml:"mempoolCapacity" split_words:"true"`
	SlotsPerEpoch   uint64 `yaml:"slotsPerEpoch"   split_words:"true"`
	MaxBlockTxs     int    `yaml:"maxBlockTxs"     split_words:"true"`
	ApiPort         uint   `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	Debug           bool   `yaml:"debug"`
	TracingEnabled  bool   `yaml:"tracingEnabled"  split_words:"true"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
}

// DefaultConfig returns the configuration used when neither a config file
// nor environment variables override a value
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".pgf",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		GenesisFile:     "genesis.yaml",
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		SlotLength:      "1s",
		MempoolCapacity: 1048576,
		SlotsPerEpoch:   60,
		MaxBlockTxs:     500,
		ApiPort:         3100,
		MetricsPort:     12798,
	}
}

// LoadConfig applies the config file and then PGF_* environment variables
// on top of the defaults. With no file given, ~/.pgf/pgfd.yaml and then
// /etc/pgf/pgfd.yaml are tried.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".pgf", "pgfd.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/pgf/pgfd.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := c.ParseSlotLength(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParseShutdownTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParseSystemStart(); err != nil {
		errs = append(errs, err)
	}
	if c.SlotsPerEpoch == 0 {
		errs = append(errs, errors.New("slotsPerEpoch must be positive"))
	}
	if c.MempoolCapacity <= 0 {
		errs = append(errs, errors.New("mempoolCapacity must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) ParseSlotLength() (time.Duration, error) {
	d, err := time.ParseDuration(c.SlotLength)
	if err != nil {
		return 0, fmt.Errorf("invalid slotLength %q: %w", c.SlotLength, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("slotLength %q must be positive", c.SlotLength)
	}
	return d, nil
}

func (c *Config) ParseShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdownTimeout %q: %w", c.ShutdownTimeout, err)
	}
	return d, nil
}

// ParseSystemStart returns the zero time when SystemStart is unset
func (c *Config) ParseSystemStart() (time.Time, error) {
	if c.SystemStart == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.SystemStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid systemStart %q: %w", c.SystemStart, err)
	}
	return t, nil
}
