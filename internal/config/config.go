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

	"github.com/blinklabs-io/arbiter/database/plugin"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "arbiter.config"

const (
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	DefaultShutdownTimeout = "30s"
	DefaultVotingPeriod    = "168h"
	DefaultSubmitMethod    = "arbiter_submitXcm"
)

// ErrPluginListRequested is returned when the user asks for the available
// storage plugins instead of a run
var ErrPluginListRequested = errors.New("plugin list requested")

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

type tempConfig struct {
	Config   *Config         `yaml:"config,omitempty"`
	Database *databaseConfig `yaml:"database,omitempty"`
}

// databaseConfig selects the storage plugins and carries per-plugin options:
//
//	database:
//	  metadata:
//	    plugin: postgres
//	    postgres:
//	      host: db.internal
type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath    string  `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string  `yaml:"blobPlugin"      split_words:"true"`
	MetadataPlugin  string  `yaml:"metadataPlugin"  split_words:"true"`
	Owner           string  `yaml:"owner"`
	HubAddress      string  `yaml:"hubAddress"      split_words:"true"`
	Provision       bool    `yaml:"provision"`
	ListenAddress   string  `yaml:"listenAddress"   split_words:"true"`
	RateLimit       float64 `yaml:"rateLimit"       split_words:"true"`
	RateBurst       int     `yaml:"rateBurst"       split_words:"true"`
	BindAddr        string  `yaml:"bindAddr"        split_words:"true"`
	MetricsPort     uint    `yaml:"metricsPort"     split_words:"true"`
	VotingPeriod    string  `yaml:"votingPeriod"    split_words:"true"`
	QuorumVotes     uint64  `yaml:"quorumVotes"     split_words:"true"`
	SubstrateURL    string  `yaml:"substrateUrl"    envconfig:"SUBSTRATE_URL"`
	XcmVersion      uint32  `yaml:"xcmVersion"      split_words:"true"`
	BridgeURL       string  `yaml:"bridgeUrl"       envconfig:"BRIDGE_URL"`
	SubmitMethod    string  `yaml:"submitMethod"    split_words:"true"`
	RelayInterval   string  `yaml:"relayInterval"   split_words:"true"`
	RelayAttempts   uint32  `yaml:"relayAttempts"   split_words:"true"`
	Tracing         bool    `yaml:"tracing"`
	TracingStdout   bool    `yaml:"tracingStdout"   split_words:"true"`
	ShutdownTimeout string  `yaml:"shutdownTimeout" split_words:"true"`
	Debug           bool    `yaml:"debug"`
}

// DefaultConfig returns a config with every default applied
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".arbiter",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		Provision:       false,
		ListenAddress:   "127.0.0.1:8545",
		BindAddr:        "127.0.0.1",
		MetricsPort:     12799,
		VotingPeriod:    DefaultVotingPeriod,
		XcmVersion:      3,
		SubmitMethod:    DefaultSubmitMethod,
		RelayInterval:   "5s",
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadConfig reads the YAML config file, when one is given or found in a
// default location, and then overlays ARBITER_* environment variables
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := cfg.parse(buf); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("arbiter", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	// ~/.arbiter/arbiter.yaml, then /etc/arbiter/arbiter.yaml
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".arbiter", "arbiter.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/arbiter/arbiter.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

func (c *Config) parse(buf []byte) error {
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config == nil {
		// No config section, the whole file is the main config
		if err := yaml.Unmarshal(buf, c); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	} else {
		// Overlay the config section onto the defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		if err := yaml.Unmarshal(configBytes, c); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	}
	if tempCfg.Database != nil {
		if err := applyPluginConfig(plugin.PluginTypeBlob, tempCfg.Database.Blob, &c.BlobPlugin); err != nil {
			return err
		}
		if err := applyPluginConfig(plugin.PluginTypeMetadata, tempCfg.Database.Metadata, &c.MetadataPlugin); err != nil {
			return err
		}
	}
	return nil
}

// applyPluginConfig takes the plugin name from the "plugin" key and sets
// every option found under a key named after a plugin
func applyPluginConfig(pluginType plugin.PluginType, section map[string]any, name *string) error {
	if section == nil {
		return nil
	}
	if pluginVal, ok := section["plugin"]; ok {
		pluginName, ok := pluginVal.(string)
		if !ok {
			return fmt.Errorf(
				"%s plugin name must be a string, got %T",
				plugin.PluginTypeName(pluginType),
				pluginVal,
			)
		}
		*name = pluginName
	}
	for pluginName, v := range section {
		if pluginName == "plugin" {
			continue
		}
		opts, ok := v.(map[string]any)
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: skipping %s config entry %q: expected map, got %T\n", plugin.PluginTypeName(pluginType), pluginName, v)
			continue
		}
		for optName, optVal := range opts {
			if err := plugin.SetPluginOption(pluginType, pluginName, optName, optVal); err != nil {
				return fmt.Errorf("error processing plugin config: %w", err)
			}
		}
	}
	return nil
}

// Validate checks values that are carried as strings
func (c *Config) Validate() error {
	if c.Owner != "" && !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("invalid owner address: %q", c.Owner)
	}
	if c.HubAddress != "" && !common.IsHexAddress(c.HubAddress) {
		return fmt.Errorf("invalid hub address: %q", c.HubAddress)
	}
	if c.Provision && c.Owner == "" {
		return errors.New("provision requires an owner address")
	}
	for name, v := range map[string]string{
		"votingPeriod":    c.VotingPeriod,
		"relayInterval":   c.RelayInterval,
		"shutdownTimeout": c.ShutdownTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a duration field, returning zero when it is empty
func Duration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// ListPlugins returns a printable list of the registered plugins of the
// given type
func ListPlugins(pluginType plugin.PluginType) []string {
	var ret []string
	for _, p := range plugin.GetPlugins(pluginType) {
		ret = append(ret, fmt.Sprintf("%s: %s", p.Name, p.Description))
	}
	return ret
}
