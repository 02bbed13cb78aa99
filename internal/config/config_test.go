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
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/blinklabs-io/arbiter/database"
	"github.com/blinklabs-io/arbiter/database/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "arbiter.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0o600))
	return tmpFile
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 7*24*time.Hour, Duration(cfg.VotingPeriod))
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
databasePath: /var/lib/arbiter
owner: "0x00000000000000000000000000000000000000a1"
provision: true
quorumVotes: 3
votingPeriod: 1h
substrateUrl: ws://127.0.0.1:9944
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/arbiter", cfg.DatabasePath)
	assert.True(t, cfg.Provision)
	assert.Equal(t, uint64(3), cfg.QuorumVotes)
	assert.Equal(t, time.Hour, Duration(cfg.VotingPeriod))
	assert.Equal(t, "ws://127.0.0.1:9944", cfg.SubstrateURL)
	// Untouched values keep their defaults
	assert.Equal(t, DefaultSubmitMethod, cfg.SubmitMethod)
}

func TestLoadConfigSection(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
config:
  listenAddress: 0.0.0.0:8545
database:
  metadata:
    plugin: postgres
    postgres:
      host: db.internal
      port: 5433
`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8545", cfg.ListenAddress)
	assert.Equal(t, "postgres", cfg.MetadataPlugin)
	t.Cleanup(func() {
		_ = plugin.SetPluginOption(plugin.PluginTypeMetadata, "postgres", "host", "localhost")
		_ = plugin.SetPluginOption(plugin.PluginTypeMetadata, "postgres", "port", 5432)
	})
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ARBITER_QUORUM_VOTES", "5")
	t.Setenv("ARBITER_SUBSTRATE_URL", "ws://node:9944")
	t.Setenv("ARBITER_OWNER", "0x00000000000000000000000000000000000000a1")
	cfg, err := LoadConfig(writeConfig(t, "quorumVotes: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cfg.QuorumVotes)
	assert.Equal(t, "ws://node:9944", cfg.SubstrateURL)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", cfg.Owner)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad owner", "owner: nope\n"},
		{"bad hub address", "hubAddress: 0x12\n"},
		{"provision without owner", "provision: true\n"},
		{"bad duration", "votingPeriod: soon\n"},
		{"bad plugin option", "database:\n  metadata:\n    sqlite:\n      data-dir: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}

func TestListPlugins(t *testing.T) {
	blobs := ListPlugins(plugin.PluginTypeBlob)
	require.NotEmpty(t, blobs)
	assert.Contains(t, blobs[0], "badger")
}
