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

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	testDefs := []struct {
		name    string
		store   MetadataStorePostgres
		want    string
		wantErr bool
	}{
		{
			name:  "explicit dsn wins",
			store: MetadataStorePostgres{dsn: "postgres://u:p@db/arbiter", password: "ignored"},
			want:  "postgres://u:p@db/arbiter",
		},
		{
			name: "assembled from parts",
			store: MetadataStorePostgres{
				host:     "db",
				port:     5433,
				user:     "arbiter",
				password: "secret",
				database: "gov",
				sslMode:  "require",
			},
			want: "host=db port=5433 user=arbiter password=secret dbname=gov sslmode=require TimeZone=UTC",
		},
		{
			name:    "password required",
			store:   MetadataStorePostgres{host: "db"},
			wantErr: true,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			dsn, err := testDef.store.buildDSN()
			if testDef.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testDef.want, dsn)
		})
	}
}

func TestNewWithoutPasswordFails(t *testing.T) {
	_, err := NewWithOptions(WithHost("localhost"))
	require.ErrorContains(t, err, "password is required")
}
