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

package badger_test

import (
	"testing"

	"github.com/blinklabs-io/arbiter/database/plugin/blob/badger"
	"github.com/blinklabs-io/arbiter/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryGetSetDelete(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k1"), []byte("v1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("k1"))
	txn.Discard()
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("k1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Discard()
	_, err = store.Get(txn, []byte("k1"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestNilTxn(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Get(nil, []byte("k"))
	require.ErrorIs(t, err, types.ErrNilTxn)
	require.ErrorIs(t, store.Set(nil, []byte("k"), nil), types.ErrNilTxn)
}

func TestIteratePrefix(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(true)
	for _, k := range []string{"q/2", "q/1", "other", "q/3"} {
		require.NoError(t, store.Set(txn, []byte(k), []byte("x"+k)))
	}
	require.NoError(t, txn.Commit())

	var keys []string
	txn = store.NewTransaction(false)
	defer txn.Discard()
	err = store.Iterate(txn, []byte("q/"), func(key, val []byte) error {
		keys = append(keys, string(key))
		assert.Equal(t, "x"+string(key), string(val))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q/1", "q/2", "q/3"}, keys)
}

func TestCommitTimestamp(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(txn, 1712345678901))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1712345678901), ts)
}

func TestPersistentStore(t *testing.T) {
	dataDir := t.TempDir()
	store, err := badger.New(
		badger.WithDataDir(dataDir),
		badger.WithPromRegistry(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("persist"), []byte("yes")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())

	store, err = badger.New(badger.WithDataDir(dataDir), badger.WithGc(false))
	require.NoError(t, err)
	defer store.Close()
	txn = store.NewTransaction(false)
	defer txn.Discard()
	val, err := store.Get(txn, []byte("persist"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), val)
}
