// Package storetest provides a conformance test suite for kvfs.Store
// implementations.
//
// Every backend (memory, badger, s3) should pass these tests:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) kvfs.Store {
//	        return memstore.New()
//	    })
//	}
package storetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fsdelegate/pkg/fs/kvfs"
)

// StoreFactory creates a fresh, empty store for each test. It may register
// teardown with t.Cleanup.
type StoreFactory func(t *testing.T) kvfs.Store

// RunConformanceSuite runs the store contract tests against factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("UpdateCommits", func(t *testing.T) { testUpdateCommits(t, factory) })
	t.Run("UpdateRollsBack", func(t *testing.T) { testUpdateRollsBack(t, factory) })
	t.Run("TxnReadsOwnWrites", func(t *testing.T) { testTxnReadsOwnWrites(t, factory) })
	t.Run("ScanPrefixOrdered", func(t *testing.T) { testScanPrefixOrdered(t, factory) })
	t.Run("ScanStopsEarly", func(t *testing.T) { testScanStopsEarly(t, factory) })
}

func put(t *testing.T, s kvfs.Store, kv ...string) {
	t.Helper()
	require.NoError(t, s.Update(t.Context(), func(txn kvfs.Txn) error {
		for i := 0; i+1 < len(kv); i += 2 {
			if err := txn.Put(kv[i], []byte(kv[i+1])); err != nil {
				return err
			}
		}
		return nil
	}))
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)

	_, err := s.Get(t.Context(), "f:missing")
	require.ErrorIs(t, err, kvfs.ErrKeyNotFound)
}

func testUpdateCommits(t *testing.T, factory StoreFactory) {
	s := factory(t)
	put(t, s, "k1", "v1", "k2", "v2")

	v, err := s.Get(t.Context(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	require.NoError(t, s.Update(t.Context(), func(txn kvfs.Txn) error {
		return txn.Delete("k1")
	}))
	_, err = s.Get(t.Context(), "k1")
	require.ErrorIs(t, err, kvfs.ErrKeyNotFound)

	v, err = s.Get(t.Context(), "k2")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
}

func testUpdateRollsBack(t *testing.T, factory StoreFactory) {
	s := factory(t)
	put(t, s, "k1", "v1")

	boom := errors.New("boom")
	err := s.Update(t.Context(), func(txn kvfs.Txn) error {
		if err := txn.Put("k1", []byte("changed")); err != nil {
			return err
		}
		if err := txn.Put("k2", []byte("new")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := s.Get(t.Context(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	_, err = s.Get(t.Context(), "k2")
	require.ErrorIs(t, err, kvfs.ErrKeyNotFound)
}

func testTxnReadsOwnWrites(t *testing.T, factory StoreFactory) {
	s := factory(t)
	put(t, s, "k1", "v1")

	require.NoError(t, s.Update(t.Context(), func(txn kvfs.Txn) error {
		v, err := txn.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(v))

		require.NoError(t, txn.Put("k1", []byte("v2")))
		v, err = txn.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(v))

		require.NoError(t, txn.Delete("k1"))
		_, err = txn.Get("k1")
		assert.ErrorIs(t, err, kvfs.ErrKeyNotFound)
		return nil
	}))
}

func testScanPrefixOrdered(t *testing.T, factory StoreFactory) {
	s := factory(t)
	put(t, s,
		"c:dir:zeta", "3",
		"c:dir:alpha", "1",
		"c:dir:mid", "2",
		"c:dirx:other", "x",
		"f:unrelated", "y",
	)

	var keys, values []string
	require.NoError(t, s.Scan(t.Context(), "c:dir:", func(k string, v []byte) bool {
		keys = append(keys, k)
		values = append(values, string(v))
		return true
	}))

	assert.Equal(t, []string{"c:dir:alpha", "c:dir:mid", "c:dir:zeta"}, keys)
	assert.Equal(t, []string{"1", "2", "3"}, values)
}

func testScanStopsEarly(t *testing.T, factory StoreFactory) {
	s := factory(t)
	put(t, s, "p:1", "a", "p:2", "b", "p:3", "c")

	var seen int
	require.NoError(t, s.Scan(t.Context(), "p:", func(string, []byte) bool {
		seen++
		return seen < 2
	}))
	assert.Equal(t, 2, seen)
}
