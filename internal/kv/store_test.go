package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, KeyDeviceID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("read your writes", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, VoteKey("v1"), "up"))
		v, err := s.Get(ctx, VoteKey("v1"))
		require.NoError(t, err)
		assert.Equal(t, "up", v)

		require.NoError(t, s.Set(ctx, VoteKey("v1"), "down"))
		v, err = s.Get(ctx, VoteKey("v1"))
		require.NoError(t, err)
		assert.Equal(t, "down", v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, KeySession, `{"uid":"a"}`))
		require.NoError(t, s.Delete(ctx, KeySession))
		_, err := s.Get(ctx, KeySession)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Delete(ctx, "never-set"))
	})
}

func TestMemory(t *testing.T) {
	testStoreContract(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f, err := OpenFile(path)
	require.NoError(t, err)
	testStoreContract(t, f)

	t.Run("survives reopen", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, f.Set(ctx, KeyDeviceID, "dev-1"))

		reopened, err := OpenFile(path)
		require.NoError(t, err)
		v, err := reopened.Get(ctx, KeyDeviceID)
		require.NoError(t, err)
		assert.Equal(t, "dev-1", v)
	})
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := OpenRedis(ctx, RedisConfig{Address: mr.Addr(), Namespace: "device-a"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	testStoreContract(t, r)

	t.Run("namespaced keys", func(t *testing.T) {
		require.NoError(t, r.Set(ctx, KeyDeviceID, "dev-a"))
		v, err := mr.Get("device-a:" + KeyDeviceID)
		require.NoError(t, err)
		assert.Equal(t, "dev-a", v)
	})
}
