package session

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	mini := miniredis.RunT(t)

	redisStore, err := NewRedisStore("redis://"+mini.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisStore.Close() })

	return map[string]Store{
		"redis":  redisStore,
		"memory": NewMemoryStore(time.Hour),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			sess := New()
			sess.SetAccount(SideSource, &Account{
				Subdomain:     "acme",
				BearerToken:   "tok-1",
				SessionCookie: "session=abc",
				AccountID:     42,
			})

			require.NoError(t, store.Save(t.Context(), sess))

			loaded, err := store.Get(t.Context(), sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, loaded.ID)

			source := loaded.Account(SideSource)
			require.NotNil(t, source)
			assert.Equal(t, "acme", source.Subdomain)
			assert.Equal(t, "tok-1", source.BearerToken)
			assert.EqualValues(t, 42, source.AccountID)
			assert.Nil(t, loaded.Account(SideTarget))
		})
	}
}

func TestStore_GetUnknownID(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(t.Context(), "nope")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			sess := New()
			require.NoError(t, store.Save(t.Context(), sess))
			require.NoError(t, store.Delete(t.Context(), sess.ID))

			_, err := store.Get(t.Context(), sess.ID)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRedisStore_SessionsExpire(t *testing.T) {
	t.Parallel()

	mini := miniredis.RunT(t)

	store, err := NewRedisStore("redis://"+mini.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sess := New()
	require.NoError(t, store.Save(t.Context(), sess))

	mini.FastForward(2 * time.Minute)

	_, err = store.Get(t.Context(), sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SessionsExpire(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Nanosecond)

	sess := New()
	require.NoError(t, store.Save(t.Context(), sess))

	time.Sleep(time.Millisecond)

	_, err := store.Get(t.Context(), sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
