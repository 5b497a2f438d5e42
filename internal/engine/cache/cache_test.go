package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := newEntry("5551234567", "CELL PHONE", now, time.Hour)

	assert.False(t, entry.IsExpired(now))
	assert.False(t, entry.IsExpired(now.Add(time.Hour)))
	assert.True(t, entry.IsExpired(now.Add(time.Hour+time.Second)))
	assert.Equal(t, 30*time.Minute, entry.Age(now.Add(30*time.Minute)))

	encoded, err := json.Marshal(entry)
	require.NoError(t, err)
	var decoded Entry
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, *entry, decoded)
}

func TestNewStore(t *testing.T) {
	_, err := NewStore("", time.Hour)
	require.ErrorIs(t, err, ErrNoDirectory)

	_, err = NewStore(t.TempDir(), 0)
	require.ErrorIs(t, err, ErrNonPositive)

	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := NewStore(dir, time.Hour)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, store.Directory())
	assert.Equal(t, time.Hour, store.TTL())
}

func TestStore(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	t.Run("miss", func(t *testing.T) {
		_, getErr := store.Get("5550000000")
		assert.ErrorIs(t, getErr, ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set("5551234567", "LANDLINE"))
		got, getErr := store.Get("5551234567")
		require.NoError(t, getErr)
		assert.Equal(t, "LANDLINE", got)
	})

	t.Run("empty line type is cached", func(t *testing.T) {
		require.NoError(t, store.Set("5557654321", ""))
		got, getErr := store.Get("5557654321")
		require.NoError(t, getErr)
		assert.Empty(t, got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set("5551234567", "VOIP"))
		got, getErr := store.Get("5551234567")
		require.NoError(t, getErr)
		assert.Equal(t, "VOIP", got)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, store.Set("", "x"), ErrInvalidKey)
		_, getErr := store.Get("")
		assert.ErrorIs(t, getErr, ErrInvalidKey)
	})

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Expiry(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set("5551234567", "LANDLINE"))

	now = now.Add(2 * time.Minute)
	_, err = store.Get("5551234567")
	require.ErrorIs(t, err, ErrExpired)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count, "expired entries are removed")
}

func TestStore_CorruptEntry(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.pathFor("5551234567"), []byte("{not json"), 0600))
	_, err = store.Get("5551234567")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_Concurrent(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			phone := "555000" + string(rune('a'+i))
			assert.NoError(t, store.Set(phone, "LANDLINE"))
			got, getErr := store.Get(phone)
			assert.NoError(t, getErr)
			assert.Equal(t, "LANDLINE", got)
		}()
	}
	wg.Wait()

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}
