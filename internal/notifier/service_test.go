package notifier

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryBytes(t *testing.T, status string, at time.Time) []byte {
	t.Helper()
	b, err := json.Marshal(statusEntry{Status: status, UpdatedAt: at})
	require.NoError(t, err)
	return b
}

func TestNextCacheEntryEmptyCache(t *testing.T) {
	now := time.Now().UTC()

	entry, ok := nextCacheEntry(nil, "PAYMENT_COMPLETED", now)
	require.True(t, ok)

	var got statusEntry
	require.NoError(t, json.Unmarshal(entry, &got))
	assert.Equal(t, "PAYMENT_COMPLETED", got.Status)
	assert.True(t, got.UpdatedAt.Equal(now))
}

func TestNextCacheEntryNewerEventWins(t *testing.T) {
	now := time.Now().UTC()
	existing := entryBytes(t, "PAYMENT_COMPLETED", now.Add(-time.Minute))

	entry, ok := nextCacheEntry(existing, "SHIPPING", now)
	require.True(t, ok)

	var got statusEntry
	require.NoError(t, json.Unmarshal(entry, &got))
	assert.Equal(t, "SHIPPING", got.Status)
}

func TestNextCacheEntryStaleEventIgnored(t *testing.T) {
	now := time.Now().UTC()
	existing := entryBytes(t, "SHIPPING", now)

	// the order.placed event arrives after the first status change
	_, ok := nextCacheEntry(existing, "PAYMENT_COMPLETED", now.Add(-time.Minute))
	assert.False(t, ok)
}

func TestNextCacheEntryCorruptCacheOverwritten(t *testing.T) {
	entry, ok := nextCacheEntry([]byte("not json"), "DELIVERED", time.Now().UTC())
	require.True(t, ok)

	var got statusEntry
	require.NoError(t, json.Unmarshal(entry, &got))
	assert.Equal(t, "DELIVERED", got.Status)
}
