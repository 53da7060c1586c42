package client

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenCacheCheckAndRecord(t *testing.T) {
	s, err := newSeenCache(16)
	require.NoError(t, err)

	assert.True(t, s.checkAndRecord("a"))
	assert.False(t, s.checkAndRecord("a"))
	assert.True(t, s.checkAndRecord("b"))
	assert.Equal(t, 2, s.len())
}

func TestSeenCacheKeepsRecentIDsAcrossRebuild(t *testing.T) {
	s, err := newSeenCache(4)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.True(t, s.checkAndRecord(fmt.Sprintf("id-%d", i)))
	}
	assert.Equal(t, 4, s.len())
	assert.Less(t, s.inserts, 4*2)
	for i := 16; i < 20; i++ {
		assert.False(t, s.checkAndRecord(fmt.Sprintf("id-%d", i)), "id-%d", i)
	}
}

func TestAckTrackerIgnoresUnknownEvents(t *testing.T) {
	a, err := newAckTracker(2)
	require.NoError(t, err)

	assert.False(t, a.record("nope", "wss://r", true, ""))
	a.pending("e1", []string{"wss://r"})
	assert.True(t, a.record("e1", "wss://r", true, ""))
	assert.True(t, a.get("e1")["wss://r"].Accepted)
	assert.Nil(t, a.get("nope"))
}
