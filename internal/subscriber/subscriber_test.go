package subscriber

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	filters           []nostr.Filter
	unsubscribeOnEOSE bool
}

type fakeSubs struct {
	mu           sync.Mutex
	calls        []call
	unsubscribed [][]string
	next         int
}

func (f *fakeSubs) Subscribe(filters []nostr.Filter, unsubscribeOnEOSE bool) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{filters, unsubscribeOnEOSE})
	f.next++
	return []string{fmt.Sprintf("sub-%d", f.next)}
}

func (f *fakeSubs) Unsubscribe(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, ids)
}

var (
	alice = strings.Repeat("a", 64)
	bob   = strings.Repeat("b", 64)
)

func TestProfileAndContactListIsOneShot(t *testing.T) {
	subs := &fakeSubs{}
	s := New(subs, 0)

	ids := s.SubscribeToProfileMetadataAndContactList(alice)
	assert.Equal(t, []string{"sub-1"}, ids)

	require.Len(t, subs.calls, 1)
	c := subs.calls[0]
	assert.True(t, c.unsubscribeOnEOSE)
	require.Len(t, c.filters, 2)
	assert.Equal(t, []int{0}, c.filters[0].Kinds)
	assert.Equal(t, 1, c.filters[0].Limit)
	assert.Equal(t, []int{3}, c.filters[1].Kinds)
	assert.Equal(t, []string{alice}, c.filters[1].Authors)
	assert.Empty(t, s.FeedSubscriptions())
}

func TestFeedPaging(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		since     *nostr.Timestamp
		wantLimit int
	}{
		{"first page uses default size", 0, nil, 250},
		{"first page uses configured size", 40, nil, 40},
		{"catch up has no limit", 40, ptr(nostr.Timestamp(1700000000)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubs{}
			s := New(subs, tt.pageSize)

			s.SubscribeToFeed([]string{alice, bob}, tt.since)
			require.Len(t, subs.calls, 1)
			c := subs.calls[0]
			assert.False(t, c.unsubscribeOnEOSE)
			require.Len(t, c.filters, 1)
			f := c.filters[0]
			assert.Equal(t, tt.wantLimit, f.Limit)
			assert.Equal(t, tt.since, f.Since)
			assert.Equal(t, []string{alice, bob}, f.Authors)
			assert.Equal(t, []int{1}, f.Kinds)
		})
	}
}

func TestUnsubscribeFeedsClosesEverythingOnce(t *testing.T) {
	subs := &fakeSubs{}
	s := New(subs, 0)

	s.SubscribeToFeed([]string{alice}, nil)
	s.SubscribeToFeed([]string{bob}, ptr(nostr.Timestamp(10)))
	s.SubscribeToProfileMetadataAndContactList(alice)
	assert.Equal(t, []string{"sub-1", "sub-2"}, s.FeedSubscriptions())

	s.UnsubscribeFeeds()
	s.UnsubscribeFeeds()

	require.Len(t, subs.unsubscribed, 1)
	assert.Equal(t, []string{"sub-1", "sub-2"}, subs.unsubscribed[0])
	assert.Empty(t, s.FeedSubscriptions())
}

func TestEmptyInputsSubscribeNothing(t *testing.T) {
	subs := &fakeSubs{}
	s := New(subs, 0)

	assert.Nil(t, s.SubscribeToFeed(nil, nil))
	assert.Nil(t, s.SubscribeToThread(nil))
	assert.Nil(t, s.SubscribeToProfiles(nil))
	assert.Empty(t, subs.calls)
}

func TestThreadSubscription(t *testing.T) {
	subs := &fakeSubs{}
	s := New(subs, 0)

	s.SubscribeToThread([]string{alice})
	require.Len(t, subs.calls, 1)
	c := subs.calls[0]
	assert.True(t, c.unsubscribeOnEOSE)
	require.Len(t, c.filters, 3)
	assert.Equal(t, []string{alice}, c.filters[0].IDs)
	assert.Equal(t, []string{alice}, []string(c.filters[1].Tags["e"]))
	assert.Equal(t, []int{7}, c.filters[2].Kinds)
}

func ptr(ts nostr.Timestamp) *nostr.Timestamp { return &ts }
