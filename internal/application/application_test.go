package application

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shugur-Network/nostr-client/internal/config"
	"github.com/Shugur-Network/nostr-client/internal/subscriber"
)

type fakeSubs struct {
	mu           sync.Mutex
	filters      [][]nostr.Filter
	unsubscribed []string
	next         int
}

func (f *fakeSubs) Subscribe(filters []nostr.Filter, _ bool) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filters)
	f.next++
	return []string{fmt.Sprintf("sub-%d", f.next)}
}

func (f *fakeSubs) Unsubscribe(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, ids...)
}

var (
	self  = strings.Repeat("a", 64)
	bob   = strings.Repeat("b", 64)
	carol = strings.Repeat("c", 64)
)

func contactList(author string, at nostr.Timestamp, contacts ...string) *nostr.Event {
	tags := make(nostr.Tags, 0, len(contacts))
	for _, c := range contacts {
		tags = append(tags, nostr.Tag{"p", c})
	}
	return &nostr.Event{PubKey: author, Kind: 3, CreatedAt: at, Tags: tags}
}

func newFollower(subs *fakeSubs) (*feedFollower, *subscriber.Subscriber) {
	s := subscriber.New(subs, 10)
	f := &feedFollower{}
	f.bind(self, s)
	return f, s
}

func TestFollowerResubscribesOnNewerContactList(t *testing.T) {
	subs := &fakeSubs{}
	f, s := newFollower(subs)

	f.Process(contactList(self, 100, bob))
	require.Len(t, subs.filters, 1)
	assert.Equal(t, []string{bob}, subs.filters[0][0].Authors)
	assert.Equal(t, 10, subs.filters[0][0].Limit)

	f.Process(contactList(self, 200, bob, carol))
	require.Len(t, subs.filters, 2)
	assert.Equal(t, []string{bob, carol}, subs.filters[1][0].Authors)
	assert.Equal(t, []string{"sub-1"}, subs.unsubscribed)
	assert.Equal(t, []string{"sub-2"}, s.FeedSubscriptions())
}

func TestFollowerIgnoresStaleForeignAndOtherKinds(t *testing.T) {
	subs := &fakeSubs{}
	f, _ := newFollower(subs)

	f.Process(contactList(self, 200, bob))
	f.Process(contactList(self, 100, carol))
	f.Process(contactList(bob, 300, carol))
	f.Process(&nostr.Event{PubKey: self, Kind: 1, CreatedAt: 400})

	assert.Len(t, subs.filters, 1)
}

func TestFollowerKeepsCatchUpPosition(t *testing.T) {
	subs := &fakeSubs{}
	f, _ := newFollower(subs)
	since := nostr.Timestamp(1_700_000_000)

	ids := f.follow([]string{bob}, &since)
	assert.Equal(t, []string{"sub-1"}, ids)
	f.Process(contactList(self, 100, bob, carol))

	require.Len(t, subs.filters, 2)
	for _, fs := range subs.filters {
		require.NotNil(t, fs[0].Since)
		assert.Equal(t, since, *fs[0].Since)
		assert.Zero(t, fs[0].Limit)
	}
}

func TestUnboundFollowerIsInert(t *testing.T) {
	f := &feedFollower{}
	f.Process(contactList(self, 100, bob))
	assert.Nil(t, f.follow([]string{bob}, nil))
}

func TestClientOptionsMapsConfig(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Client.PublishRate = 5
	cfg.Client.PublishBurst = 3

	opts := ClientOptions(cfg)
	assert.Equal(t, cfg.Client.Relays, opts.Relays)
	assert.Equal(t, 10*time.Second, opts.Relay.DialTimeout)
	assert.Equal(t, cfg.Client.SendQueueSize, opts.Relay.SendQueueSize)
	assert.Equal(t, cfg.Client.ReadLimit, opts.Relay.ReadLimit)
	assert.Equal(t, 5.0, opts.Relay.PublishRate)
	assert.Equal(t, 3, opts.Relay.PublishBurst)
	assert.Equal(t, cfg.Client.DedupCacheSize, opts.DedupCacheSize)
	assert.Equal(t, cfg.Client.AckTrackerSize, opts.AckTrackerSize)
	assert.True(t, opts.VerifySignatures)
	assert.Nil(t, opts.OnEOSE)
}
