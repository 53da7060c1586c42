package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/filter"
	"github.com/Shugur-Network/nostr-client/internal/keys"
	"github.com/Shugur-Network/nostr-client/internal/relay"
	"github.com/Shugur-Network/nostr-client/internal/relaytest"
	"github.com/Shugur-Network/nostr-client/internal/subscriber"
)

const (
	wait  = 2 * time.Second
	quiet = 300 * time.Millisecond
)

type recorder struct {
	mu     sync.Mutex
	events []*nostr.Event
}

func (r *recorder) Process(evt *nostr.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.ID)
	}
	return out
}

type eoseNote struct{ relay, subID string }

type harness struct {
	client *Client
	rec    *recorder
	eose   chan eoseNote
}

func newHarness(t *testing.T, urls ...string) *harness {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)

	h := &harness{rec: &recorder{}, eose: make(chan eoseNote, 64)}
	h.client, err = New(context.Background(), Options{
		Relays:           urls,
		VerifySignatures: true,
		OnEOSE:           func(r, s string) { h.eose <- eoseNote{r, s} },
	}, h.rec, keys.StaticProvider{PrivateKeyHex: kp.PrivateKey()})
	require.NoError(t, err)
	t.Cleanup(h.client.Close)
	return h
}

func (h *harness) waitEOSE(t *testing.T, n int) []eoseNote {
	t.Helper()
	var got []eoseNote
	for len(got) < n {
		select {
		case e := <-h.eose:
			got = append(got, e)
		case <-time.After(wait):
			t.Fatalf("saw %d of %d EOSE", len(got), n)
		}
	}
	return got
}

func (h *harness) waitOpen(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		open := 0
		for _, r := range h.client.Relays() {
			if r.State == relay.StateOpen {
				open++
			}
		}
		return open == n
	}, wait, 10*time.Millisecond)
}

func note(t *testing.T, msg string) *nostr.Event {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	evt, err := event.CreateTextNoteEvent(event.Post{Msg: msg}, kp)
	require.NoError(t, err)
	return evt
}

// storedEvents answers every REQ with evts followed by EOSE.
func storedEvents(evts ...*nostr.Event) relaytest.Option {
	return relaytest.WithHandler(func(s *relaytest.Session, f relaytest.Frame) {
		if f.Label != relay.LabelReq {
			return
		}
		for _, e := range evts {
			_ = s.Send("EVENT", f.SubID(), e)
		}
		_ = s.Send("EOSE", f.SubID())
	})
}

func TestEventDeliveredOnceAcrossRelays(t *testing.T) {
	evt := note(t, "seen everywhere")
	a := relaytest.New(t, storedEvents(evt))
	b := relaytest.New(t, storedEvents(evt))
	h := newHarness(t, a.URL, b.URL)

	ids := h.client.Subscribe([]nostr.Filter{filter.Posts(filter.PostQuery{Authors: []string{evt.PubKey}})}, false)
	require.Len(t, ids, 1)

	h.waitEOSE(t, 2)
	assert.Equal(t, []string{evt.ID}, h.rec.ids())
}

func TestFirstEOSEClosesOnlyThatRelay(t *testing.T) {
	a := relaytest.New(t, storedEvents())
	b := relaytest.New(t, storedEvents())
	h := newHarness(t, a.URL, b.URL)

	ids := h.client.Subscribe([]nostr.Filter{filter.Profile(h.client.Pubkey())}, true)
	require.Len(t, ids, 1)

	seen := h.waitEOSE(t, 2)
	first := seen[0].relay

	closeA, gotA := a.Next(relay.LabelClose, quiet)
	closeB, gotB := b.Next(relay.LabelClose, quiet)
	assert.NotEqual(t, gotA, gotB, "exactly one relay gets CLOSE")
	if first == a.URL {
		require.True(t, gotA)
		assert.Equal(t, ids[0], closeA.SubID())
	} else {
		require.True(t, gotB)
		assert.Equal(t, ids[0], closeB.SubID())
	}
	assert.Empty(t, h.client.Subscriptions())
}

func TestSubscriptionWithoutEOSEWatchStaysLive(t *testing.T) {
	srv := relaytest.New(t, storedEvents())
	h := newHarness(t, srv.URL)

	ids := h.client.Subscribe([]nostr.Filter{filter.Profile(h.client.Pubkey())}, false)
	require.Len(t, ids, 1)
	h.waitEOSE(t, 1)

	_, closed := srv.Next(relay.LabelClose, quiet)
	assert.False(t, closed)
	assert.Contains(t, h.client.Subscriptions(), ids[0])
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	srv := relaytest.New(t)
	h := newHarness(t, srv.URL)

	ids := h.client.Subscribe([]nostr.Filter{filter.Profile(h.client.Pubkey())}, false)
	require.Len(t, ids, 1)
	_, ok := srv.Next(relay.LabelReq, wait)
	require.True(t, ok)

	h.client.Unsubscribe(ids)
	h.client.Unsubscribe(ids)
	h.client.Unsubscribe([]string{"never-issued"})

	f, ok := srv.Next(relay.LabelClose, wait)
	require.True(t, ok)
	assert.Equal(t, ids[0], f.SubID())
	assert.Empty(t, h.client.Subscriptions())
}

func TestUnsubscribeFeedsClosesEveryFeedOnEveryRelay(t *testing.T) {
	a := relaytest.New(t)
	b := relaytest.New(t)
	h := newHarness(t, a.URL, b.URL)
	h.waitOpen(t, 2)

	subs := subscriber.New(h.client, 0)
	contacts := []string{h.client.Pubkey()}
	since := nostr.Now()
	first := subs.SubscribeToFeed(contacts, nil)
	second := subs.SubscribeToFeed(contacts, &since)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Len(t, h.client.Subscriptions(), 2)

	subs.UnsubscribeFeeds()

	want := []string{first[0], second[0]}
	for _, srv := range []*relaytest.Server{a, b} {
		var closed []string
		for range want {
			f, ok := srv.Next(relay.LabelClose, wait)
			require.True(t, ok, "relay %s missed a CLOSE", srv.URL)
			closed = append(closed, f.SubID())
		}
		assert.ElementsMatch(t, want, closed)
	}
	assert.Empty(t, subs.FeedSubscriptions())
	assert.Empty(t, h.client.Subscriptions())
}

func TestInvalidSignatureIsDroppedBeforeDedup(t *testing.T) {
	genuine := note(t, "original")
	forged := *genuine
	forged.Content = "tampered"

	srv := relaytest.New(t, storedEvents(&forged, genuine))
	h := newHarness(t, srv.URL)

	require.Len(t, h.client.Subscribe([]nostr.Filter{{}}, true), 1)
	h.waitEOSE(t, 1)

	require.Equal(t, []string{genuine.ID}, h.rec.ids())
	assert.Equal(t, "original", h.rec.events[0].Content)
}

func TestRejectedPublishIsNotRetried(t *testing.T) {
	srv := relaytest.New(t, relaytest.WithHandler(func(s *relaytest.Session, f relaytest.Frame) {
		if f.Label == relay.LabelEvent {
			_ = s.Send("OK", f.Event().ID, false, "blocked: not allowed")
		}
	}))
	h := newHarness(t, srv.URL)

	evt, err := h.client.PublishNote("hello")
	require.NoError(t, err)
	assert.Contains(t, h.client.Acks(evt.ID), srv.URL)

	_, ok := srv.Next(relay.LabelEvent, wait)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return !h.client.Acks(evt.ID)[srv.URL].Pending
	}, wait, 10*time.Millisecond)
	ack := h.client.Acks(evt.ID)[srv.URL]
	assert.False(t, ack.Accepted)
	assert.Equal(t, "blocked: not allowed", ack.Reason)

	_, again := srv.Next(relay.LabelEvent, quiet)
	assert.False(t, again)
}

func TestRemovedRelayIsExcludedFromFanOut(t *testing.T) {
	a := relaytest.New(t)
	b := relaytest.New(t)
	h := newHarness(t, a.URL, b.URL)
	h.waitOpen(t, 2)

	h.client.RemoveRelay(b.URL)
	require.Len(t, h.client.Relays(), 1)
	assert.Equal(t, a.URL, h.client.Relays()[0].URL)

	evt, err := h.client.PublishNote("only a")
	require.NoError(t, err)

	f, ok := a.Next(relay.LabelEvent, wait)
	require.True(t, ok)
	assert.Equal(t, evt.ID, f.Event().ID)
	_, ok = b.Next(relay.LabelEvent, quiet)
	assert.False(t, ok)
}

func TestClosedRelayDropsOutOfFanOut(t *testing.T) {
	a := relaytest.New(t)
	b := relaytest.New(t)
	h := newHarness(t, a.URL, b.URL)
	h.waitOpen(t, 2)

	sess := b.Session(0, wait)
	require.NotNil(t, sess)
	sess.Close()
	require.Eventually(t, func() bool {
		for _, r := range h.client.Relays() {
			if r.URL == b.URL {
				return r.State == relay.StateClosed
			}
		}
		return false
	}, wait, 10*time.Millisecond)

	ids := h.client.Subscribe([]nostr.Filter{filter.Profile(h.client.Pubkey())}, false)
	require.Len(t, ids, 1)
	_, ok := a.Next(relay.LabelReq, wait)
	assert.True(t, ok)
	assert.Len(t, h.client.Relays(), 2)
}

func TestSubscribeDropsInvalidFilters(t *testing.T) {
	srv := relaytest.New(t)
	h := newHarness(t, srv.URL)

	bad := nostr.Filter{Authors: []string{"not-hex"}}
	assert.Empty(t, h.client.Subscribe([]nostr.Filter{bad}, false))

	ids := h.client.Subscribe([]nostr.Filter{bad, filter.Profile(h.client.Pubkey())}, false)
	require.Len(t, ids, 1)
	f, ok := srv.Next(relay.LabelReq, wait)
	require.True(t, ok)
	assert.Len(t, f.Filters(), 1)
}

func TestNoRelaysMeansEmptyResults(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.client.Subscribe([]nostr.Filter{filter.Profile(h.client.Pubkey())}, true))

	evt, err := h.client.PublishNote("into the void")
	require.NoError(t, err)
	assert.Empty(t, h.client.Acks(evt.ID))
}

func TestPublishHelpersUseFirstRelayAsHint(t *testing.T) {
	a := relaytest.New(t)
	b := relaytest.New(t)
	h := newHarness(t, a.URL, b.URL)
	target := note(t, "target")

	reply, err := h.client.PublishReply(event.ReplyTo{ReplyToID: target.ID}, "agreed")
	require.NoError(t, err)
	parsed := event.ParsePost(reply)
	require.NotNil(t, parsed.ReplyTo)
	assert.Equal(t, a.URL, parsed.ReplyTo.RelayURL)

	repost, err := h.client.PublishRepost(target.ID, "")
	require.NoError(t, err)
	parsed = event.ParsePost(repost)
	require.NotNil(t, parsed.Repost)
	assert.Equal(t, a.URL, parsed.Repost.RelayURL)
	assert.Equal(t, h.client.Pubkey(), repost.PubKey)
	require.NoError(t, event.Verify(repost))
}

func TestCloseIsFinal(t *testing.T) {
	srv := relaytest.New(t)
	h := newHarness(t, srv.URL)

	h.client.Close()
	h.client.Close()

	_, err := h.client.PublishNote("too late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, h.client.Subscribe([]nostr.Filter{{}}, false))
	h.client.Unsubscribe([]string{"x"})
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil, keys.StaticProvider{})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{}, &recorder{}, keys.StaticProvider{PrivateKeyHex: "00"})
	assert.Error(t, err)
}
