package application

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/subscriber"
)

// feedFollower keeps the feed subscription in step with the newest contact
// list of the local identity. It runs on the client's dispatch goroutine and
// stays inert until bound.
type feedFollower struct {
	mu       sync.Mutex
	pubkey   string
	subs     *subscriber.Subscriber
	since    *nostr.Timestamp
	listedAt nostr.Timestamp
	contacts []string
}

func (f *feedFollower) bind(pubkey string, subs *subscriber.Subscriber) {
	f.mu.Lock()
	f.pubkey = pubkey
	f.subs = subs
	f.mu.Unlock()
}

// follow replaces the feed subscription with one over contacts.
func (f *feedFollower) follow(contacts []string, since *nostr.Timestamp) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	f.contacts = contacts
	return f.resubscribe()
}

func (f *feedFollower) Process(evt *nostr.Event) {
	if event.Kind(evt.Kind) != event.KindContactList {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil || evt.PubKey != f.pubkey || evt.CreatedAt <= f.listedAt {
		return
	}
	f.listedAt = evt.CreatedAt

	entries := event.ParseContacts(evt)
	contacts := make([]string, 0, len(entries))
	for _, c := range entries {
		contacts = append(contacts, c.Pubkey)
	}
	f.contacts = contacts
	ids := f.resubscribe()
	logger.Info("Feed follows contact list",
		zap.Int("contacts", len(contacts)),
		zap.Strings("sub_ids", ids))
}

func (f *feedFollower) resubscribe() []string {
	if f.subs == nil {
		return nil
	}
	f.subs.UnsubscribeFeeds()
	return f.subs.SubscribeToFeed(f.contacts, f.since)
}
