// Package subscriber turns view-level needs (a profile, a feed, a thread)
// into client subscriptions and tracks the long-lived ones.
package subscriber

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/domain"
	"github.com/Shugur-Network/nostr-client/internal/filter"
	"github.com/Shugur-Network/nostr-client/internal/logger"
)

// Subscriber issues subscriptions over a client.
type Subscriber struct {
	subs     domain.Subscriptions
	pageSize int
	log      *zap.Logger

	mu    sync.Mutex
	feeds []string
}

// New returns a subscriber paging feeds by pageSize, or the default of 250 when it is not positive.
func New(subs domain.Subscriptions, pageSize int) *Subscriber {
	if pageSize <= 0 {
		pageSize = constants.DefaultFeedPageSize
	}
	return &Subscriber{
		subs:     subs,
		pageSize: pageSize,
		log:      logger.New("subscriber"),
	}
}

// SubscribeToProfileMetadataAndContactList asks for the profile and follow
// list of pubkey once. Relays drop the subscription after their stored events.
func (s *Subscriber) SubscribeToProfileMetadataAndContactList(pubkey string) []string {
	return s.subs.Subscribe([]nostr.Filter{
		filter.Profile(pubkey),
		filter.ContactList(pubkey, filter.ContactListQuery{}),
	}, true)
}

// SubscribeToProfiles asks for the latest metadata of many authors once.
func (s *Subscriber) SubscribeToProfiles(pubkeys []string) []string {
	if len(pubkeys) == 0 {
		return nil
	}
	return s.subs.Subscribe([]nostr.Filter{filter.Profiles(pubkeys)}, true)
}

// SubscribeToFeed streams posts by contacts. Without since the relays send
// the latest page; with since they send everything newer. The ids are kept
// until UnsubscribeFeeds.
func (s *Subscriber) SubscribeToFeed(contacts []string, since *nostr.Timestamp) []string {
	if len(contacts) == 0 {
		s.log.Debug("No contacts, skipping feed subscription")
		return nil
	}

	q := filter.PostQuery{Authors: contacts, Since: since}
	if since == nil {
		q.Limit = s.pageSize
	}
	ids := s.subs.Subscribe([]nostr.Filter{filter.Posts(q)}, false)

	s.mu.Lock()
	s.feeds = append(s.feeds, ids...)
	total := len(s.feeds)
	s.mu.Unlock()

	s.log.Debug("Subscribed to feed",
		zap.Int("authors", len(contacts)),
		zap.Bool("paged", since == nil),
		zap.Int("feed_subscriptions", total),
	)
	return ids
}

// UnsubscribeFeeds closes every feed subscription opened so far.
func (s *Subscriber) UnsubscribeFeeds() {
	s.mu.Lock()
	ids := s.feeds
	s.feeds = nil
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	s.subs.Unsubscribe(ids)
	s.log.Debug("Unsubscribed feeds", zap.Int("count", len(ids)))
}

// FeedSubscriptions returns the tracked feed subscription ids.
func (s *Subscriber) FeedSubscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.feeds...)
}

// SubscribeToThread asks once for the given posts, their replies and their reactions.
func (s *Subscriber) SubscribeToThread(postIDs []string) []string {
	if len(postIDs) == 0 {
		return nil
	}
	return s.subs.Subscribe([]nostr.Filter{
		filter.Posts(filter.PostQuery{IDs: postIDs}),
		filter.Replies(postIDs, nil),
		filter.Reactions(postIDs, nil),
	}, true)
}
