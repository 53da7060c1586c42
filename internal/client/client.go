package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/config"
	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/domain"
	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/filter"
	"github.com/Shugur-Network/nostr-client/internal/keys"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/relay"
)

// ErrClosed is returned by the publish helpers once Close has been called.
var ErrClosed = stderrors.New("client is closed")

// Options configure a Client.
type Options struct {
	Relays           []string
	Relay            relay.Options
	DedupCacheSize   int
	AckTrackerSize   int
	VerifySignatures bool
	InboxSize        int
	// OnEOSE, when set, is called from the dispatch goroutine for every EOSE
	// received, watched or not. It must not block.
	OnEOSE func(relayURL, subID string)
}

// RelayStatus is one pool member as seen by Relays.
type RelayStatus struct {
	URL   string      `json:"url"`
	State relay.State `json:"-"`
}

// Client fans publish and subscribe calls out to a pool of relays and feeds
// every unique inbound event to the processor exactly once.
type Client struct {
	opts      Options
	processor domain.EventProcessor
	kp        *keys.KeyPair
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	poolMu sync.RWMutex
	conns  map[string]*relay.Conn
	order  []string

	st *state

	inbox        chan relay.Message
	forwarders   sync.WaitGroup
	dispatchDone chan struct{}
	closed       atomic.Bool
}

var _ domain.Subscriptions = (*Client)(nil)

// New builds a client, consults the key provider once and starts dialing opts.Relays.
func New(ctx context.Context, opts Options, processor domain.EventProcessor, provider domain.KeyProvider) (*Client, error) {
	if processor == nil {
		return nil, fmt.Errorf("event processor is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	kp, err := provider.KeyPair()
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	st, err := newState(opts.DedupCacheSize, opts.AckTrackerSize)
	if err != nil {
		return nil, fmt.Errorf("create client state: %w", err)
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = constants.DefaultInboxBufferSize
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Client{
		opts:         opts,
		processor:    processor,
		kp:           kp,
		log:          logger.New("client"),
		ctx:          cctx,
		cancel:       cancel,
		conns:        make(map[string]*relay.Conn),
		st:           st,
		inbox:        make(chan relay.Message, opts.InboxSize),
		dispatchDone: make(chan struct{}),
	}

	go c.dispatch()
	c.AddRelays(opts.Relays...)

	c.log.Info("Client started",
		zap.String("pubkey", kp.PublicKey()),
		zap.Int("relays", len(opts.Relays)),
		zap.Bool("verify_signatures", opts.VerifySignatures),
	)
	return c, nil
}

// Pubkey is the hex public key events are signed with.
func (c *Client) Pubkey() string { return c.kp.PublicKey() }

/* ------------------------------------------------------------------ *
|  Pool                                                               |
* -------------------------------------------------------------------*/

// AddRelays dials every url not already connected. New relays only see
// later publish and subscribe calls.
func (c *Client) AddRelays(urls ...string) {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if c.closed.Load() {
		c.log.Warn("AddRelays called on a closed client")
		return
	}
	for _, url := range urls {
		if !config.IsRelayURL(url) {
			c.log.Warn("Ignoring invalid relay URL", zap.String("relay", url))
			continue
		}
		if existing, ok := c.conns[url]; ok {
			if existing.State() != relay.StateClosed {
				continue
			}
		} else {
			c.order = append(c.order, url)
		}

		conn := relay.Dial(c.ctx, url, c.opts.Relay)
		c.conns[url] = conn
		c.forwarders.Add(1)
		go c.forward(conn)
		c.log.Debug("Relay added", zap.String("relay", url))
	}
}

// RemoveRelay closes the connection to url and drops it from the pool.
func (c *Client) RemoveRelay(url string) {
	c.poolMu.Lock()
	conn, ok := c.conns[url]
	if ok {
		delete(c.conns, url)
		for i, u := range c.order {
			if u == url {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.poolMu.Unlock()

	if ok {
		conn.Close()
		c.log.Info("Relay removed", zap.String("relay", url))
	}
}

// Relays lists pool members in the order they were added.
func (c *Client) Relays() []RelayStatus {
	c.poolMu.RLock()
	defer c.poolMu.RUnlock()
	out := make([]RelayStatus, 0, len(c.order))
	for _, url := range c.order {
		out = append(out, RelayStatus{URL: url, State: c.conns[url].State()})
	}
	return out
}

// live returns connections that accept frames: open ones, and connecting
// ones which flush their queue once the handshake completes.
func (c *Client) live() []*relay.Conn {
	c.poolMu.RLock()
	defer c.poolMu.RUnlock()
	out := make([]*relay.Conn, 0, len(c.order))
	for _, url := range c.order {
		conn := c.conns[url]
		switch conn.State() {
		case relay.StateConnecting, relay.StateOpen:
			out = append(out, conn)
		}
	}
	return out
}

func (c *Client) conn(url string) *relay.Conn {
	c.poolMu.RLock()
	defer c.poolMu.RUnlock()
	return c.conns[url]
}

func (c *Client) firstRelay() string {
	c.poolMu.RLock()
	defer c.poolMu.RUnlock()
	if len(c.order) == 0 {
		return ""
	}
	return c.order[0]
}

/* ------------------------------------------------------------------ *
|  Publishing                                                         |
* -------------------------------------------------------------------*/

// Publish sends evt to every live relay and returns it without waiting for
// any answer. Per-relay results show up in Acks.
func (c *Client) Publish(evt *nostr.Event) *nostr.Event {
	if c.closed.Load() {
		c.log.Warn("Publish called on a closed client", zap.String("event_id", evt.ID))
		return evt
	}

	conns := c.live()
	urls := make([]string, 0, len(conns))
	for _, conn := range conns {
		urls = append(urls, conn.URL())
	}
	// pending first so a fast OK always finds its entry
	c.st.publishing(evt.ID, urls)

	sent := 0
	for _, conn := range conns {
		if err := conn.Publish(evt); err != nil {
			c.st.ack(evt.ID, conn.URL(), false, "not sent: "+err.Error())
			c.log.Warn("Failed to queue event",
				zap.String("relay", conn.URL()),
				zap.String("event_id", evt.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	c.log.Debug("Event published",
		zap.String("event_id", evt.ID),
		zap.String("kind", event.Kind(evt.Kind).String()),
		zap.Int("relays", sent),
	)
	return evt
}

// Acks returns what each relay answered for eventID so far, or nil if the
// event is unknown or has aged out of the tracker.
func (c *Client) Acks(eventID string) map[string]AckStatus {
	return c.st.ackStatus(eventID)
}

func (c *Client) publishBuilt(evt *nostr.Event, err error) (*nostr.Event, error) {
	if err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.Publish(evt), nil
}

// PublishNote publishes a plain text note.
func (c *Client) PublishNote(msg string) (*nostr.Event, error) {
	return c.publishBuilt(event.CreateTextNoteEvent(event.Post{Msg: msg}, c.kp))
}

// PublishReply publishes msg as a reply. An empty relay hint is filled with the first configured relay.
func (c *Client) PublishReply(to event.ReplyTo, msg string) (*nostr.Event, error) {
	if to.RelayURL == "" {
		to.RelayURL = c.firstRelay()
	}
	return c.publishBuilt(event.CreateTextNoteEvent(event.Post{Msg: msg, ReplyTo: &to}, c.kp))
}

// PublishRepost publishes a note referencing postID, with an optional quote.
func (c *Client) PublishRepost(postID, quote string) (*nostr.Event, error) {
	repost := &event.RepostID{ID: postID, RelayURL: c.firstRelay()}
	return c.publishBuilt(event.CreateTextNoteEvent(event.Post{Msg: quote, Repost: repost}, c.kp))
}

// PublishReaction likes or dislikes a post.
func (c *Client) PublishReaction(postID, postPubkey string, positive bool) (*nostr.Event, error) {
	return c.publishBuilt(event.CreateReactionEvent(postID, postPubkey, positive, c.kp))
}

// PublishMetadata replaces the profile of this identity.
func (c *Client) PublishMetadata(meta event.Metadata) (*nostr.Event, error) {
	return c.publishBuilt(event.CreateMetadataEvent(meta, c.kp))
}

// PublishContactList replaces the follow list of this identity.
func (c *Client) PublishContactList(contacts []event.ContactListEntry) (*nostr.Event, error) {
	return c.publishBuilt(event.CreateContactListEvent(contacts, c.kp))
}

/* ------------------------------------------------------------------ *
|  Subscriptions                                                      |
* -------------------------------------------------------------------*/

// Subscribe requests filters from every live relay under one fresh id and
// returns it. Invalid filters are dropped. With none left, or no live
// relay, nothing is subscribed and the result is empty.
func (c *Client) Subscribe(filters []nostr.Filter, unsubscribeOnEOSE bool) []string {
	if c.closed.Load() {
		c.log.Warn("Subscribe called on a closed client")
		return nil
	}

	valid := make([]nostr.Filter, 0, len(filters))
	for i, f := range filters {
		if err := filter.Validate(f); err != nil {
			c.log.Warn("Dropping invalid filter", zap.Int("index", i), zap.Error(err))
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return nil
	}

	conns := c.live()
	if len(conns) == 0 {
		c.log.Warn("No live relay to subscribe on")
		return nil
	}

	id := uuid.NewString()
	// register before sending so an early EOSE finds the id
	c.st.register(id, valid, unsubscribeOnEOSE)
	metrics.ActiveSubscriptions.Inc()

	for _, conn := range conns {
		if err := conn.Subscribe(id, valid...); err != nil {
			c.log.Warn("Failed to queue subscription",
				zap.String("relay", conn.URL()),
				zap.String("sub_id", id),
				zap.Error(err),
			)
		}
	}

	c.log.Debug("Subscribed",
		zap.String("sub_id", id),
		zap.Int("filters", len(valid)),
		zap.Bool("unsubscribe_on_eose", unsubscribeOnEOSE),
	)
	return []string{id}
}

// Unsubscribe sends CLOSE for every id to every live relay and forgets
// them. Unknown ids are fine; calling it twice is harmless.
func (c *Client) Unsubscribe(ids []string) {
	if c.closed.Load() {
		return
	}
	conns := c.live()
	for _, id := range ids {
		if c.st.forget(id) {
			metrics.ActiveSubscriptions.Dec()
		}
		for _, conn := range conns {
			if err := conn.Unsubscribe(id); err != nil {
				c.log.Debug("Failed to queue close",
					zap.String("relay", conn.URL()),
					zap.String("sub_id", id),
					zap.Error(err),
				)
			}
		}
	}
}

// Subscriptions returns the live subscriptions and their filters.
func (c *Client) Subscriptions() map[string][]nostr.Filter {
	return c.st.subscriptions()
}

/* ------------------------------------------------------------------ *
|  Shutdown                                                           |
* -------------------------------------------------------------------*/

// Close tears down every connection and stops the dispatch loop. Further
// calls on the client log and do nothing.
func (c *Client) Close() {
	c.poolMu.Lock()
	if c.closed.Swap(true) {
		c.poolMu.Unlock()
		c.log.Warn("Close called on a closed client")
		return
	}
	conns := make([]*relay.Conn, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.poolMu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	c.cancel()
	c.forwarders.Wait()
	<-c.dispatchDone

	for range c.st.subscriptions() {
		metrics.ActiveSubscriptions.Dec()
	}
	c.log.Info("Client closed")
}
