package main

import (
	"context"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/application"
	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/relay"
)

const pollInterval = 200 * time.Millisecond

type eoseSignal struct {
	relay string
	subID string
}

// collector keeps every unique event a one-shot command received.
type collector struct {
	mu     sync.Mutex
	events []*nostr.Event
}

func (c *collector) Process(evt *nostr.Event) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *collector) all() []*nostr.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*nostr.Event(nil), c.events...)
}

// latest returns the newest event of kind by author, or nil.
func (c *collector) latest(kind int, author string) *nostr.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best *nostr.Event
	for _, evt := range c.events {
		if evt.Kind != kind || evt.PubKey != author {
			continue
		}
		if best == nil || evt.CreatedAt > best.CreatedAt {
			best = evt
		}
	}
	return best
}

// session is a short-lived client used by the one-shot commands. It skips
// storage and the metrics server.
type session struct {
	node   *application.Node
	events *collector
	eose   chan eoseSignal
}

func openSession(ctx context.Context) (*session, error) {
	s := &session{
		events: &collector{},
		eose:   make(chan eoseSignal, 256),
	}

	builder := application.NewNodeBuilder(ctx, cfg).
		WithProcessor(s.events).
		WithEOSEHook(func(relayURL, subID string) {
			select {
			case s.eose <- eoseSignal{relay: relayURL, subID: subID}:
			default:
			}
		})
	if err := builder.BuildKeys(); err != nil {
		return nil, err
	}
	if err := builder.BuildClient(); err != nil {
		return nil, err
	}
	builder.BuildSubscriber()
	node, err := builder.Build()
	if err != nil {
		return nil, err
	}
	s.node = node
	return s, nil
}

func (s *session) client() *client.Client { return s.node.Client }

func (s *session) close() { s.node.Shutdown() }

// await subscribes once and waits until every relay that is still up has
// sent EOSE for the subscription. It reports whether that happened before
// the timeout.
func (s *session) await(ctx context.Context, subscribe func() []string, timeout time.Duration) bool {
	ids := subscribe()
	if len(ids) == 0 {
		return false
	}
	defer s.client().Unsubscribe(ids)

	watched := make(map[string]bool, len(ids))
	for _, id := range ids {
		watched[id] = true
	}
	reported := make(map[string]int)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-s.eose:
			if watched[sig.subID] {
				reported[sig.relay]++
			}
		case <-ticker.C:
		case <-deadline.C:
			logger.Warn("Timed out waiting for relays", zap.Int("answered", len(reported)), zap.Duration("timeout", timeout))
			return false
		case <-ctx.Done():
			return false
		}
		if s.allAnswered(reported, len(ids)) {
			return true
		}
	}
}

func (s *session) allAnswered(reported map[string]int, subs int) bool {
	up := 0
	for _, r := range s.client().Relays() {
		if r.State == relay.StateClosed {
			continue
		}
		up++
		if reported[r.URL] < subs {
			return false
		}
	}
	return up > 0
}

// awaitAcks waits until every relay answered eventID, dropped out, or the
// timeout passed, and returns the last known statuses.
func (s *session) awaitAcks(ctx context.Context, eventID string, timeout time.Duration) map[string]client.AckStatus {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		acks := s.client().Acks(eventID)
		if s.settled(acks) {
			return acks
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return acks
		case <-ctx.Done():
			return acks
		}
	}
}

func (s *session) settled(acks map[string]client.AckStatus) bool {
	states := make(map[string]relay.State)
	for _, r := range s.client().Relays() {
		states[r.URL] = r.State
	}
	for url, ack := range acks {
		if st, ok := states[url]; ack.Pending && ok && st != relay.StateClosed {
			return false
		}
	}
	return true
}
