package client

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// state is everything the dispatch loop and the caller-facing verbs share.
// One mutex guards all of it.
type state struct {
	mu sync.Mutex

	seen      *seenCache
	eoseWatch map[string]struct{}
	live      map[string][]nostr.Filter
	acks      *ackTracker
}

func newState(dedupSize, ackSize int) (*state, error) {
	seen, err := newSeenCache(dedupSize)
	if err != nil {
		return nil, err
	}
	acks, err := newAckTracker(ackSize)
	if err != nil {
		return nil, err
	}
	return &state{
		seen:      seen,
		eoseWatch: make(map[string]struct{}),
		live:      make(map[string][]nostr.Filter),
		acks:      acks,
	}, nil
}

func (s *state) register(id string, filters []nostr.Filter, unsubscribeOnEOSE bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[id] = filters
	if unsubscribeOnEOSE {
		s.eoseWatch[id] = struct{}{}
	}
}

// forget drops id from every registry and reports whether it was live.
func (s *state) forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[id]
	delete(s.live, id)
	delete(s.eoseWatch, id)
	return ok
}

// takeEOSE removes id from the watch set. Only the first caller for an id gets true.
func (s *state) takeEOSE(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.eoseWatch[id]; !ok {
		return false
	}
	delete(s.eoseWatch, id)
	delete(s.live, id)
	return true
}

func (s *state) unwatch(id string) {
	s.mu.Lock()
	delete(s.eoseWatch, id)
	s.mu.Unlock()
}

func (s *state) firstSighting(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.checkAndRecord(id)
}

func (s *state) subscriptions() map[string][]nostr.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]nostr.Filter, len(s.live))
	for id, f := range s.live {
		out[id] = f
	}
	return out
}

func (s *state) publishing(eventID string, relays []string) {
	s.mu.Lock()
	s.acks.pending(eventID, relays)
	s.mu.Unlock()
}

func (s *state) ack(eventID, relay string, accepted bool, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acks.record(eventID, relay, accepted, reason)
}

func (s *state) ackStatus(eventID string) map[string]AckStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acks.get(eventID)
}
