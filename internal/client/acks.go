package client

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Shugur-Network/nostr-client/internal/constants"
)

// AckStatus is what one relay answered to a published event.
type AckStatus struct {
	Pending  bool      `json:"pending"`
	Accepted bool      `json:"accepted"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// ackTracker remembers per-relay OK results for the most recent publications.
type ackTracker struct {
	recent *lru.Cache // event id -> map[relay]AckStatus
}

func newAckTracker(size int) (*ackTracker, error) {
	if size <= 0 {
		size = constants.DefaultAckTrackerSize
	}
	recent, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ackTracker{recent: recent}, nil
}

func (a *ackTracker) pending(eventID string, relays []string) {
	statuses := a.statuses(eventID)
	now := time.Now()
	for _, url := range relays {
		if _, ok := statuses[url]; !ok {
			statuses[url] = AckStatus{Pending: true, At: now}
		}
	}
	a.recent.Add(eventID, statuses)
}

// record stores an answer. Answers for events this client never published are ignored.
func (a *ackTracker) record(eventID, relay string, accepted bool, reason string) bool {
	v, ok := a.recent.Get(eventID)
	if !ok {
		return false
	}
	v.(map[string]AckStatus)[relay] = AckStatus{Accepted: accepted, Reason: reason, At: time.Now()}
	return true
}

func (a *ackTracker) get(eventID string) map[string]AckStatus {
	v, ok := a.recent.Get(eventID)
	if !ok {
		return nil
	}
	src := v.(map[string]AckStatus)
	out := make(map[string]AckStatus, len(src))
	for k, s := range src {
		out[k] = s
	}
	return out
}

func (a *ackTracker) statuses(eventID string) map[string]AckStatus {
	if v, ok := a.recent.Get(eventID); ok {
		return v.(map[string]AckStatus)
	}
	return make(map[string]AckStatus)
}
