package client

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/willf/bloom"

	"github.com/Shugur-Network/nostr-client/internal/constants"
)

// seenCache answers "was this event id delivered before" for the most recent
// size ids. The bloom filter short-circuits ids that are certainly new; the
// LRU is the exact answer for everything the bloom filter is unsure about.
// Not safe for concurrent use; the client state mutex guards it.
type seenCache struct {
	bloom   *bloom.BloomFilter
	recent  *lru.Cache
	size    int
	inserts int
}

func newSeenCache(size int) (*seenCache, error) {
	if size <= 0 {
		size = constants.DefaultDedupCacheSize
	}
	recent, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &seenCache{
		bloom:  bloom.NewWithEstimates(uint(size), constants.DefaultBloomFalsePos),
		recent: recent,
		size:   size,
	}, nil
}

// checkAndRecord records id and reports whether it was new.
func (s *seenCache) checkAndRecord(id string) bool {
	if !s.bloom.TestString(id) {
		s.recent.Add(id, struct{}{})
		s.add(id)
		return true
	}
	if found, _ := s.recent.ContainsOrAdd(id, struct{}{}); found {
		return false
	}
	s.add(id)
	return true
}

func (s *seenCache) add(id string) {
	s.bloom.AddString(id)
	s.inserts++
	if s.inserts >= s.size*constants.BloomSaturationFactor {
		s.rebuild()
	}
}

// rebuild drops bloom bits of evicted ids so the false positive rate stays near its estimate.
func (s *seenCache) rebuild() {
	s.bloom.ClearAll()
	for _, key := range s.recent.Keys() {
		if id, ok := key.(string); ok {
			s.bloom.AddString(id)
		}
	}
	s.inserts = s.recent.Len()
}

func (s *seenCache) len() int { return s.recent.Len() }
