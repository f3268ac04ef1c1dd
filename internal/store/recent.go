// Package store keeps process-lifetime memory of tracks already shown to a listener.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"songswipe/internal/core"
)

// DefaultFalsePositiveRate of the bloom prefilter
const DefaultFalsePositiveRate = 0.001

// RecentTracks remembers the last N shown tracks. The LRU is the source of truth; the bloom
// filter answers most misses without touching it and is rebuilt once evictions pile up.
type RecentTracks struct {
	mu        sync.RWMutex
	bloom     *bloom.BloomFilter
	lru       *lru.Cache[string, struct{}]
	capacity  int
	fpRate    float64
	evictions int
}

func NewRecentTracks(capacity int, fpRate float64) *RecentTracks {
	if capacity <= 0 {
		capacity = core.DefaultRecentTrackMemory
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultFalsePositiveRate
	}

	r := &RecentTracks{
		capacity: capacity,
		fpRate:   fpRate,
		bloom:    bloom.NewWithEstimates(uint(capacity), fpRate),
	}
	// the callback runs under r.mu held by MarkShown
	cache, _ := lru.NewWithEvict[string, struct{}](capacity, func(string, struct{}) {
		r.evictions++
	})
	r.lru = cache
	return r
}

// Key identifies a track across providers.
func Key(track core.Track) string {
	return string(track.Provider) + ":" + track.ID
}

// MarkShown records tracks as shown.
func (r *RecentTracks) MarkShown(tracks ...core.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tracks {
		key := Key(t)
		r.lru.Add(key, struct{}{})
		r.bloom.AddString(key)
	}

	if r.evictions >= r.capacity {
		r.rebuildBloom()
	}
}

// Seen reports whether the track was shown recently.
func (r *RecentTracks) Seen(track core.Track) bool {
	key := Key(track)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.bloom.TestString(key) {
		return false
	}
	return r.lru.Contains(key)
}

// Fresh returns the tracks not shown recently, preserving order.
func (r *RecentTracks) Fresh(tracks []core.Track) []core.Track {
	fresh := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if !r.Seen(t) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func (r *RecentTracks) Len() int {
	return r.lru.Len()
}

// Reset forgets everything.
func (r *RecentTracks) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lru.Purge()
	r.bloom = bloom.NewWithEstimates(uint(r.capacity), r.fpRate)
	r.evictions = 0
}

func (r *RecentTracks) rebuildBloom() {
	r.bloom = bloom.NewWithEstimates(uint(r.capacity), r.fpRate)
	for _, key := range r.lru.Keys() {
		r.bloom.AddString(key)
	}
	r.evictions = 0
}
