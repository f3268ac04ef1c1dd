// Package flood throttles interactive frontends per client with a one-minute sliding window.
package flood

import (
	"context"
	"sync"
	"time"
)

const (
	// Window is the sliding window length
	Window = time.Minute
	// sweepInterval is how often idle clients are forgotten
	sweepInterval = 10 * time.Minute
	// idleAfter is how long a client stays tracked without requests
	idleAfter = 10 * time.Minute
)

// Limiter allows at most perMinute requests per client key within any window.
// A non-positive limit disables limiting.
type Limiter struct {
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	hits     []time.Time
	lastSeen time.Time
}

// Stats is a snapshot of the tracked clients.
type Stats struct {
	Clients   int `json:"clients"`
	PerMinute int `json:"per_minute"`
}

func New(perMinute int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		now:       time.Now,
		clients:   make(map[string]*client),
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	if l.perMinute <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{hits: make([]time.Time, 0, l.perMinute)}
		l.clients[key] = c
	}
	c.lastSeen = now

	cutoff := now.Add(-Window)
	kept := c.hits[:0]
	for _, ts := range c.hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.hits = kept

	if len(c.hits) >= l.perMinute {
		return false
	}
	c.hits = append(c.hits, now)
	return true
}

// Run forgets idle clients until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-idleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Clients: len(l.clients), PerMinute: l.perMinute}
}
