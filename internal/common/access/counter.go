// Package access counts requests per client address and refuses clients
// matching a blocklist.
package access

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a process-local request tally keyed by client IP. The zero value
// is not usable; create one with NewCounter.
type Counter struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]*atomic.Int64)}
}

// Increment adds one to ip's tally and returns the new value.
func (c *Counter) Increment(ip string) int64 {
	c.mu.RLock()
	n, ok := c.counts[ip]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		if n, ok = c.counts[ip]; !ok {
			n = new(atomic.Int64)
			c.counts[ip] = n
		}
		c.mu.Unlock()
	}
	return n.Add(1)
}

func (c *Counter) Count(ip string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.counts[ip]; ok {
		return n.Load()
	}
	return 0
}

// Entry is one row of a Snapshot.
type Entry struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

// Snapshot returns all tallies, highest first.
func (c *Counter) Snapshot() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.counts))
	for ip, n := range c.counts {
		out = append(out, Entry{IP: ip, Count: n.Load()})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].IP < out[j].IP
	})
	return out
}
