package l402

import (
	"sync"
	"time"
)

// settlementCache remembers which invoices have been confirmed settled so
// repeated requests with the same token do not hit the payment backend
// every time. It is the only mutable shared structure in the verification
// path. Entries expire with the token they were checked for: a cached
// "settled" is never served past the token's own expiration.
type settlementCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time // payment hash -> entry expiry
}

func newSettlementCache() *settlementCache {
	return &settlementCache{entries: make(map[string]time.Time)}
}

func (c *settlementCache) settled(paymentHash string) bool {
	c.mu.RLock()
	until, ok := c.entries[paymentHash]
	c.mu.RUnlock()
	return ok && time.Now().Before(until)
}

func (c *settlementCache) markSettled(paymentHash string, until time.Time) {
	c.mu.Lock()
	c.entries[paymentHash] = until
	c.prune()
	c.mu.Unlock()
}

// prune drops expired entries. Called with the write lock held.
func (c *settlementCache) prune() {
	now := time.Now()
	for hash, until := range c.entries {
		if now.After(until) {
			delete(c.entries, hash)
		}
	}
}
