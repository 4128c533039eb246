package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrMetadataUnavailable reports that instrument filters could not be
// resolved from cache or source. Callers must abort rather than guess sizes.
var ErrMetadataUnavailable = errors.New("instrument metadata unavailable")

const defaultMetaTTL = time.Hour

type metaEntry struct {
	meta      Meta
	fetchedAt time.Time
}

// MetaCache is a TTL cache over a MetaSource. A stale entry is still served
// when a refresh fails; only a miss with a failed fetch surfaces
// ErrMetadataUnavailable.
type MetaCache struct {
	src MetaSource
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]metaEntry
}

// NewMetaCache wraps src with a TTL cache. A non-positive ttl uses the default.
func NewMetaCache(src MetaSource, ttl time.Duration) *MetaCache {
	if ttl <= 0 {
		ttl = defaultMetaTTL
	}
	return &MetaCache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]metaEntry),
	}
}

// InstrumentMeta returns cached filters for symbol, refreshing past the TTL.
func (c *MetaCache) InstrumentMeta(ctx context.Context, symbol string) (Meta, error) {
	c.mu.Lock()
	entry, ok := c.entries[symbol]
	c.mu.Unlock()

	fresh := ok && c.now().Sub(entry.fetchedAt) < c.ttl
	if fresh {
		return entry.meta, nil
	}

	meta, err := c.src.InstrumentMeta(ctx, symbol)
	if err != nil {
		if ok {
			// Tick and step sizes change rarely; a stale entry beats aborting.
			return entry.meta, nil
		}
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrMetadataUnavailable, symbol, err)
	}

	c.mu.Lock()
	c.entries[symbol] = metaEntry{meta: meta, fetchedAt: c.now()}
	c.mu.Unlock()
	return meta, nil
}
