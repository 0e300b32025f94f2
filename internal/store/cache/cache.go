package cache

import (
    "context"
    "strconv"
    "strings"
    "sync"
    "time"

    "gameprices/internal/store"
)

// Default TTLs. Search results can stay stale for a long time (catalogs
// churn slowly); prices go stale fast.
const (
    DefaultSearchTTL = 12 * time.Hour
    DefaultOffersTTL = 30 * time.Minute
)

type searchEntry struct {
    expiresAt  time.Time
    candidates []store.Candidate
}

type offersEntry struct {
    expiresAt time.Time
    offers    []store.Offer
}

// Adapter caches search and offer results of the wrapped adapter. Entries
// are replaced atomically as whole values; staleness within the TTL is a
// tolerated tradeoff, not a correctness issue.
type Adapter struct {
    A         store.Adapter
    SearchTTL time.Duration
    OffersTTL time.Duration
    MaxItems  int

    mu      sync.RWMutex
    search  map[string]searchEntry // key: region + "\x1f" + lowercased query + "\x1f" + limit
    offers  map[string]offersEntry // key: externalID + "\x1f" + region
}

func (c *Adapter) Name() string { return c.A.Name() }
func (c *Adapter) ID() store.ID { return c.A.ID() }

func (c *Adapter) searchTTL() time.Duration {
    if c.SearchTTL > 0 { return c.SearchTTL }
    return DefaultSearchTTL
}

func (c *Adapter) offersTTL() time.Duration {
    if c.OffersTTL > 0 { return c.OffersTTL }
    return DefaultOffersTTL
}

func (c *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    // The limit is part of the key: the stored slice is already truncated
    // to it, so a later call with a larger limit must miss, not be served
    // the smaller result.
    key := strings.ToUpper(region) + "\x1f" + strings.ToLower(strings.TrimSpace(query)) + "\x1f" + strconv.Itoa(limit)

    c.mu.RLock()
    e, ok := c.search[key]
    c.mu.RUnlock()
    if ok && time.Now().Before(e.expiresAt) {
        return e.candidates, nil
    }

    out, err := c.A.Search(ctx, query, region, limit)
    if err != nil { return out, err }

    c.mu.Lock()
    if c.search == nil { c.search = make(map[string]searchEntry) }
    c.search[key] = searchEntry{expiresAt: time.Now().Add(c.searchTTL()), candidates: out}
    c.evictSearchLocked()
    c.mu.Unlock()
    return out, nil
}

func (c *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    key := ref.ExternalID + "\x1f" + strings.ToUpper(region)

    c.mu.RLock()
    e, ok := c.offers[key]
    c.mu.RUnlock()
    if ok && time.Now().Before(e.expiresAt) {
        return e.offers, nil
    }

    out, err := c.A.Offers(ctx, ref, region)
    if err != nil { return out, err }

    // Empty results are not cached: a temporarily broken upstream should
    // not pin "unavailable" for half an hour.
    if len(out) == 0 { return out, nil }

    c.mu.Lock()
    if c.offers == nil { c.offers = make(map[string]offersEntry) }
    c.offers[key] = offersEntry{expiresAt: time.Now().Add(c.offersTTL()), offers: out}
    c.evictOffersLocked()
    c.mu.Unlock()
    return out, nil
}

// best-effort cap: drop expired entries first, then arbitrary ones.
func (c *Adapter) evictSearchLocked() {
    if c.MaxItems <= 0 || len(c.search) <= c.MaxItems { return }
    now := time.Now()
    for k, v := range c.search {
        if now.After(v.expiresAt) { delete(c.search, k) }
        if len(c.search) <= c.MaxItems { return }
    }
    for k := range c.search {
        if len(c.search) <= c.MaxItems { return }
        delete(c.search, k)
    }
}

func (c *Adapter) evictOffersLocked() {
    if c.MaxItems <= 0 || len(c.offers) <= c.MaxItems { return }
    now := time.Now()
    for k, v := range c.offers {
        if now.After(v.expiresAt) { delete(c.offers, k) }
        if len(c.offers) <= c.MaxItems { return }
    }
    for k := range c.offers {
        if len(c.offers) <= c.MaxItems { return }
        delete(c.offers, k)
    }
}
