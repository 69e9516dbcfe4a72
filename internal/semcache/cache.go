// Package semcache is a per-user semantic response cache. Entries are matched
// by cosine similarity of hashed bag-of-words vectors and evicted by TTL or,
// when full, least-recently-accessed first.
package semcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/xiaot623/gogo/convo/internal/classifier"
	"github.com/xiaot623/gogo/convo/internal/logger"
)

const (
	DefaultMaxEntries    = 10000
	DefaultThreshold     = 0.85
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = time.Minute
)

// Policy is the caller's per-plan cache setting.
type Policy struct {
	Enabled   bool
	Threshold float64
	TTL       time.Duration
}

type Entry struct {
	UserID     string
	SessionID  string
	Query      string
	Response   string
	Vector     []float64
	CreatedAt  time.Time
	TTL        time.Duration
	Hits       int
	LastAccess time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) >= e.TTL
}

// Hit is the result of a lookup. Similarity is reported on misses too.
type Hit struct {
	Hit        bool    `json:"hit"`
	Response   string  `json:"response,omitempty"`
	Query      string  `json:"query,omitempty"`
	Similarity float64 `json:"similarity"`
}

type Stats struct {
	Entries   int   `json:"entries"`
	Users     int   `json:"users"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Stores    int64 `json:"stores"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
}

type Options struct {
	MaxEntries int
	Dim        int
	Now        func() time.Time
	Logger     *logger.Logger
}

type entryKey struct {
	user, session, query string
}

// Cache is safe for concurrent use. A single mutex guards the index and the
// LRU list; no I/O happens while it is held.
type Cache struct {
	mu     sync.Mutex
	lru    *list.List
	index  map[entryKey]*list.Element
	byUser map[string]map[entryKey]*list.Element
	stats  Stats

	maxEntries int
	dim        int
	now        func() time.Time
	log        *logger.Logger
}

func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Dim <= 0 {
		opts.Dim = DefaultDim
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Cache{
		lru:        list.New(),
		index:      make(map[entryKey]*list.Element),
		byUser:     make(map[string]map[entryKey]*list.Element),
		maxEntries: opts.MaxEntries,
		dim:        opts.Dim,
		now:        opts.Now,
		log:        opts.Logger.With("component", "semcache"),
	}
}

// Lookup returns the most similar live entry owned by user. A non-empty
// session restricts candidates to that session. Expired entries found on
// the way are evicted.
func (c *Cache) Lookup(user, session, query string, p Policy) Hit {
	if !p.Enabled || user == "" {
		return Hit{}
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	vec := Embed(query, c.dim)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var best *list.Element
	bestSim := 0.0
	for key, el := range c.byUser[user] {
		e := el.Value.(*Entry)
		if e.expired(now) {
			c.removeLocked(key, el)
			c.stats.Expired++
			continue
		}
		if session != "" && e.SessionID != session {
			continue
		}
		if sim := Cosine(vec, e.Vector); sim > bestSim {
			best, bestSim = el, sim
		}
	}

	if best == nil || bestSim < threshold {
		c.stats.Misses++
		return Hit{Similarity: bestSim}
	}
	e := best.Value.(*Entry)
	e.Hits++
	e.LastAccess = now
	c.lru.MoveToFront(best)
	c.stats.Hits++
	return Hit{Hit: true, Response: e.Response, Query: e.Query, Similarity: bestSim}
}

// Store records a response. It is a no-op when the policy disables caching.
// Storing the same (user, session, query) again overwrites the response and
// restarts its TTL.
func (c *Cache) Store(user, session, query, response string, p Policy) {
	if !p.Enabled || user == "" || response == "" {
		return
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := entryKey{user: user, session: session, query: classifier.Normalize(query)}
	vec := Embed(query, c.dim)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.stats.Stores++
	if el, ok := c.index[key]; ok {
		e := el.Value.(*Entry)
		e.Response = response
		e.Vector = vec
		e.CreatedAt = now
		e.LastAccess = now
		e.TTL = ttl
		c.lru.MoveToFront(el)
		return
	}

	el := c.lru.PushFront(&Entry{
		UserID:     user,
		SessionID:  session,
		Query:      query,
		Response:   response,
		Vector:     vec,
		CreatedAt:  now,
		TTL:        ttl,
		LastAccess: now,
	})
	c.index[key] = el
	if c.byUser[user] == nil {
		c.byUser[user] = make(map[entryKey]*list.Element)
	}
	c.byUser[user][key] = el

	for c.lru.Len() > c.maxEntries {
		c.evictOldestLocked()
	}
}

// Invalidate drops every entry owned by user.
func (c *Cache) Invalidate(user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, el := range c.byUser[user] {
		c.removeLocked(key, el)
		n++
	}
	return n
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*Entry)
		if e.expired(now) {
			c.removeLocked(entryKey{user: e.UserID, session: e.SessionID, query: classifier.Normalize(e.Query)}, el)
			removed++
		}
		el = prev
	}
	c.stats.Expired += int64(removed)
	return removed
}

// Run sweeps on every tick until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Debug("cache sweep", "removed", n)
			}
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Users = len(c.byUser)
	return s
}

func (c *Cache) evictOldestLocked() {
	el := c.lru.Back()
	if el == nil {
		return
	}
	e := el.Value.(*Entry)
	c.removeLocked(entryKey{user: e.UserID, session: e.SessionID, query: classifier.Normalize(e.Query)}, el)
	c.stats.Evictions++
}

func (c *Cache) removeLocked(key entryKey, el *list.Element) {
	c.lru.Remove(el)
	delete(c.index, key)
	if m := c.byUser[key.user]; m != nil {
		delete(m, key)
		if len(m) == 0 {
			delete(c.byUser, key.user)
		}
	}
}
