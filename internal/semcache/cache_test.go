package semcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, max int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	return New(Options{MaxEntries: max, Now: clock.Now}), clock
}

var on = Policy{Enabled: true, Threshold: 0.85, TTL: time.Hour}

func TestEmbedDeterministic(t *testing.T) {
	a := Embed("What is the capital of France?", DefaultDim)
	b := Embed("what is the   capital of france", DefaultDim)
	assert.Len(t, a, DefaultDim)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
	assert.Less(t, Cosine(a, Embed("best biryani in hyderabad", DefaultDim)), 0.5)
	assert.Equal(t, 0.0, Cosine(Embed("", DefaultDim), a))
	assert.Equal(t, 0.0, Cosine(a, Embed("x", 8)))
}

func TestLookupHitRequiresThreshold(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("u1", "", "what is the capital of france", "Paris.", on)

	hit := c.Lookup("u1", "", "What is the capital of France?", on)
	require.True(t, hit.Hit)
	assert.Equal(t, "Paris.", hit.Response)
	assert.InDelta(t, 1.0, hit.Similarity, 1e-9)

	miss := c.Lookup("u1", "", "how do I bake sourdough bread at home", on)
	assert.False(t, miss.Hit)
	assert.Less(t, miss.Similarity, on.Threshold)

	strict := on
	strict.Threshold = 0.999
	partial := c.Lookup("u1", "", "what is the capital of france today", strict)
	assert.False(t, partial.Hit)
	assert.Greater(t, partial.Similarity, 0.5)
}

func TestLookupNeverCrossesUsers(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("u1", "", "gold price today", "₹7,000/g", on)

	assert.False(t, c.Lookup("u2", "", "gold price today", on).Hit)
	assert.True(t, c.Lookup("u1", "", "gold price today", on).Hit)
}

func TestSessionScoping(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("u1", "s1", "tell me a joke", "Knock knock.", on)

	assert.False(t, c.Lookup("u1", "s2", "tell me a joke", on).Hit)
	assert.True(t, c.Lookup("u1", "s1", "tell me a joke", on).Hit)
	assert.True(t, c.Lookup("u1", "", "tell me a joke", on).Hit, "unscoped lookup sees every session")
}

func TestDisabledPolicy(t *testing.T) {
	c, _ := newTestCache(t, 10)
	off := Policy{Enabled: false}
	c.Store("u1", "", "hello", "hi!", off)
	assert.Equal(t, 0, c.Len())

	c.Store("u1", "", "hello", "hi!", on)
	assert.False(t, c.Lookup("u1", "", "hello", off).Hit)
}

func TestStoreIsIdempotent(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Store("u1", "", "what is dengue", "A viral fever.", on)
	c.Store("u1", "", "What is dengue", "A viral fever.", on)
	assert.Equal(t, 1, c.Len())

	hit := c.Lookup("u1", "", "what is dengue", on)
	assert.True(t, hit.Hit)
	assert.Equal(t, "A viral fever.", hit.Response)

	c.Store("u1", "", "what is dengue", "A mosquito-borne viral fever.", on)
	assert.Equal(t, "A mosquito-borne viral fever.", c.Lookup("u1", "", "what is dengue", on).Response)
}

func TestTTLExpiryIsLazy(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.Store("u1", "", "weather in pune", "Sunny.", on)

	clock.Advance(59 * time.Minute)
	assert.True(t, c.Lookup("u1", "", "weather in pune", on).Hit)

	clock.Advance(2 * time.Minute)
	assert.False(t, c.Lookup("u1", "", "weather in pune", on).Hit)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Expired)
}

func TestLRUEvictsLeastRecentlyAccessed(t *testing.T) {
	c, clock := newTestCache(t, 2)
	c.Store("u1", "", "first question about cricket", "a", on)
	clock.Advance(time.Second)
	c.Store("u1", "", "second question about movies", "b", on)
	clock.Advance(time.Second)

	// Touch the oldest entry so the second becomes least recently used.
	require.True(t, c.Lookup("u1", "", "first question about cricket", on).Hit)
	c.Store("u1", "", "third question about recipes", "c", on)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Lookup("u1", "", "first question about cricket", on).Hit)
	assert.False(t, c.Lookup("u1", "", "second question about movies", on).Hit)
	assert.True(t, c.Lookup("u1", "", "third question about recipes", on).Hit)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestSweep(t *testing.T) {
	c, clock := newTestCache(t, 10)
	short := on
	short.TTL = time.Minute
	c.Store("u1", "", "short lived", "x", short)
	c.Store("u2", "", "long lived", "y", on)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	stats := c.Stats()
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestRunStopsOnCancel(t *testing.T) {
	c, clock := newTestCache(t, 10)
	short := on
	short.TTL = time.Millisecond
	c.Store("u1", "", "q", "r", short)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%3)
			for j := 0; j < 50; j++ {
				q := fmt.Sprintf("question number %d", j%10)
				c.Store(user, "", q, "answer", on)
				c.Lookup(user, "", q, on)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
	assert.True(t, c.Lookup("u0", "", "question number 3", on).Hit)
}
