package cache

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle state of a query entry.
type Status int

const (
	// StatusLoading means a fetch is pending and no data is held.
	StatusLoading Status = iota
	// StatusSuccess means the last fetch succeeded.
	StatusSuccess
	// StatusError means the last fetch failed after all retries.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// QueryFunc loads the value for a key.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// QueryOptions tunes a QueryCache.
type QueryOptions struct {
	// StaleTime is how long a successful result is served without refetching.
	StaleTime time.Duration
	// Retry is the number of extra attempts after a failed fetch.
	Retry int
	// RetryDelay returns the wait before retry number attempt (0-based).
	RetryDelay func(attempt int) time.Duration
	// GCTime is how long an entry nobody reads is kept before CleanExpired drops it.
	GCTime time.Duration
	// FetchTimeout bounds a whole fetch including retries. Zero means no bound.
	FetchTimeout time.Duration
}

// DefaultQueryOptions returns 24h freshness with a single retry.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		StaleTime:  24 * time.Hour,
		Retry:      1,
		RetryDelay: RetryBackoff,
		GCTime:     24 * time.Hour,
	}
}

// RetryBackoff doubles from one second and caps at 30 seconds.
func RetryBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second * time.Duration(1<<attempt)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// State is a snapshot of one query entry.
type State[T any] struct {
	Status       Status
	Data         T
	Err          error
	UpdatedAt    time.Time
	Fetching     bool
	FailureCount int
}

type queryEntry[T any] struct {
	state       State[T]
	gen         uint64
	invalidated bool
	fn          QueryFunc[T]
	lastAccess  time.Time
}

// QueryCache is a keyed read-through store with stale times, retries and
// invalidation. Concurrent reads of a key share a single fetch.
//
// Each invalidation bumps the entry generation; a fetch started for an
// older generation still answers its own callers but never overwrites the
// entry.
type QueryCache[T any] struct {
	mu      sync.Mutex
	opts    QueryOptions
	clone   func(T) T
	entries map[string]*queryEntry[T]
	seq     uint64
	group   singleflight.Group
	now     func() time.Time
}

// NewQueryCache creates a cache. clone copies values handed to callers; nil
// means values are returned as stored.
func NewQueryCache[T any](opts QueryOptions, clone func(T) T) *QueryCache[T] {
	if opts.RetryDelay == nil {
		opts.RetryDelay = RetryBackoff
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &QueryCache[T]{
		opts:    opts,
		clone:   clone,
		entries: make(map[string]*queryEntry[T]),
		now:     time.Now,
	}
}

// NewListCache is a QueryCache for slices; callers always get their own copy.
func NewListCache[E any](opts QueryOptions) *QueryCache[[]E] {
	return NewQueryCache(opts, func(v []E) []E {
		if v == nil {
			return nil
		}
		return slices.Clone(v)
	})
}

// Get returns the value for key, fetching it with fn unless a fresh result is
// cached. If ctx ends first Get returns ctx.Err(); the fetch keeps running and
// its result is still stored.
func (c *QueryCache[T]) Get(ctx context.Context, key string, fn QueryFunc[T]) (T, error) {
	var zero T

	c.mu.Lock()
	now := c.now()
	e := c.entryLocked(key, now)
	e.fn = fn
	e.lastAccess = now
	if c.freshLocked(e, now) {
		data := c.clone(e.state.Data)
		c.mu.Unlock()
		return data, nil
	}
	gen := e.gen
	e.state.Fetching = true
	c.mu.Unlock()

	ch := c.fetch(ctx, key, gen, fn)
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return c.clone(v), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate marks key stale, drops its data and refetches it in the
// background with the last function passed to Get. Unknown keys are ignored.
func (c *QueryCache[T]) Invalidate(ctx context.Context, key string) {
	var zero T

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.seq++
	e.gen = c.seq
	e.invalidated = true
	e.state.Status = StatusLoading
	e.state.Data = zero
	e.state.Err = nil
	e.state.FailureCount = 0
	e.state.Fetching = e.fn != nil
	gen, fn := e.gen, e.fn
	c.mu.Unlock()

	slog.DebugContext(ctx, "Query invalidated", "key", key, "refetch", fn != nil)
	if fn != nil {
		c.fetch(ctx, key, gen, fn)
	}
}

// State returns a snapshot of key.
func (c *QueryCache[T]) State(key string) (State[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return State[T]{}, false
	}
	st := e.state
	st.Data = c.clone(e.state.Data)
	return st, true
}

// Remove drops key. A fetch in flight for it is not stored.
func (c *QueryCache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries.
func (c *QueryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CleanExpired removes idle entries older than GCTime. It satisfies Cleaner
// so a Manager can run it periodically.
func (c *QueryCache[T]) CleanExpired() int {
	if c.opts.GCTime <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.state.Fetching {
			continue
		}
		if now.Sub(e.lastAccess) > c.opts.GCTime {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *QueryCache[T]) entryLocked(key string, now time.Time) *queryEntry[T] {
	e, ok := c.entries[key]
	if !ok {
		c.seq++
		e = &queryEntry[T]{
			state:      State[T]{Status: StatusLoading},
			gen:        c.seq,
			lastAccess: now,
		}
		c.entries[key] = e
	}
	return e
}

func (c *QueryCache[T]) freshLocked(e *queryEntry[T], now time.Time) bool {
	if e.state.Status != StatusSuccess || e.invalidated {
		return false
	}
	return now.Sub(e.state.UpdatedAt) < c.opts.StaleTime
}

func (c *QueryCache[T]) fetch(ctx context.Context, key string, gen uint64, fn QueryFunc[T]) <-chan singleflight.Result {
	flightKey := key + "#" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)

	return c.group.DoChan(flightKey, func() (any, error) {
		if c.opts.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.opts.FetchTimeout)
			defer cancel()
		}

		data, failures, err := c.run(fetchCtx, key, fn)
		c.commit(key, gen, data, failures, err)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
}

func (c *QueryCache[T]) run(ctx context.Context, key string, fn QueryFunc[T]) (T, int, error) {
	var zero T
	failures := 0

	for attempt := 0; ; attempt++ {
		data, err := fn(ctx)
		if err == nil {
			return data, failures, nil
		}
		failures++

		if attempt >= c.opts.Retry {
			slog.WarnContext(ctx, "Query failed, retries exhausted",
				"key", key,
				"attempts", failures,
				"error", err)
			return zero, failures, err
		}

		delay := c.opts.RetryDelay(attempt)
		slog.DebugContext(ctx, "Query failed, retrying",
			"key", key,
			"attempt", attempt+1,
			"retry_in", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, failures, ctx.Err()
		}
	}
}

func (c *QueryCache[T]) commit(key string, gen uint64, data T, failures int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.gen != gen {
		return
	}

	e.state.Fetching = false
	e.state.FailureCount = failures
	if err != nil {
		var zero T
		e.state.Status = StatusError
		e.state.Data = zero
		e.state.Err = err
		return
	}

	e.state.Status = StatusSuccess
	e.state.Data = c.clone(data)
	e.state.Err = nil
	e.state.UpdatedAt = c.now()
	e.invalidated = false
}
