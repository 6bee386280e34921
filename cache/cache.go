package cache

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/modacart/storecache/keys"
	"github.com/modacart/storecache/kv"
)

// Entity is anything the generic cache can hold. CacheID is the identifier
// segment of the entity's key.
type Entity interface {
	CacheID() string
}

// Source is the source-of-truth query interface for one entity kind. Count
// and All must agree: Count reports exactly the number of rows All returns.
type Source[T Entity] interface {
	Count(ctx context.Context) (int64, error)
	All(ctx context.Context) ([]T, error)
	// Find returns the row with the given id. The bool reports existence;
	// an absent row is not an error.
	Find(ctx context.Context, id string) (T, bool, error)
}

// DefaultTTL is the expiry backstop applied to cached entities unless
// overridden. TTL expiry covers missed invalidations; explicit Remove calls
// remain the primary invalidation signal.
const DefaultTTL = 7 * 24 * time.Hour

type config[T any] struct {
	ttl       time.Duration
	less      func(a, b T) bool
	normalize func(T) T
	logger    *zap.Logger
	coalesce  bool
}

// Option configures a cache instance.
type Option[T any] func(*config[T])

func applyOptions[T any](opts []Option[T]) config[T] {
	cfg := config[T]{
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTTL sets the expiry for cached entries. A ttl <= 0 stores without
// expiry, leaving explicit invalidation as the only removal path.
func WithTTL[T any](ttl time.Duration) Option[T] {
	return func(c *config[T]) { c.ttl = ttl }
}

// WithSort sets the natural order of GetAll results.
func WithSort[T any](less func(a, b T) bool) Option[T] {
	return func(c *config[T]) { c.less = less }
}

// WithNormalize sets a transformation applied to every row before it is
// cached or returned, e.g. collapsing a related collection to a count.
func WithNormalize[T any](fn func(T) T) Option[T] {
	return func(c *config[T]) { c.normalize = fn }
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(c *config[T]) { c.logger = logger }
}

// WithCoalescing collapses concurrent rehydrations of the same namespace
// into a single source-of-truth read. Off by default: redundant rehydrates
// are harmless, merely wasteful.
func WithCoalescing[T any]() Option[T] {
	return func(c *config[T]) { c.coalesce = true }
}

// Cache is a read-through cache for one globally-partitioned entity kind.
// Freshness is judged by comparing the cached key count against the
// authoritative row count; any mismatch triggers a full drop-and-rehydrate.
type Cache[T Entity] struct {
	store kv.Store
	src   Source[T]
	kind  string
	cfg   config[T]
	group singleflight.Group
}

// New returns a cache for the given entity kind. The store and source are
// injected so tests can substitute their own.
func New[T Entity](store kv.Store, src Source[T], kind string, opts ...Option[T]) *Cache[T] {
	return &Cache[T]{
		store: store,
		src:   src,
		kind:  kind,
		cfg:   applyOptions(opts),
	}
}

func (c *Cache[T]) pattern() string {
	return keys.Pattern(c.kind)
}

func (c *Cache[T]) normalize(v T) T {
	if c.cfg.normalize == nil {
		return v
	}
	return c.cfg.normalize(v)
}

func (c *Cache[T]) sort(items []T) {
	if c.cfg.less == nil {
		return
	}
	sort.Slice(items, func(i, j int) bool { return c.cfg.less(items[i], items[j]) })
}

func (c *Cache[T]) decode(raw string) (T, bool) {
	return decodeValue[T](c.cfg.logger, c.kind, raw)
}

// GetAll returns every entity of the kind. The cached key count is checked
// against the authoritative row count; a mismatch (missed invalidation,
// partial bulk write, silent TTL expiry) drops the namespace and rehydrates
// it from the source of truth. Results are always schema-valid and sorted in
// the kind's natural order.
func (c *Cache[T]) GetAll(ctx context.Context) ([]T, error) {
	count, cached, err := c.probe(ctx)
	if err != nil {
		return nil, err
	}
	if int64(len(cached)) != count {
		return c.rehydrate(ctx)
	}
	if len(cached) == 0 {
		return []T{}, nil
	}
	raw, err := c.store.MGet(ctx, cached...)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(raw))
	for _, r := range raw {
		if v, ok := c.decode(r); ok {
			items = append(items, v)
		}
	}
	c.sort(items)
	return items, nil
}

// probe fetches the authoritative count and the matching cache keys
// concurrently. The two reads race against concurrent writes; the worst
// case is one spurious rehydrate, never incorrect data.
func (c *Cache[T]) probe(ctx context.Context) (int64, []string, error) {
	var (
		count  int64
		cached []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.src.Count(gctx)
		if err != nil {
			return errors.Wrapf(err, "cache: counting %s rows", c.kind)
		}
		count = n
		return nil
	})
	g.Go(func() error {
		matches, err := c.store.Keys(gctx, c.pattern())
		if err != nil {
			return err
		}
		cached = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	return count, cached, nil
}

func (c *Cache[T]) rehydrate(ctx context.Context) ([]T, error) {
	if !c.cfg.coalesce {
		return c.rehydrateOnce(ctx)
	}
	v, err, _ := c.group.Do(c.pattern(), func() (any, error) {
		return c.rehydrateOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// rehydrateOnce drops the namespace and repopulates it in full from the
// source of truth. The freshly fetched rows are returned as-is: they are
// known valid and need no re-parse.
func (c *Cache[T]) rehydrateOnce(ctx context.Context) ([]T, error) {
	if err := c.Drop(ctx); err != nil {
		return nil, err
	}
	rows, err := c.src.All(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: loading %s rows", c.kind)
	}
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, c.normalize(row))
	}
	if err := c.writeBulk(ctx, items); err != nil {
		return nil, err
	}
	c.sort(items)
	c.cfg.logger.Debug("rehydrated stale cache",
		zap.String("kind", c.kind), zap.Int("entries", len(items)))
	return items, nil
}

// Get returns the entity with the given id. A cache miss (or a corrupt
// cached entry) falls through to the source of truth; an absent row returns
// found=false and is never cached.
func (c *Cache[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	raw, found, err := c.store.Get(ctx, keys.Entity(c.kind, id))
	if err != nil {
		return zero, false, err
	}
	if found {
		if v, ok := c.decode(raw); ok {
			return v, true, nil
		}
	}
	row, ok, err := c.src.Find(ctx, id)
	if err != nil {
		return zero, false, errors.Wrapf(err, "cache: fetching %s %s", c.kind, id)
	}
	if !ok {
		return zero, false, nil
	}
	item := c.normalize(row)
	if err := c.write(ctx, item); err != nil {
		// The caller got their row; failing to cache it is a degradation,
		// corrected by the next freshness check.
		c.cfg.logger.Warn("failed to repopulate cache entry",
			zap.String("kind", c.kind), zap.String("id", id), zap.Error(err))
	}
	return item, true, nil
}

// Add caches a single entity under its key.
func (c *Cache[T]) Add(ctx context.Context, v T) error {
	return c.write(ctx, c.normalize(v))
}

// AddBulk caches entities through a single pipeline. Pipelining is for
// throughput, not atomicity: a partial failure can leave a subset written,
// which the next count check repairs.
func (c *Cache[T]) AddBulk(ctx context.Context, vs []T) error {
	items := make([]T, 0, len(vs))
	for _, v := range vs {
		items = append(items, c.normalize(v))
	}
	return c.writeBulk(ctx, items)
}

// Update replaces a cached entity by deleting and re-adding it, so a
// concurrent reader sees either the old entry or the new one, never a
// partially written merge.
func (c *Cache[T]) Update(ctx context.Context, v T) error {
	item := c.normalize(v)
	if err := c.Remove(ctx, item.CacheID()); err != nil {
		return err
	}
	return c.write(ctx, item)
}

// Remove invalidates a single entity. Every mutation path on the
// authoritative side calls this as its invalidation signal.
func (c *Cache[T]) Remove(ctx context.Context, id string) error {
	return c.store.Del(ctx, keys.Entity(c.kind, id))
}

// RemoveBulk invalidates several entities at once.
func (c *Cache[T]) RemoveBulk(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ks := make([]string, 0, len(ids))
	for _, id := range ids {
		ks = append(ks, keys.Entity(c.kind, id))
	}
	return c.store.Del(ctx, ks...)
}

// Drop deletes every key of the kind. Idempotent; dropping an empty
// namespace is a no-op.
func (c *Cache[T]) Drop(ctx context.Context) error {
	matches, err := c.store.Keys(ctx, c.pattern())
	if err != nil {
		return err
	}
	return c.store.Del(ctx, matches...)
}

func (c *Cache[T]) write(ctx context.Context, v T) error {
	data, err := encodeValue(c.kind, v.CacheID(), v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, keys.Entity(c.kind, v.CacheID()), data, c.cfg.ttl)
}

func (c *Cache[T]) writeBulk(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	pipe := c.store.Pipeline()
	for _, v := range items {
		data, err := encodeValue(c.kind, v.CacheID(), v)
		if err != nil {
			return err
		}
		pipe.Set(keys.Entity(c.kind, v.CacheID()), data, c.cfg.ttl)
	}
	return pipe.Exec(ctx)
}
