package cache

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/modacart/storecache/keys"
	"github.com/modacart/storecache/kv"
)

// UserEntity is an entity partitioned per user, such as a cart line or a
// wishlist entry. CacheSegments returns the identity segments that follow
// the user in the key; the slice may vary in length when trailing segments
// are optional (a cart line's color, for example).
type UserEntity interface {
	CacheUserID() string
	CacheSegments() []string
}

// UserSource is the source-of-truth query interface for one per-user entity
// kind. Every operation is scoped to a single user's rows.
type UserSource[T UserEntity] interface {
	Count(ctx context.Context, userID string) (int64, error)
	All(ctx context.Context, userID string) ([]T, error)
	// Find returns the user's row matching the identity segments. Segments
	// may contain wildcards for partial-specificity lookups.
	Find(ctx context.Context, userID string, segments []string) (T, bool, error)
}

// Partitioned is the per-user variant of [Cache]. It runs the same
// count-check protocol, but both the freshness probe and drop-and-rehydrate
// are scoped to one user's key prefix, so a stale cache for one user never
// touches another user's keys.
type Partitioned[T UserEntity] struct {
	store kv.Store
	src   UserSource[T]
	kind  string
	cfg   config[T]
	group singleflight.Group
}

// NewPartitioned returns a per-user partitioned cache for the given kind.
func NewPartitioned[T UserEntity](store kv.Store, src UserSource[T], kind string, opts ...Option[T]) *Partitioned[T] {
	return &Partitioned[T]{
		store: store,
		src:   src,
		kind:  kind,
		cfg:   applyOptions(opts),
	}
}

func (c *Partitioned[T]) key(v T) string {
	return keys.User(c.kind, v.CacheUserID(), v.CacheSegments()...)
}

func (c *Partitioned[T]) normalize(v T) T {
	if c.cfg.normalize == nil {
		return v
	}
	return c.cfg.normalize(v)
}

func (c *Partitioned[T]) sort(items []T) {
	if c.cfg.less == nil {
		return
	}
	sort.Slice(items, func(i, j int) bool { return c.cfg.less(items[i], items[j]) })
}

// GetAll returns every cached entity belonging to one user, rehydrating the
// user's partition from the source of truth when the scoped count check
// detects staleness.
func (c *Partitioned[T]) GetAll(ctx context.Context, userID string) ([]T, error) {
	count, cached, err := c.probe(ctx, userID)
	if err != nil {
		return nil, err
	}
	if int64(len(cached)) != count {
		return c.rehydrate(ctx, userID)
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
		if v, ok := decodeValue[T](c.cfg.logger, c.kind, r); ok {
			items = append(items, v)
		}
	}
	c.sort(items)
	return items, nil
}

func (c *Partitioned[T]) probe(ctx context.Context, userID string) (int64, []string, error) {
	var (
		count  int64
		cached []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.src.Count(gctx, userID)
		if err != nil {
			return errors.Wrapf(err, "cache: counting %s rows for user %s", c.kind, userID)
		}
		count = n
		return nil
	})
	g.Go(func() error {
		matches, err := c.store.Keys(gctx, keys.UserPattern(c.kind, userID))
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

func (c *Partitioned[T]) rehydrate(ctx context.Context, userID string) ([]T, error) {
	if !c.cfg.coalesce {
		return c.rehydrateOnce(ctx, userID)
	}
	v, err, _ := c.group.Do(keys.UserPattern(c.kind, userID), func() (any, error) {
		return c.rehydrateOnce(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

func (c *Partitioned[T]) rehydrateOnce(ctx context.Context, userID string) ([]T, error) {
	if err := c.Drop(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := c.src.All(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: loading %s rows for user %s", c.kind, userID)
	}
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, c.normalize(row))
	}
	if err := c.writeBulk(ctx, items); err != nil {
		return nil, err
	}
	c.sort(items)
	c.cfg.logger.Debug("rehydrated stale user partition",
		zap.String("kind", c.kind), zap.String("user", userID), zap.Int("entries", len(items)))
	return items, nil
}

// Get returns one of the user's entities by identity segments. A fully
// specified lookup tries the exact key first; lookups with wildcard
// segments, or that omit optional trailing segments, resolve through a
// pattern match and return the first schema-valid hit. Misses fall through
// to the source of truth; absent rows are never cached.
func (c *Partitioned[T]) Get(ctx context.Context, userID string, segments ...string) (T, bool, error) {
	var zero T
	if !hasWildcard(segments) {
		raw, found, err := c.store.Get(ctx, keys.User(c.kind, userID, segments...))
		if err != nil {
			return zero, false, err
		}
		if found {
			if v, ok := decodeValue[T](c.cfg.logger, c.kind, raw); ok {
				return v, true, nil
			}
		}
		// The exact key can miss when an optional trailing segment is part
		// of the stored identity; retry as a pattern before going to the
		// source of truth.
		if v, ok, err := c.getPattern(ctx, userID, append(segments, keys.Wildcard)); err != nil || ok {
			return v, ok, err
		}
	} else {
		if v, ok, err := c.getPattern(ctx, userID, segments); err != nil || ok {
			return v, ok, err
		}
	}
	row, ok, err := c.src.Find(ctx, userID, segments)
	if err != nil {
		return zero, false, errors.Wrapf(err, "cache: fetching %s %s for user %s",
			c.kind, strings.Join(segments, keys.Separator), userID)
	}
	if !ok {
		return zero, false, nil
	}
	item := c.normalize(row)
	if err := c.write(ctx, item); err != nil {
		c.cfg.logger.Warn("failed to repopulate cache entry",
			zap.String("kind", c.kind), zap.String("user", userID), zap.Error(err))
	}
	return item, true, nil
}

func (c *Partitioned[T]) getPattern(ctx context.Context, userID string, segments []string) (T, bool, error) {
	var zero T
	matches, err := c.store.Keys(ctx, keys.User(c.kind, userID, segments...))
	if err != nil {
		return zero, false, err
	}
	// Glob enumeration order is unspecified; sort for a deterministic pick.
	sort.Strings(matches)
	if len(matches) == 0 {
		return zero, false, nil
	}
	raw, err := c.store.MGet(ctx, matches...)
	if err != nil {
		return zero, false, err
	}
	for _, r := range raw {
		if v, ok := decodeValue[T](c.cfg.logger, c.kind, r); ok {
			return v, true, nil
		}
	}
	return zero, false, nil
}

func hasWildcard(segments []string) bool {
	for _, s := range segments {
		if strings.Contains(s, keys.Wildcard) {
			return true
		}
	}
	return false
}

// Add caches a single entity under its user-scoped key.
func (c *Partitioned[T]) Add(ctx context.Context, v T) error {
	return c.write(ctx, c.normalize(v))
}

// AddBulk caches entities through a single pipeline. Entries may belong to
// different users; each lands under its own user-scoped key.
func (c *Partitioned[T]) AddBulk(ctx context.Context, vs []T) error {
	items := make([]T, 0, len(vs))
	for _, v := range vs {
		items = append(items, c.normalize(v))
	}
	return c.writeBulk(ctx, items)
}

// Update replaces a cached entity by deleting and re-adding it.
func (c *Partitioned[T]) Update(ctx context.Context, v T) error {
	item := c.normalize(v)
	if err := c.store.Del(ctx, c.key(item)); err != nil {
		return err
	}
	return c.write(ctx, item)
}

// Remove invalidates one of the user's entities by identity segments.
func (c *Partitioned[T]) Remove(ctx context.Context, userID string, segments ...string) error {
	return c.store.Del(ctx, keys.User(c.kind, userID, segments...))
}

// Drop deletes every key in one user's partition. Idempotent.
func (c *Partitioned[T]) Drop(ctx context.Context, userID string) error {
	matches, err := c.store.Keys(ctx, keys.UserPattern(c.kind, userID))
	if err != nil {
		return err
	}
	return c.store.Del(ctx, matches...)
}

func (c *Partitioned[T]) write(ctx context.Context, v T) error {
	data, err := encodeValue(c.kind, v.CacheUserID(), v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.key(v), data, c.cfg.ttl)
}

func (c *Partitioned[T]) writeBulk(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	pipe := c.store.Pipeline()
	for _, v := range items {
		data, err := encodeValue(c.kind, v.CacheUserID(), v)
		if err != nil {
			return err
		}
		pipe.Set(c.key(v), data, c.cfg.ttl)
	}
	return pipe.Exec(ctx)
}
