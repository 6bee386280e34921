package kv

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	cfg    config
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis. The caller owns the redis.Client
// lifecycle. Every operation runs under a per-query timeout derived from the
// caller's context.
func NewRedis(client *redis.Client, opts ...Option) Store {
	return &redisStore{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	val, err := s.client.Get(qctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "kv: get %s", key)
	}
	return val, true, nil
}

func (s *redisStore) MGet(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	raw, err := s.client.MGet(qctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "kv: mget")
	}
	vals := make([]string, 0, len(raw))
	for _, v := range raw {
		// Missing keys come back as nil and are omitted.
		if str, ok := v.(string); ok {
			vals = append(vals, str)
		}
	}
	return vals, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if ttl < 0 {
		ttl = 0
	}
	return errors.Wrapf(s.client.Set(qctx, key, value, ttl).Err(), "kv: set %s", key)
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrap(s.client.Del(qctx, keys...).Err(), "kv: del")
}

func (s *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	matches, err := s.client.Keys(qctx, pattern).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "kv: keys %s", pattern)
	}
	return matches, nil
}

func (s *redisStore) RPush(ctx context.Context, key, value string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrapf(s.client.RPush(qctx, key, value).Err(), "kv: rpush %s", key)
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	vals, err := s.client.LRange(qctx, key, start, stop).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "kv: lrange %s", key)
	}
	return vals, nil
}

func (s *redisStore) Pipeline() Pipeline {
	return &redisPipeline{store: s, pipe: s.client.Pipeline()}
}

type redisPipeline struct {
	store *redisStore
	pipe  redis.Pipeliner
	lists []pendingList
}

type pendingList struct {
	cmd *redis.StringSliceCmd
	res *ListResult
}

var _ Pipeline = (*redisPipeline)(nil)

func (p *redisPipeline) Set(key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	p.pipe.Set(context.Background(), key, value, ttl)
}

func (p *redisPipeline) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.pipe.Del(context.Background(), keys...)
}

func (p *redisPipeline) RPush(key, value string) {
	p.pipe.RPush(context.Background(), key, value)
}

func (p *redisPipeline) LRange(key string, start, stop int64) *ListResult {
	res := &ListResult{}
	p.lists = append(p.lists, pendingList{
		cmd: p.pipe.LRange(context.Background(), key, start, stop),
		res: res,
	})
	return res
}

func (p *redisPipeline) Exec(ctx context.Context) error {
	qctx, cancel := p.store.queryCtx(ctx)
	defer cancel()
	if _, err := p.pipe.Exec(qctx); err != nil {
		return errors.Wrap(err, "kv: pipeline exec")
	}
	for _, pl := range p.lists {
		pl.res.vals = pl.cmd.Val()
	}
	return nil
}
