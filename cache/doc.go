// Package cache implements the read-through entity caches that sit in front
// of the marketplace's relational store for hot, rarely-written entities.
//
// # Protocol
//
// Every cache follows the same cache-aside protocol. Reads check the
// key-value store first; misses fall back to the injected source-of-truth
// [Source] and repopulate the store before returning. Collection reads judge
// freshness with a count check: the number of keys matching the kind's glob
// pattern must equal the authoritative row count. Any mismatch — a missed
// invalidation, a partially applied bulk write, entries silently expired by
// TTL — drops the whole namespace and rehydrates it from the source of
// truth. The protocol never trusts a partially populated cache as complete;
// it trades occasional full rehydrates for guaranteed eventual consistency.
//
// The count check is inherently racy against concurrent writes. That is
// accepted: the worst case is one spurious rehydrate, never incorrect data,
// because every value actually returned passed schema validation against a
// real prior write.
//
// # Two shapes
//
// [Cache] serves globally-partitioned kinds (categories, tags, plans, ...)
// where one namespace covers every row. [Partitioned] serves per-user kinds
// (cart lines, wishlist entries) where the count check, the key pattern and
// drop-and-rehydrate are all scoped to a single user's prefix, so one user's
// stale partition never triggers work against another's.
//
// Both are generic over the entity type and configured the same way: a key
// namespace, an optional TTL ([DefaultTTL] unless overridden, <= 0 for no
// expiry), a natural sort order, and an optional row normalizer (categories
// collapse their sub-category collection to a count before caching).
//
// # Fail-closed deserialization
//
// Values come back from the store as JSON and must both unmarshal and pass
// the entity's validation schema before a caller may observe them. A corrupt
// or malformed entry is treated as absent — logged, skipped, never an error.
// Store unavailability, by contrast, is always an error; there is no silent
// fallback to stale data.
//
// # Writes
//
// Add and AddBulk are unconditional upserts; AddBulk pipelines its writes
// for throughput, not atomicity. Update is delete-then-set rather than an
// in-place mutation, so a concurrent reader observes either the old complete
// entry or the new one. Remove is the invalidation signal every mutation
// path on the authoritative side must send; TTL expiry backstops the ones
// that get missed.
//
// # Stampedes
//
// Concurrent cache misses normally each run their own rehydrate; redundant
// but harmless. [WithCoalescing] opts a cache into singleflight request
// coalescing per namespace (per user partition for [Partitioned]) without
// changing any external behavior.
package cache
