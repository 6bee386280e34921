// Package keys builds the colon-delimited key namespace shared by every
// cache in this module. Keys are deterministic pure functions of an entity
// kind and its identifier segments, so any component (and any operator
// poking at the store directly) can reconstruct them.
//
// Revenue day-bucket keys embed a zero-padded ISO date ([DayLayout]) so that
// lexicographic key order is also chronological order. That property is
// relied on when walking day buckets and is covered by tests; do not change
// the layout to anything that breaks it.
package keys

import (
	"strings"
	"time"
)

// Separator delimits key segments.
const Separator = ":"

// Wildcard is the glob segment used for pattern enumeration and
// partial-specificity lookups.
const Wildcard = "*"

// DayLayout is the calendar-day format for revenue bucket keys.
// Zero-padded so lexicographic order matches chronological order.
const DayLayout = "2006-01-02"

// revenueKind is the namespace of the revenue ledger. The brand segment is
// followed by an empty segment, giving revenue:<brandID>::<date>.
const revenueKind = "revenue"

// Join concatenates segments with the key separator.
func Join(parts ...string) string {
	return strings.Join(parts, Separator)
}

// Entity returns the key for a single globally-partitioned entity,
// e.g. category:42.
func Entity(kind, id string) string {
	return kind + Separator + id
}

// Pattern returns the glob matching every key of a kind, e.g. category:*.
func Pattern(kind string) string {
	return kind + Separator + Wildcard
}

// User returns the key for a per-user partitioned entity. Identity segments
// beyond the user follow in order, e.g. cart:u1:p9:M:ff0000. Segments may be
// [Wildcard] to produce a lookup pattern instead of an exact key.
func User(kind, userID string, segments ...string) string {
	parts := make([]string, 0, 2+len(segments))
	parts = append(parts, kind, userID)
	parts = append(parts, segments...)
	return strings.Join(parts, Separator)
}

// UserPattern returns the glob matching every key of a kind belonging to one
// user, e.g. cart:u1:*. Staleness checks scoped with this pattern never cross
// user boundaries.
func UserPattern(kind, userID string) string {
	return User(kind, userID, Wildcard)
}

// RevenueDay returns the day-bucket list key for a brand's revenue events,
// e.g. revenue:brand7::2026-08-28. The day is taken in UTC.
func RevenueDay(brandID string, day time.Time) string {
	return revenueKind + Separator + brandID + Separator + Separator + day.UTC().Format(DayLayout)
}

// RevenuePattern returns the glob matching every day bucket for a brand.
func RevenuePattern(brandID string) string {
	return revenueKind + Separator + brandID + Separator + Separator + Wildcard
}
