package revenue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modacart/storecache/kv"
)

func newTestLedger(t *testing.T, now func() time.Time) (*miniredis.Miniredis, *Ledger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, New(kv.NewRedis(client), WithClock(now))
}

func day(offset int) time.Time {
	return time.Date(2026, time.August, 28, 15, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestTrackAppendsToDayBucket(t *testing.T) {
	mr, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	require.NoError(t, l.Track(ctx, "brand7", Event{
		Amount: 1000, OrderID: "o1", PaymentID: "pay1", Type: TypePayment, Success: true,
	}))
	require.NoError(t, l.Track(ctx, "brand7", Event{
		Amount: 200, OrderID: "o1", RefundID: "ref1", Type: TypeRefund, Success: true,
	}))

	vals, err := mr.List("revenue:brand7::2026-08-28")
	require.NoError(t, err)
	assert.Len(t, vals, 2)
}

func TestTrackRejectsInvalidEvents(t *testing.T) {
	_, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	assert.Error(t, l.Track(ctx, "brand7", Event{Amount: 100, OrderID: "o1", Type: "chargeback"}))
	assert.Error(t, l.Track(ctx, "brand7", Event{Amount: 100, Type: TypePayment}))
	assert.Error(t, l.Track(ctx, "brand7", Event{Amount: -5, OrderID: "o1", Type: TypePayment}))
	assert.Error(t, l.Track(ctx, "", Event{Amount: 100, OrderID: "o1", Type: TypePayment}))
}

func TestByRangeAggregatesOneDay(t *testing.T) {
	_, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	events := []Event{
		{Amount: 1000, OrderID: "o1", PaymentID: "pay1", Type: TypePayment, Success: true},
		{Amount: 500, OrderID: "o1", PaymentID: "pay2", Type: TypePayment, Success: true},
		{Amount: 200, OrderID: "o1", RefundID: "ref1", Type: TypeRefund, Success: true},
		{Amount: 1000, OrderID: "o2", PaymentID: "pay3", Type: TypePayment, Success: true},
	}
	for _, ev := range events {
		require.NoError(t, l.Track(ctx, "b", ev))
	}

	aggs, err := l.ByRange(ctx, "b", 1)
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, "2026-08-28", aggs[0].Day)
	assert.Equal(t, int64(2500), aggs[0].Payments)
	assert.Equal(t, int64(200), aggs[0].Refunds)
	assert.Equal(t, int64(2300), aggs[0].Revenue)
	assert.Len(t, aggs[0].Events, 4)
}

func TestByRangeIgnoresFailedEvents(t *testing.T) {
	_, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	require.NoError(t, l.Track(ctx, "b", Event{Amount: 1000, OrderID: "o1", Type: TypePayment, Success: true}))
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 900, OrderID: "o2", Type: TypePayment, Success: false}))

	aggs, err := l.ByRange(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), aggs[0].Payments)
	// Failed events stay visible in the raw list for further slicing.
	assert.Len(t, aggs[0].Events, 2)
}

func TestByRangeWalksDaysMostRecentFirst(t *testing.T) {
	current := day(-2)
	_, l := newTestLedger(t, func() time.Time { return current })
	ctx := context.Background()

	require.NoError(t, l.Track(ctx, "b", Event{Amount: 100, OrderID: "o1", Type: TypePayment, Success: true}))
	current = day(-1)
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 200, OrderID: "o2", Type: TypePayment, Success: true}))
	current = day(0)
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 300, OrderID: "o3", Type: TypePayment, Success: true}))

	aggs, err := l.ByRange(ctx, "b", 3)
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, "2026-08-28", aggs[0].Day)
	assert.Equal(t, int64(300), aggs[0].Payments)
	assert.Equal(t, "2026-08-27", aggs[1].Day)
	assert.Equal(t, int64(200), aggs[1].Payments)
	assert.Equal(t, "2026-08-26", aggs[2].Day)
	assert.Equal(t, int64(100), aggs[2].Payments)
}

func TestByRangeSkipsCorruptEntries(t *testing.T) {
	mr, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	require.NoError(t, l.Track(ctx, "b", Event{Amount: 100, OrderID: "o1", Type: TypePayment, Success: true}))
	mr.Lpush("revenue:b::2026-08-28", "{broken")

	aggs, err := l.ByRange(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), aggs[0].Payments)
	assert.Len(t, aggs[0].Events, 1)
}

func TestStatsSingleDayWindow(t *testing.T) {
	_, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	events := []Event{
		{Amount: 1000, OrderID: "o1", PaymentID: "pay1", Type: TypePayment, Success: true},
		{Amount: 500, OrderID: "o1", PaymentID: "pay2", Type: TypePayment, Success: true},
		{Amount: 200, OrderID: "o1", RefundID: "ref1", Type: TypeRefund, Success: true},
		{Amount: 1000, OrderID: "o2", PaymentID: "pay3", Type: TypePayment, Success: true},
	}
	for _, ev := range events {
		require.NoError(t, l.Track(ctx, "b", ev))
	}

	stats, err := l.Stats(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), stats.Current.GrossRevenue)
	assert.Equal(t, int64(2300), stats.Current.NetRevenue)
	assert.Equal(t, 2, stats.Current.TotalOrders)
	assert.Equal(t, int64(1250), stats.Current.AverageOrderValue)

	// No prior-day data: every delta is defined as 0, not infinite growth.
	assert.Equal(t, Window{}, stats.Previous)
	assert.Equal(t, 0, stats.Change.GrossRevenue)
	assert.Equal(t, 0, stats.Change.TotalOrders)
}

func TestStatsPeriodOverPeriod(t *testing.T) {
	current := day(-1)
	_, l := newTestLedger(t, func() time.Time { return current })
	ctx := context.Background()

	// Previous window (yesterday): one order of 1000.
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 1000, OrderID: "o1", Type: TypePayment, Success: true}))

	// Current window (today): two orders totalling 2500.
	current = day(0)
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 1500, OrderID: "o2", Type: TypePayment, Success: true}))
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 1000, OrderID: "o3", Type: TypePayment, Success: true}))

	stats, err := l.Stats(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), stats.Current.GrossRevenue)
	assert.Equal(t, int64(1000), stats.Previous.GrossRevenue)
	assert.Equal(t, 150, stats.Change.GrossRevenue)
	assert.Equal(t, 100, stats.Change.TotalOrders)
	// AOV moved from 1000 to 1250: +25%.
	assert.Equal(t, 25, stats.Change.AverageOrderValue)
}

func TestStatsNegativeChangeRounds(t *testing.T) {
	current := day(-1)
	_, l := newTestLedger(t, func() time.Time { return current })
	ctx := context.Background()

	require.NoError(t, l.Track(ctx, "b", Event{Amount: 3000, OrderID: "o1", Type: TypePayment, Success: true}))
	current = day(0)
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 2000, OrderID: "o2", Type: TypePayment, Success: true}))

	stats, err := l.Stats(ctx, "b", 1)
	require.NoError(t, err)
	// (2000-3000)/3000 = -33.33..., rounds to -33.
	assert.Equal(t, -33, stats.Change.GrossRevenue)
}

func TestStatsZeroOrdersAverage(t *testing.T) {
	_, l := newTestLedger(t, func() time.Time { return day(0) })
	ctx := context.Background()

	// Refund-only day: no orders, and average order value must be exactly
	// 0 rather than a division error.
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 200, OrderID: "o1", RefundID: "r1", Type: TypeRefund, Success: true}))

	stats, err := l.Stats(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Current.TotalOrders)
	assert.Equal(t, int64(0), stats.Current.AverageOrderValue)
	assert.Equal(t, int64(-200), stats.Current.NetRevenue)
}

func TestStatsDistinctOrdersAcrossDays(t *testing.T) {
	current := day(-1)
	_, l := newTestLedger(t, func() time.Time { return current })
	ctx := context.Background()

	// The same order paid in two installments across two days of the same
	// window counts once.
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 500, OrderID: "o1", Type: TypePayment, Success: true}))
	current = day(0)
	require.NoError(t, l.Track(ctx, "b", Event{Amount: 500, OrderID: "o1", Type: TypePayment, Success: true}))

	stats, err := l.Stats(ctx, "b", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Current.TotalOrders)
	assert.Equal(t, int64(1000), stats.Current.GrossRevenue)
	assert.Equal(t, int64(1000), stats.Current.AverageOrderValue)
}

func TestByRangeRejectsNonPositiveDays(t *testing.T) {
	_, l := newTestLedger(t, func() time.Time { return day(0) })
	_, err := l.ByRange(context.Background(), "b", 0)
	assert.Error(t, err)
}
