// Package revenue implements the append-only, day-bucketed revenue ledger
// for brand analytics.
//
// Every settled payment or refund is recorded exactly once with [Ledger.Track]
// as a JSON event pushed onto the list keyed by brand and calendar day.
// Appends have no read dependency, so arbitrary concurrent writers are safe
// by construction: only their relative order within a day is unspecified,
// which aggregation does not care about because it sums.
//
// Reads walk a sliding window of day buckets backward from today
// ([Ledger.ByRange]) and aggregate locally. [Ledger.Stats] compares a
// trailing window against the window immediately preceding it and reports
// integer-rounded percentage deltas. All monetary amounts are integers in
// minor currency units; nothing in this package does floating-point currency
// math.
package revenue

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/modacart/storecache/keys"
	"github.com/modacart/storecache/kv"
)

var validate = validator.New()

// Type discriminates ledger events.
type Type string

const (
	TypePayment Type = "payment"
	TypeRefund  Type = "refund"
)

// Event is one settled transaction. Amounts are minor currency units.
// Events are immutable once tracked; the ledger is append-only.
type Event struct {
	Amount    int64  `json:"amount" validate:"gte=0"`
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId,omitempty"`
	RefundID  string `json:"refundId,omitempty"`
	Type      Type   `json:"type" validate:"required,oneof=payment refund"`
	Success   bool   `json:"success"`
}

// DayAggregate is one calendar day's totals plus the raw events for further
// slicing. Revenue is payments minus refunds, successful events only.
type DayAggregate struct {
	Day      string  `json:"day"`
	Payments int64   `json:"payments"`
	Refunds  int64   `json:"refunds"`
	Revenue  int64   `json:"revenue"`
	Events   []Event `json:"events,omitempty"`
}

// Window is the aggregate over a run of consecutive days.
type Window struct {
	GrossRevenue int64 `json:"grossRevenue"`
	NetRevenue   int64 `json:"netRevenue"`
	// TotalOrders counts distinct order IDs among successful payment
	// events; refund-only activity does not create orders.
	TotalOrders int `json:"totalOrders"`
	// AverageOrderValue is 0 when there are no orders.
	AverageOrderValue int64 `json:"averageOrderValue"`
}

// Change holds integer percentage deltas between the current and previous
// windows. A delta is 0 when the previous value is 0: "no prior data" reads
// as "no change", not infinite growth.
type Change struct {
	GrossRevenue      int `json:"grossRevenue"`
	NetRevenue        int `json:"netRevenue"`
	TotalOrders       int `json:"totalOrders"`
	AverageOrderValue int `json:"averageOrderValue"`
}

// Stats is a period-over-period comparison of two adjacent windows of equal
// length.
type Stats struct {
	Current  Window `json:"current"`
	Previous Window `json:"previous"`
	Change   Change `json:"change"`
}

type config struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*config)

// WithClock overrides the time source used to bucket events and anchor
// range reads. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Ledger records and aggregates revenue events per brand per calendar day.
type Ledger struct {
	store kv.Store
	cfg   config
}

// New returns a ledger on the given store.
func New(store kv.Store, opts ...Option) *Ledger {
	cfg := config{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Ledger{store: store, cfg: cfg}
}

// Track appends one event to the brand's bucket for today (UTC). The event
// is validated before it is written; the ledger never stores a row it would
// later refuse to read.
func (l *Ledger) Track(ctx context.Context, brandID string, ev Event) error {
	if brandID == "" {
		return errors.New("revenue: brand id is required")
	}
	if err := validate.Struct(ev); err != nil {
		return errors.Wrap(err, "revenue: rejecting event")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "revenue: encoding event")
	}
	return l.store.RPush(ctx, keys.RevenueDay(brandID, l.cfg.now()), string(data))
}

// ByRange returns one aggregate per calendar day for the last days days,
// today included, most recent first. Every bucket is read in a single
// pipelined round trip; corrupt list entries are skipped fail-closed.
func (l *Ledger) ByRange(ctx context.Context, brandID string, days int) ([]DayAggregate, error) {
	if days <= 0 {
		return nil, errors.New("revenue: days must be positive")
	}
	today := l.cfg.now().UTC()
	pipe := l.store.Pipeline()
	reads := make([]*kv.ListResult, days)
	stamps := make([]time.Time, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		stamps[i] = day
		reads[i] = pipe.LRange(keys.RevenueDay(brandID, day), 0, -1)
	}
	if err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "revenue: reading %d day buckets for brand %s", days, brandID)
	}

	out := make([]DayAggregate, 0, days)
	for i, read := range reads {
		agg := DayAggregate{Day: stamps[i].Format(keys.DayLayout)}
		for _, raw := range read.Values() {
			var ev Event
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				l.cfg.logger.Warn("discarding unreadable revenue event",
					zap.String("brand", brandID), zap.String("day", agg.Day), zap.Error(err))
				continue
			}
			if err := validate.Struct(ev); err != nil {
				l.cfg.logger.Warn("discarding invalid revenue event",
					zap.String("brand", brandID), zap.String("day", agg.Day), zap.Error(err))
				continue
			}
			agg.Events = append(agg.Events, ev)
			if !ev.Success {
				continue
			}
			switch ev.Type {
			case TypePayment:
				agg.Payments += ev.Amount
			case TypeRefund:
				agg.Refunds += ev.Amount
			}
		}
		agg.Revenue = agg.Payments - agg.Refunds
		out = append(out, agg)
	}
	return out, nil
}

// Stats aggregates the last days days against the days immediately before
// them and reports both windows with percentage deltas.
func (l *Ledger) Stats(ctx context.Context, brandID string, days int) (Stats, error) {
	aggs, err := l.ByRange(ctx, brandID, days*2)
	if err != nil {
		return Stats{}, err
	}
	current := aggregate(aggs[:days])
	previous := aggregate(aggs[days:])
	return Stats{
		Current:  current,
		Previous: previous,
		Change: Change{
			GrossRevenue:      pctChange(current.GrossRevenue, previous.GrossRevenue),
			NetRevenue:        pctChange(current.NetRevenue, previous.NetRevenue),
			TotalOrders:       pctChange(int64(current.TotalOrders), int64(previous.TotalOrders)),
			AverageOrderValue: pctChange(current.AverageOrderValue, previous.AverageOrderValue),
		},
	}, nil
}

func aggregate(aggs []DayAggregate) Window {
	var w Window
	orders := make(map[string]struct{})
	for _, a := range aggs {
		w.GrossRevenue += a.Payments
		w.NetRevenue += a.Revenue
		for _, ev := range a.Events {
			if ev.Type == TypePayment && ev.Success {
				orders[ev.OrderID] = struct{}{}
			}
		}
	}
	w.TotalOrders = len(orders)
	if w.TotalOrders > 0 {
		w.AverageOrderValue = w.GrossRevenue / int64(w.TotalOrders)
	}
	return w
}

// pctChange is the display percentage, rounded to the nearest integer.
// Defined as 0 when previous is 0 to avoid a division by zero.
func pctChange(current, previous int64) int {
	if previous == 0 {
		return 0
	}
	return int(math.Round(float64(current-previous) / float64(previous) * 100))
}
