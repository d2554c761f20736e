// Package export runs one order export: it walks the order list, optionally enriches each
// order with its detail page, filters and accumulates orders, and renders the CSV.
package export

import (
	"context"
	"errors"
	"fmt"
	"orderexport/internal/assert"
	"orderexport/internal/csvexport"
	"orderexport/internal/extract"
	"orderexport/internal/metrics"
	"orderexport/internal/order"
	"orderexport/internal/telemetry"
	"orderexport/lib/chrono"
	"orderexport/lib/timezone"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	report_run            = "orchestrator.run"
	report_collect_page   = "orchestrator.collect-page"
	report_enrich_order   = "orchestrator.enrich-order"
	report_order_count    = "orchestrator.order-count"
	report_skipped_orders = "orchestrator.skipped-orders"
)

var (
	ErrAlreadyRunning = errors.New("an export is already running")
	ErrCancelled      = errors.New("export cancelled")
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	// DetailDelay follows every per-order network fetch.
	DetailDelay time.Duration
	// PageDelay follows every page transition.
	PageDelay      time.Duration
	FilenamePrefix string
	// Location is used to read order dates, time.Local when nil.
	Location *time.Location
	// OnProgress, when set, is called synchronously from the run loop.
	OnProgress func(Progress)
	// Metrics may be nil.
	Metrics *metrics.Registry
}

type Result struct {
	RunId      string
	Orders     []order.Order
	OrderCount int
	ItemCount  int
	Pages      int
	CSV        string
	Filename   string
	Duration   time.Duration
}

// Orchestrator runs a single export. It is not reusable, create one per run.
type Orchestrator struct {
	RunId string

	source Source
	clock  chrono.API
	tel    telemetry.API
	cfg    Config

	state   atomic.Int32
	stopped atomic.Bool

	// only touched by the run loop
	orders []order.Order
	seen   map[string]struct{}

	progressMu sync.Mutex
	lastPct    int
}

func New(source Source, clock chrono.API, tel telemetry.API, cfg Config) *Orchestrator {
	assert.NotNil(source)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = "walmart"
	}

	runId := uuid.NewString()
	return &Orchestrator{
		RunId:  runId,
		source: source,
		clock:  clock,
		tel:    telemetry.NewScopedAPI("export", tel),
		cfg:    cfg,
		seen:   map[string]struct{}{},
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Stop asks the run to stop at its next checkpoint: before each order and before each
// page transition. In-flight fetches are not interrupted.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
}

func (o *Orchestrator) Stopped() bool {
	return o.stopped.Load()
}

func (o *Orchestrator) emit(p Progress) {
	if o.cfg.OnProgress == nil {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if p.Percent < o.lastPct {
		p.Percent = o.lastPct
	}
	o.lastPct = p.Percent
	o.cfg.OnProgress(p)
}

// pagePercent spreads progress over pages whose number is not known up front.
func pagePercent(allPages bool, page, index, count int) int {
	if count <= 0 {
		count = 1
	}
	if !allPages {
		return 5 + 90*(index+1)/count
	}
	return min(95, 5+(page-1)*10+10*(index+1)/count)
}

// pending is either an order collected from the list page or a link to one that still
// has to be fetched.
type pending struct {
	order *order.Order
	ref   extract.OrderRef
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return o.clock.Sleep(ctx, d)
}

func (o *Orchestrator) countDetail(result string) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.DetailFetches.WithLabelValues(result).Inc()
	}
}

// materialize turns a pending entry into an order, fetching and enriching it as needed.
func (o *Orchestrator) materialize(ctx context.Context, p pending, opts Options) (order.Order, error) {
	var current order.Order
	if p.order != nil {
		current = *p.order
	} else {
		current = o.source.FetchOrderDetail(ctx, p.ref.Id, p.ref.IsStore)
		if current.Status == order.StatusErrorFetching {
			o.countDetail("error")
		} else {
			o.countDetail("ok")
		}
		err := o.sleep(ctx, o.cfg.DetailDelay)
		if err != nil {
			return current, err
		}
	}

	if opts.FetchItemPrices && current.Status != order.StatusErrorFetching {
		detailed, ok := o.source.FetchDetailedItems(ctx, current.OrderId, current.IsStore())
		if ok {
			detailed.ApplyTo(&current)
			o.countDetail("enriched")
		} else {
			o.tel.ReportWarning(report_enrich_order, "keeping list page data", current.OrderId)
			o.countDetail("unavailable")
		}
		err := o.sleep(ctx, o.cfg.DetailDelay)
		if err != nil {
			return current, err
		}
	}
	return current, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Run executes the export. It returns ErrCancelled if Stop was called (or ctx was
// cancelled) before the run finished and ErrAlreadyRunning if the orchestrator was
// already used. Any other error fails the run and discards every collected order.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (result *Result, err error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyRunning
	}
	if opts.OrderTypeFilter == "" {
		opts.OrderTypeFilter = FilterAll
	}

	start := o.clock.Now()
	o.tel.ReportDebug(report_run, o.RunId, opts)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panicked: %v", r)
		}
		final := StateCompleted
		switch {
		case err == nil:
		case isCancellation(err):
			final = StateCancelled
			err = ErrCancelled
		default:
			final = StateFailed
			o.tel.ReportBroken(report_run, err, o.RunId)
		}
		if err != nil {
			result = nil
			o.orders = nil
		}
		o.state.Store(int32(final))
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.Runs.WithLabelValues(final.String()).Inc()
			o.cfg.Metrics.RunSeconds.Observe(o.clock.Now().Sub(start).Seconds())
		}
	}()

	pages, err := o.loop(ctx, opts, start)
	if err != nil {
		return nil, err
	}

	itemCount := 0
	for _, ord := range o.orders {
		itemCount += ord.ItemCount()
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.Orders.WithLabelValues(string(ord.OrderType)).Inc()
		}
	}
	o.tel.ReportCount(report_order_count, int64(len(o.orders)))

	result = &Result{
		RunId:      o.RunId,
		Orders:     o.orders,
		OrderCount: len(o.orders),
		ItemCount:  itemCount,
		Pages:      pages,
		CSV:        csvexport.Serialize(o.orders, opts.IncludeItems),
		Filename:   csvexport.Filename(o.cfg.FilenamePrefix, start),
		Duration:   o.clock.Now().Sub(start),
	}
	o.emit(Progress{
		Percent: 100,
		Label:   "Export complete",
		Detail:  fmt.Sprintf("%d orders, %d items", result.OrderCount, result.ItemCount),
	})
	return result, nil
}

func (o *Orchestrator) pendingOrders(page int, nav Navigator) []pending {
	doc, pageUrl := nav.Current()
	collected := extract.CollectVisibleOrders(doc)
	if len(collected) > 0 {
		out := make([]pending, len(collected))
		for i := range collected {
			out[i] = pending{order: &collected[i]}
		}
		return out
	}

	// some list layouts have no usable card markup, fetch every linked order instead
	refs := extract.OrderLinks(doc, pageUrl)
	o.tel.ReportWarning(report_collect_page, "no order cards, falling back to order links", page, len(refs))
	out := make([]pending, len(refs))
	for i, ref := range refs {
		out[i] = pending{ref: ref}
	}
	return out
}

func (o *Orchestrator) loop(ctx context.Context, opts Options, start time.Time) (int, error) {
	var cutoff time.Time
	if !opts.DateRange.All() {
		// whole days, an order placed on the boundary day is kept
		cutoff = timezone.StartOfDay(start.In(o.cfg.Location)).AddDate(0, 0, -opts.DateRange.Days)
	}

	o.emit(Progress{Percent: 0, Label: "Starting export"})

	nav, err := o.source.OpenOrderList(ctx)
	if err != nil {
		return 0, fmt.Errorf("open order list: %w", err)
	}

	page := 1
	skipped := 0
	for {
		if o.Stopped() {
			return page, ErrCancelled
		}

		entries := o.pendingOrders(page, nav)
		reachedCutoff := false

		for i, entry := range entries {
			if o.Stopped() {
				return page, ErrCancelled
			}

			current, err := o.materialize(ctx, entry, opts)
			if err != nil {
				return page, err
			}

			keep := true
			if !cutoff.IsZero() {
				// unparseable and unknown dates are kept
				placed, ok := extract.ParseOrderDate(current.OrderDate, o.cfg.Location)
				if ok && placed.Before(cutoff) {
					keep = false
					reachedCutoff = true
				}
			}
			if keep && !opts.OrderTypeFilter.Matches(current) {
				keep = false
			}
			if keep {
				if _, dup := o.seen[current.OrderId]; dup {
					keep = false
				}
			}
			if keep {
				o.seen[current.OrderId] = struct{}{}
				o.orders = append(o.orders, current)
			} else {
				skipped++
			}

			o.emit(Progress{
				Percent: pagePercent(opts.AllPages, page, i, len(entries)),
				Label:   fmt.Sprintf("Page %d", page),
				Detail:  fmt.Sprintf("Order %d of %d (%s)", i+1, len(entries), current.OrderNumber),
			})
		}

		if o.cfg.Metrics != nil {
			o.cfg.Metrics.Pages.Inc()
		}
		if !opts.AllPages || reachedCutoff {
			break
		}
		if o.Stopped() {
			return page, ErrCancelled
		}

		advanced, err := nav.NextPage(ctx)
		if err != nil {
			return page, fmt.Errorf("next page: %w", err)
		}
		if !advanced {
			break
		}
		page++
		err = o.sleep(ctx, o.cfg.PageDelay)
		if err != nil {
			return page, err
		}
	}

	if skipped > 0 {
		o.tel.ReportDebug(report_skipped_orders, skipped)
	}
	return page, nil
}
