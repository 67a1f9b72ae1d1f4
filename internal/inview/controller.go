package inview

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/inview/internal/clock"
	"github.com/dshills/inview/internal/throttle"
)

// DefaultInterval is the throttle window between check passes.
const DefaultInterval = 100 * time.Millisecond

// Controller owns the registries, the shared options and the throttled
// check loop driven by external signals.
type Controller struct {
	source    ElementSource
	signals   SignalSource
	mutations MutationSource
	clock     clock.Clock
	interval  time.Duration
	log       zerolog.Logger
	onError   func(error)
	inert     bool

	options *Options

	mu        sync.Mutex
	selectors map[any]*Registry
	history   []any

	check   *throttle.Throttled[Signal]
	running atomic.Bool
	pending atomic.Bool
	passes  atomic.Int64

	lifeMu  sync.Mutex
	started bool
	cancels []func()
}

// Option configures a Controller.
type Option func(*config)

type config struct {
	source    ElementSource
	geometry  GeometryProvider
	signals   SignalSource
	mutations MutationSource
	clock     clock.Clock
	interval  time.Duration
	log       zerolog.Logger
	onError   func(error)
}

// WithSource sets the element source used by Resolve for query strings.
func WithSource(s ElementSource) Option {
	return func(c *config) { c.source = s }
}

// WithGeometry sets the geometry provider read by the default predicate.
func WithGeometry(g GeometryProvider) Option {
	return func(c *config) { c.geometry = g }
}

// WithSignals sets the signal source subscribed to by Start.
func WithSignals(s SignalSource) Option {
	return func(c *config) { c.signals = s }
}

// WithMutations sets a mutation source observed by Start. It takes
// precedence over a signal source that also implements MutationSource.
func WithMutations(m MutationSource) Option {
	return func(c *config) { c.mutations = m }
}

// WithClock sets the clock driving the throttle.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithInterval sets the throttle window. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithErrorHandler sets the function receiving errors from throttled passes.
// By default they are logged.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) { c.onError = fn }
}

// New creates a Controller. Without both an element source and a geometry
// provider the controller is inert: it resolves nothing and never checks.
func New(opts ...Option) *Controller {
	cfg := config{
		clock:    clock.Real{},
		interval: DefaultInterval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Controller{
		source:    cfg.source,
		signals:   cfg.signals,
		mutations: cfg.mutations,
		clock:     cfg.clock,
		interval:  cfg.interval,
		log:       cfg.log,
		onError:   cfg.onError,
		inert:     cfg.source == nil || cfg.geometry == nil,
		options:   NewOptions(cfg.geometry),
		selectors: make(map[any]*Registry),
	}
	if c.onError == nil {
		c.onError = func(err error) {
			c.log.Error().Err(err).Msg("Check pass failed")
		}
	}
	c.options.SetOffset(0)
	c.check = throttle.New(c.tick, c.interval, throttle.DefaultOptions(), c.clock)

	if c.inert {
		c.log.Debug().Msg("No viewport environment, controller is inert")
	}
	return c
}

// Inert reports whether the controller lacks a viewport environment.
func (c *Controller) Inert() bool {
	return c.inert
}

// Options returns the options shared with every registry.
func (c *Controller) Options() *Options {
	return c.options
}

// Resolve returns the registry for query, creating it on first use.
//
// query may be a selector string (resolved against the element source on
// every call), a single Element, or a []Element collection. For a known
// query the registry's elements are replaced in place. Any other value,
// or any query on an inert controller, returns nil.
func (c *Controller) Resolve(query any) *Registry {
	if c.inert {
		return nil
	}

	var (
		key      any
		elements []Element
	)
	switch q := query.(type) {
	case string:
		key = q
		elements = slices.DeleteFunc(slices.Clone(c.source.Query(q)), func(el Element) bool { return !identifiable(el) })
	case Element:
		if !identifiable(q) {
			c.log.Debug().Type("query", query).Msg("Rejected element that cannot be compared")
			return nil
		}
		key = q
		elements = []Element{q}
	case []Element:
		if !allIdentifiable(q) {
			c.log.Debug().Type("query", query).Msg("Rejected collection with elements that cannot be compared")
			return nil
		}
		key = keyForCollection(q)
		elements = slices.Clone(q)
	default:
		c.log.Debug().Type("query", query).Msg("Rejected query of unsupported type")
		return nil
	}

	c.mu.Lock()
	if r, ok := c.selectors[key]; ok {
		c.mu.Unlock()
		r.setElements(elements)
		return r
	}
	r := newRegistry(key, elements, c.options, c.log.With().Interface("query", key).Logger())
	c.selectors[key] = r
	c.history = append(c.history, key)
	c.mu.Unlock()

	c.log.Debug().Interface("query", key).Int("elements", len(elements)).Msg("Registry created")
	return r
}

// Lookup returns the registry for a previously resolved query without
// re-resolving it.
func (c *Controller) Lookup(query any) (*Registry, bool) {
	key, ok := keyFor(query)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.selectors[key]
	return r, ok
}

// Discard forgets the registry for query. It returns false if there was none.
func (c *Controller) Discard(query any) bool {
	key, ok := keyFor(query)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.selectors[key]; !ok {
		return false
	}
	delete(c.selectors, key)
	c.history = slices.DeleteFunc(c.history, func(k any) bool { return k == key })
	return true
}

// Queries returns the registered query keys in registration order.
func (c *Controller) Queries() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

func keyFor(query any) (any, bool) {
	switch q := query.(type) {
	case string:
		return q, true
	case Element:
		return q, identifiable(q)
	case []Element:
		if !allIdentifiable(q) {
			return nil, false
		}
		return keyForCollection(q), true
	default:
		return nil, false
	}
}

// Offset returns the current offsets.
func (c *Controller) Offset() Offset {
	return c.options.Offset()
}

// SetOffset updates the offsets; see Options.SetOffset. A nil value only
// reads them.
func (c *Controller) SetOffset(v any) Offset {
	before := c.options.Offset()
	after := c.options.SetOffset(v)
	if v != nil && before == after {
		c.log.Debug().Type("value", v).Msg("Offset unchanged")
	}
	return after
}

// Threshold returns the current threshold.
func (c *Controller) Threshold() float64 {
	return c.options.Threshold()
}

// SetThreshold sets the threshold if v is a number in [0, 1]; otherwise the
// previous value is kept. The value in effect is returned.
func (c *Controller) SetThreshold(v any) float64 {
	n, ok := toFloat(v)
	if !ok || n < 0 || n > 1 {
		c.log.Debug().Interface("value", v).Msg("Rejected threshold")
	}
	return c.options.SetThreshold(v)
}

// SetPredicate replaces the visibility test if fn is a predicate function;
// otherwise the previous one is kept. The predicate in effect is returned.
func (c *Controller) SetPredicate(fn any) Predicate {
	return c.options.SetPredicate(fn)
}

// Test evaluates the current predicate against el, bypassing all registries.
func (c *Controller) Test(el Element) bool {
	if c.inert || el == nil {
		return false
	}
	return c.options.Test(el)
}

// CheckAll runs Check on every registry in registration order and stops at
// the first error. Registries added by handlers during the pass are checked
// on the next pass.
func (c *Controller) CheckAll() error {
	if c.inert {
		return nil
	}

	c.mu.Lock()
	regs := make([]*Registry, 0, len(c.history))
	for _, key := range c.history {
		regs = append(regs, c.selectors[key])
	}
	c.mu.Unlock()

	for _, r := range regs {
		if err := r.Check(); err != nil {
			return err
		}
	}
	return nil
}

// Notify reports an external signal. Bursts are coalesced by the throttle
// into one immediate pass and at most one trailing pass per interval.
func (c *Controller) Notify(sig Signal) {
	if c.inert {
		return
	}
	c.check.Call(sig)
}

// Passes returns how many check passes have run through Notify.
func (c *Controller) Passes() int64 {
	return c.passes.Load()
}

// tick runs a pass for sig. Passes never overlap: a tick arriving while a
// pass is running, from a timer goroutine or a re-entrant handler, is folded
// into one follow-up pass run by the goroutine already in the loop.
func (c *Controller) tick(sig Signal) {
	c.pending.Store(true)
	for c.pending.Load() {
		if !c.running.CompareAndSwap(false, true) {
			return
		}
		for c.pending.Swap(false) {
			c.runPass(sig)
		}
		c.running.Store(false)
	}
}

func (c *Controller) runPass(sig Signal) {
	start := c.clock.Now()
	err := c.CheckAll()
	c.passes.Add(1)

	c.log.Trace().
		Str("signal", sig.String()).
		Dur("elapsed", c.clock.Now().Sub(start)).
		Msg("Check pass")

	if err != nil {
		c.onError(err)
	}
}

// Start subscribes the throttled check to the signal source and, when the
// source supports it, to structural mutations.
func (c *Controller) Start() error {
	if c.inert {
		return ErrInert
	}

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	ms := c.mutations
	if c.signals != nil {
		c.cancels = append(c.cancels, c.signals.Subscribe(c.Notify))
		if m, ok := c.signals.(MutationSource); ok && ms == nil {
			ms = m
		}
	}
	if ms != nil {
		cancel, err := ms.ObserveMutations(func() { c.Notify(SignalMutation) })
		if err != nil {
			c.log.Warn().Err(err).Msg("Mutation observation unavailable")
		} else {
			c.cancels = append(c.cancels, cancel)
		}
	}

	c.started = true
	c.log.Debug().Dur("interval", c.interval).Msg("Controller started")
	return nil
}

// Stop unsubscribes from all signals and drops any pending trailing pass.
func (c *Controller) Stop() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if !c.started {
		return ErrNotStarted
	}
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	c.check.Cancel()
	c.started = false
	return nil
}
