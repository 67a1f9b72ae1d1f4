package inview

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives the element an event was emitted for. A non-nil error
// aborts the check pass that emitted the event.
type Handler func(el Element) error

// Notify adapts a handler that cannot fail.
func Notify(fn func(el Element)) Handler {
	return func(el Element) error {
		fn(el)
		return nil
	}
}

// Registry maintains a list of elements, the subset that currently passes
// the predicate, and fires events when elements move in or out.
type Registry struct {
	key     any
	options *Options
	log     zerolog.Logger

	mu       sync.Mutex
	elements []Element
	current  []Element
	handlers map[Event][]Handler
	singles  map[Event][]Handler
}

// NewRegistry creates a registry tracking elements under the shared options.
func NewRegistry(elements []Element, options *Options) *Registry {
	return newRegistry(nil, elements, options, zerolog.Nop())
}

func newRegistry(key any, elements []Element, options *Options, log zerolog.Logger) *Registry {
	return &Registry{
		key:      key,
		options:  options,
		log:      log,
		elements: elements,
		handlers: make(map[Event][]Handler, 2),
		singles:  make(map[Event][]Handler, 2),
	}
}

// Key returns the query key the registry was created for.
func (r *Registry) Key() any {
	return r.key
}

// Elements returns a copy of the tracked elements.
func (r *Registry) Elements() []Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.elements)
}

// Current returns a copy of the elements that passed the last check,
// in the order they entered.
func (r *Registry) Current() []Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.current)
}

// Contains reports whether el passed the last check.
func (r *Registry) Contains(el Element) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.current, el)
}

// Len returns the number of tracked elements.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.elements)
}

// setElements replaces the tracked elements. Membership is left alone until
// the next check.
func (r *Registry) setElements(elements []Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = elements
}

// Check evaluates every tracked element and emits enter/exit for each one
// whose membership changed. Elements are visited in tracked order as of the
// start of the call; an element listed more than once is evaluated at its
// first position only. Handlers may re-resolve the registry's query without
// disturbing the pass in progress. The first handler error stops the pass.
func (r *Registry) Check() error {
	r.mu.Lock()
	elements := unique(r.elements)
	// Drop members that are no longer tracked so current stays a subset.
	r.current = slices.DeleteFunc(r.current, func(el Element) bool {
		return !slices.Contains(elements, el)
	})
	r.mu.Unlock()

	for _, el := range elements {
		passes := r.options.Test(el)

		r.mu.Lock()
		index := slices.Index(r.current, el)
		var ev Event
		switch {
		case passes && index < 0:
			r.current = append(r.current, el)
			ev = EventEnter
		case !passes && index >= 0:
			r.current = slices.Delete(r.current, index, index+1)
			ev = EventExit
		}
		r.mu.Unlock()

		if ev == "" {
			continue
		}
		r.log.Trace().Str("event", string(ev)).Str("element", el.ElementID()).Msg("Membership changed")
		if err := r.Emit(ev, el); err != nil {
			return err
		}
	}
	return nil
}

func unique(elements []Element) []Element {
	seen := make(map[Element]struct{}, len(elements))
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		if _, ok := seen[el]; ok {
			continue
		}
		seen[el] = struct{}{}
		out = append(out, el)
	}
	return out
}

// On registers a handler fired for every occurrence of event.
// Unknown events are ignored.
func (r *Registry) On(event Event, h Handler) *Registry {
	if !event.Valid() || h == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], h)
	return r
}

// Once registers a handler fired for the next occurrence of event only.
// Unknown events are ignored.
func (r *Registry) Once(event Event, h Handler) *Registry {
	if !event.Valid() || h == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singles[event] = append(r.singles[event], h)
	return r
}

// Emit fires event for el: pending one-shot handlers first, oldest first,
// then persistent handlers, newest first.
func (r *Registry) Emit(event Event, el Element) error {
	for {
		r.mu.Lock()
		queue := r.singles[event]
		if len(queue) == 0 {
			r.mu.Unlock()
			break
		}
		h := queue[0]
		r.singles[event] = queue[1:]
		r.mu.Unlock()

		if err := h(el); err != nil {
			return &HandlerError{Event: event, ElementID: el.ElementID(), Err: err}
		}
	}

	r.mu.Lock()
	handlers := slices.Clone(r.handlers[event])
	r.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i](el); err != nil {
			return &HandlerError{Event: event, ElementID: el.ElementID(), Err: err}
		}
	}
	return nil
}
