package inview

import (
	"reflect"
	"strings"
)

// Element is an opaque handle to a tracked visual element.
// Handles are compared by identity, so implementations must be comparable;
// pointer types are the norm.
type Element interface {
	ElementID() string
}

// Collect converts a typed slice of handles into a collection usable with Resolve.
func Collect[E Element](items []E) []Element {
	out := make([]Element, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// Rect is an element's bounding box relative to the viewport origin.
type Rect struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
	Width  float64
	Height float64
}

// RectFromXYWH builds a Rect from its top-left corner and size.
func RectFromXYWH(x, y, width, height float64) Rect {
	return Rect{
		Top:    y,
		Right:  x + width,
		Bottom: y + height,
		Left:   x,
		Width:  width,
		Height: height,
	}
}

// Translate returns the rect moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.Top += dy
	r.Bottom += dy
	r.Left += dx
	r.Right += dx
	return r
}

// Size is the viewport's inner dimensions.
type Size struct {
	Width  float64
	Height float64
}

// Signal identifies an external occurrence that may have changed visibility.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalScroll
	SignalResize
	SignalLoad
	SignalMutation
	SignalManual
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalScroll:
		return "scroll"
	case SignalResize:
		return "resize"
	case SignalLoad:
		return "load"
	case SignalMutation:
		return "mutation"
	case SignalManual:
		return "manual"
	default:
		return "none"
	}
}

// Event is a membership transition.
type Event string

const (
	// EventEnter fires when an element starts passing the predicate.
	EventEnter Event = "enter"
	// EventExit fires when an element stops passing the predicate.
	EventExit Event = "exit"
)

// Valid reports whether e is one of the two known events.
func (e Event) Valid() bool {
	return e == EventEnter || e == EventExit
}

// identifiable reports whether el can be compared with == and used as a map
// key. Registries track membership by identity, so other elements are
// rejected.
func identifiable(el Element) bool {
	return el != nil && reflect.TypeOf(el).Comparable()
}

func allIdentifiable(elements []Element) bool {
	for _, el := range elements {
		if !identifiable(el) {
			return false
		}
	}
	return true
}

// collectionKey identifies a registry created from an explicit collection.
type collectionKey string

func keyForCollection(elements []Element) collectionKey {
	ids := make([]string, len(elements))
	for i, el := range elements {
		ids[i] = el.ElementID()
	}
	return collectionKey("[" + strings.Join(ids, ",") + "]")
}
