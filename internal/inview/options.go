package inview

import (
	"math"
	"sync"
)

// Offset holds per-side margins an element must clear to count as visible.
type Offset struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformOffset returns an Offset with all four sides set to v.
func UniformOffset(v float64) Offset {
	return Offset{Top: v, Right: v, Bottom: v, Left: v}
}

// OffsetPatch updates only the sides that are set.
type OffsetPatch struct {
	Top    *float64
	Right  *float64
	Bottom *float64
	Left   *float64
}

// Options is the configuration shared by a Controller and all of its
// registries. Every accessor is safe for concurrent use.
type Options struct {
	mu        sync.RWMutex
	offset    Offset
	threshold float64
	predicate Predicate
	geometry  GeometryProvider
}

// NewOptions returns options with zero offsets, zero threshold and the
// InViewport predicate.
func NewOptions(geometry GeometryProvider) *Options {
	return &Options{
		predicate: InViewport,
		geometry:  geometry,
	}
}

// Offset returns a copy of the current offsets.
func (o *Options) Offset() Offset {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.offset
}

// Threshold returns the fraction of an element's size that must be in view.
func (o *Options) Threshold() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.threshold
}

// Predicate returns the active visibility test.
func (o *Options) Predicate() Predicate {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.predicate
}

// Geometry returns the geometry provider.
func (o *Options) Geometry() GeometryProvider {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.geometry
}

// Test evaluates the active predicate against el.
func (o *Options) Test(el Element) bool {
	return o.Predicate()(el, o)
}

// SetOffset updates the offsets and returns the result.
//
// A number of any Go numeric kind applies to all four sides. An Offset
// replaces all four sides. An OffsetPatch, *OffsetPatch or map[string]any
// (keys "top", "right", "bottom", "left") applies only its numeric entries.
// Anything else, including nil, leaves the offsets unchanged.
func (o *Options) SetOffset(v any) Offset {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n, ok := toFloat(v); ok {
		o.offset = UniformOffset(n)
		return o.offset
	}

	switch p := v.(type) {
	case Offset:
		if finite(p.Top) && finite(p.Right) && finite(p.Bottom) && finite(p.Left) {
			o.offset = p
		}
	case OffsetPatch:
		o.applyPatch(p)
	case *OffsetPatch:
		if p != nil {
			o.applyPatch(*p)
		}
	case map[string]any:
		setIfNumeric(&o.offset.Top, p["top"])
		setIfNumeric(&o.offset.Right, p["right"])
		setIfNumeric(&o.offset.Bottom, p["bottom"])
		setIfNumeric(&o.offset.Left, p["left"])
	}
	return o.offset
}

// applyPatch merges the set fields of p (lock held).
func (o *Options) applyPatch(p OffsetPatch) {
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&o.offset.Top, p.Top},
		{&o.offset.Right, p.Right},
		{&o.offset.Bottom, p.Bottom},
		{&o.offset.Left, p.Left},
	} {
		if f.src != nil && finite(*f.src) {
			*f.dst = *f.src
		}
	}
}

// SetThreshold sets the threshold if v is a number in [0, 1] and returns
// the threshold in effect afterwards.
func (o *Options) SetThreshold(v any) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n, ok := toFloat(v); ok && n >= 0 && n <= 1 {
		o.threshold = n
	}
	return o.threshold
}

// SetPredicate replaces the visibility test if v is a non-nil Predicate or
// func(Element, *Options) bool, and returns the predicate in effect afterwards.
func (o *Options) SetPredicate(v any) Predicate {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch fn := v.(type) {
	case Predicate:
		if fn != nil {
			o.predicate = fn
		}
	case func(Element, *Options) bool:
		if fn != nil {
			o.predicate = fn
		}
	}
	return o.predicate
}

func setIfNumeric(dst *float64, v any) {
	if n, ok := toFloat(v); ok {
		*dst = n
	}
}

// toFloat converts Go numeric kinds to a finite float64.
func toFloat(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int8:
		n = float64(x)
	case int16:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint:
		n = float64(x)
	case uint8:
		n = float64(x)
	case uint16:
		n = float64(x)
	case uint32:
		n = float64(x)
	case uint64:
		n = float64(x)
	default:
		return 0, false
	}
	return n, finite(n)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
