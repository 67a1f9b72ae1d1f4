package inview

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func float(v float64) *float64 { return &v }

func TestOptions_SetOffsetUniformThenPartial(t *testing.T) {
	o := NewOptions(nil)

	assert.Equal(t, UniformOffset(10), o.SetOffset(10))
	assert.Equal(t, Offset{Top: 5, Right: 10, Bottom: 10, Left: 10}, o.SetOffset(OffsetPatch{Top: float(5)}))
	assert.Equal(t, Offset{Top: 5, Right: 10, Bottom: 10, Left: 10}, o.Offset())
}

func TestOptions_SetOffsetNumericKinds(t *testing.T) {
	o := NewOptions(nil)

	for _, v := range []any{int(3), int8(3), int16(3), int32(3), int64(3), uint(3), uint8(3), uint16(3), uint32(3), uint64(3), float32(3), float64(3)} {
		o.SetOffset(0)
		assert.Equal(t, UniformOffset(3), o.SetOffset(v), "%T", v)
	}
}

func TestOptions_SetOffsetMapIgnoresNonNumeric(t *testing.T) {
	o := NewOptions(nil)
	o.SetOffset(10)

	got := o.SetOffset(map[string]any{
		"top":    "20",
		"right":  int64(7),
		"bottom": nil,
		"left":   math.NaN(),
		"other":  99,
	})

	assert.Equal(t, Offset{Top: 10, Right: 7, Bottom: 10, Left: 10}, got)
}

func TestOptions_SetOffsetRejected(t *testing.T) {
	o := NewOptions(nil)
	o.SetOffset(4)

	for _, v := range []any{nil, "12", true, []int{1}, math.Inf(1), (*OffsetPatch)(nil)} {
		assert.Equal(t, UniformOffset(4), o.SetOffset(v), "%#v", v)
	}
}

func TestOptions_SetOffsetStruct(t *testing.T) {
	o := NewOptions(nil)
	want := Offset{Top: 1, Right: 2, Bottom: 3, Left: 4}

	assert.Equal(t, want, o.SetOffset(want))
	assert.Equal(t, want, o.SetOffset(Offset{Top: math.NaN()}), "non-finite struct is rejected whole")
	assert.Equal(t, Offset{Top: 1, Right: 2, Bottom: 3, Left: 9}, o.SetOffset(&OffsetPatch{Left: float(9)}))
}

func TestOptions_SetThreshold(t *testing.T) {
	o := NewOptions(nil)

	assert.Equal(t, 0.0, o.Threshold())
	assert.Equal(t, 0.5, o.SetThreshold(0.5))
	assert.Equal(t, 1.0, o.SetThreshold(1))
	assert.Equal(t, 0.0, o.SetThreshold(0))

	o.SetThreshold(0.25)
	for _, v := range []any{-0.1, 1.01, 2, "0.5", nil, math.NaN(), true} {
		assert.Equal(t, 0.25, o.SetThreshold(v), "%#v", v)
	}
}

func TestOptions_SetPredicate(t *testing.T) {
	o := NewOptions(nil)
	always := func(Element, *Options) bool { return true }

	o.SetPredicate(always)
	assert.True(t, o.Test(el("x")))

	never := Predicate(func(Element, *Options) bool { return false })
	o.SetPredicate(never)
	assert.False(t, o.Test(el("x")))

	for _, v := range []any{nil, "fn", 42, Predicate(nil), func(Element) bool { return true }} {
		o.SetPredicate(v)
		assert.False(t, o.Test(el("x")), "%T must be rejected", v)
	}
}

func TestOptions_PredicateSeesSharedOptions(t *testing.T) {
	o := NewOptions(nil)
	var seen float64
	o.SetPredicate(func(_ Element, opts *Options) bool {
		seen = opts.Threshold()
		return true
	})

	o.SetThreshold(0.75)
	o.Test(el("x"))
	assert.Equal(t, 0.75, seen)
}
