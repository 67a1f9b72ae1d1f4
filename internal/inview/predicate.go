package inview

// Predicate reports whether el currently counts as visible.
// It receives the full shared options so custom tests can read the
// offsets, threshold and geometry.
type Predicate func(el Element, opts *Options) bool

// InViewport is the default predicate. It reads the element's box and the
// viewport size from the options' geometry provider.
func InViewport(el Element, opts *Options) bool {
	g := opts.Geometry()
	if g == nil {
		return false
	}
	return Visible(g.Bounds(el), g.Viewport(), opts.Offset(), opts.Threshold())
}

// Visible reports whether box lies inside a viewport of size vp by more than
// the given offsets on every side. threshold scales with the element's own
// size: 0.5 requires at least half the element's height (width) to be inside
// the vertical (horizontal) bounds, beyond the offset.
func Visible(box Rect, vp Size, off Offset, threshold float64) bool {
	// Distances from the far side of the viewport toward each element edge.
	t := box.Bottom
	r := vp.Width - box.Left
	b := vp.Height - box.Top
	l := box.Right

	tx := threshold * box.Width
	ty := threshold * box.Height

	return t > off.Top+ty &&
		r > off.Right+tx &&
		b > off.Bottom+ty &&
		l > off.Left+tx
}
