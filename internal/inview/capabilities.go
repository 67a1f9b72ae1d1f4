package inview

// ElementSource resolves a query string to an ordered list of elements.
// It is consulted on every Resolve; results are never cached.
type ElementSource interface {
	Query(query string) []Element
}

// GeometryProvider reads element and viewport geometry.
type GeometryProvider interface {
	// Bounds returns the element's box relative to the viewport origin.
	Bounds(el Element) Rect

	// Viewport returns the viewport's inner size.
	Viewport() Size
}

// SignalSource delivers scroll, resize and load signals.
type SignalSource interface {
	// Subscribe registers fn for every signal and returns a function that removes it.
	Subscribe(fn func(Signal)) (cancel func())
}

// MutationSource is an optional SignalSource capability for structural
// content changes (elements added, removed or moved).
type MutationSource interface {
	ObserveMutations(fn func()) (cancel func(), err error)
}

// ElementSourceFunc adapts a function to ElementSource.
type ElementSourceFunc func(query string) []Element

// Query calls f(query).
func (f ElementSourceFunc) Query(query string) []Element {
	return f(query)
}
