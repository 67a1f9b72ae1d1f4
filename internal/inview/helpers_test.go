package inview

import (
	"strings"
	"sync"
)

type testElement struct {
	id    string
	class string
}

func (e *testElement) ElementID() string { return e.id }

func el(id string) *testElement { return &testElement{id: id} }

// fakePage is an ElementSource and GeometryProvider over a fixed set of boxes.
type fakePage struct {
	mu       sync.Mutex
	elements []*testElement
	boxes    map[Element]Rect
	viewport Size
	queries  int
}

func newFakePage(width, height float64) *fakePage {
	return &fakePage{
		boxes:    make(map[Element]Rect),
		viewport: Size{Width: width, Height: height},
	}
}

func (p *fakePage) add(e *testElement, box Rect) *testElement {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, e)
	p.boxes[e] = box
	return e
}

func (p *fakePage) move(e Element, box Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boxes[e] = box
}

func (p *fakePage) Query(q string) []Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++

	var out []Element
	for _, e := range p.elements {
		if q == "*" || strings.TrimPrefix(q, ".") == e.class {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePage) Bounds(e Element) Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.boxes[e]
}

func (p *fakePage) Viewport() Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

// inside and outside are boxes relative to a 1000x800 viewport.
var (
	inside  = RectFromXYWH(100, 100, 200, 100)
	outside = RectFromXYWH(100, 2000, 200, 100)
)

// recorder collects emitted events as "event:id" strings.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) handler(ev Event) Handler {
	return Notify(func(e Element) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, string(ev)+":"+e.ElementID())
	})
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *recorder) watch(reg *Registry) {
	reg.On(EventEnter, r.handler(EventEnter)).On(EventExit, r.handler(EventExit))
}
