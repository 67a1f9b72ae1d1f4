package layout

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/inview/internal/inview"
)

// Default viewport size, in cells, when the document does not set one.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// DefaultKind is the kind of nodes that do not declare one.
const DefaultKind = "box"

// Document is a scrollable set of nodes. It implements inview.ElementSource
// and inview.GeometryProvider; Bounds reports node boxes relative to the
// current scroll position.
type Document struct {
	mu     sync.RWMutex
	path   string
	nodes  []*Node
	byID   map[string]*Node
	width  float64
	height float64
	scroll struct{ x, y float64 }
}

// ParseError reports a malformed layout document.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type fileFormat struct {
	Viewport struct {
		Width  float64 `toml:"width"`
		Height float64 `toml:"height"`
	} `toml:"viewport"`
	Nodes []nodeFormat `toml:"node"`
}

type nodeFormat struct {
	ID     string  `toml:"id"`
	Kind   string  `toml:"kind"`
	Class  string  `toml:"class"`
	Label  string  `toml:"label"`
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// New returns an empty document with the given viewport size.
func New(width, height float64) *Document {
	d := &Document{byID: make(map[string]*Node)}
	d.width, d.height = clampSize(width, height)
	return d
}

// Load reads a document from a TOML file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout %s: %w", path, err)
	}
	d, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	d.path = path
	return d, nil
}

// Parse builds a document from TOML data. source names the data in errors.
func Parse(source string, data []byte) (*Document, error) {
	f, nodes, err := decode(source, data)
	if err != nil {
		return nil, err
	}
	d := New(f.Viewport.Width, f.Viewport.Height)
	for _, n := range nodes {
		d.nodes = append(d.nodes, n)
		d.byID[n.id] = n
	}
	return d, nil
}

func decode(source string, data []byte) (*fileFormat, []*Node, error) {
	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, nil, perr
	}

	seen := make(map[string]bool, len(f.Nodes))
	nodes := make([]*Node, 0, len(f.Nodes))
	for i, nf := range f.Nodes {
		if nf.Width < 0 || nf.Height < 0 {
			return nil, nil, &ParseError{Path: source, Message: fmt.Sprintf("node %d has a negative size", i)}
		}
		id := nf.ID
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, nil, &ParseError{Path: source, Message: fmt.Sprintf("duplicate node id %q", id)}
		}
		seen[id] = true

		kind := nf.Kind
		if kind == "" {
			kind = DefaultKind
		}
		nodes = append(nodes, &Node{
			id:      id,
			kind:    kind,
			classes: splitClasses(nf.Class),
			label:   nf.Label,
			rect:    inview.RectFromXYWH(nf.X, nf.Y, nf.Width, nf.Height),
		})
	}
	return &f, nodes, nil
}

// Path returns the file the document was loaded from, if any.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Reload re-reads the document's file. Nodes whose id is still present keep
// their identity; their geometry and attributes are updated in place. The
// viewport size is kept. The scroll position is clamped to the new extent.
func (d *Document) Reload() error {
	path := d.Path()
	if path == "" {
		return errors.New("layout: document has no backing file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading layout %s: %w", path, err)
	}
	_, fresh, err := decode(path, data)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := make([]*Node, 0, len(fresh))
	byID := make(map[string]*Node, len(fresh))
	for _, n := range fresh {
		if old, ok := d.byID[n.id]; ok {
			old.update(n)
			n = old
		}
		nodes = append(nodes, n)
		byID[n.id] = n
	}
	d.nodes = nodes
	d.byID = byID
	d.clampScroll()
	return nil
}

// Add appends a node in document coordinates and returns it.
// An empty id is replaced by a generated one.
func (d *Document) Add(id, kind, class string, rect inview.Rect) (*Node, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if kind == "" {
		kind = DefaultKind
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.byID[id]; dup {
		return nil, fmt.Errorf("layout: duplicate node id %q", id)
	}
	n := &Node{id: id, kind: kind, classes: splitClasses(class), rect: rect}
	d.nodes = append(d.nodes, n)
	d.byID[id] = n
	return n, nil
}

// Remove deletes the node with the given id.
func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byID[id]
	if !ok {
		return false
	}
	delete(d.byID, id)
	for i, m := range d.nodes {
		if m == n {
			d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
			break
		}
	}
	d.clampScroll()
	return true
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.byID[id]
	return n, ok
}

// Nodes returns the nodes in document order.
func (d *Document) Nodes() []*Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Node, len(d.nodes))
	copy(out, d.nodes)
	return out
}

// Select returns the nodes matching a selector list, in document order.
func (d *Document) Select(query string) ([]*Node, error) {
	sels, err := parseSelectors(query)
	if err != nil {
		return nil, err
	}

	var out []*Node
	for _, n := range d.Nodes() {
		for _, s := range sels {
			if s.matches(n) {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

// Query implements inview.ElementSource. Malformed selectors match nothing.
func (d *Document) Query(query string) []inview.Element {
	nodes, err := d.Select(query)
	if err != nil {
		return nil
	}
	return inview.Collect(nodes)
}

// Bounds implements inview.GeometryProvider.
func (d *Document) Bounds(el inview.Element) inview.Rect {
	n, ok := el.(*Node)
	if !ok {
		return inview.Rect{}
	}
	d.mu.RLock()
	dx, dy := d.scroll.x, d.scroll.y
	d.mu.RUnlock()
	return n.Rect().Translate(-dx, -dy)
}

// Viewport implements inview.GeometryProvider.
func (d *Document) Viewport() inview.Size {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return inview.Size{Width: d.width, Height: d.height}
}

// Resize sets the viewport size.
func (d *Document) Resize(width, height float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = clampSize(width, height)
	d.clampScroll()
}

// Scroll returns the scroll position.
func (d *Document) Scroll() (x, y float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scroll.x, d.scroll.y
}

// ScrollTo moves the viewport's top-left corner to (x, y), clamped to the
// content extent. It reports whether the position changed.
func (d *Document) ScrollTo(x, y float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	oldX, oldY := d.scroll.x, d.scroll.y
	d.scroll.x, d.scroll.y = x, y
	d.clampScroll()
	return d.scroll.x != oldX || d.scroll.y != oldY
}

// ScrollBy moves the viewport by (dx, dy); see ScrollTo.
func (d *Document) ScrollBy(dx, dy float64) bool {
	x, y := d.Scroll()
	return d.ScrollTo(x+dx, y+dy)
}

// Extent returns the width and height of the content.
func (d *Document) Extent() (width, height float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.extent()
}

// extent returns the content size (lock held).
func (d *Document) extent() (width, height float64) {
	for _, n := range d.nodes {
		r := n.Rect()
		width = math.Max(width, r.Right)
		height = math.Max(height, r.Bottom)
	}
	return width, height
}

// clampScroll keeps the scroll position inside the content (lock held).
func (d *Document) clampScroll() {
	w, h := d.extent()
	d.scroll.x = clamp(d.scroll.x, 0, math.Max(0, w-d.width))
	d.scroll.y = clamp(d.scroll.y, 0, math.Max(0, h-d.height))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampSize(width, height float64) (float64, float64) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return width, height
}
